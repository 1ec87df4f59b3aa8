// Package sysinfo queries host constants that the scorer needs but that
// the kernel does not expose through /proc: the clock tick rate and the
// page size. Both are queried once at startup rather than assumed.
package sysinfo

import (
	"os"

	"github.com/tklauser/go-sysconf"
)

// ClockInfo holds host constants resolved once at daemon startup.
type ClockInfo struct {
	TicksPerSecond float64
	PageSizeBytes  uint64
}

// defaultTicksPerSecond is the fallback spec.md §4.C calls out: "assume
// 100 Hz unless the platform reports otherwise".
const defaultTicksPerSecond = 100.0

// Detect queries SC_CLK_TCK via sysconf(3) and the page size via
// getpagesize(2). Both are treated as best-effort: a failure to query
// either falls back to the documented default rather than aborting
// startup, since a wrong tick rate only skews the runtime subscore, it
// never corrupts the kill decision's correctness guarantees.
func Detect() ClockInfo {
	info := ClockInfo{
		TicksPerSecond: defaultTicksPerSecond,
		PageSizeBytes:  uint64(os.Getpagesize()),
	}

	if ticks, err := sysconf.Sysconf(sysconf.SC_CLK_TCK); err == nil && ticks > 0 {
		info.TicksPerSecond = float64(ticks)
	}

	return info
}
