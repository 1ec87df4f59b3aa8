// Package pressure decides whether the host is "persistently under memory
// pressure", applying a one-sided hysteresis window over raw meminfo
// ratios. It is the only core component with state carried between calls.
package pressure

import (
	"time"

	"github.com/oomkilld/oomkilld/internal/procfs"
)

// Thresholds configures when pressure onset is declared.
type Thresholds struct {
	MinFreeRatio     float64
	MaxSwapRatio     float64
	PressureDuration time.Duration
}

// DefaultThresholds matches spec.md §3: 5% free, 80% swap used, 5s dwell.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinFreeRatio:     0.05,
		MaxSwapRatio:     0.80,
		PressureDuration: 5 * time.Second,
	}
}

// StatsReader supplies a fresh MemoryStats snapshot. In production this is
// procfs.ReadMemoryStats; tests inject a func returning canned values.
type StatsReader func() (procfs.MemoryStats, error)

// Detector tracks the pressure-onset clock across calls to CheckPressure.
// It is not safe for concurrent use — the Killer Worker is its only
// caller, on a single goroutine.
type Detector struct {
	thresholds   Thresholds
	readStats    StatsReader
	pressureSet  bool
	pressureFrom time.Time
	lastCheck    time.Time
	now          func() time.Time
}

// New builds a Detector reading live /proc/meminfo snapshots.
func New(thresholds Thresholds) *Detector {
	return NewWithReader(thresholds, func() (procfs.MemoryStats, error) {
		return procfs.ReadMemoryStats()
	})
}

// NewWithReader builds a Detector against an injected stats source, used
// by tests to avoid depending on the real /proc filesystem.
func NewWithReader(thresholds Thresholds, reader StatsReader) *Detector {
	return &Detector{
		thresholds: thresholds,
		readStats:  reader,
		now:        time.Now,
	}
}

// Info is a pure snapshot of the detector's current view, for status
// reporting.
type Info struct {
	Stats            procfs.MemoryStats
	PressureDuration time.Duration
	LastCheck        time.Time
}

// CheckPressure reads a fresh snapshot and applies the hysteresis rule
// from spec.md §4.B: pressure is reported only once the host has been
// continuously over threshold for at least PressureDuration; a single
// under-threshold reading ends the episode immediately.
func (d *Detector) CheckPressure() (bool, error) {
	stats, err := d.readStats()
	if err != nil {
		return false, err
	}
	now := d.now()
	d.lastCheck = now

	overThreshold := isOverThreshold(stats, d.thresholds)

	if !overThreshold {
		d.pressureSet = false
		return false, nil
	}

	if !d.pressureSet {
		d.pressureSet = true
		d.pressureFrom = now
		return false, nil
	}

	if now.Sub(d.pressureFrom) >= d.thresholds.PressureDuration {
		return true, nil
	}
	return false, nil
}

func isOverThreshold(stats procfs.MemoryStats, t Thresholds) bool {
	if stats.Total == 0 {
		return false
	}
	freeRatio := float64(stats.Available) / float64(stats.Total)

	var swapUsedRatio float64
	if stats.TotalSwap > 0 {
		swapUsedRatio = float64(stats.TotalSwap-stats.FreeSwap) / float64(stats.TotalSwap)
	}

	return freeRatio < t.MinFreeRatio || swapUsedRatio > t.MaxSwapRatio
}

// PressureInfo returns the detector's current view: a fresh MemoryStats
// read, plus the pressure duration and last-check time left by earlier
// CheckPressure calls. It does not change the hysteresis state.
func (d *Detector) PressureInfo() (Info, error) {
	stats, err := d.readStats()
	if err != nil {
		return Info{}, err
	}

	var duration time.Duration
	if d.pressureSet {
		duration = d.now().Sub(d.pressureFrom)
	}

	return Info{
		Stats:            stats,
		PressureDuration: duration,
		LastCheck:        d.lastCheck,
	}, nil
}
