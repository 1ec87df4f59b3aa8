package procfs

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"
)

// MemoryStats is a snapshot of /proc/meminfo, values converted to bytes.
type MemoryStats struct {
	Total     uint64
	Free      uint64
	Available uint64
	TotalSwap uint64
	FreeSwap  uint64
	Cached    uint64
}

// ReadMemoryStats parses /proc/meminfo.
func ReadMemoryStats() (MemoryStats, error) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return MemoryStats{}, classifyOpenErr("open /proc/meminfo", err)
	}
	defer f.Close()

	return ReadMemoryStatsFrom(f)
}

// ReadMemoryStatsFrom parses meminfo content from an arbitrary reader, so
// tests can hand it a canned snapshot instead of the real file.
func ReadMemoryStatsFrom(r io.Reader) (MemoryStats, error) {
	var stats MemoryStats

	targets := map[string]*uint64{
		"MemTotal":     &stats.Total,
		"MemFree":      &stats.Free,
		"MemAvailable": &stats.Available,
		"SwapTotal":    &stats.TotalSwap,
		"SwapFree":     &stats.FreeSwap,
		"Cached":       &stats.Cached,
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			continue
		}
		key := line[:colon]
		target, ok := targets[key]
		if !ok {
			continue
		}

		fields := strings.Fields(line[colon+1:])
		if len(fields) == 0 {
			continue
		}
		kb, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			return MemoryStats{}, ErrInvalidData
		}
		*target = kb * 1024
	}
	if err := scanner.Err(); err != nil {
		return MemoryStats{}, &SyscallError{Op: "read /proc/meminfo", Err: err}
	}

	return stats, nil
}
