package procfs

import (
	"strings"
	"testing"
)

func TestReadMemoryStatsFrom_Valid(t *testing.T) {
	input := `MemTotal:       16307664 kB
MemFree:         1000000 kB
MemAvailable:    8000000 kB
Buffers:          500000 kB
Cached:          2000000 kB
SwapTotal:       4000000 kB
SwapFree:        3000000 kB
Dirty:                100 kB
`
	stats, err := ReadMemoryStatsFrom(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got, want := stats.Total, uint64(16307664*1024); got != want {
		t.Errorf("Total = %d, want %d", got, want)
	}
	if got, want := stats.Available, uint64(8000000*1024); got != want {
		t.Errorf("Available = %d, want %d", got, want)
	}
	if got, want := stats.TotalSwap, uint64(4000000*1024); got != want {
		t.Errorf("TotalSwap = %d, want %d", got, want)
	}
	if got, want := stats.FreeSwap, uint64(3000000*1024); got != want {
		t.Errorf("FreeSwap = %d, want %d", got, want)
	}
	if got, want := stats.Cached, uint64(2000000*1024); got != want {
		t.Errorf("Cached = %d, want %d", got, want)
	}
}

func TestReadMemoryStatsFrom_MissingKeysDefaultZero(t *testing.T) {
	input := "MemTotal: 1000 kB\n"
	stats, err := ReadMemoryStatsFrom(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Available != 0 {
		t.Errorf("Available = %d, want 0", stats.Available)
	}
	if stats.TotalSwap != 0 {
		t.Errorf("TotalSwap = %d, want 0", stats.TotalSwap)
	}
}

func TestReadMemoryStatsFrom_IgnoresUnrecognizedKeys(t *testing.T) {
	input := "SomeWeirdKey: 999 kB\nMemTotal: 500 kB\n"
	stats, err := ReadMemoryStatsFrom(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Total != 500*1024 {
		t.Errorf("Total = %d, want %d", stats.Total, 500*1024)
	}
}
