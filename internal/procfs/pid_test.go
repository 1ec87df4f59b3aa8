package procfs

import "testing"

func TestParsePID_RejectsNonPositive(t *testing.T) {
	for _, raw := range []int{0, -1, -1000} {
		if _, err := ParsePID(raw); err != ErrInvalidPid {
			t.Errorf("ParsePID(%d) err = %v, want ErrInvalidPid", raw, err)
		}
	}
}

func TestParsePID_RoundTrips(t *testing.T) {
	for _, raw := range []int{1, 2, 42, 1 << 20} {
		pid, err := ParsePID(raw)
		if err != nil {
			t.Fatalf("ParsePID(%d) unexpected error: %v", raw, err)
		}
		if pid.Int() != raw {
			t.Errorf("PID(%d).Int() = %d, want %d", raw, pid.Int(), raw)
		}
	}
}
