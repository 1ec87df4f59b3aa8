package procfs

import "testing"

func TestParseProcessStat_NameWithSpacesAndParens(t *testing.T) {
	// Build a stat line with 24 fields after the comm, matching a
	// realistic kernel-emitted line, with a comm containing a space and
	// parentheses (e.g. "(kworker/u8:0-events)" or similar weirdness).
	fields := make([]string, statMinFields)
	for i := range fields {
		fields[i] = "0"
	}
	fields[statFieldState] = "R"
	fields[statFieldPPID] = "42"
	fields[statFieldUTime] = "100"
	fields[statFieldSTime] = "50"
	fields[statFieldCUTime] = "10"
	fields[statFieldCSTime] = "5"
	fields[statFieldStartTime] = "98765"

	content := "999 (my proc (weird)) " + joinFields(fields)

	stat, err := parseProcessStat(999, content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stat.Comm != "my proc (weird)" {
		t.Errorf("Comm = %q, want %q", stat.Comm, "my proc (weird)")
	}
	if stat.State != 'R' {
		t.Errorf("State = %q, want R", stat.State)
	}
	if stat.PPID != 42 {
		t.Errorf("PPID = %d, want 42", stat.PPID)
	}
	if stat.UTime != 100 || stat.STime != 50 {
		t.Errorf("UTime/STime = %d/%d, want 100/50", stat.UTime, stat.STime)
	}
	if stat.CUTime != 10 || stat.CSTime != 5 {
		t.Errorf("CUTime/CSTime = %d/%d, want 10/5", stat.CUTime, stat.CSTime)
	}
	if stat.StartTimeTicks != 98765 {
		t.Errorf("StartTimeTicks = %d, want 98765", stat.StartTimeTicks)
	}
}

func TestParseProcessStat_TooFewFields(t *testing.T) {
	content := "1 (sh) S 1 1 1"
	if _, err := parseProcessStat(1, content); err != ErrInvalidData {
		t.Fatalf("err = %v, want ErrInvalidData", err)
	}
}

func TestParseProcessStat_MissingParens(t *testing.T) {
	content := "1 sh S 1 1 1"
	if _, err := parseProcessStat(1, content); err != ErrInvalidData {
		t.Fatalf("err = %v, want ErrInvalidData", err)
	}
}

func joinFields(fields []string) string {
	out := ""
	for i, f := range fields {
		if i > 0 {
			out += " "
		}
		out += f
	}
	return out
}
