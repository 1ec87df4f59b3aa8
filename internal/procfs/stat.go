package procfs

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ProcessStat is the subset of /proc/<pid>/stat fields the scorer needs.
// Times are in clock ticks since boot; StartTimeTicks is clock ticks since
// boot at the moment the process was created.
type ProcessStat struct {
	PID            PID
	Comm           string
	State          byte
	PPID           int
	UTime          uint64
	STime          uint64
	CUTime         uint64
	CSTime         uint64
	StartTimeTicks uint64
}

// fields after the comm field, zero-indexed, per spec.md §6.
const (
	statFieldState     = 0
	statFieldPPID      = 2
	statFieldUTime     = 11
	statFieldSTime     = 12
	statFieldCUTime    = 13
	statFieldCSTime    = 14
	statFieldStartTime = 19
	statMinFields      = 24
)

// ReadProcessStat reads and parses /proc/<pid>/stat.
func ReadProcessStat(pid PID) (ProcessStat, error) {
	path := filepath.Join("/proc", pid.String(), "stat")
	data, err := os.ReadFile(path)
	if err != nil {
		return ProcessStat{}, classifyOpenErr("read "+path, err)
	}
	return parseProcessStat(pid, string(data))
}

// parseProcessStat parses the content of /proc/<pid>/stat. The comm field
// is delimited by the first '(' and the last ')' in the line and may itself
// contain spaces and parentheses, so everything else is parsed relative to
// those two delimiters rather than by a fixed split on whitespace.
func parseProcessStat(pid PID, content string) (ProcessStat, error) {
	firstParen := strings.IndexByte(content, '(')
	lastParen := strings.LastIndexByte(content, ')')
	if firstParen < 0 || lastParen < 0 || lastParen <= firstParen {
		return ProcessStat{}, ErrInvalidData
	}

	comm := content[firstParen+1 : lastParen]
	rest := content[lastParen+1:]
	fields := strings.Fields(rest)
	if len(fields) < statMinFields {
		return ProcessStat{}, ErrInvalidData
	}

	parseUint := func(idx int) uint64 {
		v, _ := strconv.ParseUint(fields[idx], 10, 64)
		return v
	}
	ppid, _ := strconv.Atoi(fields[statFieldPPID])

	var state byte
	if len(fields[statFieldState]) > 0 {
		state = fields[statFieldState][0]
	}

	return ProcessStat{
		PID:            pid,
		Comm:           comm,
		State:          state,
		PPID:           ppid,
		UTime:          parseUint(statFieldUTime),
		STime:          parseUint(statFieldSTime),
		CUTime:         parseUint(statFieldCUTime),
		CSTime:         parseUint(statFieldCSTime),
		StartTimeTicks: parseUint(statFieldStartTime),
	}, nil
}

// ReadUptimeSeconds parses /proc/uptime, returning seconds since boot as
// reported by the kernel (the first whitespace-separated token).
func ReadUptimeSeconds() (float64, error) {
	data, err := os.ReadFile("/proc/uptime")
	if err != nil {
		return 0, classifyOpenErr("read /proc/uptime", err)
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return 0, ErrInvalidData
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, ErrInvalidData
	}
	return v, nil
}
