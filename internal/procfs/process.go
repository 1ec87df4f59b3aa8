package procfs

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ProcessMemInfo holds the memory fields read from /proc/<pid>/status plus
// the kernel's own OOM scoring fields.
type ProcessMemInfo struct {
	VMPeak      uint64
	VMSize      uint64
	VMRSS       uint64
	VMSwap      uint64
	OOMScore    int32
	OOMScoreAdj int32
}

// ProcessInfo is a point-in-time view of one process, produced fresh on
// every selection pass and never mutated afterward.
type ProcessInfo struct {
	PID   PID
	Name  string
	State byte
	UID   int
	PPID  int
	Mem   ProcessMemInfo
}

// IsKernelThread reports whether the process is a kernel thread: its name
// follows the "[kthreadd]" convention, or it is parented by PID 0 despite
// not being PID 1 itself (PID 1 is also parented by 0 on boot).
func (p ProcessInfo) IsKernelThread() bool {
	if strings.HasPrefix(p.Name, "[") {
		return true
	}
	return p.PPID == 0 && p.PID != 1
}

// IsOomable reports whether the kernel's own OOM killer would ever be
// allowed to consider this process: not a kernel thread, not marked
// immortal via oom_score_adj == -1000, and not a zombie.
func (p ProcessInfo) IsOomable() bool {
	return !p.IsKernelThread() && p.Mem.OOMScoreAdj > -1000 && p.State != 'Z'
}

// ReadProcess reads /proc/<pid>/status, /proc/<pid>/oom_score, and
// /proc/<pid>/oom_score_adj into a ProcessInfo.
func ReadProcess(pid PID) (ProcessInfo, error) {
	info := ProcessInfo{PID: pid}

	statusPath := filepath.Join("/proc", pid.String(), "status")
	f, err := os.Open(statusPath)
	if err != nil {
		return ProcessInfo{}, classifyOpenErr("open "+statusPath, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			continue
		}
		key := line[:colon]
		value := strings.TrimSpace(line[colon+1:])

		switch key {
		case "Name":
			info.Name = value
		case "State":
			if value != "" {
				info.State = value[0]
			}
		case "Uid":
			if fields := strings.Fields(value); len(fields) > 0 {
				if uid, err := strconv.Atoi(fields[0]); err == nil {
					info.UID = uid
				}
			}
		case "PPid":
			if ppid, err := strconv.Atoi(value); err == nil {
				info.PPID = ppid
			}
		case "VmPeak":
			info.Mem.VMPeak = parseKBField(value)
		case "VmSize":
			info.Mem.VMSize = parseKBField(value)
		case "VmRSS":
			info.Mem.VMRSS = parseKBField(value)
		case "VmSwap":
			info.Mem.VMSwap = parseKBField(value)
		}
	}
	if err := scanner.Err(); err != nil {
		return ProcessInfo{}, &SyscallError{Op: "read " + statusPath, Err: err}
	}

	score, err := readIntFile(filepath.Join("/proc", pid.String(), "oom_score"))
	if err != nil {
		return ProcessInfo{}, err
	}
	info.Mem.OOMScore = int32(score)

	adj, err := readIntFile(filepath.Join("/proc", pid.String(), "oom_score_adj"))
	if err != nil {
		return ProcessInfo{}, err
	}
	info.Mem.OOMScoreAdj = int32(adj)

	return info, nil
}

// ListProcesses enumerates every PID directory under /proc and reads each
// one. A PID that disappears between being listed and being read is
// silently skipped rather than treated as an error.
func ListProcesses() ([]ProcessInfo, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, classifyOpenErr("readdir /proc", err)
	}

	out := make([]ProcessInfo, 0, len(entries))
	for _, entry := range entries {
		raw, err := strconv.Atoi(entry.Name())
		if err != nil || raw <= 0 {
			continue
		}
		pid := PID(raw)

		// A PID can vanish between being listed and being read, or be
		// owned by another user; either way we skip it and keep going
		// rather than fail the whole enumeration.
		info, err := ReadProcess(pid)
		if err != nil {
			continue
		}
		out = append(out, info)
	}
	return out, nil
}

// parseKBField parses a "1234 kB" value as in /proc/<pid>/status, returning
// the value in bytes. A malformed field defaults to zero, matching the
// kernel's convention that every VM* line is always well-formed when it is
// present at all.
func parseKBField(value string) uint64 {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return 0
	}
	kb, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return 0
	}
	return kb * 1024
}

func readIntFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, classifyOpenErr("read "+path, err)
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, ErrInvalidData
	}
	return v, nil
}
