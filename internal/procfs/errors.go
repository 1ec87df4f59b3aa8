// Package procfs reads plain records out of /proc. It never makes a
// decision; it only parses what the kernel exposes.
package procfs

import (
	"errors"
	"os"
)

var (
	// ErrInvalidPid indicates a PID <= 0 reached ParsePID.
	ErrInvalidPid = errors.New("procfs: invalid pid")

	// ErrProcessNotFound indicates the target PID vanished between
	// being listed and being read.
	ErrProcessNotFound = errors.New("procfs: process not found")

	// ErrPermissionDenied indicates /proc read access was refused.
	ErrPermissionDenied = errors.New("procfs: permission denied")

	// ErrInvalidData indicates a required field could not be parsed
	// and no sensible default applies.
	ErrInvalidData = errors.New("procfs: invalid data")
)

// SyscallError wraps an unexpected I/O failure with its underlying cause.
type SyscallError struct {
	Op  string
	Err error
}

func (e *SyscallError) Error() string {
	return "procfs: " + e.Op + ": " + e.Err.Error()
}

func (e *SyscallError) Unwrap() error {
	return e.Err
}

// classifyOpenErr maps an os.Open-style failure onto the taxonomy in
// spec.md §7: not-found and permission errors get sentinels, everything
// else is a wrapped SyscallError.
func classifyOpenErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if os.IsNotExist(err) {
		return ErrProcessNotFound
	}
	if os.IsPermission(err) {
		return ErrPermissionDenied
	}
	return &SyscallError{Op: op, Err: err}
}
