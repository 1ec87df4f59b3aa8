// Package killprim is the lowest layer of the daemon: delivering a
// signal to a process and classifying the result. It is the "already
// functional, lower authoritative layer" spec.md §9 describes — there is
// no FFI boundary to cross in Go, so this package is the whole thing.
package killprim

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/oomkilld/oomkilld/internal/procfs"
)

// Killer delivers a signal to a PID. Isolated behind an interface so the
// Killer Loop can be tested without sending real signals.
type Killer interface {
	Kill(pid procfs.PID) error
}

// UnixKiller signals real processes via golang.org/x/sys/unix.Kill.
type UnixKiller struct{}

// New returns the production Killer.
func New() UnixKiller { return UnixKiller{} }

// Kill sends SIGKILL to pid, classifying the result into the same
// sentinel error taxonomy internal/procfs uses: ESRCH becomes
// ErrProcessNotFound, EPERM becomes ErrPermissionDenied, anything else is
// wrapped as a SyscallError.
func (UnixKiller) Kill(pid procfs.PID) error {
	err := unix.Kill(pid.Int(), unix.SIGKILL)
	if err == nil {
		return nil
	}

	var errno unix.Errno
	if errors.As(err, &errno) {
		switch errno {
		case unix.ESRCH:
			return procfs.ErrProcessNotFound
		case unix.EPERM:
			return procfs.ErrPermissionDenied
		}
	}
	return &procfs.SyscallError{Op: fmt.Sprintf("kill pid %d", pid.Int()), Err: err}
}
