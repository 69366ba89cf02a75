package launcher

import (
	"errors"
	"fmt"
	"os/exec"
	"syscall"
)

// LaunchError reports that the command could not be started, as opposed to
// a command that ran and exited non-zero.
type LaunchError struct {
	Command string
	Err     error
}

// Error renders the OS error code and message followed by the command name,
// e.g. `[Errno 2] no such file or directory: "backup.sh"`. The underlying
// error is available through Unwrap.
func (e *LaunchError) Error() string {
	if errno, ok := Errno(e.Err); ok {
		return fmt.Sprintf("[Errno %d] %s: %q", int(errno), errno.Error(), e.Command)
	}
	return e.Err.Error()
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// Errno extracts the OS error number from a launch failure.
// exec.ErrNotFound carries no errno and is reported as ENOENT.
func Errno(err error) (syscall.Errno, bool) {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno, true
	}
	if errors.Is(err, exec.ErrNotFound) {
		return syscall.ENOENT, true
	}
	return 0, false
}

// IsLaunchError reports whether err means the command never started.
func IsLaunchError(err error) bool {
	var launchErr *LaunchError
	return errors.As(err, &launchErr)
}
