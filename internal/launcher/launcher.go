// Package launcher starts the wrapped command as a child process.
// The child inherits the parent's environment and working directory and its
// stdout and stderr are exposed as pipes, so output can be drained while the
// process is still running.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"syscall"
)

// ExitCommandNotFound is the exit status reported when the command could not
// be started at all. It matches the shell's "command not found" status.
const ExitCommandNotFound = 127

// ExitWaitFailed is the exit status reported when the child's status could
// not be collected.
const ExitWaitFailed = 1

// ErrEmptyCommand is returned when Launch is called without an executable.
var ErrEmptyCommand = errors.New("command is empty")

// Launcher starts a child process for the given argument vector.
type Launcher interface {
	Launch(ctx context.Context, argv []string) (Process, error)
}

// Process is a running child. Stdout and Stderr must be drained completely
// before Wait is called.
type Process interface {
	Stdout() io.Reader
	Stderr() io.Reader

	// Wait blocks until the child exits and returns its exit status.
	// A non-zero exit is not an error.
	Wait() (int, error)
}

// ExecLauncher launches commands with os/exec.
type ExecLauncher struct {
	// Env overrides the child's environment. Nil inherits the parent's.
	Env []string

	// Dir overrides the child's working directory. Empty inherits the parent's.
	Dir string
}

// New creates an ExecLauncher that inherits the parent's environment and
// working directory.
func New() *ExecLauncher {
	return &ExecLauncher{}
}

// Launch starts argv[0] with the remaining elements as arguments.
// If the executable cannot be started the returned error is a *LaunchError.
func (l *ExecLauncher) Launch(ctx context.Context, argv []string) (Process, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, ErrEmptyCommand
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = l.Env
	cmd.Dir = l.Dir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, &LaunchError{Command: argv[0], Err: err}
	}

	return &execProcess{cmd: cmd, stdout: stdout, stderr: stderr}, nil
}

// execProcess is the Process handle returned by ExecLauncher.
type execProcess struct {
	cmd    *exec.Cmd
	stdout io.Reader
	stderr io.Reader
}

func (p *execProcess) Stdout() io.Reader { return p.stdout }
func (p *execProcess) Stderr() io.Reader { return p.stderr }

func (p *execProcess) Wait() (int, error) {
	err := p.cmd.Wait()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return ExitStatus(exitErr), nil
	}
	return ExitWaitFailed, fmt.Errorf("wait for %s: %w", p.cmd.Path, err)
}

// ExitStatus converts an exit error into a shell-style exit status.
// A child terminated by a signal yields 128 plus the signal number.
func ExitStatus(exitErr *exec.ExitError) int {
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return exitErr.ExitCode()
}
