// Package reporter runs the wrapped command once and reports failed runs.
//
// A run moves through NotStarted, Launching, LaunchFailed or Running,
// Completed, Reported or NotReported, and Done. There are no retries.
//
// Output of the child is collected in full while it runs, cut to an excerpt
// once it exits, and the same excerpt is used for the console and the report.
//
// Usage:
//
//	r, err := reporter.New(cfg, launcher.New(), client, logger)
//	os.Exit(r.Run(ctx))
package reporter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/doughall/cronsentry/internal/launcher"
	"github.com/doughall/cronsentry/internal/logging"
	"golang.org/x/sync/errgroup"
)

// Client submits a report to a remote error-tracking service.
type Client interface {
	CaptureMessage(ctx context.Context, message, level string, timeSpent time.Duration, data, extra map[string]any) error
}

// Validation errors returned by New.
var (
	ErrMissingCommand   = errors.New("command is required")
	ErrMessageLength    = fmt.Errorf("max message length must be at least %d", MinStringMaxLength)
	ErrMissingLauncher  = errors.New("launcher is required")
	ErrMissingReporting = errors.New("reporting client is required")
)

// Config holds the settings for a single run.
type Config struct {
	// Command is the executable followed by its arguments.
	Command []string

	// MaxMessageLength bounds the stdout and stderr excerpts.
	MaxMessageLength int

	// Quiet suppresses forwarding of the excerpts to the console.
	Quiet bool

	Policy Policy

	// Data holds contextual report fields such as server_name.
	Data map[string]any

	// Extra holds operator supplied key/value pairs for the report.
	Extra map[string]string

	// Stdout and Stderr receive the forwarded excerpts.
	// They default to os.Stdout and os.Stderr.
	Stdout io.Writer
	Stderr io.Writer
}

// CommandReporter runs one command and reports the outcome.
type CommandReporter struct {
	cfg      Config
	launcher launcher.Launcher
	client   Client
	logger   *slog.Logger
}

// New validates cfg and creates a CommandReporter.
func New(cfg Config, l launcher.Launcher, client Client, logger *slog.Logger) (*CommandReporter, error) {
	if len(cfg.Command) == 0 || cfg.Command[0] == "" {
		return nil, ErrMissingCommand
	}
	if cfg.MaxMessageLength < MinStringMaxLength {
		return nil, ErrMessageLength
	}
	if l == nil {
		return nil, ErrMissingLauncher
	}
	if client == nil {
		return nil, ErrMissingReporting
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}
	cfg.Command = append([]string(nil), cfg.Command...)

	return &CommandReporter{
		cfg:      cfg,
		launcher: l,
		client:   client,
		logger:   logging.WithComponent(logger, "reporter"),
	}, nil
}

// Run executes the command, reports it if the policy asks for it and
// returns the exit status to hand to the OS. The return value is never
// affected by the outcome of reporting.
func (r *CommandReporter) Run(ctx context.Context) int {
	result := r.execute(ctx)

	if !r.cfg.Policy.Reportable(result) {
		r.logger.Debug("run not reported",
			slog.Int("exit_status", result.ExitStatus),
		)
		return result.ExitStatus
	}

	if !r.cfg.Quiet {
		r.forward(result)
	}

	report := NewReport(r.cfg.Command, result, r.cfg.Data, r.cfg.Extra)
	if err := r.client.CaptureMessage(ctx, report.Message, report.Level, report.TimeSpent, report.Data, report.Extra); err != nil {
		r.logger.Warn("failed to submit report",
			slog.String("error", err.Error()),
			slog.Int("exit_status", result.ExitStatus),
		)
	} else {
		r.logger.Debug("run reported",
			slog.Int("exit_status", result.ExitStatus),
		)
	}

	return result.ExitStatus
}

// execute launches the command, drains its output and waits for it.
func (r *CommandReporter) execute(ctx context.Context) *RunResult {
	start := time.Now()
	maxLen := r.cfg.MaxMessageLength

	r.logger.Debug("launching command",
		slog.Any("command", r.cfg.Command),
	)

	proc, err := r.launcher.Launch(ctx, r.cfg.Command)
	if err != nil {
		r.logger.Debug("launch failed",
			slog.String("error", err.Error()),
		)
		stderr := Excerpt(err.Error(), maxLen)
		if launcher.IsLaunchError(err) {
			stderr = Head(err.Error(), maxLen)
		}
		return &RunResult{
			ExitStatus: launcher.ExitCommandNotFound,
			Stderr:     stderr,
			TimeSpent:  time.Since(start),
			LaunchErr:  err,
		}
	}

	// Both pipes are drained concurrently so a child filling one of them
	// cannot block while we read the other.
	var stdout, stderr bytes.Buffer
	var g errgroup.Group
	g.Go(func() error {
		_, err := io.Copy(&stdout, proc.Stdout())
		return err
	})
	g.Go(func() error {
		_, err := io.Copy(&stderr, proc.Stderr())
		return err
	})
	if err := g.Wait(); err != nil {
		r.logger.Warn("failed to read command output",
			slog.String("error", err.Error()),
		)
	}

	status, err := proc.Wait()
	if err != nil {
		r.logger.Warn("failed to wait for command",
			slog.String("error", err.Error()),
		)
	}

	result := &RunResult{
		ExitStatus: status,
		Stdout:     Excerpt(stdout.String(), maxLen),
		Stderr:     Excerpt(stderr.String(), maxLen),
		TimeSpent:  time.Since(start),
	}

	r.logger.Debug("command completed",
		slog.Int("exit_status", result.ExitStatus),
		slog.Duration("time_spent", result.TimeSpent),
	)
	return result
}

// forward writes each excerpt to the console in a single write.
func (r *CommandReporter) forward(result *RunResult) {
	if _, err := io.WriteString(r.cfg.Stdout, result.Stdout); err != nil {
		r.logger.Warn("failed to forward stdout", slog.String("error", err.Error()))
	}
	if _, err := io.WriteString(r.cfg.Stderr, result.Stderr); err != nil {
		r.logger.Warn("failed to forward stderr", slog.String("error", err.Error()))
	}
}
