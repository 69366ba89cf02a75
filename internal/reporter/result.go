package reporter

import (
	"strings"
	"time"
)

// Level is the severity attached to every report.
const Level = "error"

// RunResult describes one finished (or never started) run of the command.
type RunResult struct {
	// ExitStatus is the child's exit status, or 127 if it never ran.
	ExitStatus int

	// Stdout and Stderr are the excerpts of the captured streams.
	Stdout string
	Stderr string

	TimeSpent time.Duration

	// LaunchErr is set when the command could not be started.
	LaunchErr error
}

// Launched reports whether the child process actually ran.
func (r *RunResult) Launched() bool {
	return r.LaunchErr == nil
}

// Report is the payload handed to the reporting client for a reportable run.
type Report struct {
	Message   string
	Level     string
	TimeSpent time.Duration
	Data      map[string]any
	Extra     map[string]any
}

// Policy selects which runs are reported in addition to failures.
type Policy struct {
	// ReportAll reports every run regardless of exit status.
	ReportAll bool

	// ReportStderr also reports successful runs that wrote to stderr.
	ReportStderr bool
}

// Reportable is true for launch errors, non-zero exits and, depending on
// the policy, successful runs.
func (p Policy) Reportable(r *RunResult) bool {
	switch {
	case !r.Launched(), r.ExitStatus != 0:
		return true
	case p.ReportAll:
		return true
	case p.ReportStderr && r.Stderr != "":
		return true
	}
	return false
}

// NewReport assembles the report for a run. Operator extras are merged
// first so the standard keys cannot be overwritten.
func NewReport(command []string, r *RunResult, data map[string]any, extra map[string]string) *Report {
	merged := make(map[string]any, len(extra)+4)
	for k, v := range extra {
		merged[k] = v
	}
	merged["command"] = command
	merged["exit_status"] = r.ExitStatus
	merged["last_lines_stdout"] = r.Stdout
	merged["last_lines_stderr"] = r.Stderr

	d := make(map[string]any, len(data))
	for k, v := range data {
		d[k] = v
	}

	return &Report{
		Message:   message(command, r),
		Level:     Level,
		TimeSpent: r.TimeSpent,
		Data:      d,
		Extra:     merged,
	}
}

func message(command []string, r *RunResult) string {
	cmd := strings.Join(command, " ")
	switch {
	case !r.Launched(), r.ExitStatus != 0:
		return `Command "` + cmd + `" failed`
	case r.Stderr != "":
		return `Command "` + cmd + `" wrote to stderr`
	default:
		return `Command "` + cmd + `" finished`
	}
}
