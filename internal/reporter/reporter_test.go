// reporter_test.go covers classification, console forwarding and report
// assembly with fake launchers and clients, plus a few real processes.
package reporter

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/doughall/cronsentry/internal/launcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// nopLogger returns a logger that discards all output, suitable for tests.
func nopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeProcess struct {
	stdout, stderr string
	status         int
}

func (p *fakeProcess) Stdout() io.Reader  { return strings.NewReader(p.stdout) }
func (p *fakeProcess) Stderr() io.Reader  { return strings.NewReader(p.stderr) }
func (p *fakeProcess) Wait() (int, error) { return p.status, nil }

type fakeLauncher struct {
	proc  *fakeProcess
	err   error
	calls int
}

func (l *fakeLauncher) Launch(ctx context.Context, argv []string) (launcher.Process, error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	return l.proc, nil
}

type capture struct {
	message   string
	level     string
	timeSpent time.Duration
	data      map[string]any
	extra     map[string]any
}

type fakeClient struct {
	mu       sync.Mutex
	captured []capture
	err      error
}

func (c *fakeClient) CaptureMessage(ctx context.Context, message, level string, timeSpent time.Duration, data, extra map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.captured = append(c.captured, capture{message, level, timeSpent, data, extra})
	return c.err
}

// recorder counts writes so tests can assert nothing was written at all.
type recorder struct {
	buf    strings.Builder
	writes int
}

func (r *recorder) Write(p []byte) (int, error) {
	r.writes++
	return r.buf.Write(p)
}

func (r *recorder) String() string { return r.buf.String() }

type harness struct {
	stdout, stderr *recorder
	client         *fakeClient
}

func newReporter(t *testing.T, cfg Config, l launcher.Launcher) (*CommandReporter, *harness) {
	t.Helper()
	h := &harness{stdout: &recorder{}, stderr: &recorder{}, client: &fakeClient{}}
	if cfg.MaxMessageLength == 0 {
		cfg.MaxMessageLength = DefaultStringMaxLength
	}
	cfg.Stdout = h.stdout
	cfg.Stderr = h.stderr

	r, err := New(cfg, l, h.client, nopLogger())
	require.NoError(t, err)
	return r, h
}

func TestNew_Validation(t *testing.T) {
	l := &fakeLauncher{}
	c := &fakeClient{}

	_, err := New(Config{MaxMessageLength: 100}, l, c, nopLogger())
	assert.ErrorIs(t, err, ErrMissingCommand)

	_, err = New(Config{Command: []string{"date"}, MaxMessageLength: 3}, l, c, nopLogger())
	assert.ErrorIs(t, err, ErrMessageLength)

	_, err = New(Config{Command: []string{"date"}, MaxMessageLength: 100}, nil, c, nopLogger())
	assert.ErrorIs(t, err, ErrMissingLauncher)

	_, err = New(Config{Command: []string{"date"}, MaxMessageLength: 100}, l, nil, nopLogger())
	assert.ErrorIs(t, err, ErrMissingReporting)
}

func TestRun_SuccessIsNotReported(t *testing.T) {
	l := &fakeLauncher{proc: &fakeProcess{stdout: "all good", stderr: "", status: 0}}
	r, h := newReporter(t, Config{Command: []string{"date"}}, l)

	code := r.Run(context.Background())

	assert.Equal(t, 0, code)
	assert.Empty(t, h.client.captured)
	assert.Zero(t, h.stdout.writes)
	assert.Zero(t, h.stderr.writes)
}

func TestRun_SuccessWithStderrIsNotReportedByDefault(t *testing.T) {
	l := &fakeLauncher{proc: &fakeProcess{stderr: "warning", status: 0}}
	r, h := newReporter(t, Config{Command: []string{"date"}}, l)

	assert.Equal(t, 0, r.Run(context.Background()))
	assert.Empty(t, h.client.captured)
}

func TestRun_FailureIsReportedAndForwarded(t *testing.T) {
	cmd := []string{"backup.sh", "--full"}
	l := &fakeLauncher{proc: &fakeProcess{stdout: "test-out", stderr: "test-err", status: 2}}
	r, h := newReporter(t, Config{
		Command: cmd,
		Data:    map[string]any{"logger": "cron"},
	}, l)

	code := r.Run(context.Background())

	assert.Equal(t, 2, code)
	assert.Equal(t, "test-out", h.stdout.String())
	assert.Equal(t, "test-err", h.stderr.String())
	assert.Equal(t, 1, h.stdout.writes)
	assert.Equal(t, 1, h.stderr.writes)

	require.Len(t, h.client.captured, 1)
	got := h.client.captured[0]
	assert.Equal(t, `Command "backup.sh --full" failed`, got.message)
	assert.Equal(t, "error", got.level)
	assert.Equal(t, map[string]any{"logger": "cron"}, got.data)
	assert.Equal(t, map[string]any{
		"command":           cmd,
		"exit_status":       2,
		"last_lines_stdout": "test-out",
		"last_lines_stderr": "test-err",
	}, got.extra)
}

func TestRun_TruncatesOutput(t *testing.T) {
	l := &fakeLauncher{proc: &fakeProcess{
		stdout: strings.Repeat("a", 20000) + "end",
		stderr: strings.Repeat("b", 20000) + "end",
		status: 2,
	}}
	r, h := newReporter(t, Config{Command: []string{"x"}, MaxMessageLength: 100}, l)

	r.Run(context.Background())

	wantOut := "..." + strings.Repeat("a", 94) + "end"
	wantErr := "..." + strings.Repeat("b", 94) + "end"
	assert.Equal(t, wantOut, h.stdout.String())
	assert.Equal(t, wantErr, h.stderr.String())

	require.Len(t, h.client.captured, 1)
	assert.Equal(t, wantOut, h.client.captured[0].extra["last_lines_stdout"])
	assert.Equal(t, wantErr, h.client.captured[0].extra["last_lines_stderr"])
}

func TestRun_QuietStillReports(t *testing.T) {
	out := strings.Repeat("a", 100) + "end"
	errOut := strings.Repeat("b", 100) + "end"
	l := &fakeLauncher{proc: &fakeProcess{stdout: out, stderr: errOut, status: 2}}
	r, h := newReporter(t, Config{Command: []string{"x"}, MaxMessageLength: 200, Quiet: true}, l)

	assert.Equal(t, 2, r.Run(context.Background()))
	assert.Zero(t, h.stdout.writes)
	assert.Zero(t, h.stderr.writes)

	require.Len(t, h.client.captured, 1)
	assert.Equal(t, out, h.client.captured[0].extra["last_lines_stdout"])
	assert.Equal(t, errOut, h.client.captured[0].extra["last_lines_stderr"])
}

func TestRun_ReportStderr(t *testing.T) {
	l := &fakeLauncher{proc: &fakeProcess{stdout: "out", stderr: "warn", status: 0}}
	r, h := newReporter(t, Config{Command: []string{"x"}, Policy: Policy{ReportStderr: true}}, l)

	assert.Equal(t, 0, r.Run(context.Background()))
	require.Len(t, h.client.captured, 1)
	assert.Equal(t, `Command "x" wrote to stderr`, h.client.captured[0].message)
	assert.Equal(t, "error", h.client.captured[0].level)
	assert.Equal(t, "out", h.stdout.String())
	assert.Equal(t, "warn", h.stderr.String())
}

func TestRun_ReportStderrWithEmptyStderr(t *testing.T) {
	l := &fakeLauncher{proc: &fakeProcess{stdout: "out", status: 0}}
	r, h := newReporter(t, Config{Command: []string{"x"}, Policy: Policy{ReportStderr: true}}, l)

	assert.Equal(t, 0, r.Run(context.Background()))
	assert.Empty(t, h.client.captured)
	assert.Zero(t, h.stdout.writes)
}

func TestRun_ReportAll(t *testing.T) {
	l := &fakeLauncher{proc: &fakeProcess{stdout: "out", status: 0}}
	r, h := newReporter(t, Config{Command: []string{"x"}, Policy: Policy{ReportAll: true}}, l)

	assert.Equal(t, 0, r.Run(context.Background()))
	require.Len(t, h.client.captured, 1)
	assert.Equal(t, `Command "x" finished`, h.client.captured[0].message)
	assert.Equal(t, "error", h.client.captured[0].level)
	assert.Equal(t, 0, h.client.captured[0].extra["exit_status"])
	assert.Equal(t, "out", h.stdout.String())
}

func TestRun_LaunchError(t *testing.T) {
	launchErr := &launcher.LaunchError{Command: "missing", Err: errors.New("exec: not found")}
	l := &fakeLauncher{err: launchErr}
	r, h := newReporter(t, Config{Command: []string{"missing"}}, l)

	code := r.Run(context.Background())

	assert.Equal(t, launcher.ExitCommandNotFound, code)
	assert.Equal(t, "", h.stdout.String())
	assert.Equal(t, 1, h.stdout.writes)
	assert.Equal(t, launchErr.Error(), h.stderr.String())

	require.Len(t, h.client.captured, 1)
	extra := h.client.captured[0].extra
	assert.Equal(t, 127, extra["exit_status"])
	assert.Equal(t, "", extra["last_lines_stdout"])
	assert.Equal(t, launchErr.Error(), extra["last_lines_stderr"])
}

func TestRun_LaunchErrorIsTruncated(t *testing.T) {
	l := &fakeLauncher{err: errors.New(strings.Repeat("e", 50) + "tail")}
	r, h := newReporter(t, Config{Command: []string{"x"}, MaxMessageLength: 10}, l)

	r.Run(context.Background())
	assert.Equal(t, "...eeetail", h.stderr.String())
}

func TestRun_TruncatedLaunchErrorKeepsErrnoPrefix(t *testing.T) {
	name := strings.Repeat("c", 200)
	l := &fakeLauncher{err: &launcher.LaunchError{Command: name, Err: exec.ErrNotFound}}
	r, h := newReporter(t, Config{Command: []string{name}, MaxMessageLength: 20}, l)

	assert.Equal(t, launcher.ExitCommandNotFound, r.Run(context.Background()))
	assert.Equal(t, "[Errno 2] no such...", h.stderr.String())

	require.Len(t, h.client.captured, 1)
	assert.Equal(t, "[Errno 2] no such...", h.client.captured[0].extra["last_lines_stderr"])
}

func TestRun_ExtraMerge(t *testing.T) {
	l := &fakeLauncher{proc: &fakeProcess{status: 1}}
	r, h := newReporter(t, Config{
		Command: []string{"false"},
		Extra: map[string]string{
			"secret1":     "hello",
			"secret2":     "world",
			"exit_status": "spoofed",
		},
	}, l)

	r.Run(context.Background())

	require.Len(t, h.client.captured, 1)
	assert.Equal(t, map[string]any{
		"command":           []string{"false"},
		"exit_status":       1,
		"last_lines_stdout": "",
		"last_lines_stderr": "",
		"secret1":           "hello",
		"secret2":           "world",
	}, h.client.captured[0].extra)
}

func TestRun_ReportingFailureKeepsExitCode(t *testing.T) {
	l := &fakeLauncher{proc: &fakeProcess{status: 42}}
	r, h := newReporter(t, Config{Command: []string{"x"}}, l)
	h.client.err = errors.New("connection refused")

	assert.Equal(t, 42, r.Run(context.Background()))
	assert.Len(t, h.client.captured, 1)
}

func TestRun_ReportingFailureIsLoggedWithComponent(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	client := &fakeClient{err: errors.New("connection refused")}
	l := &fakeLauncher{proc: &fakeProcess{status: 1}}

	r, err := New(Config{
		Command:          []string{"x"},
		MaxMessageLength: DefaultStringMaxLength,
		Stdout:           io.Discard,
		Stderr:           io.Discard,
	}, l, client, logger)
	require.NoError(t, err)

	assert.Equal(t, 1, r.Run(context.Background()))
	assert.Contains(t, logs.String(), `"component":"reporter"`)
	assert.Contains(t, logs.String(), "connection refused")
}

func TestRun_RealProcess(t *testing.T) {
	cmd := []string{"sh", "-c", "printf test-out; printf test-err >&2; exit 2"}
	r, h := newReporter(t, Config{Command: cmd}, launcher.New())

	assert.Equal(t, 2, r.Run(context.Background()))
	assert.Equal(t, "test-out", h.stdout.String())
	assert.Equal(t, "test-err", h.stderr.String())

	require.Len(t, h.client.captured, 1)
	assert.Equal(t, cmd, h.client.captured[0].extra["command"])
	assert.Equal(t, 2, h.client.captured[0].extra["exit_status"])
}

func TestRun_RealProcessLargeOutputDoesNotDeadlock(t *testing.T) {
	// Writes far more than a pipe buffer to stderr before touching stdout.
	script := `i=0; while [ $i -lt 2000 ]; do printf '%0100d' 0 >&2; i=$((i+1)); done; printf end >&2; printf done; exit 1`
	r, h := newReporter(t, Config{Command: []string{"sh", "-c", script}, MaxMessageLength: 10}, launcher.New())

	done := make(chan int, 1)
	go func() { done <- r.Run(context.Background()) }()

	select {
	case code := <-done:
		assert.Equal(t, 1, code)
	case <-time.After(30 * time.Second):
		t.Fatal("run did not finish")
	}
	assert.Equal(t, "done", h.stdout.String())
	assert.Equal(t, "...0000end", h.stderr.String())
}

func TestRun_RealMissingCommand(t *testing.T) {
	r, h := newReporter(t, Config{Command: []string{"command-does-not-exist"}}, launcher.New())

	assert.Equal(t, 127, r.Run(context.Background()))
	assert.Equal(t, "", h.stdout.String())
	assert.Equal(t, `[Errno 2] no such file or directory: "command-does-not-exist"`, h.stderr.String())

	require.Len(t, h.client.captured, 1)
	assert.Equal(t, 127, h.client.captured[0].extra["exit_status"])
}

func TestPolicy_Reportable(t *testing.T) {
	launchFailed := &RunResult{ExitStatus: 127, LaunchErr: errors.New("boom")}
	failed := &RunResult{ExitStatus: 1}
	clean := &RunResult{ExitStatus: 0}
	noisy := &RunResult{ExitStatus: 0, Stderr: "warning"}

	tests := []struct {
		name   string
		policy Policy
		result *RunResult
		want   bool
	}{
		{"launch error", Policy{}, launchFailed, true},
		{"non-zero exit", Policy{}, failed, true},
		{"clean success", Policy{}, clean, false},
		{"stderr ignored by default", Policy{}, noisy, false},
		{"report stderr", Policy{ReportStderr: true}, noisy, true},
		{"report stderr clean", Policy{ReportStderr: true}, clean, false},
		{"report all", Policy{ReportAll: true}, clean, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.policy.Reportable(tt.result))
		})
	}
}
