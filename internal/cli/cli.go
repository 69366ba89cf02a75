// Package cli implements the cron-sentry command line.
//
// Flags come first; the first positional argument, or everything after a
// "--" separator, is the command to wrap. The exit code is the command's
// own exit status, 127 if it could not be started, or 1 for a usage or
// configuration error detected before anything was launched.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/doughall/cronsentry/internal/config"
	"github.com/doughall/cronsentry/internal/launcher"
	"github.com/doughall/cronsentry/internal/logging"
	"github.com/doughall/cronsentry/internal/reporter"
	"github.com/doughall/cronsentry/internal/sysinfo"
	"github.com/doughall/cronsentry/internal/version"
)

// ExitConfigError is returned for usage and configuration errors.
const ExitConfigError = 1

const usageLine = "usage: cron-sentry [-h] [--dsn SENTRY_DSN] [-M STRING_MAX_LENGTH] [--quiet] " +
	"[--report-all] [--report-stderr] [--config PATH] [--log-level LEVEL] [--version] [--] cmd [arg ...]\n"

const description = `
Wraps a command and reports its failure to Sentry, keeping the command's
exit status and (truncated) output.

`

// ClientFactory builds the reporting client for a validated configuration.
type ClientFactory func(cfg *config.Config, logger *slog.Logger) (reporter.Client, error)

// App holds the process-wide handles a run needs, so tests can replace them.
type App struct {
	Stdout  io.Writer
	Stderr  io.Writer
	Environ []string

	Launcher  launcher.Launcher
	NewClient ClientFactory

	// HostData returns the contextual data fields attached to reports.
	HostData func(ctx context.Context) map[string]any
}

// New creates an App wired to the real process.
func New() *App {
	return &App{
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
		Environ:   os.Environ(),
		Launcher:  launcher.New(),
		NewClient: NewReportClient,
		HostData: func(ctx context.Context) map[string]any {
			return sysinfo.Collect(ctx).ReportData()
		},
	}
}

// options are the parsed command-line flags.
type options struct {
	configPath   string
	dsn          string
	maxLength    int
	quiet        bool
	reportAll    bool
	reportStderr bool
	logLevel     string
	showVersion  bool

	// set records which flags appeared on the command line.
	set map[string]bool
}

// Run executes one invocation and returns the process exit code.
func (a *App) Run(ctx context.Context, args []string) int {
	opts, command, err := a.parse(args)
	if errors.Is(err, flag.ErrHelp) {
		a.printHelp()
		return 0
	}
	if err != nil {
		fmt.Fprint(a.Stderr, usageLine)
		return ExitConfigError
	}

	if opts.showVersion {
		fmt.Fprintln(a.Stdout, version.Info())
		return 0
	}

	if len(command) == 0 {
		fmt.Fprint(a.Stdout, usageLine)
		fmt.Fprint(a.Stderr, "ERROR: Missing command parameter!\n")
		return ExitConfigError
	}

	cfg, err := a.loadConfig(opts)
	if err != nil {
		fmt.Fprintf(a.Stderr, "ERROR: %v\n", err)
		return ExitConfigError
	}

	logger := logging.SetupLogger(a.Stderr, cfg.LogLevel, cfg.LogTarget)

	client, err := a.NewClient(cfg, logger)
	if err != nil {
		fmt.Fprintf(a.Stderr, "ERROR: invalid dsn: %v\n", err)
		return ExitConfigError
	}
	if closer, ok := client.(io.Closer); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				logger.Warn("failed to close reporting client", slog.String("error", err.Error()))
			}
		}()
	}

	var data map[string]any
	if a.HostData != nil {
		data = a.HostData(ctx)
	}

	r, err := reporter.New(reporter.Config{
		Command:          command,
		MaxMessageLength: cfg.MaxMessageLength,
		Quiet:            cfg.Quiet,
		Policy: reporter.Policy{
			ReportAll:    cfg.ReportAll,
			ReportStderr: cfg.ReportStderr,
		},
		Data:   data,
		Extra:  cfg.Extra,
		Stdout: a.Stdout,
		Stderr: a.Stderr,
	}, a.Launcher, client, logger)
	if err != nil {
		fmt.Fprintf(a.Stderr, "ERROR: %v\n", err)
		return ExitConfigError
	}

	return r.Run(ctx)
}

// parse reads the flags. Parsing stops at the first positional argument
// or "--", and the rest is returned verbatim as the command.
func (a *App) parse(args []string) (*options, []string, error) {
	opts := &options{set: map[string]bool{}}

	fs := newFlagSet(opts, a.Stderr)
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		opts.set[f.Name] = true
	})
	return opts, fs.Args(), nil
}

func newFlagSet(opts *options, output io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("cron-sentry", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {}

	fs.StringVar(&opts.dsn, "dsn", "", "Sentry server address (default: $SENTRY_DSN)")
	fs.IntVar(&opts.maxLength, "max-message-length", reporter.DefaultStringMaxLength,
		"length of the stdout and stderr excerpts kept in the report")
	fs.IntVar(&opts.maxLength, "M", reporter.DefaultStringMaxLength, "shorthand for --max-message-length")
	fs.BoolVar(&opts.quiet, "quiet", false, "suppress all command output")
	fs.BoolVar(&opts.quiet, "q", false, "shorthand for --quiet")
	fs.BoolVar(&opts.reportAll, "report-all", false, "report to Sentry even if the task has succeeded")
	fs.BoolVar(&opts.reportStderr, "report-stderr", false, "report to Sentry if the task wrote to stderr, even on success")
	fs.StringVar(&opts.configPath, "config", "", "YAML configuration file (default: $CRON_SENTRY_CONFIG)")
	fs.StringVar(&opts.logLevel, "log-level", "", "cron-sentry's own log level: debug, info, warn, error")
	fs.BoolVar(&opts.showVersion, "version", false, "print version information and exit")
	return fs
}

// loadConfig layers defaults, the config file, the environment and the flags.
func (a *App) loadConfig(opts *options) (*config.Config, error) {
	path := opts.configPath
	if path == "" {
		path, _ = config.Lookup(a.Environ, config.EnvConfigPath)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(a.Environ)

	if opts.set["dsn"] {
		cfg.DSN = opts.dsn
	}
	if opts.set["max-message-length"] || opts.set["M"] {
		cfg.MaxMessageLength = opts.maxLength
	}
	if opts.set["quiet"] || opts.set["q"] {
		cfg.Quiet = opts.quiet
	}
	if opts.set["report-all"] {
		cfg.ReportAll = opts.reportAll
	}
	if opts.set["report-stderr"] {
		cfg.ReportStderr = opts.reportStderr
	}
	if opts.set["log-level"] {
		cfg.LogLevel = opts.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (a *App) printHelp() {
	fmt.Fprint(a.Stdout, usageLine)
	fmt.Fprint(a.Stdout, description)
	newFlagSet(&options{}, a.Stdout).PrintDefaults()
}
