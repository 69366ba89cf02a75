// cron-sentry - Entry Point
//
// cron-sentry wraps a command, typically a cron job, and reports it to Sentry
// when it fails. The command's exit status and its (truncated) output are
// passed through, so the surrounding cron setup behaves as before.
//
//	cron-sentry --dsn https://public@sentry.example.com/42 -- /usr/local/bin/backup --full
//
// Lifecycle:
//  1. Parse flags; everything after the first positional argument or "--" is the command
//  2. Load the optional YAML configuration and CRON_SENTRY_EXTRA_* variables
//  3. Run the command, draining stdout and stderr concurrently
//  4. On failure, forward the output excerpts and submit one report
//  5. Exit with the command's own exit status (127 if it could not be started)
package main

import (
	"context"
	"os"

	"github.com/doughall/cronsentry/internal/cli"
)

func main() {
	os.Exit(cli.New().Run(context.Background(), os.Args[1:]))
}
