// Package sentry provides a minimal client for the Sentry store API.
// It submits one message event per call, which is all cron-sentry needs.
//
// The client uses hashicorp/go-retryablehttp so a transient network error or
// a 5xx from the server does not lose the report.
//
// Usage:
//
//	client, err := sentry.NewClient(dsn, sentry.Options{}, logger)
//	err = client.CaptureMessage(ctx, "Command \"backup\" failed", "error", elapsed, data, extra)
package sentry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/doughall/cronsentry/internal/logging"
	"github.com/doughall/cronsentry/internal/version"
	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
)

// sdkName identifies this client in the auth header and the event's sdk block.
const sdkName = "cron-sentry"

// Options tunes the client. Zero values select the defaults.
type Options struct {
	// Timeout bounds each HTTP attempt. Default: 10 seconds.
	Timeout time.Duration

	// RetryMax is the number of retries after the first attempt.
	// Negative disables retries. Default: 2.
	RetryMax int

	// RetryWaitMin and RetryWaitMax bound the backoff between attempts.
	// Defaults: 1 second and 5 seconds.
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration

	// Environment and Release are attached to every event when set.
	Environment string
	Release     string
}

// Client sends events to a single Sentry project.
type Client struct {
	dsn        *DSN
	httpClient *http.Client
	opts       Options
	logger     *slog.Logger
	now        func() time.Time
}

// NewClient creates a client for the given DSN.
//
// The underlying retryable client is configured with:
//   - RetryMax: 2 retries (Options.RetryMax)
//   - RetryWaitMin: 1 second, RetryWaitMax: 5 seconds
//   - Backoff: linear jitter
//   - Timeout: 10 seconds per request
func NewClient(rawDSN string, opts Options, logger *slog.Logger) (*Client, error) {
	dsn, err := ParseDSN(rawDSN)
	if err != nil {
		return nil, err
	}

	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	switch {
	case opts.RetryMax == 0:
		opts.RetryMax = 2
	case opts.RetryMax < 0:
		opts.RetryMax = 0
	}
	if opts.RetryWaitMin <= 0 {
		opts.RetryWaitMin = 1 * time.Second
	}
	if opts.RetryWaitMax <= 0 {
		opts.RetryWaitMax = 5 * time.Second
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.RetryMax
	retryClient.RetryWaitMin = opts.RetryWaitMin
	retryClient.RetryWaitMax = opts.RetryWaitMax
	retryClient.Backoff = retryablehttp.LinearJitterBackoff

	// Disable retryablehttp's internal logging - we use slog instead
	retryClient.Logger = nil

	retryClient.HTTPClient.Timeout = opts.Timeout

	return &Client{
		dsn:        dsn,
		httpClient: retryClient.StandardClient(),
		opts:       opts,
		logger:     logging.WithComponent(logger, "sentry"),
		now:        time.Now,
	}, nil
}

// DSN returns the parsed DSN the client reports to.
func (c *Client) DSN() *DSN {
	return c.dsn
}

// CaptureMessage sends a message event. Fields in data form the base of the
// event; the client fills in the standard fields it does not set.
func (c *Client) CaptureMessage(ctx context.Context, message, level string, timeSpent time.Duration, data, extra map[string]any) error {
	event := c.buildEvent(message, level, timeSpent, data, extra)

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.dsn.StoreURL(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create store request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", sdkName+"/"+version.Version)
	req.Header.Set("X-Sentry-Auth", c.authHeader())

	c.logger.Debug("sending event",
		slog.String("dsn", c.dsn.String()),
		slog.Any("event_id", event["event_id"]),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("store request failed: %w", err)
	}
	// CRITICAL: Always close response body to prevent connection leaks
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		reason := resp.Header.Get("X-Sentry-Error")
		if reason == "" {
			reason = strings.TrimSpace(string(respBody))
		}
		return fmt.Errorf("store request failed with status %d: %s", resp.StatusCode, reason)
	}

	c.logger.Debug("event accepted", slog.Any("event_id", event["event_id"]))
	return nil
}

// buildEvent starts from a copy of data and sets the fields Sentry needs.
func (c *Client) buildEvent(message, level string, timeSpent time.Duration, data, extra map[string]any) map[string]any {
	event := make(map[string]any, len(data)+10)
	for k, v := range data {
		event[k] = v
	}

	setDefault(event, "event_id", strings.ReplaceAll(uuid.NewString(), "-", ""))
	setDefault(event, "timestamp", c.now().UTC().Format(time.RFC3339))
	setDefault(event, "logger", "cron")
	setDefault(event, "platform", "other")
	setDefault(event, "sdk", map[string]string{"name": sdkName, "version": version.Version})
	if c.opts.Environment != "" {
		setDefault(event, "environment", c.opts.Environment)
	}
	if c.opts.Release != "" {
		setDefault(event, "release", c.opts.Release)
	}

	event["message"] = message
	event["level"] = level
	event["time_spent"] = timeSpent.Milliseconds()
	if extra != nil {
		event["extra"] = extra
	}
	return event
}

func (c *Client) authHeader() string {
	parts := []string{
		fmt.Sprintf("Sentry sentry_version=%d", version.SentryProtocol),
		"sentry_client=" + sdkName + "/" + version.Version,
		fmt.Sprintf("sentry_timestamp=%d", c.now().Unix()),
		"sentry_key=" + c.dsn.PublicKey,
	}
	if c.dsn.SecretKey != "" {
		parts = append(parts, "sentry_secret="+c.dsn.SecretKey)
	}
	return strings.Join(parts, ", ")
}

func setDefault(m map[string]any, key string, value any) {
	if _, ok := m[key]; !ok {
		m[key] = value
	}
}
