package cli

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/doughall/cronsentry/internal/config"
	natsreport "github.com/doughall/cronsentry/internal/nats"
	"github.com/doughall/cronsentry/internal/reporter"
	"github.com/doughall/cronsentry/internal/sentry"
)

// NewReportClient picks the reporting client from the DSN scheme:
// http and https go to Sentry, nats and tls publish to a NATS subject.
func NewReportClient(cfg *config.Config, logger *slog.Logger) (reporter.Client, error) {
	u, err := url.Parse(strings.TrimSpace(cfg.DSN))
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	switch u.Scheme {
	case "http", "https":
		// sentry.Options treats zero as "default" and negative as "none".
		retries := cfg.ReportRetries
		if retries == 0 {
			retries = -1
		}
		client, err := sentry.NewClient(cfg.DSN, sentry.Options{
			Timeout:     time.Duration(cfg.ReportTimeout) * time.Second,
			RetryMax:    retries,
			Environment: cfg.Environment,
			Release:     cfg.Release,
		}, logger)
		if err != nil {
			return nil, err
		}
		return client, nil

	case "nats", "tls":
		natsCfg, err := natsreport.ParseDSN(cfg.DSN)
		if err != nil {
			return nil, err
		}
		natsCfg.NKeySeed = cfg.NATSNKeySeed
		return natsreport.NewPublisher(natsCfg, logger), nil

	default:
		return nil, fmt.Errorf("unsupported dsn scheme %q", u.Scheme)
	}
}
