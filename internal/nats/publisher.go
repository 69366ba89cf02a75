// Package nats publishes run reports to a NATS subject instead of Sentry.
//
// The connection is opened on the first report and closed by Close, so a run
// that is not reported never dials the server.
//
// Usage:
//
//	pub := nats.NewPublisher(cfg, logger)
//	defer pub.Close()
//	err := pub.CaptureMessage(ctx, message, "error", elapsed, data, extra)
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/doughall/cronsentry/internal/logging"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nkeys"
)

// connectTimeout bounds the initial dial; the run has already finished.
const connectTimeout = 5 * time.Second

// Publisher sends reports to a NATS subject.
type Publisher struct {
	config Config
	logger *slog.Logger

	mu sync.Mutex
	nc *nats.Conn
}

// NewPublisher creates a publisher for cfg. No connection is made yet.
func NewPublisher(cfg Config, logger *slog.Logger) *Publisher {
	if cfg.Name == "" {
		cfg.Name = "cron-sentry"
	}
	return &Publisher{
		config: cfg,
		logger: logging.WithComponent(logger, "nats"),
	}
}

// CaptureMessage publishes one report and flushes the connection.
func (p *Publisher) CaptureMessage(ctx context.Context, message, level string, timeSpent time.Duration, data, extra map[string]any) error {
	report := ReportMessage{
		EventID:     strings.ReplaceAll(uuid.NewString(), "-", ""),
		Message:     message,
		Level:       level,
		TimeSpentMs: timeSpent.Milliseconds(),
		Data:        data,
		Extra:       extra,
	}

	payloadBytes, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	msg := MessageEnvelope{
		Type:      MessageTypeReport,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payloadBytes,
	}
	envelope, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	nc, err := p.connect()
	if err != nil {
		return err
	}

	if err := nc.Publish(p.config.Subject, envelope); err != nil {
		return fmt.Errorf("publish to %s: %w", p.config.Subject, err)
	}

	flushCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := nc.FlushWithContext(flushCtx); err != nil {
		return fmt.Errorf("flush: %w", err)
	}

	p.logger.Debug("report published",
		slog.String("subject", p.config.Subject),
		slog.String("event_id", report.EventID),
	)
	return nil
}

// connect dials the server once and reuses the connection afterwards.
func (p *Publisher) connect() (*nats.Conn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.nc != nil {
		return p.nc, nil
	}

	opts := []nats.Option{
		nats.Name(p.config.Name),
		nats.Timeout(connectTimeout),
		nats.NoReconnect(),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			p.logger.Warn("NATS error", slog.String("error", err.Error()))
		}),
	}

	if p.config.NKeySeed != "" {
		// Parse NKey seed for authentication
		kp, err := nkeys.FromSeed([]byte(p.config.NKeySeed))
		if err != nil {
			return nil, fmt.Errorf("invalid nkey seed: %w", err)
		}
		pubKey, err := kp.PublicKey()
		if err != nil {
			return nil, fmt.Errorf("failed to get public key: %w", err)
		}
		opts = append(opts, nats.Nkey(pubKey, func(nonce []byte) ([]byte, error) {
			return kp.Sign(nonce)
		}))
	}

	nc, err := nats.Connect(p.config.Servers, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	p.nc = nc

	p.logger.Debug("NATS connected", slog.String("server", nc.ConnectedUrl()))
	return nc, nil
}

// Close drains and closes the connection if one was opened.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.nc == nil {
		return nil
	}
	err := p.nc.Drain()
	p.nc = nil
	return err
}
