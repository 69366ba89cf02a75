package nats

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrMissingSubject is returned for a DSN without a subject path.
var ErrMissingSubject = errors.New("nats dsn is missing the subject")

// Config holds NATS connection configuration.
type Config struct {
	Servers  string // Server URL including any user:password credentials
	Subject  string // Subject reports are published to
	NKeySeed string // Optional NKey seed for authentication (starts with SU)
	Name     string // Connection name shown in server monitoring
}

// ParseDSN splits a DSN of the form nats://[user:pass@]host:port/subject
// into server URL and subject. tls:// DSNs are accepted as well.
func ParseDSN(raw string) (Config, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Config{}, fmt.Errorf("parse nats dsn: %w", err)
	}
	if u.Scheme != "nats" && u.Scheme != "tls" {
		return Config{}, fmt.Errorf("unsupported nats dsn scheme %q", u.Scheme)
	}

	subject := strings.Trim(u.Path, "/")
	if subject == "" {
		return Config{}, ErrMissingSubject
	}
	subject = strings.ReplaceAll(subject, "/", ".")

	server := url.URL{Scheme: u.Scheme, User: u.User, Host: u.Host}
	return Config{Servers: server.String(), Subject: subject}, nil
}
