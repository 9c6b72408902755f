// Package natsbus implements the push channel and publisher over NATS.
// Each case has its own subject: <prefix>.<case id>.
package natsbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/nats-io/nats.go"

	"github.com/example/safebridge/internal/logging"
	"github.com/example/safebridge/internal/ports/secondary"
)

const eventBuffer = 16

// Config holds NATS connection settings.
type Config struct {
	URL           string
	Name          string
	Subject       string // Subject prefix
	ReconnectWait time.Duration
	MaxReconnects int
	Timeout       time.Duration
}

// Bus wraps a NATS connection.
type Bus struct {
	conn   *nats.Conn
	prefix string
	logger *slog.Logger
}

// Connect dials the NATS server.
func Connect(cfg Config, logger *slog.Logger) (*Bus, error) {
	if cfg.Subject == "" {
		cfg.Subject = "safebridge.cases"
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = 2 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	logger = logging.OrDiscard(logger)

	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &Bus{conn: conn, prefix: cfg.Subject, logger: logger}, nil
}

// Subject returns the subject of a case.
func (b *Bus) Subject(caseID string) string {
	return subjectFor(b.prefix, caseID)
}

// subjectFor scopes a case under prefix. The case ID becomes a single
// literal token: separators, wildcards and whitespace are replaced.
func subjectFor(prefix, caseID string) string {
	return prefix + "." + subjectToken(caseID)
}

func subjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r == '.', r == '*', r == '>', unicode.IsSpace(r), unicode.IsControl(r):
			return '_'
		}
		return r
	}, s)
}

// Join subscribes to the case subject.
func (b *Bus) Join(ctx context.Context, caseID string) (secondary.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := newSubscription(caseID, b.logger.With("case_id", caseID))

	sub, err := b.conn.Subscribe(b.Subject(caseID), s.deliver)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}
	s.sub = sub
	return s, nil
}

// Publish sends an event to its case subject.
func (b *Bus) Publish(ctx context.Context, event secondary.PushEvent) error {
	if event.CaseID == "" {
		return fmt.Errorf("push event for %s has no case id", event.HospitalID)
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := b.conn.Publish(b.Subject(event.CaseID), payload); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Close drains subscriptions and closes the connection.
func (b *Bus) Close() error {
	return b.conn.Drain()
}

type subscription struct {
	caseID string
	sub    *nats.Subscription
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
	events chan secondary.PushEvent
}

func newSubscription(caseID string, logger *slog.Logger) *subscription {
	return &subscription{
		caseID: caseID,
		logger: logger,
		events: make(chan secondary.PushEvent, eventBuffer),
	}
}

func (s *subscription) Events() <-chan secondary.PushEvent { return s.events }

// deliver runs on the NATS dispatcher goroutine. A full buffer drops the
// event; polling and the timeout still resolve the attempt.
func (s *subscription) deliver(msg *nats.Msg) {
	var event secondary.PushEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		s.logger.Debug("malformed push message", "subject", msg.Subject, "error", err)
		return
	}
	if event.CaseID == "" {
		event.CaseID = s.caseID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- event:
	default:
		s.logger.Warn("push buffer full, event dropped", "hospital_id", event.HospitalID)
	}
}

func (s *subscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.events)
	if s.sub != nil {
		return s.sub.Unsubscribe()
	}
	return nil
}

var (
	_ secondary.EventChannel   = (*Bus)(nil)
	_ secondary.EventPublisher = (*Bus)(nil)
)
