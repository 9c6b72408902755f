// Package wsbus implements the push channel over a websocket connection to the backend.
package wsbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/safebridge/internal/logging"
	"github.com/example/safebridge/internal/ports/secondary"
)

const eventBuffer = 16

// joinMessage scopes a connection to one case room.
type joinMessage struct {
	Type   string `json:"type"`
	CaseID string `json:"case_id"`
}

// EventChannel implements secondary.EventChannel by dialing the backend websocket.
type EventChannel struct {
	url    string
	dialer *websocket.Dialer
	logger *slog.Logger
}

// NewEventChannel creates a websocket push channel for the endpoint at rawURL.
func NewEventChannel(rawURL string, logger *slog.Logger) *EventChannel {
	return &EventChannel{
		url: rawURL,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
		},
		logger: logging.OrDiscard(logger),
	}
}

// Join opens a connection and joins the case room.
func (c *EventChannel) Join(ctx context.Context, caseID string) (secondary.Subscription, error) {
	u, err := url.Parse(c.url)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket url: %w", err)
	}
	q := u.Query()
	q.Set("case_id", caseID)
	u.RawQuery = q.Encode()

	conn, _, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect push channel: %w", err)
	}
	if err := conn.WriteJSON(joinMessage{Type: "join", CaseID: caseID}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to join case room: %w", err)
	}

	sub := &subscription{
		caseID: caseID,
		conn:   conn,
		events: make(chan secondary.PushEvent, eventBuffer),
		done:   make(chan struct{}),
		logger: c.logger.With("case_id", caseID),
	}
	go sub.readPump()
	return sub, nil
}

type subscription struct {
	caseID string
	conn   *websocket.Conn
	events chan secondary.PushEvent
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger
}

func (s *subscription) Events() <-chan secondary.PushEvent { return s.events }

func (s *subscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = s.conn.Close()
	})
	return err
}

func (s *subscription) readPump() {
	defer close(s.events)

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			default:
				s.logger.Warn("push channel closed", "error", err)
			}
			return
		}

		var event secondary.PushEvent
		if err := json.Unmarshal(message, &event); err != nil {
			s.logger.Debug("malformed push frame", "error", err)
			continue
		}
		if event.CaseID != "" && event.CaseID != s.caseID {
			continue
		}

		select {
		case s.events <- event:
		case <-s.done:
			return
		}
	}
}

var _ secondary.EventChannel = (*EventChannel)(nil)
