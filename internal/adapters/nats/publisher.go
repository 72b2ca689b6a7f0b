package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/geosampler/internal/core/domain"
)

const (
	// StreamName is the JetStream stream holding session events.
	StreamName = "GEOSAMPLER_SESSIONS"

	subjectRoot = "geosampler.session."

	EventGridGenerated = "grid.generated"
	EventGridCleared   = "grid.cleared"
	EventStatsAttached = "stats.attached"
)

// Subject returns the subject an event for sessionID is published on.
func Subject(sessionID, event string) string {
	return subjectRoot + sessionID + "." + event
}

// SessionSubjects matches every event of one session.
func SessionSubjects(sessionID string) string {
	return subjectRoot + sessionID + ".>"
}

// SessionEvent is the message body of every session event. Points and
// statistics are not embedded; clients fetch them over HTTP.
type SessionEvent struct {
	Type          string    `json:"type"`
	SessionID     string    `json:"session_id"`
	Generation    int64     `json:"generation"`
	Points        int       `json:"points"`
	Stats         int       `json:"stats"`
	SpacingMeters float64   `json:"spacing_m,omitempty"`
	Density       float64   `json:"density"`
	At            time.Time `json:"at"`
}

func newEvent(event string, s *domain.GridSession) SessionEvent {
	return SessionEvent{
		Type:          event,
		SessionID:     s.ID,
		Generation:    s.Generation,
		Points:        len(s.Points),
		Stats:         len(s.Stats),
		SpacingMeters: s.SpacingMeters,
		Density:       s.Density(),
		At:            time.Now().UTC(),
	}
}

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	cfg := nats.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{subjectRoot + ">"},
		Retention: nats.LimitsPolicy,
		MaxAge:    24 * time.Hour,
		Storage:   nats.FileStorage,
	}
	if _, err := js.AddStream(&cfg); err != nil {
		// Stream may already exist, try update
		if _, err := js.UpdateStream(&cfg); err != nil {
			return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

func (p *Publisher) PublishGridGenerated(ctx context.Context, s *domain.GridSession) error {
	return p.publish(ctx, EventGridGenerated, s)
}

func (p *Publisher) PublishGridCleared(ctx context.Context, s *domain.GridSession) error {
	return p.publish(ctx, EventGridCleared, s)
}

func (p *Publisher) PublishStatsAttached(ctx context.Context, s *domain.GridSession) error {
	return p.publish(ctx, EventStatsAttached, s)
}

func (p *Publisher) publish(ctx context.Context, event string, s *domain.GridSession) error {
	data, err := json.Marshal(newEvent(event, s))
	if err != nil {
		return err
	}
	_, err = p.js.Publish(Subject(s.ID, event), data, nats.Context(ctx))
	return err
}

// Conn exposes the underlying connection for health checks.
func (p *Publisher) Conn() *nats.Conn {
	return p.conn
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("geosampler"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
