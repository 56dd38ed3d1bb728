// Package events announces taxonomy changes to other processes.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const DefaultSubject = "promptbuilder.taxonomy.saved"

// TaxonomySaved is published after every successful wholesale save.
type TaxonomySaved struct {
	RequestID string    `json:"request_id"`
	Items     int       `json:"items"`
	Snapshot  string    `json:"snapshot,omitempty"`
	SavedAt   time.Time `json:"saved_at"`
}

type Publisher interface {
	PublishTaxonomySaved(ctx context.Context, ev TaxonomySaved) error
	Close() error
}

// Nop drops every event.
type Nop struct{}

func (Nop) PublishTaxonomySaved(context.Context, TaxonomySaved) error { return nil }
func (Nop) Close() error                                              { return nil }

// Conn is the part of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

type NATSPublisher struct {
	conn    Conn
	subject string
	log     *zap.Logger
}

// ConnectNATS dials url and returns a publisher on subject.
func ConnectNATS(url, subject string, log *zap.Logger) (*NATSPublisher, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, fmt.Errorf("nats url is required")
	}
	conn, err := nats.Connect(url,
		nats.Name("promptbuilder-gateway"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return NewNATSPublisher(conn, subject, log), nil
}

func NewNATSPublisher(conn Conn, subject string, log *zap.Logger) *NATSPublisher {
	if strings.TrimSpace(subject) == "" {
		subject = DefaultSubject
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &NATSPublisher{conn: conn, subject: subject, log: log}
}

func (p *NATSPublisher) PublishTaxonomySaved(ctx context.Context, ev TaxonomySaved) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := p.conn.Publish(p.subject, raw); err != nil {
		return fmt.Errorf("publish %s: %w", p.subject, err)
	}
	p.log.Debug("events: published", zap.String("subject", p.subject), zap.Int("items", ev.Items))
	return nil
}

// Close flushes pending messages before closing the connection.
func (p *NATSPublisher) Close() error {
	if p == nil || p.conn == nil {
		return nil
	}
	return p.conn.Drain()
}
