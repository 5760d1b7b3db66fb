package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// Engine event types. Each is published on subject "supplier.<type>".
const (
	CatalogScanCompleted = "catalog.scan_completed"
	CatalogItemDisabled  = "catalog.item_disabled"
	CatalogItemEnabled   = "catalog.item_enabled"
	InventoryAlert       = "inventory.alert"
	OrderCreated         = "order.created"
	OrderStatusChanged   = "order.status_changed"
	OrderBalanceLow      = "order.balance_low"
	DisputeOpened        = "dispute.opened"
	DisputeUpdated       = "dispute.updated"
)

const subjectPrefix = "supplier."

// Event is the envelope published for every domain event
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Source    string      `json:"source"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// Publisher emits domain events. Publishing is best effort; callers log
// failures and carry on.
type Publisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
	Close()
}

// NATSPublisher publishes events on a NATS connection
type NATSPublisher struct {
	conn   *nats.Conn
	source string
	logger *logrus.Entry
}

// NewNATSPublisher connects to NATS
func NewNATSPublisher(natsURL, source string, logger *logrus.Logger) (*NATSPublisher, error) {
	if natsURL == "" {
		return nil, fmt.Errorf("NATS_URL not set")
	}
	log := logger.WithField("component", "events.publisher")

	conn, err := nats.Connect(natsURL,
		nats.Name(source+"-publisher"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.WithError(err).Warn("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.WithField("url", c.ConnectedUrl()).Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSPublisher{conn: conn, source: source, logger: log}, nil
}

// Publish marshals the event and publishes it
func (p *NATSPublisher) Publish(ctx context.Context, eventType string, data interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    p.source,
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", eventType, err)
	}
	if err := p.conn.Publish(subjectPrefix+eventType, payload); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", eventType, err)
	}
	return nil
}

// Close drains the connection
func (p *NATSPublisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.logger.WithError(err).Warn("Failed to drain NATS connection")
	}
}

// NoopPublisher is used when NATS is not configured; events are only logged
type NoopPublisher struct {
	logger *logrus.Entry
}

// NewNoopPublisher creates a publisher that drops events
func NewNoopPublisher(logger *logrus.Logger) *NoopPublisher {
	return &NoopPublisher{logger: logger.WithField("component", "events.publisher")}
}

func (p *NoopPublisher) Publish(ctx context.Context, eventType string, data interface{}) error {
	p.logger.WithField("event", eventType).Debug("Event not published (NATS disabled)")
	return nil
}

func (p *NoopPublisher) Close() {}

// Recorder keeps published events in memory
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(ctx context.Context, eventType string, data interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Type: eventType, Timestamp: time.Now().UTC(), Data: data})
	return nil
}

func (r *Recorder) Close() {}

// Types returns the recorded event types in publish order
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}
