package notifications

import (
	"context"
	"log"
	"time"

	"messaging-service/internal/observability"
)

// KindMessageReceived is emitted once per recipient of a stored message.
const KindMessageReceived = "message_received"

// Publisher is the transport the dispatcher emits through.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// Dispatcher is the notification-dispatch collaborator: fire-and-forget,
// best-effort. Failures are counted and logged, never surfaced to the
// operation that triggered them.
type Dispatcher struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
}

// Envelope is the wire shape of one notification event.
type Envelope struct {
	SchemaVersion int    `json:"schema_version"`
	Kind          string `json:"kind"`
	OccurredAt    string `json:"occurred_at"`
	Service       string `json:"service"`
	Environment   string `json:"environment"`
	RequestID     string `json:"request_id"`
	RecipientID   int    `json:"recipient_id"`
	Payload       any    `json:"payload"`
}

// NewDispatcher builds a Dispatcher.
func NewDispatcher(publisher Publisher, routingKey, service, environment string) *Dispatcher {
	return &Dispatcher{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
	}
}

// Notify emits one event for the recipient. Safe on a nil dispatcher.
func (d *Dispatcher) Notify(ctx context.Context, recipientID int, kind string, payload any, requestID string) {
	if d == nil || d.publisher == nil {
		return
	}

	envelope := Envelope{
		SchemaVersion: 1,
		Kind:          kind,
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       d.service,
		Environment:   d.environment,
		RequestID:     requestID,
		RecipientID:   recipientID,
		Payload:       payload,
	}

	if err := d.publisher.Publish(ctx, d.routingKey, envelope); err != nil {
		observability.IncNotifyPublishError()
		log.Printf("notification publish failed: kind=%s recipient=%d err=%v", kind, recipientID, err)
		return
	}
	observability.IncNotifyPublished(kind)
}
