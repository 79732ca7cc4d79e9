// Package outbox persists domain events in the same database transaction as
// the ledger mutation that produced them and dispatches them afterwards, so
// downstream consumers never observe a mutation that was rolled back.
package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is one domain event awaiting (or after) dispatch.
type Event struct {
	ID           uuid.UUID
	Topic        string
	Payload      json.RawMessage
	CreatedAt    time.Time
	DispatchedAt *time.Time
}

// NewEvent builds an event from a topic and a JSON-serializable payload.
func NewEvent(topic string, payload any) Event {
	body, err := json.Marshal(payload)
	if err != nil {
		// Payloads are flat maps of strings and numbers; a marshal failure
		// here is a programming error worth failing loudly on.
		panic(err)
	}
	return Event{
		ID:        uuid.New(),
		Topic:     topic,
		Payload:   body,
		CreatedAt: time.Now().UTC(),
	}
}

// Store reads and acknowledges queued events. Enqueueing is backend-specific
// because it must share the producer's database transaction.
type Store interface {
	Pending(ctx context.Context, limit int) ([]Event, error)
	MarkDispatched(ctx context.Context, ids []uuid.UUID) error
}
