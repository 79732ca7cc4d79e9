package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a concurrency-safe in-memory outbox used by tests and by the
// in-memory ledger engine in development mode.
type MemoryStore struct {
	mu     sync.Mutex
	events []Event
}

// NewMemoryStore constructs an empty in-memory outbox.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Enqueue appends events; the in-memory engine calls this only after its
// mutation has been applied under lock.
func (s *MemoryStore) Enqueue(events []Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
}

// Pending returns undispatched events, oldest first.
func (s *MemoryStore) Pending(_ context.Context, limit int) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, ev := range s.events {
		if ev.DispatchedAt == nil {
			out = append(out, ev)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// MarkDispatched stamps the given events as delivered.
func (s *MemoryStore) MarkDispatched(_ context.Context, ids []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	for i := range s.events {
		if _, ok := set[s.events[i].ID]; ok && s.events[i].DispatchedAt == nil {
			now := nowUTC()
			s.events[i].DispatchedAt = &now
		}
	}
	return nil
}

func nowUTC() time.Time { return time.Now().UTC() }

// All returns a copy of every queued event, dispatched or not. Test helper.
func (s *MemoryStore) All() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}
