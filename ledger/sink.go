package ledger

import (
	"context"
	"sync"
)

// Sink is the pluggable durable destination for recorded events. Write is
// called once per event, in record order, while the ledger's lock is held, so
// implementations do not need their own ordering guarantees but must not
// call back into the ledger.
type Sink interface {
	// Write persists a single event. A non-nil error fails the step that
	// produced the event.
	Write(ctx context.Context, event Event) error
	// Flush forces buffered events to durable storage.
	Flush() error
	// Close flushes and releases the sink. The sink is unusable afterwards.
	Close() error
}

// MemorySink accumulates events in memory. Used for tests and for runs where
// the caller only needs the in-process ledger.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Write(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *MemorySink) Flush() error { return nil }
func (s *MemorySink) Close() error { return nil }

// Events returns a copy of everything written so far.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}
