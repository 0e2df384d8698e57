package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerflow/ledgerflow/state"
)

// DebugFunc is the optional observer callback invoked with every recorded
// event and the state that resulted from the transition. Diagnostic only;
// it cannot veto a record.
type DebugFunc func(event Event, resulting state.State)

// Ledger is the per-run, append-only event sequence. It is created once per
// workflow run and threaded through every step. Appends are synchronized, so
// parallel branches can share one ledger safely.
type Ledger struct {
	mu       sync.Mutex
	runID    string
	events   []Event
	sink     Sink
	debug    DebugFunc
	seq      int64
	prevHash string
}

// Option configures a Ledger at construction.
type Option func(*Ledger)

// WithDebug sets the observer callback invoked after each recorded event.
func WithDebug(fn DebugFunc) Option {
	return func(l *Ledger) { l.debug = fn }
}

// New creates an empty Ledger writing to sink. A nil sink keeps events in
// memory only.
func New(sink Sink, opts ...Option) *Ledger {
	l := &Ledger{
		runID:    uuid.NewString(),
		sink:     sink,
		prevHash: GenesisHash,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// RunID returns the identifier stamped on every event of this run.
func (l *Ledger) RunID() string {
	return l.runID
}

// Record assigns chain metadata to ev, forwards it to the durable sink, and
// appends it to the in-memory sequence. The sink write happens before the
// append: a failing write leaves the ledger unchanged and fails the
// enclosing step. On success the optional debug callback is invoked with the
// recorded event and the resulting state.
func (l *Ledger) Record(ctx context.Context, ev Event, resulting state.State) (Event, error) {
	l.mu.Lock()

	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	ev.Timestamp = ev.Timestamp.UTC()
	ev.RunID = l.runID
	ev.Seq = l.seq + 1
	ev.PrevHash = l.prevHash
	ev.Args = normalizeArgs(ev.Args)
	ev.Meta = normalizeMeta(ev.Meta)
	ev.EntryHash = ev.ComputeEntryHash()

	if l.sink != nil {
		if err := l.sink.Write(ctx, ev); err != nil {
			l.mu.Unlock()
			return Event{}, fmt.Errorf("ledger: sink write: %w", err)
		}
	}

	l.seq = ev.Seq
	l.prevHash = ev.EntryHash
	l.events = append(l.events, ev)
	debug := l.debug
	l.mu.Unlock()

	if debug != nil {
		debug(ev, resulting)
	}
	return ev, nil
}

// Events returns a copy of the recorded sequence.
func (l *Ledger) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// Len returns the number of recorded events.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// Head returns the entry hash of the most recent event, or GenesisHash for
// an empty ledger.
func (l *Ledger) Head() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.prevHash
}

// Flush forwards to the sink's Flush. Called by the driver at run end.
func (l *Ledger) Flush() error {
	if l.sink == nil {
		return nil
	}
	return l.sink.Flush()
}
