// Package tools implements the schema-validated registry of pluggable step
// factories. The registry is the seam where business logic extends the
// engine with side-effecting operations: implementations are registered once
// under a name and invoked through Call, which validates arguments, applies
// the engine's resilience policy, and records a "tool:<name>" ledger event
// around every execution.
package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ledgerflow/ledgerflow/ledger"
	"github.com/ledgerflow/ledgerflow/observability"
	"github.com/ledgerflow/ledgerflow/resilience"
	"github.com/ledgerflow/ledgerflow/state"
	"github.com/ledgerflow/ledgerflow/workflows"
)

// Observability event types emitted by the registry.
const (
	EventDuplicate observability.EventType = "tool.duplicate"
	EventMutation  observability.EventType = "tool.mutation"
)

// Impl is a tool implementation supplied by business logic. It receives a
// private copy of the current state and the literal call arguments, performs
// arbitrary side effects, and returns the next state.
type Impl func(ctx context.Context, s state.State, args ...any) (state.State, error)

type entry struct {
	schema Schema
	impl   Impl
}

// Registry is a name-keyed, write-once map of tools. One Registry belongs to
// one engine instance. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	entries  map[string]entry
	limiter  *resilience.Limiter
	policy   resilience.Policy
	observer observability.Observer
}

// NewRegistry creates an empty Registry whose tool steps are decorated with
// the limiter's cache/rate-limit/retry stack under the given policy. A nil
// limiter gets a private one; a nil observer discards events.
func NewRegistry(limiter *resilience.Limiter, policy resilience.Policy, observer observability.Observer) *Registry {
	if limiter == nil {
		limiter = resilience.NewLimiter()
	}
	if observer == nil {
		observer = observability.NoOpObserver{}
	}
	return &Registry{
		entries:  make(map[string]entry),
		limiter:  limiter,
		policy:   policy,
		observer: observer,
	}
}

// Register stores a tool under name. Registration is write-once: a duplicate
// name emits a warning event and keeps the original registration, never an
// error. A nil schema accepts any arguments.
func (r *Registry) Register(name string, schema Schema, impl Impl) {
	if name == "" || impl == nil {
		observability.Emit(context.Background(), r.observer, EventDuplicate,
			observability.LevelWarning, "tools.Register",
			map[string]any{"name": name, "reason": "empty name or nil implementation"})
		return
	}
	if schema == nil {
		schema = AnyArgs
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; exists {
		observability.Emit(context.Background(), r.observer, EventDuplicate,
			observability.LevelWarning, "tools.Register",
			map[string]any{"name": name, "reason": "already registered, keeping original"})
		return
	}
	r.entries[name] = entry{schema: schema, impl: impl}
}

// Has reports whether a tool is registered under name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.entries[name]
	return exists
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Call looks up the tool, validates args against its schema, and returns a
// resilience-wrapped step that executes the implementation. An unknown name
// fails with ErrUnregistered; a schema failure fails with *ValidationError
// before the implementation can run.
func (r *Registry) Call(name string, args ...any) (workflows.Step, error) {
	r.mu.RLock()
	e, exists := r.entries[name]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("tool %s: %w", name, ErrUnregistered)
	}
	if err := e.schema.Validate(args); err != nil {
		return nil, &ValidationError{Tool: name, Err: err}
	}

	return r.limiter.Wrap("tool:"+name, r.policy, r.toolStep(name, args, e.impl)), nil
}

// toolStep builds the undecorated execution step for one invocation: it runs
// the implementation against a private deep copy of the input state, checks
// the copy afterwards for in-place mutation, and records a "tool:<name>"
// event with the literal arguments and before/after hashes.
func (r *Registry) toolStep(name string, args []any, impl Impl) workflows.Step {
	return func(ctx context.Context, s state.State, lg *ledger.Ledger) (state.State, error) {
		before := s.Hash()
		working := s.Clone()

		next, err := impl(ctx, working, args...)
		if err != nil {
			return s, err
		}

		if working.Hash() != before {
			observability.Emit(ctx, r.observer, EventMutation,
				observability.LevelWarning, "tools.Call",
				map[string]any{"name": name})
		}

		ev := ledger.NewEvent("tool:"+name, args, before, next.Hash())
		if _, err := lg.Record(ctx, ev, next); err != nil {
			return s, err
		}
		return next, nil
	}
}
