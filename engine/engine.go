// Package engine composes the registry, resilience limiter, ledger sink, and
// observer into a runnable workflow host.
//
// The engine initializes from configuration via New, creating all subsystems
// internally. Functional options allow test overrides of any subsystem.
//
//	e, err := engine.New(&cfg)
//	final, lg, err := e.Spawn(ctx, workflow, seed)
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ledgerflow/ledgerflow/ledger"
	"github.com/ledgerflow/ledgerflow/observability"
	"github.com/ledgerflow/ledgerflow/resilience"
	"github.com/ledgerflow/ledgerflow/state"
	"github.com/ledgerflow/ledgerflow/tools"
	"github.com/ledgerflow/ledgerflow/workflows"
)

// Option configures an Engine after config-driven initialization.
// Applied by New after cold start, overrides replace config-created defaults.
type Option func(*Engine)

// WithSink overrides the config-created ledger sink.
func WithSink(s ledger.Sink) Option {
	return func(e *Engine) { e.sink = s }
}

// WithObserver overrides the config-selected observer.
func WithObserver(o observability.Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithPolicy overrides the config-derived resilience policy.
func WithPolicy(p resilience.Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithDebug installs a per-event callback forwarded to every spawned ledger.
func WithDebug(fn ledger.DebugFunc) Option {
	return func(e *Engine) { e.debug = fn }
}

// Engine owns the shared subsystems that outlive individual workflow runs:
// the tool registry, the resilience limiter with its cache and rate buckets,
// the durable ledger sink, and the observer. Runs share these; each run gets
// its own hash chain.
type Engine struct {
	registry *tools.Registry
	limiter  *resilience.Limiter
	sink     ledger.Sink
	observer observability.Observer
	policy   resilience.Policy
	debug    ledger.DebugFunc
}

// New creates an Engine from configuration. The ledger sink, observer, and
// resilience policy are initialized from their respective config sections.
// Functional options applied after initialization can override any subsystem
// for testing.
func New(cfg *Config, opts ...Option) (*Engine, error) {
	policy, err := cfg.Policy.Policy()
	if err != nil {
		return nil, fmt.Errorf("failed to build resilience policy: %w", err)
	}

	observer, err := observability.GetObserver(cfg.Observer)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve observer: %w", err)
	}

	e := &Engine{
		observer: observer,
		policy:   policy,
	}

	for _, opt := range opts {
		opt(e)
	}

	// A WithSink override suppresses the config-selected sink; opening
	// both would leave the config one unclosed.
	if e.sink == nil {
		sink, err := openSink(cfg.Ledger)
		if err != nil {
			return nil, fmt.Errorf("failed to open ledger sink: %w", err)
		}
		e.sink = sink
	}

	cacheCap := cfg.CacheCap
	if cacheCap <= 0 {
		cacheCap = resilience.DefaultCacheCap
	}
	e.limiter = resilience.NewLimiter(resilience.WithCacheCap(cacheCap))
	e.registry = tools.NewRegistry(e.limiter, e.policy, e.observer)

	return e, nil
}

func openSink(cfg LedgerConfig) (ledger.Sink, error) {
	switch cfg.Sink {
	case "", "memory":
		return ledger.NewMemorySink(), nil
	case "file":
		if cfg.Path == "" {
			return nil, fmt.Errorf("file sink requires a path")
		}
		return ledger.NewFileSink(cfg.Path)
	case "sqlite":
		if cfg.Path == "" {
			return nil, fmt.Errorf("sqlite sink requires a path")
		}
		return ledger.OpenSQLiteSink(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown ledger sink %q", cfg.Sink)
	}
}

// Tools returns the engine's tool registry.
func (e *Engine) Tools() *tools.Registry {
	return e.registry
}

// Policy returns the engine's resilience policy.
func (e *Engine) Policy() resilience.Policy {
	return e.policy
}

// Wrap decorates a step with the engine's cache, rate-limit, and retry stack
// under the engine policy.
func (e *Engine) Wrap(name string, step workflows.Step) workflows.Step {
	return e.limiter.Wrap(name, e.policy, step)
}

// Spawn runs a workflow against a seed state. Each run records into a fresh
// ledger chained from genesis over the engine's shared sink, so runs from the
// same engine interleave in the sink but verify independently. The ledger is
// returned alongside the final state even when the run fails, holding every
// event recorded before the failure.
func (e *Engine) Spawn(ctx context.Context, workflow workflows.Step, seed map[string]any) (state.State, *ledger.Ledger, error) {
	if workflow == nil {
		return state.State{}, nil, fmt.Errorf("cannot spawn a nil workflow")
	}

	var lgOpts []ledger.Option
	if e.debug != nil {
		lgOpts = append(lgOpts, ledger.WithDebug(e.debug))
	}
	lg := ledger.New(e.sink, lgOpts...)

	initial := state.New(seed)

	observability.Emit(ctx, e.observer, EventRunStart,
		observability.LevelInfo, "engine.Spawn",
		map[string]any{"run_id": lg.RunID(), "seed_hash": initial.Hash()})

	started := time.Now()
	final, err := workflow(ctx, initial, lg)

	if flushErr := lg.Flush(); flushErr != nil {
		err = errors.Join(err, fmt.Errorf("failed to flush ledger: %w", flushErr))
	}

	if err != nil {
		observability.Emit(ctx, e.observer, EventRunError,
			observability.LevelError, "engine.Spawn",
			map[string]any{
				"run_id":  lg.RunID(),
				"error":   err.Error(),
				"events":  lg.Len(),
				"elapsed": time.Since(started).String(),
			})
		return final, lg, err
	}

	observability.Emit(ctx, e.observer, EventRunComplete,
		observability.LevelInfo, "engine.Spawn",
		map[string]any{
			"run_id":     lg.RunID(),
			"final_hash": final.Hash(),
			"events":     lg.Len(),
			"elapsed":    time.Since(started).String(),
		})
	return final, lg, nil
}

// Close flushes and closes the shared sink. The engine must not be used
// afterwards.
func (e *Engine) Close() error {
	if e.sink == nil {
		return nil
	}
	return e.sink.Close()
}
