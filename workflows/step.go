// Package workflows implements the engine's unit of composition, the Step,
// and the operators that combine steps into sequential, parallel,
// conditional, and iterative workflows. Steps receive immutable state and
// the run's ledger, and return the next state; they never mutate state in
// place.
package workflows

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ledgerflow/ledgerflow/ledger"
	"github.com/ledgerflow/ledgerflow/state"
)

// Step is a state transition: it reads the current immutable state, may
// append events to the ledger, and returns the next state. Errors propagate
// to the caller; the returned state is ignored on error.
type Step func(ctx context.Context, s state.State, lg *ledger.Ledger) (state.State, error)

// Predicate evaluates state for When and LoopWhile.
type Predicate func(s state.State) bool

// MergeFunc folds one parallel branch result into the accumulated state.
// The default policy is last-writer-wins across top-level keys.
type MergeFunc func(acc, branch state.State) state.State

// Action lifts a plain transition function into a Step that records a ledger
// event carrying before/after content hashes. This is the primitive from
// which application steps are built.
func Action(name string, fn func(ctx context.Context, s state.State) (state.State, error)) Step {
	if name == "" {
		panic("workflows: action name is empty")
	}
	if fn == nil {
		panic("workflows: action function is nil")
	}

	return func(ctx context.Context, s state.State, lg *ledger.Ledger) (state.State, error) {
		before := s.Hash()
		next, err := fn(ctx, s)
		if err != nil {
			return s, err
		}
		if _, err := lg.Record(ctx, ledger.NewEvent(name, nil, before, next.Hash()), next); err != nil {
			return s, err
		}
		return next, nil
	}
}

// Sequence threads state through steps in order; each step receives the
// previous step's output. An empty sequence returns its input unchanged.
// Panics at construction if any step is nil.
func Sequence(steps ...Step) Step {
	mustSteps("sequence", steps)

	return func(ctx context.Context, s state.State, lg *ledger.Ledger) (state.State, error) {
		current := s
		for i, step := range steps {
			if err := ctx.Err(); err != nil {
				return current, fmt.Errorf("sequence cancelled before step %d: %w", i, err)
			}
			next, err := step(ctx, current, lg)
			if err != nil {
				return current, fmt.Errorf("sequence step %d: %w", i, err)
			}
			current = next
		}
		return current, nil
	}
}

// Parallel runs all steps concurrently, each against an independent deep
// clone of the same input state, sharing one ledger. It fails fast: the
// first error cancels the remaining branches and the call returns an
// *AggregateError reporting how many branches failed, discarding partial
// successes. On success, branch results are folded in declaration order via
// merge (nil merge means last-writer-wins). Panics at construction if any
// step is nil.
func Parallel(merge MergeFunc, steps ...Step) Step {
	mustSteps("parallel", steps)
	if merge == nil {
		merge = func(acc, branch state.State) state.State {
			return acc.Merge(branch)
		}
	}

	return func(ctx context.Context, s state.State, lg *ledger.Ledger) (state.State, error) {
		if len(steps) == 0 {
			return s, nil
		}

		results := make([]state.State, len(steps))
		errs := make([]error, len(steps))

		g, gctx := errgroup.WithContext(ctx)
		for i, step := range steps {
			i, step := i, step
			g.Go(func() error {
				branch := s.Clone()
				out, err := step(gctx, branch, lg)
				if err != nil {
					errs[i] = err
					return err
				}
				results[i] = out
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return s, newAggregateError(len(steps), errs)
		}

		acc := results[0]
		for _, branch := range results[1:] {
			acc = merge(acc, branch)
		}
		return acc, nil
	}
}

// LoopWhile repeatedly applies body while pred holds. The engine enforces no
// iteration ceiling; a runaway loop is bounded only by the caller encoding a
// counter into state, or by ctx cancellation, which is checked every
// iteration. Panics at construction if pred or body is nil.
func LoopWhile(pred Predicate, body Step) Step {
	if pred == nil {
		panic("workflows: loop predicate is nil")
	}
	if body == nil {
		panic("workflows: loop body is nil")
	}

	return func(ctx context.Context, s state.State, lg *ledger.Ledger) (state.State, error) {
		current := s
		for iteration := 0; pred(current); iteration++ {
			if err := ctx.Err(); err != nil {
				return current, fmt.Errorf("loop cancelled at iteration %d: %w", iteration, err)
			}
			next, err := body(ctx, current, lg)
			if err != nil {
				return current, fmt.Errorf("loop iteration %d: %w", iteration, err)
			}
			current = next
		}
		return current, nil
	}
}

// When branches on pred: thenStep when true, elseStep when false. A nil
// elseStep passes state through unchanged. Panics at construction if pred or
// thenStep is nil.
func When(pred Predicate, thenStep, elseStep Step) Step {
	if pred == nil {
		panic("workflows: when predicate is nil")
	}
	if thenStep == nil {
		panic("workflows: when then-step is nil")
	}

	return func(ctx context.Context, s state.State, lg *ledger.Ledger) (state.State, error) {
		if pred(s) {
			return thenStep(ctx, s, lg)
		}
		if elseStep == nil {
			return s, nil
		}
		return elseStep(ctx, s, lg)
	}
}

func mustSteps(op string, steps []Step) {
	for i, step := range steps {
		if step == nil {
			panic(fmt.Sprintf("workflows: %s step %d is nil", op, i))
		}
	}
}
