package resilience

import (
	"context"
	"fmt"
	"time"

	"github.com/ledgerflow/ledgerflow/ledger"
	"github.com/ledgerflow/ledgerflow/state"
	"github.com/ledgerflow/ledgerflow/workflows"
)

// TimeoutError is returned when a step's deadline elapses before the step
// completes.
type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("step timed out after %s", e.After)
}

// Timeout races step against a timer. If the timer fires first the caller
// gets a *TimeoutError; the underlying step's in-flight work is not aborted
// beyond ctx cancellation; the decorator only stops waiting for it. Panics
// at construction on nil step or non-positive duration.
func Timeout(step workflows.Step, d time.Duration) workflows.Step {
	if step == nil {
		panic("resilience: timeout step is nil")
	}
	if d <= 0 {
		panic(fmt.Sprintf("resilience: timeout must be positive, got %s", d))
	}

	type outcome struct {
		s   state.State
		err error
	}

	return func(ctx context.Context, s state.State, lg *ledger.Ledger) (state.State, error) {
		stepCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		done := make(chan outcome, 1)
		go func() {
			out, err := step(stepCtx, s, lg)
			done <- outcome{s: out, err: err}
		}()

		timer := time.NewTimer(d)
		defer timer.Stop()

		select {
		case out := <-done:
			return out.s, out.err
		case <-ctx.Done():
			return s, ctx.Err()
		case <-timer.C:
			return s, &TimeoutError{After: d}
		}
	}
}
