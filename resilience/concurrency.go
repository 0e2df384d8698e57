package resilience

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"

	"github.com/ledgerflow/ledgerflow/ledger"
	"github.com/ledgerflow/ledgerflow/state"
	"github.com/ledgerflow/ledgerflow/workflows"
)

// Concurrency bounds how many invocations of the returned step may be
// in flight at once. All invocations of the same returned instance share one
// semaphore; waiters are served FIFO. The running count never exceeds limit,
// and one invocation's failure never blocks queued work. This bounds the
// number of simultaneous executions, unlike RateLimit, which bounds the
// execution rate. Panics at construction on a non-positive limit or nil
// step.
func Concurrency(step workflows.Step, limit int) workflows.Step {
	if step == nil {
		panic("resilience: concurrency step is nil")
	}
	if limit < 1 {
		panic(fmt.Sprintf("resilience: concurrency limit must be positive, got %d", limit))
	}

	sem := semaphore.NewWeighted(int64(limit))

	return func(ctx context.Context, s state.State, lg *ledger.Ledger) (state.State, error) {
		if err := sem.Acquire(ctx, 1); err != nil {
			return s, err
		}
		defer sem.Release(1)

		return step(ctx, s, lg)
	}
}
