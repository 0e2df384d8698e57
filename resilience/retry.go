package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ledgerflow/ledgerflow/ledger"
	"github.com/ledgerflow/ledgerflow/state"
	"github.com/ledgerflow/ledgerflow/workflows"
)

// ExhaustedError is returned when a retried step keeps failing through the
// attempt ceiling. It wraps the last underlying error.
type ExhaustedError struct {
	Name     string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("step %s failed after %d attempts: %v", e.Name, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Retry invokes step, and on failure records a "retry:<name>" event with the
// error and attempt number, sleeps for the current delay, multiplies the
// delay by the backoff factor, and tries again, up to p.MaxAttempts total
// attempts. After the ceiling the last error is returned wrapped in
// *ExhaustedError. Context cancellation stops retrying immediately.
func Retry(name string, p Policy, step workflows.Step) workflows.Step {
	if step == nil {
		panic("resilience: retry step is nil")
	}

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	factor := p.BackoffFactor
	if factor < 1 {
		factor = 1
	}

	return func(ctx context.Context, s state.State, lg *ledger.Ledger) (state.State, error) {
		delay := p.InitialDelay
		inputHash := s.Hash()

		var lastErr error
		for attempt := 1; attempt <= attempts; attempt++ {
			result, err := step(ctx, s, lg)
			if err == nil {
				return result, nil
			}
			lastErr = err

			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return s, err
			}
			if attempt == attempts {
				break
			}

			ev := ledger.NewEvent("retry:"+name, nil, inputHash, inputHash).
				WithMeta(map[string]any{
					"attempt": attempt,
					"error":   err.Error(),
				})
			if _, recErr := lg.Record(ctx, ev, s); recErr != nil {
				return s, recErr
			}

			if err := sleep(ctx, delay); err != nil {
				return s, err
			}
			delay = time.Duration(float64(delay) * factor)
		}

		return s, &ExhaustedError{Name: name, Attempts: attempts, Err: lastErr}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
