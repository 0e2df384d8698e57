package resilience

import (
	"context"
	"time"

	"github.com/ledgerflow/ledgerflow/ledger"
	"github.com/ledgerflow/ledgerflow/state"
	"github.com/ledgerflow/ledgerflow/workflows"
)

// Cache memoizes step results keyed by the operation name plus the content
// hash of the input state. A hit within ttl returns the cached result
// without invoking step and, when composed under Wrap, without consuming a
// rate-limit token. Expired entries are evicted lazily on read. A zero ttl
// disables caching entirely.
func (l *Limiter) Cache(name string, ttl time.Duration, step workflows.Step) workflows.Step {
	if step == nil {
		panic("resilience: cache step is nil")
	}
	if ttl <= 0 {
		return step
	}

	return func(ctx context.Context, s state.State, lg *ledger.Ledger) (state.State, error) {
		key := name + ":" + s.Hash()
		if cached, ok := l.lookup(key, ttl); ok {
			return cached, nil
		}

		result, err := step(ctx, s, lg)
		if err != nil {
			return s, err
		}
		l.store(key, result)
		return result, nil
	}
}

// RateLimit acquires one token from the per-name bucket before each
// invocation, waiting for the refill interval when the bucket is empty.
// There is no cap on how many callers may be waiting. Honors ctx
// cancellation while waiting. A non-positive qps disables limiting.
func (l *Limiter) RateLimit(name string, qps float64, burst int, step workflows.Step) workflows.Step {
	if step == nil {
		panic("resilience: rate limit step is nil")
	}
	if qps <= 0 {
		return step
	}

	return func(ctx context.Context, s state.State, lg *ledger.Ledger) (state.State, error) {
		if err := l.bucket(name, qps, burst).Wait(ctx); err != nil {
			return s, err
		}
		return step(ctx, s, lg)
	}
}

// Wrap combines the three resilience concerns around step in a fixed order:
// cache check first (a hit bypasses everything), then rate limiting, then
// retry with backoff. On success the result is cached under the operation
// name and input-state hash.
func (l *Limiter) Wrap(name string, p Policy, step workflows.Step) workflows.Step {
	return l.Cache(name, p.TTL,
		l.RateLimit(name, p.QPS, p.Burst,
			Retry(name, p, step)))
}
