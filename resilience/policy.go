// Package resilience provides the cross-cutting middleware applied around
// steps: TTL caching keyed by input-state hash, per-operation token-bucket
// rate limiting, retry with exponential backoff, bounded concurrency, and a
// timeout decorator. Cache, RateLimit, and Retry are independent decorators;
// Wrap composes all three in a fixed order.
package resilience

import "time"

// Policy bundles the knobs for a Wrap-decorated step.
type Policy struct {
	// TTL is how long a cached result stays valid. Zero disables caching.
	TTL time.Duration
	// QPS is the sustained token refill rate per operation name. Zero or
	// negative disables rate limiting.
	QPS float64
	// Burst is the bucket capacity. Values below 1 are treated as 1.
	Burst int
	// MaxAttempts is the retry ceiling, counting the first attempt. Values
	// below 1 are treated as 1 (no retry).
	MaxAttempts int
	// InitialDelay is the sleep before the second attempt.
	InitialDelay time.Duration
	// BackoffFactor multiplies the delay after each failed attempt.
	BackoffFactor float64
}

// DefaultPolicy returns the engine's default resilience policy.
func DefaultPolicy() Policy {
	return Policy{
		TTL:           5 * time.Minute,
		QPS:           2,
		Burst:         1,
		MaxAttempts:   3,
		InitialDelay:  250 * time.Millisecond,
		BackoffFactor: 2,
	}
}

// Merge applies non-zero values from source into p.
func (p *Policy) Merge(source Policy) {
	if source.TTL > 0 {
		p.TTL = source.TTL
	}
	if source.QPS > 0 {
		p.QPS = source.QPS
	}
	if source.Burst > 0 {
		p.Burst = source.Burst
	}
	if source.MaxAttempts > 0 {
		p.MaxAttempts = source.MaxAttempts
	}
	if source.InitialDelay > 0 {
		p.InitialDelay = source.InitialDelay
	}
	if source.BackoffFactor > 0 {
		p.BackoffFactor = source.BackoffFactor
	}
}
