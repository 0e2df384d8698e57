package resilience

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ledgerflow/ledgerflow/state"
)

// DefaultCacheCap bounds the result cache when no explicit cap is set.
const DefaultCacheCap = 1024

// Limiter owns the shared resilience state: the result cache and the
// per-operation token buckets. One Limiter belongs to one engine instance,
// so concurrent engines never share cache or rate-limit state. Safe for
// concurrent use.
type Limiter struct {
	mu      sync.Mutex
	cache   map[string]cacheEntry
	order   []string // insertion order for cap eviction
	buckets map[string]*rate.Limiter
	cap     int
	now     func() time.Time
}

type cacheEntry struct {
	at     time.Time
	result state.State
}

// LimiterOption configures a Limiter at construction.
type LimiterOption func(*Limiter)

// WithCacheCap sets the maximum number of cached results. When the cap is
// reached, the oldest entry is evicted on insert.
func WithCacheCap(n int) LimiterOption {
	return func(l *Limiter) {
		if n > 0 {
			l.cap = n
		}
	}
}

// WithClock overrides the time source. Test hook for TTL expiry.
func WithClock(now func() time.Time) LimiterOption {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLimiter creates an empty Limiter.
func NewLimiter(opts ...LimiterOption) *Limiter {
	l := &Limiter{
		cache:   make(map[string]cacheEntry),
		buckets: make(map[string]*rate.Limiter),
		cap:     DefaultCacheCap,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// lookup returns a live cached result for key, lazily evicting an expired
// entry on read.
func (l *Limiter) lookup(key string, ttl time.Duration) (state.State, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.cache[key]
	if !ok {
		return state.State{}, false
	}
	if l.now().Sub(entry.at) >= ttl {
		delete(l.cache, key)
		return state.State{}, false
	}
	return entry.result.Clone(), true
}

// store caches a result, evicting the oldest insertion when the cap is hit.
func (l *Limiter) store(key string, result state.State) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.cache[key]; !exists {
		for len(l.cache) >= l.cap && len(l.order) > 0 {
			oldest := l.order[0]
			l.order = l.order[1:]
			delete(l.cache, oldest)
		}
		l.order = append(l.order, key)
	}
	l.cache[key] = cacheEntry{at: l.now(), result: result.Clone()}
}

// bucket returns the token bucket for name, creating it on first use with
// the given rate and burst. The first configuration of a name wins; later
// calls reuse the existing bucket.
func (l *Limiter) bucket(name string, qps float64, burst int) *rate.Limiter {
	if burst < 1 {
		burst = 1
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[name]
	if !ok {
		b = rate.NewLimiter(rate.Limit(qps), burst)
		l.buckets[name] = b
	}
	return b
}

// CacheLen reports the number of live cache entries. Diagnostics only.
func (l *Limiter) CacheLen() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.cache)
}
