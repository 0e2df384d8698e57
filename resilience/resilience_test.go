package resilience_test

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ledgerflow/ledgerflow/ledger"
	"github.com/ledgerflow/ledgerflow/resilience"
	"github.com/ledgerflow/ledgerflow/state"
	"github.com/ledgerflow/ledgerflow/workflows"
)

func countingStep(calls *int32, result state.State) workflows.Step {
	return func(ctx context.Context, s state.State, lg *ledger.Ledger) (state.State, error) {
		atomic.AddInt32(calls, 1)
		return result, nil
	}
}

func TestCache_HitSuppressesInvocation(t *testing.T) {
	limiter := resilience.NewLimiter()
	lg := ledger.New(nil)
	input := state.New(map[string]any{"q": "weather"})
	output := state.New(map[string]any{"answer": 42})

	var calls int32
	step := limiter.Cache("lookup", time.Minute, countingStep(&calls, output))

	first, err := step(context.Background(), input, lg)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	second, err := step(context.Background(), input, lg)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if calls != 1 {
		t.Errorf("Expected exactly one invocation, got %d", calls)
	}
	if !first.Equal(second) {
		t.Error("Expected identical results for cache hit")
	}
	if !second.Equal(output) {
		t.Errorf("Expected cached output, got %v", second.Data)
	}
}

func TestCache_KeyIncludesInputHash(t *testing.T) {
	limiter := resilience.NewLimiter()
	lg := ledger.New(nil)

	var calls int32
	step := limiter.Cache("lookup", time.Minute, countingStep(&calls, state.State{}))

	if _, err := step(context.Background(), state.New(map[string]any{"q": "a"}), lg); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if _, err := step(context.Background(), state.New(map[string]any{"q": "b"}), lg); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if calls != 2 {
		t.Errorf("Expected both distinct inputs to invoke the step, got %d calls", calls)
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	now := time.Now()
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(d)
	}

	limiter := resilience.NewLimiter(resilience.WithClock(clock))
	lg := ledger.New(nil)
	input := state.New(map[string]any{"q": "x"})

	var calls int32
	step := limiter.Cache("lookup", time.Minute, countingStep(&calls, state.State{}))

	if _, err := step(context.Background(), input, lg); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	advance(time.Minute + time.Second)
	if _, err := step(context.Background(), input, lg); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if calls != 2 {
		t.Errorf("Expected expired entry to re-invoke the step, got %d calls", calls)
	}
}

func TestCache_CapEvictsOldest(t *testing.T) {
	limiter := resilience.NewLimiter(resilience.WithCacheCap(2))
	lg := ledger.New(nil)

	var calls int32
	step := limiter.Cache("lookup", time.Minute, countingStep(&calls, state.State{}))

	inputs := []state.State{
		state.New(map[string]any{"q": 1}),
		state.New(map[string]any{"q": 2}),
		state.New(map[string]any{"q": 3}),
	}
	for _, in := range inputs {
		if _, err := step(context.Background(), in, lg); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
	}

	if limiter.CacheLen() != 2 {
		t.Errorf("Expected cache capped at 2 entries, got %d", limiter.CacheLen())
	}

	// The oldest entry was evicted, so replaying it invokes the step again.
	if _, err := step(context.Background(), inputs[0], lg); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if calls != 4 {
		t.Errorf("Expected 4 invocations after eviction replay, got %d", calls)
	}
}

func TestCache_ZeroTTLDisables(t *testing.T) {
	limiter := resilience.NewLimiter()
	lg := ledger.New(nil)
	input := state.New(map[string]any{"q": "x"})

	var calls int32
	step := limiter.Cache("lookup", 0, countingStep(&calls, state.State{}))

	for i := 0; i < 3; i++ {
		if _, err := step(context.Background(), input, lg); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
	}
	if calls != 3 {
		t.Errorf("Expected every call to invoke the step, got %d", calls)
	}
}

func TestRateLimit_EnforcesQPSCeiling(t *testing.T) {
	limiter := resilience.NewLimiter()
	lg := ledger.New(nil)

	var calls int32
	step := limiter.RateLimit("search", 20, 1, countingStep(&calls, state.State{}))

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := step(context.Background(), state.State{}, lg); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
	}
	elapsed := time.Since(start)

	if calls != 3 {
		t.Errorf("Expected 3 invocations, got %d", calls)
	}
	// Burst 1 at 20 qps: two refill waits of 50ms each.
	if elapsed < 90*time.Millisecond {
		t.Errorf("Expected rate limit to delay calls, elapsed %v", elapsed)
	}
}

func TestRateLimit_HonorsCancellationWhileWaiting(t *testing.T) {
	limiter := resilience.NewLimiter()
	lg := ledger.New(nil)

	var calls int32
	step := limiter.RateLimit("search", 0.5, 1, countingStep(&calls, state.State{}))

	// Drain the single burst token.
	if _, err := step(context.Background(), state.State{}, lg); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := step(ctx, state.State{}, lg); err == nil {
		t.Fatal("Expected an error when cancelled while waiting for a token")
	}
	if calls != 1 {
		t.Errorf("Expected the waiting call to never run, got %d invocations", calls)
	}
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	lg := ledger.New(nil)
	policy := resilience.Policy{MaxAttempts: 3, InitialDelay: time.Millisecond, BackoffFactor: 2}

	var calls int32
	step := resilience.Retry("flaky", policy, func(ctx context.Context, s state.State, lg *ledger.Ledger) (state.State, error) {
		if atomic.AddInt32(&calls, 1) < 3 {
			return s, errors.New("transient")
		}
		return s.Set("done", true), nil
	})

	result, err := step(context.Background(), state.New(nil), lg)
	if err != nil {
		t.Fatalf("Expected success on the third attempt, got: %v", err)
	}
	if v, _ := result.Get("done"); v != true {
		t.Error("Expected the final attempt's result")
	}
	if calls != 3 {
		t.Errorf("Expected 3 attempts, got %d", calls)
	}

	// Each failed attempt that will be retried leaves an audit event.
	events := lg.Events()
	if len(events) != 2 {
		t.Fatalf("Expected 2 retry events, got %d", len(events))
	}
	for i, ev := range events {
		if ev.Name != "retry:flaky" {
			t.Errorf("Expected retry:flaky, got %s", ev.Name)
		}
		if got := ev.Meta["attempt"]; got != json.Number(strconv.Itoa(i+1)) {
			t.Errorf("Expected attempt %d, got %v", i+1, got)
		}
	}
}

func TestRetry_ExhaustionWrapsLastError(t *testing.T) {
	lg := ledger.New(nil)
	policy := resilience.Policy{MaxAttempts: 3, InitialDelay: time.Millisecond, BackoffFactor: 1}

	boom := errors.New("boom")
	var calls int32
	step := resilience.Retry("doomed", policy, func(ctx context.Context, s state.State, lg *ledger.Ledger) (state.State, error) {
		atomic.AddInt32(&calls, 1)
		return s, boom
	})

	_, err := step(context.Background(), state.New(nil), lg)

	var exhausted *resilience.ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("Expected *ExhaustedError, got: %v", err)
	}
	if exhausted.Attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", exhausted.Attempts)
	}
	if !errors.Is(err, boom) {
		t.Error("Expected the underlying error to be wrapped")
	}
	if calls != 3 {
		t.Errorf("Expected exactly 3 invocations, got %d", calls)
	}
}

func TestRetry_ContextCancellationStopsImmediately(t *testing.T) {
	lg := ledger.New(nil)
	policy := resilience.Policy{MaxAttempts: 5, InitialDelay: time.Millisecond, BackoffFactor: 1}

	var calls int32
	step := resilience.Retry("cancelled", policy, func(ctx context.Context, s state.State, lg *ledger.Ledger) (state.State, error) {
		atomic.AddInt32(&calls, 1)
		return s, context.Canceled
	})

	_, err := step(context.Background(), state.New(nil), lg)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got: %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected no retries after cancellation, got %d calls", calls)
	}
}

func TestConcurrency_BoundsInFlightExecutions(t *testing.T) {
	const limit = 2
	const total = 8

	var inFlight, peak int32
	step := resilience.Concurrency(func(ctx context.Context, s state.State, lg *ledger.Ledger) (state.State, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return s, nil
	}, limit)

	lg := ledger.New(nil)
	var wg sync.WaitGroup
	for i := 0; i < total; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := step(context.Background(), state.New(nil), lg); err != nil {
				t.Errorf("Expected no error, got: %v", err)
			}
		}()
	}
	wg.Wait()

	if peak > limit {
		t.Errorf("Expected at most %d concurrent executions, observed %d", limit, peak)
	}
}

func TestConcurrency_PanicsOnBadConstruction(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Expected panic for non-positive limit")
		}
	}()
	resilience.Concurrency(func(ctx context.Context, s state.State, lg *ledger.Ledger) (state.State, error) {
		return s, nil
	}, 0)
}

func TestTimeout_ReturnsTimeoutError(t *testing.T) {
	step := resilience.Timeout(func(ctx context.Context, s state.State, lg *ledger.Ledger) (state.State, error) {
		select {
		case <-time.After(time.Second):
			return s, nil
		case <-ctx.Done():
			return s, ctx.Err()
		}
	}, 10*time.Millisecond)

	_, err := step(context.Background(), state.New(nil), ledger.New(nil))

	var timedOut *resilience.TimeoutError
	if !errors.As(err, &timedOut) {
		t.Fatalf("Expected *TimeoutError, got: %v", err)
	}
}

func TestTimeout_PassesThroughFastSteps(t *testing.T) {
	step := resilience.Timeout(func(ctx context.Context, s state.State, lg *ledger.Ledger) (state.State, error) {
		return s.Set("ok", true), nil
	}, time.Second)

	result, err := step(context.Background(), state.New(nil), ledger.New(nil))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if v, _ := result.Get("ok"); v != true {
		t.Error("Expected the step result to pass through")
	}
}

func TestWrap_CacheHitSkipsRateLimitAndRetry(t *testing.T) {
	limiter := resilience.NewLimiter()
	lg := ledger.New(nil)
	policy := resilience.Policy{
		TTL:          time.Minute,
		QPS:          1000,
		Burst:        1,
		MaxAttempts:  1,
		InitialDelay: time.Millisecond,
	}

	input := state.New(map[string]any{"q": "x"})
	var calls int32
	step := limiter.Wrap("op", policy, countingStep(&calls, state.New(map[string]any{"r": 1})))

	for i := 0; i < 5; i++ {
		if _, err := step(context.Background(), input, lg); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
	}

	if calls != 1 {
		t.Errorf("Expected one underlying invocation across repeat calls, got %d", calls)
	}
}
