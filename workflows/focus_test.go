package workflows_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ledgerflow/ledgerflow/ledger"
	"github.com/ledgerflow/ledgerflow/lens"
	"github.com/ledgerflow/ledgerflow/state"
	"github.com/ledgerflow/ledgerflow/workflows"
)

func TestFocus_WritesBackThroughLens(t *testing.T) {
	lg := ledger.New(nil)
	initial := state.New(map[string]any{
		"user":  map[string]any{"name": "ada"},
		"other": "untouched",
	})

	upper := workflows.Focus(lens.Path("user", "name"), func(ctx context.Context, slice any, lg *ledger.Ledger) (any, error) {
		return "ADA", nil
	})

	result, err := upper(context.Background(), initial, lg)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if got, _ := lens.Path("user", "name").Get(result); got != "ADA" {
		t.Errorf("Expected ADA at the focused path, got %v", got)
	}
	if got, _ := result.Get("other"); got != "untouched" {
		t.Errorf("Expected sibling untouched, got %v", got)
	}

	events := lg.Events()
	if len(events) != 1 {
		t.Fatalf("Expected 1 lens event, got %d", len(events))
	}
	if events[0].Name != "lens" {
		t.Errorf("Expected event name lens, got %s", events[0].Name)
	}
	if events[0].Meta["path"] != "user.name" {
		t.Errorf("Expected path user.name in metadata, got %v", events[0].Meta["path"])
	}
}

func TestFocus_UnchangedSliceRecordsNothing(t *testing.T) {
	lg := ledger.New(nil)
	initial := state.New(map[string]any{"user": map[string]any{"name": "ada"}})

	identity := workflows.Focus(lens.Path("user", "name"), func(ctx context.Context, slice any, lg *ledger.Ledger) (any, error) {
		return slice, nil
	})

	result, err := identity(context.Background(), initial, lg)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !result.Equal(initial) {
		t.Error("Expected state unchanged")
	}
	if lg.Len() != 0 {
		t.Errorf("Expected no events for an unchanged slice, got %d", lg.Len())
	}
}

func TestFocus_ErrorLeavesStateUntouched(t *testing.T) {
	lg := ledger.New(nil)
	initial := state.New(map[string]any{"user": map[string]any{"name": "ada"}})
	boom := errors.New("boom")

	failing := workflows.Focus(lens.Path("user", "name"), func(ctx context.Context, slice any, lg *ledger.Ledger) (any, error) {
		return nil, boom
	})

	result, err := failing(context.Background(), initial, lg)
	if !errors.Is(err, boom) {
		t.Fatalf("Expected the inner error, got: %v", err)
	}
	if !result.Equal(initial) {
		t.Error("Expected the input state on error")
	}
	if lg.Len() != 0 {
		t.Errorf("Expected no events on error, got %d", lg.Len())
	}
}

func TestFocus_InnerMutationCannotReachState(t *testing.T) {
	lg := ledger.New(nil)
	initial := state.New(map[string]any{"items": []any{"a", "b"}})

	mutator := workflows.Focus(lens.Path("items"), func(ctx context.Context, slice any, lg *ledger.Ledger) (any, error) {
		slice.([]any)[0] = "mutated"
		return slice, nil
	})

	result, err := mutator(context.Background(), initial, lg)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	// The mutation lands in the result through the lens write-back, but the
	// input state is untouched.
	items, _ := initial.Get("items")
	if items.([]any)[0] != "a" {
		t.Error("Expected the input state to be isolated from inner mutation")
	}
	got, _ := lens.Path("items", 0).Get(result)
	if got != "mutated" {
		t.Errorf("Expected the returned slice to be written back, got %v", got)
	}
}

func TestAgent_BracketsWorkflow(t *testing.T) {
	lg := ledger.New(nil)
	initial := state.New(map[string]any{"value": 1})

	inner := workflows.Action("work", func(ctx context.Context, s state.State) (state.State, error) {
		return s.Set("value", 2), nil
	})

	final, err := workflows.Agent("ingest", inner)(context.Background(), initial, lg)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	events := lg.Events()
	if len(events) != 3 {
		t.Fatalf("Expected start, work, stop events, got %d", len(events))
	}
	if events[0].Name != "start:ingest" {
		t.Errorf("Expected start:ingest first, got %s", events[0].Name)
	}
	if events[1].Name != "work" {
		t.Errorf("Expected work in the middle, got %s", events[1].Name)
	}
	if events[2].Name != "stop:ingest" {
		t.Errorf("Expected stop:ingest last, got %s", events[2].Name)
	}

	if events[0].BeforeHash != initial.Hash() || events[0].AfterHash != initial.Hash() {
		t.Error("Expected the start event to carry the entry hash on both sides")
	}
	if events[2].BeforeHash != initial.Hash() || events[2].AfterHash != final.Hash() {
		t.Error("Expected the stop event to span entry and final hashes")
	}
}

func TestAgent_ErrorSkipsStopEvent(t *testing.T) {
	lg := ledger.New(nil)
	boom := errors.New("boom")

	failing := func(ctx context.Context, s state.State, lg *ledger.Ledger) (state.State, error) {
		return s, boom
	}

	_, err := workflows.Agent("doomed", failing)(context.Background(), state.New(nil), lg)
	if !errors.Is(err, boom) {
		t.Fatalf("Expected the workflow error, got: %v", err)
	}

	events := lg.Events()
	if len(events) != 1 {
		t.Fatalf("Expected only the start event, got %d", len(events))
	}
	if events[0].Name != "start:doomed" {
		t.Errorf("Expected start:doomed, got %s", events[0].Name)
	}
}
