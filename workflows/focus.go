package workflows

import (
	"context"
	"log/slog"

	"github.com/ledgerflow/ledgerflow/canonical"
	"github.com/ledgerflow/ledgerflow/ledger"
	"github.com/ledgerflow/ledgerflow/lens"
	"github.com/ledgerflow/ledgerflow/state"
)

// SliceStep transforms the value focused by a lens. It receives the slice of
// state at the lens path and returns its replacement.
type SliceStep func(ctx context.Context, slice any, lg *ledger.Ledger) (any, error)

// Focus lifts a step operating on a lens-focused slice into a step operating
// on the whole state. The inner step runs against the focused value; if the
// result differs from the input slice, the new slice is written back
// immutably through the lens and a "lens" event with the path is recorded.
// An unchanged slice returns the state as-is without a redundant event.
//
// As a development safety net, the input slice is snapshotted before the
// inner step runs; if the original slice changed afterwards, the inner step
// mutated it in place and a non-fatal warning is logged. Panics at
// construction if inner is nil.
func Focus(l lens.Lens, inner SliceStep) Step {
	if inner == nil {
		panic("workflows: focus inner step is nil")
	}

	return func(ctx context.Context, s state.State, lg *ledger.Ledger) (state.State, error) {
		slice, _ := l.Get(s)
		pristineHash := canonical.Hash(slice)

		// Inner receives a deep copy so an in-place mutation can never reach
		// into the surrounding state tree; the copy is re-hashed afterwards
		// to surface the mutation as a diagnostic.
		working := state.CopyValue(slice)
		result, err := inner(ctx, working, lg)
		if err != nil {
			return s, err
		}

		if canonical.Hash(working) != pristineHash {
			slog.WarnContext(ctx, "focused step mutated its input slice in place",
				"path", l.String())
		}

		if canonical.Hash(result) == pristineHash {
			return s, nil
		}

		before := s.Hash()
		next := l.Set(result, s)
		ev := ledger.NewEvent("lens", nil, before, next.Hash()).
			WithMeta(map[string]any{"path": l.String()})
		if _, err := lg.Record(ctx, ev, next); err != nil {
			return s, err
		}
		return next, nil
	}
}
