package workflows

import (
	"context"

	"github.com/ledgerflow/ledgerflow/ledger"
	"github.com/ledgerflow/ledgerflow/state"
)

// Agent brackets a composed workflow with audit events: "start:<name>"
// before the workflow runs and "stop:<name>" after, each carrying the
// content hashes of the bracketing states. The bracket never alters the
// workflow's semantics; state and errors pass through untouched. Panics at
// construction if name is empty or workflow is nil.
func Agent(name string, workflow Step) Step {
	if name == "" {
		panic("workflows: agent name is empty")
	}
	if workflow == nil {
		panic("workflows: agent workflow is nil")
	}

	return func(ctx context.Context, s state.State, lg *ledger.Ledger) (state.State, error) {
		entry := s.Hash()
		if _, err := lg.Record(ctx, ledger.NewEvent("start:"+name, nil, entry, entry), s); err != nil {
			return s, err
		}

		final, err := workflow(ctx, s, lg)
		if err != nil {
			return s, err
		}

		if _, err := lg.Record(ctx, ledger.NewEvent("stop:"+name, nil, entry, final.Hash()), final); err != nil {
			return s, err
		}
		return final, nil
	}
}
