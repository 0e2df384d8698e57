package observability

import "context"

// MultiObserver tees each event to every observer in the slice, in order.
// Nil entries are skipped at dispatch time, so a MultiObserver assembled
// from optional backends needs no filtering by the caller.
type MultiObserver []Observer

// NewMultiObserver combines observers into a single fan-out Observer.
func NewMultiObserver(observers ...Observer) MultiObserver {
	return MultiObserver(observers)
}

func (m MultiObserver) OnEvent(ctx context.Context, event Event) {
	for _, obs := range m {
		if obs == nil {
			continue
		}
		obs.OnEvent(ctx, event)
	}
}
