package engine

import "github.com/ledgerflow/ledgerflow/observability"

// Engine event types emitted around workflow runs.
const (
	EventRunStart    observability.EventType = "engine.run.start"
	EventRunComplete observability.EventType = "engine.run.complete"
	EventRunError    observability.EventType = "engine.run.error"
)
