// Package observability carries the engine's event stream. Subsystems emit
// typed events through an Observer rather than logging directly, so one
// configuration decides whether a run is traced to slog, fanned out to
// several backends, or dropped. Severity numbers sit on the OpenTelemetry
// SeverityNumber scale, so an event forwarded to an OTel collector keeps
// its level unchanged.
package observability

import (
	"context"
	"log/slog"
	"time"
)

// Level is an event severity on the OTel SeverityNumber scale. Each
// constant sits at the bottom of its band.
type Level int

const (
	LevelVerbose Level = 5  // DEBUG band (5-8)
	LevelInfo    Level = 9  // INFO band (9-12)
	LevelWarning Level = 13 // WARN band (13-16)
	LevelError   Level = 17 // ERROR band (17-20)
)

// String returns the OTel severity text for the band containing l.
func (l Level) String() string {
	switch {
	case l <= 4:
		return "TRACE"
	case l <= 8:
		return "DEBUG"
	case l <= 12:
		return "INFO"
	case l <= 16:
		return "WARN"
	case l <= 20:
		return "ERROR"
	default:
		return "FATAL"
	}
}

// SlogLevel converts l to the nearest slog.Level for structured log output.
func (l Level) SlogLevel() slog.Level {
	switch {
	case l <= 8:
		return slog.LevelDebug
	case l <= 12:
		return slog.LevelInfo
	case l <= 16:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// EventType identifies the kind of event. Each package defines its own
// constants using this type (e.g. "run.start", "tool.duplicate").
type EventType string

// Event is one entry in the engine's event stream. Fields map onto OTel
// LogRecord fields: Type→EventName, Level→SeverityNumber,
// Timestamp→Timestamp, Source→InstrumentationScope, Data→Attributes.
type Event struct {
	Type      EventType
	Level     Level
	Timestamp time.Time
	Source    string
	Data      map[string]any
}

// Observer receives events from engine subsystems for logging, tracing, or
// metrics.
type Observer interface {
	OnEvent(ctx context.Context, event Event)
}

// Func adapts a plain function to the Observer interface, the same way
// http.HandlerFunc adapts handlers.
type Func func(ctx context.Context, event Event)

func (f Func) OnEvent(ctx context.Context, event Event) { f(ctx, event) }

// NoOpObserver discards every event. It backs the "noop" registry entry and
// stands in wherever a component requires an Observer but none was
// configured.
type NoOpObserver struct{}

func (NoOpObserver) OnEvent(context.Context, Event) {}

// Emit stamps a timestamp, builds the Event, and dispatches it. A nil
// observer is a no-op, so call sites never need to nil-check.
func Emit(ctx context.Context, obs Observer, typ EventType, level Level, source string, data map[string]any) {
	if obs == nil {
		return
	}
	obs.OnEvent(ctx, Event{
		Type:      typ,
		Level:     level,
		Timestamp: time.Now(),
		Source:    source,
		Data:      data,
	})
}
