package tools

import (
	"errors"
	"fmt"
)

// ErrUnregistered is returned when a tool name has no registration.
var ErrUnregistered = errors.New("unregistered tool")

// ValidationError reports a tool-argument schema failure. It is surfaced
// before the tool implementation runs.
type ValidationError struct {
	Tool string
	Err  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid arguments for tool %s: %v", e.Tool, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
