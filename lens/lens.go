// Package lens provides pure path-based accessors into nested immutable
// state. A Lens is stateless and reusable: Get walks a path, Set rebuilds
// every container from the root to the leaf so no ancestor on the path is
// ever aliased or mutated.
package lens

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ledgerflow/ledgerflow/state"
)

// Lens focuses a path into a nested state tree. Segments are string map keys
// or int slice indices.
type Lens struct {
	segments []any
}

// Path constructs a Lens from path segments. Each segment must be a string
// (map key) or an int (slice index); anything else panics, since a malformed
// path is a programmer error.
func Path(segments ...any) Lens {
	for i, seg := range segments {
		switch v := seg.(type) {
		case string:
		case int:
			if v < 0 {
				panic(fmt.Sprintf("lens: segment %d is a negative index: %d", i, v))
			}
		default:
			panic(fmt.Sprintf("lens: segment %d must be string or int, got %T", i, seg))
		}
	}
	return Lens{segments: segments}
}

// String renders the dotted path, e.g. "users.0.name". Used in event
// metadata and guard errors.
func (l Lens) String() string {
	parts := make([]string, len(l.segments))
	for i, seg := range l.segments {
		switch s := seg.(type) {
		case string:
			parts[i] = s
		case int:
			parts[i] = strconv.Itoa(s)
		}
	}
	return strings.Join(parts, ".")
}

// Get walks the path through s, returning the focused value. Returns
// (nil, false) if any segment is absent or of the wrong container kind.
func (l Lens) Get(s state.State) (any, bool) {
	var current any = s.Data
	for _, seg := range l.segments {
		switch key := seg.(type) {
		case string:
			m, ok := current.(map[string]any)
			if !ok {
				return nil, false
			}
			current, ok = m[key]
			if !ok {
				return nil, false
			}
		case int:
			arr, ok := current.([]any)
			if !ok || key < 0 || key >= len(arr) {
				return nil, false
			}
			current = arr[key]
		}
	}
	return current, true
}

// Set returns a new State in which the focused path holds value. Every
// container on the path is rebuilt; siblings off the path are shared
// structurally. Missing intermediate containers are created as maps for
// string segments and as slices for int segments.
func (l Lens) Set(value any, s state.State) state.State {
	root := setIn(s.Data, l.segments, value)
	m, ok := root.(map[string]any)
	if !ok {
		// An empty path with a map value replaces the whole tree. Any other
		// non-map root would break the top-level invariant, so s is returned
		// unchanged.
		if len(l.segments) == 0 {
			if rm, isMap := value.(map[string]any); isMap {
				return state.New(rm)
			}
		}
		return s
	}
	return state.State{Data: m}
}

func setIn(container any, segments []any, value any) any {
	if len(segments) == 0 {
		return state.CopyValue(value)
	}

	switch key := segments[0].(type) {
	case string:
		var next map[string]any
		if m, ok := container.(map[string]any); ok {
			next = make(map[string]any, len(m)+1)
			for k, v := range m {
				next[k] = v
			}
		} else {
			next = make(map[string]any, 1)
		}
		next[key] = setIn(next[key], segments[1:], value)
		return next
	case int:
		var next []any
		if arr, ok := container.([]any); ok {
			if key < len(arr) {
				next = make([]any, len(arr))
			} else {
				next = make([]any, key+1)
			}
			copy(next, arr)
		} else {
			next = make([]any, key+1)
		}
		var child any
		if key >= 0 && key < len(next) {
			child = next[key]
		}
		next[key] = setIn(child, segments[1:], value)
		return next
	default:
		return container
	}
}
