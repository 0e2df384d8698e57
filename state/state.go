// Package state implements the immutable state value threaded through
// workflow steps. State wraps a JSON value tree; every operation returns a
// new State, and Clone copies the whole tree so parallel branches never share
// mutable containers.
package state

import (
	"github.com/ledgerflow/ledgerflow/canonical"
)

// State is an immutable, application-defined JSON value tree. The zero value
// is an empty state. States are passed by value between steps and are never
// mutated in place by the engine.
type State struct {
	Data map[string]any `json:"data"`
}

// New creates a State seeded from data. The input tree is deep-copied, so
// later mutation of data does not leak into the State.
func New(data map[string]any) State {
	return State{Data: copyTree(data)}
}

// Get retrieves a value by top-level key. Returns the value and true if the
// key exists, nil and false otherwise.
func (s State) Get(key string) (any, bool) {
	val, exists := s.Data[key]
	return val, exists
}

// Set returns a new State with the key-value pair added or updated. The
// original State is unchanged.
func (s State) Set(key string, value any) State {
	next := s.Clone()
	if next.Data == nil {
		next.Data = make(map[string]any)
	}
	next.Data[key] = CopyValue(value)
	return next
}

// Delete returns a new State without the given key.
func (s State) Delete(key string) State {
	next := s.Clone()
	delete(next.Data, key)
	return next
}

// Merge returns a new State combining s with other. Keys from other overwrite
// keys in s (last writer wins). Both inputs are unchanged.
func (s State) Merge(other State) State {
	next := s.Clone()
	if next.Data == nil && len(other.Data) > 0 {
		next.Data = make(map[string]any, len(other.Data))
	}
	for k, v := range other.Data {
		next.Data[k] = CopyValue(v)
	}
	return next
}

// Clone returns an independent deep copy of the State. Modifications to the
// clone's tree never affect the original.
func (s State) Clone() State {
	return State{Data: copyTree(s.Data)}
}

// Hash returns the canonical content digest of the state tree. The zero
// state hashes to canonical.EmptyHash.
func (s State) Hash() string {
	if s.Data == nil {
		return canonical.EmptyHash
	}
	return canonical.Hash(s.Data)
}

// Equal reports whether two states are structurally equal under canonical
// encoding.
func (s State) Equal(other State) bool {
	return s.Hash() == other.Hash()
}

// Len returns the number of top-level keys.
func (s State) Len() int {
	return len(s.Data)
}

// CopyValue deep-copies a JSON value tree. Maps and slices are rebuilt;
// scalars pass through. Values outside the JSON tree types are returned as-is
// since the engine treats them as opaque.
func CopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return copyTree(val)
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = CopyValue(elem)
		}
		return out
	default:
		return v
	}
}

func copyTree(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = CopyValue(v)
	}
	return out
}
