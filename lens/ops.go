package lens

import (
	"fmt"

	"github.com/ledgerflow/ledgerflow/state"
)

// Push returns a new State with item appended to the slice at the focused
// path. An absent target is treated as an empty slice; a present non-slice
// target is an error.
func (l Lens) Push(item any, s state.State) (state.State, error) {
	target, ok := l.Get(s)
	if !ok {
		target = []any{}
	}

	arr, isArr := target.([]any)
	if !isArr {
		return s, fmt.Errorf("cannot push to non-array at path: %s", l)
	}

	next := make([]any, len(arr), len(arr)+1)
	copy(next, arr)
	next = append(next, state.CopyValue(item))
	return l.Set(next, s), nil
}

// Remove returns a new State with the element at index removed from the
// slice at the focused path. A non-slice target or an out-of-range index is
// an error.
func (l Lens) Remove(index int, s state.State) (state.State, error) {
	target, ok := l.Get(s)
	if !ok {
		return s, fmt.Errorf("cannot remove from non-array at path: %s", l)
	}

	arr, isArr := target.([]any)
	if !isArr {
		return s, fmt.Errorf("cannot remove from non-array at path: %s", l)
	}
	if index < 0 || index >= len(arr) {
		return s, fmt.Errorf("remove index %d out of range at path: %s", index, l)
	}

	next := make([]any, 0, len(arr)-1)
	next = append(next, arr[:index]...)
	next = append(next, arr[index+1:]...)
	return l.Set(next, s), nil
}
