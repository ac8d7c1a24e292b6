package multi

import "fmt"

// placeholder stands in for Multi markers inside copied argument trees, so
// that a copy never holds a live marker.
const placeholder = "X"

// Multi marks a position in a request's arguments that takes one of several
// candidate values. The engine reads it, never mutates it; the same Multi
// can be reused across requests.
type Multi struct {
	Values []any
}

// New builds a Multi from the given candidate values.
func New(values ...any) *Multi {
	return &Multi{Values: values}
}

// Of builds a Multi from a slice of any element type.
func Of[T any](values []T) *Multi {
	converted := make([]any, len(values))
	for i, value := range values {
		converted[i] = value
	}
	return &Multi{Values: converted}
}

func (m *Multi) String() string {
	return fmt.Sprintf("Multi(%d values)", len(m.Values))
}
