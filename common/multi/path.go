package multi

import (
	"fmt"
	"reflect"
	"strings"
)

// Path locates a value inside a nested argument tree. Each step is either a
// map key (string) or a sequence index (int).
type Path []any

func (p Path) child(step any) Path {
	next := make(Path, len(p)+1)
	copy(next, p)
	next[len(p)] = step
	return next
}

func (p Path) String() string {
	steps := make([]string, len(p))
	for i, step := range p {
		steps[i] = fmt.Sprintf("%v", step)
	}
	return strings.Join(steps, ".")
}

// Binding associates a Path with the value substituted there.
type Binding struct {
	Path  Path
	Value any
}

// Substitution is one combination of the cartesian expansion: the value
// chosen for every discovered Multi, in discovery order. It is attached as
// the tag of the request it produced, and feeding it back to Apply rebuilds
// that request's arguments.
type Substitution []Binding

// Value returns the value bound at the path with the given display form,
// e.g. "params.id".
func (s Substitution) Value(path string) (any, bool) {
	for _, binding := range s {
		if binding.Path.String() == path {
			return binding.Value, true
		}
	}
	return nil, false
}

// Equal reports whether both substitutions carry the same bindings in the
// same order.
func (s Substitution) Equal(other Substitution) bool {
	return reflect.DeepEqual(s, other)
}

func (s Substitution) String() string {
	parts := make([]string, len(s))
	for i, binding := range s {
		parts[i] = fmt.Sprintf("%s=%v", binding.Path, binding.Value)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// TypeMismatchError signals that a path step does not fit the node it
// addresses, e.g. an index step on a map or a path through a scalar.
type TypeMismatchError struct {
	Path Path
	Node any
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("path %q does not fit node of type %T", e.Path.String(), e.Node)
}
