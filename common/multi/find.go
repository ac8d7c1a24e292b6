package multi

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Location is a Multi found inside an argument tree and the path leading
// to it.
type Location struct {
	Path  Path
	Multi *Multi
}

// Find walks an argument tree depth-first and returns every Multi in it,
// with maps walked in sorted key order and sequences by index. The walk
// order is deterministic, so the same tree always yields the same location
// list; this is what makes tags reproducible.
func Find(args map[string]any) []Location {
	var locations []Location
	findValue(args, nil, &locations)
	return locations
}

func findValue(node any, path Path, locations *[]Location) {
	switch typed := node.(type) {
	case *Multi:
		*locations = append(*locations, Location{Path: path, Multi: typed})
	case map[string]any:
		keys := maps.Keys(typed)
		slices.Sort(keys)
		for _, key := range keys {
			findValue(typed[key], path.child(key), locations)
		}
	case []any:
		for i, value := range typed {
			findValue(value, path.child(i), locations)
		}
	}
}

// Copy deep-copies an argument tree, replacing every Multi with a
// placeholder. Scalars are kept as-is.
func Copy(node any) any {
	switch typed := node.(type) {
	case *Multi:
		return placeholder
	case map[string]any:
		copied := make(map[string]any, len(typed))
		for key, value := range typed {
			copied[key] = Copy(value)
		}
		return copied
	case []any:
		copied := make([]any, len(typed))
		for i, value := range typed {
			copied[i] = Copy(value)
		}
		return copied
	default:
		return node
	}
}

// Apply rebuilds the arguments for one combination: it copies the tree and
// overwrites the value at every bound path. Applying a result's tag to the
// original arguments reproduces the exact arguments that were submitted.
func Apply(args map[string]any, substitution Substitution) (map[string]any, error) {
	copied := Copy(args).(map[string]any)
	for _, binding := range substitution {
		if err := set(copied, binding.Path, binding.Value); err != nil {
			return nil, err
		}
	}
	return copied, nil
}

func set(root map[string]any, path Path, value any) error {
	if len(path) == 0 {
		return &TypeMismatchError{Path: path, Node: root}
	}
	var parent any = root
	for i, step := range path[:len(path)-1] {
		next, err := stepInto(parent, step, path[:i+1])
		if err != nil {
			return err
		}
		parent = next
	}
	last := path[len(path)-1]
	switch typed := parent.(type) {
	case map[string]any:
		key, ok := last.(string)
		if !ok {
			return &TypeMismatchError{Path: path, Node: parent}
		}
		typed[key] = value
	case []any:
		index, ok := last.(int)
		if !ok || index < 0 || index >= len(typed) {
			return &TypeMismatchError{Path: path, Node: parent}
		}
		typed[index] = value
	default:
		return &TypeMismatchError{Path: path, Node: parent}
	}
	return nil
}

func stepInto(node any, step any, walked Path) (any, error) {
	switch typed := node.(type) {
	case map[string]any:
		key, ok := step.(string)
		if !ok {
			return nil, &TypeMismatchError{Path: walked, Node: node}
		}
		child, ok := typed[key]
		if !ok {
			return nil, &TypeMismatchError{Path: walked, Node: node}
		}
		return child, nil
	case []any:
		index, ok := step.(int)
		if !ok || index < 0 || index >= len(typed) {
			return nil, &TypeMismatchError{Path: walked, Node: node}
		}
		return typed[index], nil
	default:
		return nil, &TypeMismatchError{Path: walked, Node: node}
	}
}
