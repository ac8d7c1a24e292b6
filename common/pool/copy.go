package pool

// copyArgs deep-copies request arguments, keeping nil nil.
func copyArgs(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}
	return copyTree(args).(map[string]any)
}

// copyTree deep-copies a request argument tree. Maps and sequences are
// duplicated recursively; every other value is kept as-is, so leaves the
// caller mutates in place are still shared.
func copyTree(node any) any {
	switch typed := node.(type) {
	case map[string]any:
		copied := make(map[string]any, len(typed))
		for key, value := range typed {
			copied[key] = copyTree(value)
		}
		return copied
	case []any:
		copied := make([]any, len(typed))
		for i, value := range typed {
			copied[i] = copyTree(value)
		}
		return copied
	default:
		return node
	}
}
