package multi

// combinations calls fn once per element of the cartesian product of the
// located Multis' values, each combination exactly once. The last location
// varies fastest. No locations means a single call with an empty
// substitution; a Multi without values means no call at all.
func combinations(locations []Location, fn func(Substitution) error) error {
	for _, location := range locations {
		if len(location.Multi.Values) == 0 {
			return nil
		}
	}
	indices := make([]int, len(locations))
	for {
		substitution := make(Substitution, len(locations))
		for i, location := range locations {
			substitution[i] = Binding{Path: location.Path, Value: location.Multi.Values[indices[i]]}
		}
		if err := fn(substitution); err != nil {
			return err
		}
		position := len(locations) - 1
		for ; position >= 0; position-- {
			indices[position]++
			if indices[position] < len(locations[position].Multi.Values) {
				break
			}
			indices[position] = 0
		}
		if position < 0 {
			return nil
		}
	}
}
