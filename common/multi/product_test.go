package multi

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestCombinations(t *testing.T) {
	locations := []Location{
		{Path: Path{"data", "user"}, Multi: New("alice", "bob")},
		{Path: Path{"data", "password"}, Multi: New(1, 2, 3)},
	}
	var seen []Substitution
	err := combinations(locations, func(substitution Substitution) error {
		seen = append(seen, substitution)
		return nil
	})
	require.Nil(t, err, "could not enumerate combinations")
	require.Equal(t, 6, len(seen), "got wrong combination count")

	// the last discovered location varies fastest
	expected := [][2]any{
		{"alice", 1}, {"alice", 2}, {"alice", 3},
		{"bob", 1}, {"bob", 2}, {"bob", 3},
	}
	for i, substitution := range seen {
		require.Equal(t, expected[i][0], substitution[0].Value, "got wrong user at combination %d", i)
		require.Equal(t, expected[i][1], substitution[1].Value, "got wrong password at combination %d", i)
	}
	for i, substitution := range seen {
		for j, other := range seen {
			if i != j {
				require.False(t, substitution.Equal(other), "combination %d duplicated at %d", i, j)
			}
		}
	}
}

func TestCombinationsNoLocations(t *testing.T) {
	var calls int
	err := combinations(nil, func(substitution Substitution) error {
		calls++
		require.Equal(t, 0, len(substitution), "substitution should be empty")
		return nil
	})
	require.Nil(t, err, "could not enumerate combinations")
	require.Equal(t, 1, calls, "expected a single empty combination")
}

func TestCombinationsEmptyMulti(t *testing.T) {
	locations := []Location{
		{Path: Path{"a"}, Multi: New(1, 2)},
		{Path: Path{"b"}, Multi: New()},
	}
	var calls int
	err := combinations(locations, func(Substitution) error {
		calls++
		return nil
	})
	require.Nil(t, err, "could not enumerate combinations")
	require.Equal(t, 0, calls, "a multi without values must produce no combinations")
}

func TestCombinationsStopsOnError(t *testing.T) {
	locations := []Location{{Path: Path{"a"}, Multi: New(1, 2, 3)}}
	boom := errors.New("boom")
	var calls int
	err := combinations(locations, func(Substitution) error {
		calls++
		if calls == 2 {
			return boom
		}
		return nil
	})
	require.Equal(t, boom, err, "callback error must propagate")
	require.Equal(t, 2, calls, "enumeration must stop on error")
}
