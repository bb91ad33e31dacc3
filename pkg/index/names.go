package index

import (
	"strconv"
	"strings"

	"github.com/ajitpratap0/tabular/pkg/pool"
)

// syntheticName returns the placeholder name for a headerless or empty
// column position (1-based)
func syntheticName(pos int) string {
	return pool.InternString("X" + strconv.Itoa(pos))
}

// syntheticNames returns X1..XC
func syntheticNames(cols int) []string {
	names := make([]string, cols)
	for i := range names {
		names[i] = syntheticName(i + 1)
	}
	return names
}

// dedupeNames applies the deterministic repair rule: trim whitespace,
// substitute X{position} for empty names, then suffix every member of a
// duplicate group with ...{position}, positions 1-based within the
// original header.
func dedupeNames(raw []string) []string {
	names := make([]string, len(raw))
	for i, name := range raw {
		name = strings.TrimSpace(name)
		if name == "" {
			name = syntheticName(i + 1)
		}
		names[i] = name
	}

	seen := make(map[string]int, len(names))
	for _, name := range names {
		seen[name]++
	}
	for i, name := range names {
		if seen[name] > 1 {
			names[i] = name + "..." + strconv.Itoa(i+1)
		}
	}
	return names
}
