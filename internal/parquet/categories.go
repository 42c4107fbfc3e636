package parquet

import (
	"slices"

	"github.com/huangsam/cfpscan/schema"
)

// sortedCategories orders the keys of counts with the built-in categories
// first and custom ones alphabetically after them.
func sortedCategories(counts schema.MovementCounts) []schema.MovementCategory {
	var builtin, custom []schema.MovementCategory
	for _, c := range schema.BuiltinCategories {
		if _, ok := counts[c]; ok {
			builtin = append(builtin, c)
		}
	}
	for c := range counts {
		if !slices.Contains(schema.BuiltinCategories, c) {
			custom = append(custom, c)
		}
	}
	slices.Sort(custom)
	return append(builtin, custom...)
}
