package model_selection

import (
	"sort"
)

// ParameterGrid expands a grid into every combination of its values.
// Keys are iterated in sorted order and the last key varies fastest, so
// {"a": {1, 2}, "b": {3, 4}} yields (1,3), (1,4), (2,3), (2,4). An empty
// grid yields one empty candidate; a key with no values yields none.
func ParameterGrid(grid map[string][]interface{}) []map[string]interface{} {
	keys := make([]string, 0, len(grid))
	for k := range grid {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	candidates := []map[string]interface{}{{}}
	for _, key := range keys {
		values := grid[key]
		next := make([]map[string]interface{}, 0, len(candidates)*len(values))
		for _, base := range candidates {
			for _, v := range values {
				c := make(map[string]interface{}, len(base)+1)
				for k, bv := range base {
					c[k] = bv
				}
				c[key] = v
				next = append(next, c)
			}
		}
		candidates = next
	}
	return candidates
}

// ParamNames returns the sorted union of keys in candidates.
func ParamNames(candidates []map[string]interface{}) []string {
	seen := make(map[string]struct{})
	for _, c := range candidates {
		for k := range c {
			seen[k] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for k := range seen {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
