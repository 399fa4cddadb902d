package model_selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParameterGridOrder(t *testing.T) {
	grid := map[string][]interface{}{
		"max_depth":     {3, 6},
		"learning_rate": {0.1, 0.3},
	}
	got := ParameterGrid(grid)
	want := []map[string]interface{}{
		{"learning_rate": 0.1, "max_depth": 3},
		{"learning_rate": 0.1, "max_depth": 6},
		{"learning_rate": 0.3, "max_depth": 3},
		{"learning_rate": 0.3, "max_depth": 6},
	}
	assert.Equal(t, want, got)
	assert.Equal(t, []string{"learning_rate", "max_depth"}, ParamNames(got))
}

func TestParameterGridEdgeCases(t *testing.T) {
	assert.Equal(t, []map[string]interface{}{{}}, ParameterGrid(nil))
	assert.Empty(t, ParameterGrid(map[string][]interface{}{"a": {1}, "b": {}}))
	assert.Len(t, ParameterGrid(map[string][]interface{}{"a": {1, 2, 3}, "b": {1, 2}, "c": {1}}), 6)
}
