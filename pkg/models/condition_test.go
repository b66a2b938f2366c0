package models_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pathwave/journey/pkg/models"
)

func TestEvaluate_Equals(t *testing.T) {
	t.Parallel()

	context := map[string]any{
		"risk_profile": "conservative",
		"age":          float64(42),
		"active":       true,
	}

	tests := []struct {
		name     string
		field    string
		operator models.Operator
		value    any
		expected bool
	}{
		{"string match", "risk_profile", models.OperatorEquals, "conservative", true},
		{"string mismatch", "risk_profile", models.OperatorEquals, "aggressive", false},
		{"case sensitive", "risk_profile", models.OperatorEquals, "Conservative", false},
		{"bool match", "active", models.OperatorEquals, true, true},
		{"number match", "age", models.OperatorEquals, 42, true},
		{"number as string", "age", models.OperatorEquals, "42", true},
		{"not equals on match", "risk_profile", models.OperatorNotEquals, "conservative", false},
		{"not equals on mismatch", "risk_profile", models.OperatorNotEquals, "aggressive", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result := models.Evaluate(context, tt.field, tt.operator, tt.value)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestEvaluate_DeepEquality(t *testing.T) {
	t.Parallel()

	context := map[string]any{
		"tags": []any{"a", "b"},
		"address": map[string]any{
			"city": "Lisbon",
			"geo":  map[string]any{"lat": float64(38.7), "lng": float64(-9.1)},
		},
		"scores": []any{float64(1), float64(2)},
	}

	tests := []struct {
		name     string
		field    string
		operator models.Operator
		value    any
		expected bool
	}{
		{"equal lists", "tags", models.OperatorEquals, []any{"a", "b"}, true},
		{"equal lists via typed slice", "tags", models.OperatorEquals, []string{"a", "b"}, true},
		{"list order matters", "tags", models.OperatorEquals, []any{"b", "a"}, false},
		{"shorter list", "tags", models.OperatorEquals, []any{"a"}, false},
		{"not equals on equal list", "tags", models.OperatorNotEquals, []any{"a", "b"}, false},
		{"not equals on different list", "tags", models.OperatorNotEquals, []any{"a", "c"}, true},
		{"equal nested object", "address", models.OperatorEquals, map[string]any{
			"city": "Lisbon",
			"geo":  map[string]any{"lat": 38.7, "lng": -9.1},
		}, true},
		{"object value differs", "address", models.OperatorEquals, map[string]any{
			"city": "Lisbon",
			"geo":  map[string]any{"lat": 38.7, "lng": 0.0},
		}, false},
		{"not equals on equal object", "address", models.OperatorNotEquals, map[string]any{
			"city": "Lisbon",
			"geo":  map[string]any{"lat": 38.7, "lng": -9.1},
		}, false},
		{"numeric elements coerce from ints", "scores", models.OperatorEquals, []any{1, 2}, true},
		{"list against scalar", "tags", models.OperatorEquals, "a", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result := models.Evaluate(context, tt.field, tt.operator, tt.value)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestEvaluate_NumericComparison(t *testing.T) {
	t.Parallel()

	context := map[string]any{
		"score":   float64(7.5),
		"count":   "12",
		"level":   json.Number("3"),
		"comment": "not a number",
	}

	tests := []struct {
		name     string
		field    string
		operator models.Operator
		value    any
		expected bool
	}{
		{"greater than true", "score", models.OperatorGreaterThan, 5, true},
		{"greater than false", "score", models.OperatorGreaterThan, 10, false},
		{"greater than equal is false", "score", models.OperatorGreaterThan, 7.5, false},
		{"less than true", "score", models.OperatorLessThan, 10, true},
		{"string-encoded field", "count", models.OperatorGreaterThan, 10, true},
		{"json number field", "level", models.OperatorLessThan, "5", true},
		{"non-numeric field is false", "comment", models.OperatorGreaterThan, 1, false},
		{"non-numeric value is false", "score", models.OperatorLessThan, "high", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result := models.Evaluate(context, tt.field, tt.operator, tt.value)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestEvaluate_Contains(t *testing.T) {
	t.Parallel()

	context := map[string]any{
		"tags":     []any{"vip", "beta"},
		"channels": []string{"email", "sms"},
		"bio":      "long-time customer",
		"scores":   []any{float64(1), float64(2)},
	}

	tests := []struct {
		name     string
		field    string
		operator models.Operator
		value    any
		expected bool
	}{
		{"slice contains", "tags", models.OperatorContains, "vip", true},
		{"slice missing", "tags", models.OperatorContains, "basic", false},
		{"string slice contains", "channels", models.OperatorContains, "sms", true},
		{"substring", "bio", models.OperatorContains, "customer", true},
		{"substring missing", "bio", models.OperatorContains, "new", false},
		{"numeric member coerced", "scores", models.OperatorContains, "2", true},
		{"not contains on member", "tags", models.OperatorNotContains, "vip", false},
		{"not contains on missing member", "tags", models.OperatorNotContains, "basic", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result := models.Evaluate(context, tt.field, tt.operator, tt.value)
			assert.Equal(t, tt.expected, result)
		})
	}
}

// An absent field never satisfies a positive operator but always satisfies
// the negated ones. Evaluation is total: no input panics or errors.
func TestEvaluate_AbsentField(t *testing.T) {
	t.Parallel()

	context := map[string]any{"profile": map[string]any{"name": "Sam"}}

	positive := []models.Operator{
		models.OperatorEquals,
		models.OperatorGreaterThan,
		models.OperatorLessThan,
		models.OperatorContains,
	}
	for _, operator := range positive {
		assert.False(t, models.Evaluate(context, "missing", operator, "x"), string(operator))
	}

	assert.True(t, models.Evaluate(context, "missing", models.OperatorNotEquals, "x"))
	assert.True(t, models.Evaluate(context, "missing", models.OperatorNotContains, "x"))

	// Paths through non-map values resolve to absent.
	assert.True(t, models.Evaluate(context, "profile.name.first", models.OperatorNotEquals, "Sam"))
	assert.False(t, models.Evaluate(context, "profile.name.first", models.OperatorEquals, "Sam"))
}

func TestEvaluate_NestedPath(t *testing.T) {
	t.Parallel()

	context := map[string]any{
		"personality_traits": map[string]any{
			"openness": float64(0.7),
		},
	}

	assert.True(t, models.Evaluate(context, "personality_traits.openness", models.OperatorGreaterThan, 0.5))
	assert.False(t, models.Evaluate(context, "personality_traits.openness", models.OperatorGreaterThan, 0.9))
}

func TestEvaluate_UnknownOperator(t *testing.T) {
	t.Parallel()

	context := map[string]any{"a": "b"}

	assert.False(t, models.Evaluate(context, "a", models.Operator("matches"), "b"))
}
