package models

import (
	"encoding/json"
	"reflect"
	"strconv"
	"strings"
)

// Operator is a comparison applied by condition nodes and behavioral
// triggers.
type Operator string

const (
	OperatorEquals      Operator = "equals"
	OperatorNotEquals   Operator = "not_equals"
	OperatorGreaterThan Operator = "greater_than"
	OperatorLessThan    Operator = "less_than"
	OperatorContains    Operator = "contains"
	OperatorNotContains Operator = "not_contains"
)

// Evaluate resolves fieldPath against the context and applies the operator.
// It is total: malformed paths, absent fields, unknown operators and type
// mismatches all degrade to false (or true for the negated operators on
// absence), never an error. The interpreter relies on this to always pick a
// deterministic branch.
//
// Absence semantics: a missing field satisfies not_equals and not_contains
// and nothing else.
func Evaluate(context map[string]any, fieldPath string, operator Operator, value any) bool {
	resolved, present := resolvePath(context, fieldPath)

	if !present {
		return operator == OperatorNotEquals || operator == OperatorNotContains
	}

	switch operator {
	case OperatorEquals:
		return looseEqual(resolved, value)
	case OperatorNotEquals:
		return !looseEqual(resolved, value)
	case OperatorGreaterThan:
		left, leftOK := toNumber(resolved)
		right, rightOK := toNumber(value)

		return leftOK && rightOK && left > right
	case OperatorLessThan:
		left, leftOK := toNumber(resolved)
		right, rightOK := toNumber(value)

		return leftOK && rightOK && left < right
	case OperatorContains:
		return contains(resolved, value)
	case OperatorNotContains:
		return !contains(resolved, value)
	default:
		return false
	}
}

// resolvePath walks a dot-separated path through nested maps. Missing
// intermediate keys resolve to absent.
func resolvePath(context map[string]any, fieldPath string) (any, bool) {
	if fieldPath == "" {
		return nil, false
	}

	var current any = context

	for _, segment := range strings.Split(fieldPath, ".") {
		asMap, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		current, ok = asMap[segment]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

// looseEqual compares values with numeric coercion: numbers compare
// numerically even when one side is string-encoded; strings compare
// case-sensitively. Lists and objects compare by deep value equality after
// canonicalizing both sides to the shapes a JSON round-trip produces.
func looseEqual(left, right any) bool {
	if leftNum, ok := toNumber(left); ok {
		if rightNum, ok := toNumber(right); ok {
			return leftNum == rightNum
		}
	}

	return reflect.DeepEqual(canonicalize(left), canonicalize(right))
}

// canonicalize rewrites a value the way encoding/json would decode it:
// numbers become float64, slices become []any, string-keyed maps become
// map[string]any. Strings stay strings so "7" and 7 only compare equal at
// the top level, where the numeric coercion pass runs first.
func canonicalize(value any) any {
	switch value.(type) {
	case nil, bool, string, float64:
		return value
	}

	if number, ok := toNumber(value); ok {
		return number
	}

	reflected := reflect.ValueOf(value)

	switch reflected.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]any, reflected.Len())
		for i := range items {
			items[i] = canonicalize(reflected.Index(i).Interface())
		}

		return items
	case reflect.Map:
		if reflected.Type().Key().Kind() != reflect.String {
			return value
		}

		entries := make(map[string]any, reflected.Len())
		for _, key := range reflected.MapKeys() {
			entries[key.String()] = canonicalize(reflected.MapIndex(key).Interface())
		}

		return entries
	default:
		return value
	}
}

// toNumber coerces numeric types and numeric strings to float64.
func toNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		parsed, err := v.Float64()

		return parsed, err == nil
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)

		return parsed, err == nil
	default:
		return 0, false
	}
}

// contains is a membership test on lists and a substring test on strings.
// Anything else is false.
func contains(resolved, value any) bool {
	switch v := resolved.(type) {
	case []any:
		for _, item := range v {
			if looseEqual(item, value) {
				return true
			}
		}

		return false
	case []string:
		needle, ok := value.(string)
		if !ok {
			return false
		}

		for _, item := range v {
			if item == needle {
				return true
			}
		}

		return false
	case string:
		needle, ok := value.(string)
		if !ok {
			return false
		}

		return strings.Contains(v, needle)
	default:
		return false
	}
}
