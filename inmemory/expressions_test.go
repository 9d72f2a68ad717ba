package inmemory

import (
	"testing"

	"github.com/letmevibethatforyou/bookmarkx"
)

func TestExpressionEvaluation(t *testing.T) {
	doc := Document{
		ID: "b1",
		Fields: map[string]interface{}{
			"id":            "b1",
			"userId":        "u1",
			"title":         "Kafka internals",
			"tags":          []string{"streaming", "jvm"},
			"createdAtUnix": int64(1700000000),
		},
	}

	tests := map[string]struct {
		expr     bookmarkx.Expression
		expected bool
	}{
		"eq_match": {
			expr:     bookmarkx.Eq("userId", "u1"),
			expected: true,
		},
		"eq_no_match": {
			expr:     bookmarkx.Eq("userId", "u2"),
			expected: false,
		},
		"eq_missing_field_nil": {
			expr:     bookmarkx.Eq("note", nil),
			expected: true,
		},
		"eq_list_element": {
			expr:     bookmarkx.Eq("tags", "jvm"),
			expected: true,
		},
		"eq_numeric": {
			expr:     bookmarkx.Eq("createdAtUnix", 1700000000),
			expected: true,
		},
		"ne_match": {
			expr:     bookmarkx.Ne("userId", "u2"),
			expected: true,
		},
		"ne_missing_field": {
			expr:     bookmarkx.Ne("note", "x"),
			expected: true,
		},
		"in_match": {
			expr:     bookmarkx.In("id", "b0", "b1"),
			expected: true,
		},
		"in_no_match": {
			expr:     bookmarkx.In("id", "b2", "b3"),
			expected: false,
		},
		"in_empty_values": {
			expr:     bookmarkx.In("id"),
			expected: false,
		},
		"in_missing_field": {
			expr:     bookmarkx.In("listId", "l1"),
			expected: false,
		},
		"and_all_true": {
			expr:     bookmarkx.And(bookmarkx.Eq("userId", "u1"), bookmarkx.In("id", "b1")),
			expected: true,
		},
		"and_one_false": {
			expr:     bookmarkx.And(bookmarkx.Eq("userId", "u1"), bookmarkx.In("id", "b2")),
			expected: false,
		},
		"or_one_true": {
			expr:     bookmarkx.Or(bookmarkx.Eq("userId", "u2"), bookmarkx.Eq("tags", "streaming")),
			expected: true,
		},
		"or_none_true": {
			expr:     bookmarkx.Or(bookmarkx.Eq("userId", "u2"), bookmarkx.Eq("tags", "go")),
			expected: false,
		},
		"not": {
			expr:     bookmarkx.Not(bookmarkx.Eq("userId", "u2")),
			expected: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if got := evaluateExpression(doc, tt.expr); got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestCompareValues(t *testing.T) {
	tests := map[string]struct {
		v1, v2   interface{}
		expected int
	}{
		"both_nil":      {nil, nil, 0},
		"nil_first":     {nil, 1, -1},
		"nil_second":    {1, nil, 1},
		"ints":          {1, 2, -1},
		"mixed_numeric": {int64(3), 2.5, 1},
		"strings":       {"2024-01-02T00:00:00Z", "2024-01-01T00:00:00Z", 1},
		"equal":         {"a", "a", 0},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if got := compareValues(tt.v1, tt.v2); got != tt.expected {
				t.Errorf("compareValues(%v, %v) = %d, want %d", tt.v1, tt.v2, got, tt.expected)
			}
		})
	}
}
