package inmemory

import (
	"fmt"
	"slices"

	"github.com/letmevibethatforyou/bookmarkx"
)

// matchesFilters checks if a document matches all the filter expressions.
func matchesFilters(doc Document, filters []bookmarkx.Expression) bool {
	for _, filter := range filters {
		if !evaluateExpression(doc, filter) {
			return false
		}
	}
	return true
}

// evaluateExpression evaluates a single expression against a document.
// Unknown expression types match nothing.
func evaluateExpression(doc Document, expr bookmarkx.Expression) bool {
	switch e := expr.(type) {
	case bookmarkx.AndExpr:
		for _, inner := range e.Exprs {
			if !evaluateExpression(doc, inner) {
				return false
			}
		}
		return true
	case bookmarkx.OrExpr:
		for _, inner := range e.Exprs {
			if evaluateExpression(doc, inner) {
				return true
			}
		}
		return false
	case bookmarkx.NotExpr:
		return !evaluateExpression(doc, e.Inner)
	case bookmarkx.EqExpr:
		docValue, exists := doc.Fields[e.Field]
		if !exists {
			return e.Value == nil
		}
		return compareEqual(docValue, e.Value)
	case bookmarkx.NeExpr:
		docValue, exists := doc.Fields[e.Field]
		if !exists {
			return e.Value != nil
		}
		return !compareEqual(docValue, e.Value)
	case bookmarkx.InExpr:
		docValue, exists := doc.Fields[e.Field]
		if !exists {
			return false
		}
		return slices.ContainsFunc(e.Values, func(v string) bool {
			return compareEqual(docValue, v)
		})
	default:
		return false
	}
}

// compareEqual checks if two values are equal. A list value equals v when any
// of its elements does, the way facet filters treat multi-valued attributes.
func compareEqual(v1, v2 interface{}) bool {
	if v1 == nil || v2 == nil {
		return v1 == v2
	}

	switch list := v1.(type) {
	case []string:
		for _, item := range list {
			if compareEqual(item, v2) {
				return true
			}
		}
		return false
	case []interface{}:
		for _, item := range list {
			if compareEqual(item, v2) {
				return true
			}
		}
		return false
	}

	if f1, ok1 := toFloat64(v1); ok1 {
		if f2, ok2 := toFloat64(v2); ok2 {
			return f1 == f2
		}
	}

	return fmt.Sprintf("%v", v1) == fmt.Sprintf("%v", v2)
}

// toFloat64 attempts to convert a value to float64.
func toFloat64(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	default:
		return 0, false
	}
}
