package query

import (
	"fmt"
	"math"
	"strings"
)

// RangeOp is a numeric bound operator.
type RangeOp string

const (
	OpGT  RangeOp = "gt"
	OpGTE RangeOp = "gte"
	OpLT  RangeOp = "lt"
	OpLTE RangeOp = "lte"
)

// ParseRangeOp accepts only gt, gte, lt and lte.
func ParseRangeOp(s string) (RangeOp, error) {
	switch op := RangeOp(s); op {
	case OpGT, OpGTE, OpLT, OpLTE:
		return op, nil
	}
	return "", fmt.Errorf("unsupported range operator %q", s)
}

func (op RangeOp) holds(have, bound float64) bool {
	switch op {
	case OpGT:
		return have > bound
	case OpGTE:
		return have >= bound
	case OpLT:
		return have < bound
	case OpLTE:
		return have <= bound
	}
	return false
}

// FieldFilter bounds a numeric field, e.g. price >= 100.
type FieldFilter struct {
	Field string
	Op    RangeOp
	Value float64
}

// Equality requires a field to hold exactly Value (a float64 or a string).
type Equality struct {
	Field string
	Value any
}

// TextSearch matches when any of Fields contains Keyword, ignoring case.
type TextSearch struct {
	Keyword string
	Fields  []string
}

// Predicate is a conjunction of clauses. The zero value matches everything.
// Ignored lists the raw parameters that were dropped while building it.
type Predicate struct {
	Searches []TextSearch
	Equals   []Equality
	Ranges   []FieldFilter
	Ignored  []string
}

// IsEmpty reports whether the predicate has no clauses.
func (p Predicate) IsEmpty() bool {
	return len(p.Searches) == 0 && len(p.Equals) == 0 && len(p.Ranges) == 0
}

// And returns the conjunction of p and other. Neither input is modified.
func (p Predicate) And(other Predicate) Predicate {
	return Predicate{
		Searches: concat(p.Searches, other.Searches),
		Equals:   concat(p.Equals, other.Equals),
		Ranges:   concat(p.Ranges, other.Ranges),
		Ignored:  concat(p.Ignored, other.Ignored),
	}
}

func concat[T any](a, b []T) []T {
	if len(a)+len(b) == 0 {
		return nil
	}
	out := make([]T, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

// Matches evaluates the predicate against a document. Dotted field names
// descend into nested maps. Range clauses never match non-numeric values.
func (p Predicate) Matches(doc map[string]any) bool {
	for _, s := range p.Searches {
		if !s.matches(doc) {
			return false
		}
	}
	for _, e := range p.Equals {
		have, ok := lookup(doc, e.Field)
		if !ok || !equal(have, e.Value) {
			return false
		}
	}
	for _, r := range p.Ranges {
		have, ok := lookup(doc, r.Field)
		if !ok {
			return false
		}
		n, ok := toFloat(have)
		if !ok || !r.Op.holds(n, r.Value) {
			return false
		}
	}
	return true
}

func (s TextSearch) matches(doc map[string]any) bool {
	needle := strings.ToLower(s.Keyword)
	for _, f := range s.Fields {
		v, ok := lookup(doc, f)
		if !ok {
			continue
		}
		if str, ok := v.(string); ok && strings.Contains(strings.ToLower(str), needle) {
			return true
		}
	}
	return false
}

func lookup(doc map[string]any, field string) (any, bool) {
	var cur any = doc
	for _, part := range strings.Split(field, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func equal(have, want any) bool {
	if w, ok := want.(float64); ok {
		h, ok := toFloat(have)
		return ok && h == w
	}
	return have == want
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
