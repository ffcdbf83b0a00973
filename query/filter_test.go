package query

import (
	"encoding/json"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFilters_BracketAndNestedAgree(t *testing.T) {
	bracket := ParseFilters(map[string]any{"price[gte]": "100", "price[lte]": "500"})
	nested := ParseFilters(map[string]any{"price": map[string]any{"gte": "100", "lte": "500"}})

	want := []FieldFilter{
		{Field: "price", Op: OpGTE, Value: 100},
		{Field: "price", Op: OpLTE, Value: 500},
	}
	assert.Equal(t, want, bracket.Ranges)
	assert.Equal(t, want, nested.Ranges)
	assert.Empty(t, bracket.Equals)
	assert.Empty(t, nested.Equals)
}

func TestParseFilters_SkipsReservedKeys(t *testing.T) {
	p := ParseFilters(map[string]any{
		"keyword":  "camera",
		"page":     "2",
		"limit":    "10",
		"category": "Cameras",
	})

	assert.Equal(t, []Equality{{Field: "category", Value: "Cameras"}}, p.Equals)
	assert.Empty(t, p.Ranges)
	assert.Empty(t, p.Ignored)
}

func TestParseFilters_CoercesNumbers(t *testing.T) {
	p := ParseFilters(map[string]any{
		"ratings": "4",
		"stock":   7,
		"seller":  "Acme",
		"weight":  json.Number("1.5"),
	})

	assert.ElementsMatch(t, []Equality{
		{Field: "ratings", Value: 4.0},
		{Field: "stock", Value: 7.0},
		{Field: "seller", Value: "Acme"},
		{Field: "weight", Value: 1.5},
	}, p.Equals)
}

func TestParseFilters_IgnoresBadInput(t *testing.T) {
	tests := []struct {
		name    string
		params  map[string]any
		ignored []string
	}{
		{"unknown operator", map[string]any{"price[ne]": "5"}, []string{"price[ne]"}},
		{"regex operator", map[string]any{"name": map[string]any{"regex": ".*"}}, []string{"name[regex]"}},
		{"non numeric bound", map[string]any{"price[gt]": "cheap"}, []string{"price[gt]"}},
		{"NaN bound", map[string]any{"price[gt]": "NaN"}, []string{"price[gt]"}},
		{"operator injection", map[string]any{"$where": "1 == 1"}, []string{"$where"}},
		{"operator field in bracket", map[string]any{"$expr[gt]": "1"}, []string{"$expr[gt]"}},
		{"blank value", map[string]any{"category": "  "}, []string{"category"}},
		{"unsupported type", map[string]any{"tags": []any{"a"}}, []string{"tags"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ParseFilters(tt.params)
			assert.True(t, p.IsEmpty())
			assert.Equal(t, tt.ignored, p.Ignored)
		})
	}
}

func TestParseFilters_MalformedBracketIsLiteral(t *testing.T) {
	p := ParseFilters(map[string]any{"price[gte": "10"})

	assert.Empty(t, p.Ranges)
	assert.Equal(t, []Equality{{Field: "price[gte", Value: 10.0}}, p.Equals)
}

func TestParseFilters_NilAndEmpty(t *testing.T) {
	assert.True(t, ParseFilters(nil).IsEmpty())
	assert.True(t, ParseFilters(map[string]any{}).IsEmpty())
}

func TestParseValues_FirstValueWins(t *testing.T) {
	p := ParseValues(url.Values{
		"category":   {"Laptops", "Books"},
		"price[lt]":  {"1000"},
		"keyword":    {"thin"},
		"ratings[x]": {"3"},
	})

	assert.Equal(t, []Equality{{Field: "category", Value: "Laptops"}}, p.Equals)
	assert.Equal(t, []FieldFilter{{Field: "price", Op: OpLT, Value: 1000}}, p.Ranges)
	assert.Equal(t, []string{"ratings[x]"}, p.Ignored)
}

func TestSplitBracket(t *testing.T) {
	tests := []struct {
		key       string
		field, op string
		ok        bool
	}{
		{"price[gte]", "price", "gte", true},
		{"price", "", "", false},
		{"price[]", "", "", false},
		{"[gte]", "", "", false},
		{"price[gte", "", "", false},
		{"price[a[b]]", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			field, op, ok := splitBracket(tt.key)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.field, field)
			assert.Equal(t, tt.op, op)
		})
	}
}
