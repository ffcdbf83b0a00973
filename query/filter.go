package query

import (
	"encoding/json"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Parameters consumed by the pipeline itself; they are never filterable fields.
const (
	ParamKeyword = "keyword"
	ParamPage    = "page"
	ParamLimit   = "limit"
)

var reserved = map[string]bool{
	ParamKeyword: true,
	ParamPage:    true,
	ParamLimit:   true,
}

// ParseValues builds a predicate from URL query values. Only the first value
// of a repeated key is used.
func ParseValues(values url.Values) Predicate {
	params := make(map[string]any, len(values))
	for key, vals := range values {
		if len(vals) == 0 {
			continue
		}
		params[key] = vals[0]
	}
	return ParseFilters(params)
}

// ParseFilters turns a flat parameter bag into a predicate.
//
// Range bounds may be given as bracketed keys ("price[gte]": "10") or as
// nested maps ("price": {"gte": "10"}); both produce the same FieldFilter.
// Numeric strings are coerced to float64. A key with broken brackets such as
// "price[gte" is kept as a literal field name. Unknown operators, non-numeric
// bounds and "$"-prefixed fields are dropped and listed in Ignored.
func ParseFilters(params map[string]any) Predicate {
	var p Predicate

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if reserved[key] {
			continue
		}
		raw := params[key]

		if field, op, ok := splitBracket(key); ok {
			p.addRange(field, op, raw)
			continue
		}
		if strings.HasPrefix(key, "$") {
			p.Ignored = append(p.Ignored, key)
			continue
		}

		switch v := raw.(type) {
		case map[string]any:
			ops := make([]string, 0, len(v))
			for op := range v {
				ops = append(ops, op)
			}
			sort.Strings(ops)
			for _, op := range ops {
				p.addRange(key, op, v[op])
			}
		case string:
			if strings.TrimSpace(v) == "" {
				p.Ignored = append(p.Ignored, key)
				continue
			}
			p.Equals = append(p.Equals, Equality{Field: key, Value: coerce(v)})
		case float64, float32, int, int32, int64, json.Number:
			p.Equals = append(p.Equals, Equality{Field: key, Value: coerce(v)})
		default:
			p.Ignored = append(p.Ignored, key)
		}
	}
	return p
}

// splitBracket splits "field[op]" into its parts. It reports false for keys
// without brackets and for malformed ones, which callers treat as literals.
func splitBracket(key string) (field, op string, ok bool) {
	open := strings.IndexByte(key, '[')
	if open <= 0 || !strings.HasSuffix(key, "]") {
		return "", "", false
	}
	field, op = key[:open], key[open+1:len(key)-1]
	if op == "" || strings.ContainsAny(op, "[]") || strings.ContainsAny(field, "]") {
		return "", "", false
	}
	return field, op, true
}

func (p *Predicate) addRange(field, opToken string, raw any) {
	label := field + "[" + opToken + "]"
	if strings.HasPrefix(field, "$") {
		p.Ignored = append(p.Ignored, label)
		return
	}
	op, err := ParseRangeOp(opToken)
	if err != nil {
		p.Ignored = append(p.Ignored, label)
		return
	}
	n, ok := coerce(raw).(float64)
	if !ok {
		p.Ignored = append(p.Ignored, label)
		return
	}
	p.Ranges = append(p.Ranges, FieldFilter{Field: field, Op: op, Value: n})
}

// coerce converts numeric strings and integer kinds to float64, descending
// into nested maps and slices. Anything else is returned unchanged.
func coerce(v any) any {
	switch t := v.(type) {
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil && finite(f) {
			return f
		}
		return t
	case json.Number:
		if f, err := t.Float64(); err == nil && finite(f) {
			return f
		}
		return t.String()
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = coerce(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = coerce(item)
		}
		return out
	}
	if f, ok := toFloat(v); ok {
		return f
	}
	return v
}
