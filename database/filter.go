package database

import (
	"regexp"

	"go.mongodb.org/mongo-driver/bson"

	"storefront/query"
)

var rangeOperators = map[query.RangeOp]string{
	query.OpGT:  "$gt",
	query.OpGTE: "$gte",
	query.OpLT:  "$lt",
	query.OpLTE: "$lte",
}

// ToBSON translates a predicate into a Mongo filter document. Keywords are
// quoted before they are used as a regex, so user input never carries
// pattern syntax into the query.
func ToBSON(p query.Predicate) bson.M {
	var clauses []bson.M

	for _, s := range p.Searches {
		pattern := regexp.QuoteMeta(s.Keyword)
		or := make(bson.A, 0, len(s.Fields))
		for _, f := range s.Fields {
			or = append(or, bson.M{f: bson.M{"$regex": pattern, "$options": "i"}})
		}
		clauses = append(clauses, bson.M{"$or": or})
	}

	for _, e := range p.Equals {
		clauses = append(clauses, bson.M{e.Field: e.Value})
	}

	// bounds on the same field collapse into one operator document; a repeated
	// operator keeps the stricter bound so the result still ANDs every range
	bounds := make(map[string]bson.M)
	var order []string
	for _, r := range p.Ranges {
		m, ok := bounds[r.Field]
		if !ok {
			m = bson.M{}
			bounds[r.Field] = m
			order = append(order, r.Field)
		}
		key := rangeOperators[r.Op]
		if prev, ok := m[key].(float64); ok {
			m[key] = tighter(r.Op, prev, r.Value)
			continue
		}
		m[key] = r.Value
	}
	for _, field := range order {
		clauses = append(clauses, bson.M{field: bounds[field]})
	}

	switch len(clauses) {
	case 0:
		return bson.M{}
	case 1:
		return clauses[0]
	}
	and := make(bson.A, len(clauses))
	for i, c := range clauses {
		and[i] = c
	}
	return bson.M{"$and": and}
}

func tighter(op query.RangeOp, a, b float64) float64 {
	switch op {
	case query.OpGT, query.OpGTE:
		return max(a, b)
	default:
		return min(a, b)
	}
}

// SortDocument converts sort fields into an ordered bson.D.
func SortDocument(fields []query.SortField) bson.D {
	if len(fields) == 0 {
		return nil
	}
	d := make(bson.D, 0, len(fields))
	for _, f := range fields {
		dir := 1
		if f.Desc {
			dir = -1
		}
		d = append(d, bson.E{Key: f.Field, Value: dir})
	}
	return d
}
