package store

import "fmt"

// Op is a comparison operator in a query condition.
type Op string

const (
	OpEq Op = "="
	OpNe Op = "<>"
	OpGt Op = ">"
	OpGe Op = ">="
	OpLt Op = "<"
	OpLe Op = "<="
)

// Condition is a single field comparison.
type Condition struct {
	Field string
	Op    Op
	Value any
}

// Predicate is a conjunction of conditions. An empty predicate matches
// every entity.
type Predicate []Condition

// Where starts a predicate with one condition.
func Where(field string, op Op, value any) Predicate {
	return Predicate{{Field: field, Op: op, Value: value}}
}

// And appends a condition to the predicate.
func (p Predicate) And(field string, op Op, value any) Predicate {
	return append(p, Condition{Field: field, Op: op, Value: value})
}

// Equality returns the value of an equality condition on the given field,
// if the predicate contains one.
func (p Predicate) Equality(field string) (any, bool) {
	for _, c := range p {
		if c.Field == field && c.Op == OpEq {
			return c.Value, true
		}
	}
	return nil, false
}

// Without returns a copy of the predicate with all conditions on the given
// field removed.
func (p Predicate) Without(field string) Predicate {
	var out Predicate
	for _, c := range p {
		if c.Field != field {
			out = append(out, c)
		}
	}
	return out
}

// Matches reports whether the entity satisfies every condition. Conditions
// evaluate against the entity's Fields map; a condition on an absent field
// never matches.
func (p Predicate) Matches(e *Entity) bool {
	for _, c := range p {
		v, ok := e.Fields[c.Field]
		if !ok {
			return false
		}
		cmp, ok := CompareValues(v, c.Value)
		if !ok {
			return false
		}
		switch c.Op {
		case OpEq:
			if cmp != 0 {
				return false
			}
		case OpNe:
			if cmp == 0 {
				return false
			}
		case OpGt:
			if cmp <= 0 {
				return false
			}
		case OpGe:
			if cmp < 0 {
				return false
			}
		case OpLt:
			if cmp >= 0 {
				return false
			}
		case OpLe:
			if cmp > 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// CompareValues orders two field values. Strings compare lexically, numbers
// numerically (across int/int64/float64 representations). It returns false
// when the values are not comparable.
func CompareValues(a, b any) (int, bool) {
	if as, ok := a.(string); ok {
		bs, ok := b.(string)
		if !ok {
			return 0, false
		}
		switch {
		case as < bs:
			return -1, true
		case as > bs:
			return 1, true
		default:
			return 0, true
		}
	}

	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return 0, false
	}
	switch {
	case af < bf:
		return -1, true
	case af > bf:
		return 1, true
	default:
		return 0, true
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// String renders the predicate for logs and error messages.
func (p Predicate) String() string {
	if len(p) == 0 {
		return "<all>"
	}
	s := ""
	for i, c := range p {
		if i > 0 {
			s += " AND "
		}
		s += fmt.Sprintf("%s %s %v", c.Field, c.Op, c.Value)
	}
	return s
}
