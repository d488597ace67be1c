// Package index implements the statically-indexed table overlay: the
// operator pipeline, insert/delete/update fan-out, index selection, and
// query execution (spec §4.7).
//
// Grounded on original_source/src/ots_static_index/static_index.cpp for
// exact two-phase insert, prefix hit-ratio index selection, and
// exclusive-upper-bound successor semantics, and on
// internal/executor/plugin.go's registry-of-handlers dispatch pattern
// for the operator-by-node-id arena prescribed in spec §9.
package index

import "github.com/rat-data/colstore/internal/value"

// Op is a field-level comparison a Condition may express (spec §4.7.4,
// §4.7.5's match operators).
type Op int

const (
	OpEq Op = iota
	OpIn
	OpLt
	OpLe
	OpGt
	OpGe
	OpNe
)

// FieldCondition constrains one attribute or pkey-source field.
type FieldCondition struct {
	Field  string
	Op     Op
	Value  value.Value
	Values []value.Value // OpIn only
}

// Condition is a flat conjunction of FieldConditions (spec §9: "condition
// parsing produces an AST of matcher nodes rather than interpreting maps
// at runtime"). The AST here is this slice plus the Op tag per field,
// each field evaluated independently, ANDed across fields.
type Condition struct {
	Fields []FieldCondition
}

// Get returns the constraint on field, if any.
func (c Condition) Get(field string) (FieldCondition, bool) {
	for _, f := range c.Fields {
		if f.Field == field {
			return f, true
		}
	}
	return FieldCondition{}, false
}

// Match reports whether v satisfies fc.
func (fc FieldCondition) Match(v value.Value) bool {
	switch fc.Op {
	case OpEq:
		return value.Equal(v, fc.Value)
	case OpIn:
		for _, cand := range fc.Values {
			if value.Equal(v, cand) {
				return true
			}
		}
		return false
	case OpLt:
		return value.Compare(v, fc.Value) == value.Less
	case OpLe:
		o := value.Compare(v, fc.Value)
		return o == value.Less || o == value.Equal
	case OpGt:
		return value.Compare(v, fc.Value) == value.Greater
	case OpGe:
		o := value.Compare(v, fc.Value)
		return o == value.Greater || o == value.Equal
	case OpNe:
		return !value.Equal(v, fc.Value)
	default:
		return false
	}
}

// IsPointFixed reports whether fc pins a column to exactly one concrete
// value: $eq, or $in with exactly one option (spec §4.7.4).
func (fc FieldCondition) IsPointFixed() bool {
	switch fc.Op {
	case OpEq:
		return true
	case OpIn:
		return len(fc.Values) == 1
	default:
		return false
	}
}

// IsRangeFixed reports whether fc bounds a column to a comparable range
// (spec §4.7.4: "$lt/$le/$gt/$ge"; $ne never fixes a range).
func (fc FieldCondition) IsRangeFixed() bool {
	switch fc.Op {
	case OpLt, OpLe, OpGt, OpGe:
		return true
	default:
		return false
	}
}

// InOptions returns the point values fc pins a column to: one value for
// $eq or a singleton $in, all of them for a multi-value $in (used to
// build the cross-product of GetRow/GetRange requests, spec §4.7.5).
func (fc FieldCondition) InOptions() []value.Value {
	switch fc.Op {
	case OpEq:
		return []value.Value{fc.Value}
	case OpIn:
		return append([]value.Value(nil), fc.Values...)
	default:
		return nil
	}
}

// Bounds returns the bound fc implies for a range-fixed column: a lower
// bound for $gt/$ge, an upper bound for $lt/$le. hasLower and hasUpper say
// which one is set; both are false if fc is not range-fixed. Whether the
// bound value itself is excluded is reported by ExclusiveLower and
// ExclusiveUpper.
func (fc FieldCondition) Bounds() (lower, upper value.Value, hasLower, hasUpper bool) {
	switch fc.Op {
	case OpGe:
		return fc.Value, value.Value{}, true, false
	case OpGt:
		return fc.Value, value.Value{}, true, false
	case OpLe:
		return value.Value{}, fc.Value, false, true
	case OpLt:
		return value.Value{}, fc.Value, false, true
	default:
		return value.Value{}, value.Value{}, false, false
	}
}

// ExclusiveLower reports whether fc's lower bound should itself be
// excluded ($gt, as opposed to $ge).
func (fc FieldCondition) ExclusiveLower() bool { return fc.Op == OpGt }

// ExclusiveUpper reports whether fc's upper bound should itself be
// excluded ($lt, as opposed to $le).
func (fc FieldCondition) ExclusiveUpper() bool { return fc.Op == OpLt }
