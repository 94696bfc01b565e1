package jsonpath

import (
	"encoding/json"
	"fmt"
	"math"
)

// filterContext binds @ and $ for one filter-expression evaluation.
type filterContext struct {
	current any
	root    any
}

// EvaluateFilter reports whether sel's predicate holds for value with both @
// and $ bound to it. This is the entry point a caller with a single already-
// decoded candidate (and no broader document to walk) needs — used by the
// streaming deserializer, which resolves each filtered array element on its
// own as it closes rather than holding the whole array in memory.
func EvaluateFilter(sel FilterSelector, value any) (bool, error) {
	return evalFilterBool(sel.Expr, filterContext{current: value, root: value})
}

// evalFilterValue evaluates a FilterNode to a FilterValue under ctx. It
// never mutates the AST (spec §9: "Filter evaluation never mutates AST").
func evalFilterValue(n FilterNode, ctx filterContext) (FilterValue, error) {
	switch v := n.(type) {
	case LiteralNode:
		return v.Value, nil
	case CurrentNode:
		return resolveToFilterValue(ctx.current, v.Path), nil
	case RootNode:
		return resolveToFilterValue(ctx.root, v.Path), nil
	case PropertyNode:
		base, err := evalFilterValue(v.Base, ctx)
		if err != nil {
			return FilterValue{}, err
		}
		if base.Kind != KindNodes || len(base.Nodes) != 1 {
			return Missing(), nil
		}
		return resolveToFilterValue(base.Nodes[0], v.Path), nil
	case ComparisonNode:
		return evalComparison(v, ctx)
	case LogicalNode:
		return evalLogical(v, ctx)
	case FunctionNode:
		return evalFunction(v, ctx)
	default:
		return FilterValue{}, fmt.Errorf("unsupported filter node %T", n)
	}
}

// evalFilterBool evaluates n and applies the logical-conversion rule (spec
// §4.2: "keep if the result is logically true").
func evalFilterBool(n FilterNode, ctx filterContext) (bool, error) {
	switch v := n.(type) {
	case ComparisonNode:
		fv, err := evalComparison(v, ctx)
		if err != nil {
			return false, err
		}
		return fv.Truthy(), nil
	case LogicalNode:
		fv, err := evalLogical(v, ctx)
		if err != nil {
			return false, err
		}
		return fv.Truthy(), nil
	case FunctionNode:
		fv, err := evalFunction(v, ctx)
		if err != nil {
			return false, err
		}
		return fv.Truthy(), nil
	default:
		fv, err := evalFilterValue(n, ctx)
		if err != nil {
			return false, err
		}
		return existsAndTruthy(n, fv), nil
	}
}

// existsAndTruthy treats a bare `@.path` test expression as true iff the
// path exists (RFC 9535 "existence test"), regardless of the value's own
// truthiness (so `?@.discount` is true for discount:false too).
func existsAndTruthy(n FilterNode, fv FilterValue) bool {
	switch n.(type) {
	case CurrentNode, RootNode:
		return fv.Kind != KindMissing
	default:
		return fv.Truthy()
	}
}

func evalLogical(n LogicalNode, ctx filterContext) (FilterValue, error) {
	switch n.Op {
	case LogicalNot:
		b, err := evalFilterBool(n.Children[0], ctx)
		if err != nil {
			return FilterValue{}, err
		}
		return Bool(!b), nil
	case LogicalAnd:
		for _, c := range n.Children {
			b, err := evalFilterBool(c, ctx)
			if err != nil {
				return FilterValue{}, err
			}
			if !b {
				return Bool(false), nil
			}
		}
		return Bool(true), nil
	default: // LogicalOr
		for _, c := range n.Children {
			b, err := evalFilterBool(c, ctx)
			if err != nil {
				return FilterValue{}, err
			}
			if b {
				return Bool(true), nil
			}
		}
		return Bool(false), nil
	}
}

// evalComparison implements spec §4.3's comparison semantics.
func evalComparison(n ComparisonNode, ctx filterContext) (FilterValue, error) {
	lhs, err := evalFilterValue(n.LHS, ctx)
	if err != nil {
		return FilterValue{}, err
	}
	rhs, err := evalFilterValue(n.RHS, ctx)
	if err != nil {
		return FilterValue{}, err
	}
	return Bool(compareValues(n.Op, lhs, rhs)), nil
}

func compareValues(op ComparisonOp, lhs, rhs FilterValue) bool {
	switch op {
	case CompEq:
		return valuesEqual(lhs, rhs)
	case CompNeq:
		return !valuesEqual(lhs, rhs)
	default:
		return orderedCompare(op, lhs, rhs)
	}
}

// valuesEqual implements spec §4.3: Missing==Missing is true, Missing==Null
// is false; numeric kinds coerce to float64 (NaN unequal to everything);
// strings compare by code point (Go string equality already does this for
// valid UTF-8); booleans only equal booleans.
func valuesEqual(lhs, rhs FilterValue) bool {
	if lhs.Kind == KindMissing || rhs.Kind == KindMissing {
		return lhs.Kind == KindMissing && rhs.Kind == KindMissing
	}
	if lhs.Kind == KindNull || rhs.Kind == KindNull {
		return lhs.Kind == KindNull && rhs.Kind == KindNull
	}
	if lf, lok := lhs.AsFloat(); lok {
		if rf, rok := rhs.AsFloat(); rok {
			if math.IsNaN(lf) || math.IsNaN(rf) {
				return false
			}
			return lf == rf
		}
		return false
	}
	if lhs.Kind == KindString && rhs.Kind == KindString {
		return lhs.String == rhs.String
	}
	if lhs.Kind == KindBoolean && rhs.Kind == KindBoolean {
		return lhs.Boolean == rhs.Boolean
	}
	if lhs.Kind == KindNodes && rhs.Kind == KindNodes {
		return len(lhs.Nodes) == len(rhs.Nodes) && deepEqualNodes(lhs.Nodes, rhs.Nodes)
	}
	return false
}

func deepEqualNodes(a, b []any) bool {
	aj, _ := json.Marshal(a)
	bj, _ := json.Marshal(b)
	return string(aj) == string(bj)
}

// orderedCompare implements <, <=, >, >= per spec §4.3: numeric kinds
// coerce to float64 (NaN compares unequal/false for every ordered op);
// strings compare by code point order; Boolean never compares ordered;
// Missing compared with anything (except via ==/!=) is false.
func orderedCompare(op ComparisonOp, lhs, rhs FilterValue) bool {
	if lhs.Kind == KindMissing || rhs.Kind == KindMissing {
		return false
	}
	if lf, lok := lhs.AsFloat(); lok {
		if rf, rok := rhs.AsFloat(); rok {
			if math.IsNaN(lf) || math.IsNaN(rf) {
				return false
			}
			return orderOp(op, lf < rf, lf == rf, lf > rf)
		}
		return false
	}
	if lhs.Kind == KindString && rhs.Kind == KindString {
		return orderOp(op, lhs.String < rhs.String, lhs.String == rhs.String, lhs.String > rhs.String)
	}
	return false
}

func orderOp(op ComparisonOp, lt, eq, gt bool) bool {
	switch op {
	case CompLt:
		return lt
	case CompLe:
		return lt || eq
	case CompGt:
		return gt
	case CompGe:
		return gt || eq
	default:
		return false
	}
}

// resolveToFilterValue resolves a dotted property path against base,
// returning Missing if any step is absent. An empty path resolves to base
// itself, converted by valueFromAny like any other resolved value.
func resolveToFilterValue(base any, path []string) FilterValue {
	cur := base
	present := true
	for _, step := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			present = false
			break
		}
		v, exists := obj[step]
		if !exists {
			present = false
			break
		}
		cur = v
	}
	if !present {
		return Missing()
	}
	return valueFromAny(cur)
}

// valueFromAny converts an already-decoded JSON value (as produced by
// encoding/json.Unmarshal into `any`, optionally with UseNumber) into a
// FilterValue. Objects and arrays become a single-element Nodes value so
// count()/value() can inspect them; direct comparisons against them fall
// back to deep-equality (a calibrated relaxation of the RFC, since full
// node equality is rarely exercised in practice).
func valueFromAny(v any) FilterValue {
	switch t := v.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(t)
	case string:
		return Str(t)
	case float64:
		return Num(t)
	case int64:
		return Int(t)
	case json.Number:
		if iv, err := t.Int64(); err == nil {
			return Int(iv)
		}
		fv, _ := t.Float64()
		return Num(fv)
	default:
		return Nodes([]any{v})
	}
}
