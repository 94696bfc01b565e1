package jsonpath

import "fmt"

// evalFunction dispatches a FunctionNode to its built-in implementation, per
// spec §4.3/§6: length, count, match, search, value.
func evalFunction(n FunctionNode, ctx filterContext) (FilterValue, error) {
	switch n.Name {
	case "length":
		return evalLength(n.Args[0], ctx)
	case "count":
		return evalCount(n.Args[0], ctx)
	case "match":
		return evalMatch(n.Args[0], n.Args[1], ctx, matchAnchored)
	case "search":
		return evalMatch(n.Args[0], n.Args[1], ctx, matchUnanchored)
	case "value":
		return evalValue(n.Args[0], ctx)
	default:
		return FilterValue{}, fmt.Errorf("unknown function %q", n.Name)
	}
}

// evalLength implements length(): string code-point count, array/object
// element count, Missing for anything else (per spec: "absent for
// incompatible types" relaxed to Missing rather than an error, so a
// comparison against it simply never matches).
func evalLength(arg FilterNode, ctx filterContext) (FilterValue, error) {
	v, err := evalFilterValue(arg, ctx)
	if err != nil {
		return FilterValue{}, err
	}
	switch v.Kind {
	case KindString:
		return Int(int64(len([]rune(v.String)))), nil
	case KindNodes:
		if len(v.Nodes) != 1 {
			return Missing(), nil
		}
		switch t := v.Nodes[0].(type) {
		case []any:
			return Int(int64(len(t))), nil
		case map[string]any:
			return Int(int64(len(t))), nil
		}
		return Missing(), nil
	default:
		return Missing(), nil
	}
}

// evalCount implements count(): the number of nodes the nodelist argument
// produces. Paths parsed inside filters are singular (dot/bracket-name
// chains only), so this is 0 for Missing and 1 otherwise, except when the
// argument is itself a Nodes-kind container, whose element count is used
// directly.
func evalCount(arg FilterNode, ctx filterContext) (FilterValue, error) {
	v, err := evalFilterValue(arg, ctx)
	if err != nil {
		return FilterValue{}, err
	}
	switch v.Kind {
	case KindMissing:
		return Int(0), nil
	case KindNodes:
		return Int(int64(len(v.Nodes))), nil
	default:
		return Int(1), nil
	}
}

// evalMatch implements match()/search(), sharing the same argument plumbing
// and differing only in the regex comparison function used.
func evalMatch(subjectArg, patternArg FilterNode, ctx filterContext, cmp func(s, pattern string) (bool, error)) (FilterValue, error) {
	subject, err := evalFilterValue(subjectArg, ctx)
	if err != nil {
		return FilterValue{}, err
	}
	pattern, err := evalFilterValue(patternArg, ctx)
	if err != nil {
		return FilterValue{}, err
	}
	if subject.Kind != KindString || pattern.Kind != KindString {
		return Bool(false), nil
	}
	ok, err := cmp(subject.String, pattern.String)
	if err != nil {
		// An invalid or runaway pattern never matches; it does not abort
		// evaluation of the surrounding filter.
		return Bool(false), nil
	}
	return Bool(ok), nil
}

// evalValue implements value(): unwraps a singleton nodelist to its bare
// value, or Missing if the nodelist is empty or holds more than one node.
func evalValue(arg FilterNode, ctx filterContext) (FilterValue, error) {
	v, err := evalFilterValue(arg, ctx)
	if err != nil {
		return FilterValue{}, err
	}
	if v.Kind != KindNodes {
		return v, nil
	}
	if len(v.Nodes) != 1 {
		return Missing(), nil
	}
	return valueFromAny(v.Nodes[0]), nil
}
