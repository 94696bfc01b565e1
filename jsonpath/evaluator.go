package jsonpath

import "fmt"

// defaultMaxNodes bounds the size of any single Evaluate result, per spec
// §9 ("a pathological expression like $..* against a huge document must not
// grow a result slice without bound"). It is large enough never to trigger
// on realistic documents and is only a backstop.
const defaultMaxNodes = 1_000_000

// compileOptions holds the result of CompileOption functional options.
type compileOptions struct {
	maxNodes int
}

func defaultCompileOptions() compileOptions {
	return compileOptions{maxNodes: defaultMaxNodes}
}

// Node is one match produced by Evaluate: the value found plus its
// normalized path (spec §11's "results report a normalized path alongside
// the value").
type Node struct {
	Value any
	Path  string
}

// Evaluate walks doc (as produced by encoding/json.Unmarshal into `any`, or
// an equivalent map[string]any/[]any/scalar tree) against e's compiled
// selectors and returns every matching node in document order.
//
// If the result would exceed the configured node cap, Evaluate returns the
// partial result gathered so far together with a *NodeLimitError; the caller
// decides whether a truncated result is acceptable.
func (e *Expression) Evaluate(doc any) ([]Node, error) {
	ctx := &evalCtx{root: doc, max: e.opts.maxNodes}
	if ctx.max <= 0 {
		ctx.max = defaultMaxNodes
	}
	cur := []Node{{Value: doc, Path: "$"}}
	for _, sel := range e.Selectors {
		if _, ok := sel.(RootSelector); ok {
			continue
		}
		next, err := ctx.applyToAll(sel, cur)
		if err != nil {
			return next, err
		}
		cur = next
	}
	return cur, nil
}

type evalCtx struct {
	root any
	max  int
}

func (c *evalCtx) applyToAll(sel Selector, in []Node) ([]Node, error) {
	var out []Node
	for _, n := range in {
		hits, err := c.apply(sel, n)
		out = append(out, hits...)
		if err != nil {
			return out, err
		}
		if len(out) > c.max {
			return out, &NodeLimitError{Max: c.max}
		}
	}
	return out, nil
}

// NodeLimitError reports that an Evaluate call's result would exceed the
// configured node cap. Partial results up to the cap were already computed
// by the caller and are not retained on the error itself.
type NodeLimitError struct {
	Max int
}

func (e *NodeLimitError) Error() string {
	return fmt.Sprintf("jsonpath: result exceeds %d node limit", e.Max)
}

// apply evaluates sel against one node, per spec §4.2's selector semantics.
func (c *evalCtx) apply(sel Selector, n Node) ([]Node, error) {
	switch s := sel.(type) {
	case RootSelector:
		return []Node{{Value: c.root, Path: "$"}}, nil
	case ChildSelector:
		obj, ok := n.Value.(map[string]any)
		if !ok {
			return nil, nil
		}
		v, exists := obj[s.Name]
		if !exists {
			return nil, nil
		}
		return []Node{{Value: v, Path: n.Path + "[" + quotePathName(s.Name) + "]"}}, nil
	case IndexSelector:
		arr, ok := n.Value.([]any)
		if !ok {
			return nil, nil
		}
		idx := s.Index
		if idx < 0 {
			idx += int64(len(arr))
		}
		if idx < 0 || idx >= int64(len(arr)) {
			return nil, nil
		}
		return []Node{{Value: arr[idx], Path: fmt.Sprintf("%s[%d]", n.Path, idx)}}, nil
	case SliceSelector:
		return c.applySlice(s, n), nil
	case WildcardSelector:
		return c.applyWildcard(n), nil
	case RecursiveDescentSelector:
		return c.applyRecursiveDescent(n), nil
	case FilterSelector:
		return c.applyFilter(s, n), nil
	case UnionSelector:
		var out []Node
		for _, m := range s.Members {
			hits, err := c.apply(m, n)
			out = append(out, hits...)
			if err != nil {
				return out, err
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported selector %T", sel)
	}
}

func quotePathName(name string) string {
	return fmt.Sprintf("%q", name)
}

func (c *evalCtx) applySlice(s SliceSelector, n Node) []Node {
	arr, ok := n.Value.([]any)
	if !ok {
		return nil
	}
	length := int64(len(arr))
	start, end, step := normalizeSlice(s, length)
	var out []Node
	if step > 0 {
		for i := start; i < end; i += step {
			if i < 0 || i >= length {
				continue
			}
			out = append(out, Node{Value: arr[i], Path: fmt.Sprintf("%s[%d]", n.Path, i)})
		}
	} else if step < 0 {
		for i := start; i > end; i += step {
			if i < 0 || i >= length {
				continue
			}
			out = append(out, Node{Value: arr[i], Path: fmt.Sprintf("%s[%d]", n.Path, i)})
		}
	}
	return out
}

// normalizeSlice implements RFC 9535 2.3.4.2.2's slice bounds normalization.
func normalizeSlice(s SliceSelector, length int64) (start, end, step int64) {
	step = s.Step
	if step == 0 {
		step = 1
	}
	norm := func(i int64) int64 {
		if i < 0 {
			i += length
		}
		return i
	}
	if step > 0 {
		start, end = 0, length
		if s.Start != nil {
			start = clamp(norm(*s.Start), 0, length)
		}
		if s.End != nil {
			end = clamp(norm(*s.End), 0, length)
		}
	} else {
		start, end = length-1, -1
		if s.Start != nil {
			start = clamp(norm(*s.Start), -1, length-1)
		}
		if s.End != nil {
			end = clamp(norm(*s.End), -1, length-1)
		}
	}
	return start, end, step
}

func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (c *evalCtx) applyWildcard(n Node) []Node {
	switch v := n.Value.(type) {
	case []any:
		out := make([]Node, 0, len(v))
		for i, item := range v {
			out = append(out, Node{Value: item, Path: fmt.Sprintf("%s[%d]", n.Path, i)})
		}
		return out
	case map[string]any:
		out := make([]Node, 0, len(v))
		for _, k := range orderedKeys(v) {
			out = append(out, Node{Value: v[k], Path: n.Path + "[" + quotePathName(k) + "]"})
		}
		return out
	default:
		return nil
	}
}

// applyRecursiveDescent yields n itself followed by every descendant,
// depth-first: object values in key order, array elements in index order.
// Go map iteration order is randomized, so orderedKeys sorts keys to keep
// Evaluate deterministic across calls (a calibrated relaxation: RFC 9535
// leaves object member order to the underlying JSON's textual order, which
// a map[string]any has already discarded by the time Evaluate sees it).
func (c *evalCtx) applyRecursiveDescent(n Node) []Node {
	out := []Node{n}
	switch v := n.Value.(type) {
	case []any:
		for i, item := range v {
			out = append(out, c.applyRecursiveDescent(Node{Value: item, Path: fmt.Sprintf("%s[%d]", n.Path, i)})...)
		}
	case map[string]any:
		for _, k := range orderedKeys(v) {
			out = append(out, c.applyRecursiveDescent(Node{Value: v[k], Path: n.Path + "[" + quotePathName(k) + "]"})...)
		}
	}
	return out
}

func (c *evalCtx) applyFilter(s FilterSelector, n Node) []Node {
	var children []Node
	switch v := n.Value.(type) {
	case []any:
		for i, item := range v {
			children = append(children, Node{Value: item, Path: fmt.Sprintf("%s[%d]", n.Path, i)})
		}
	case map[string]any:
		for _, k := range orderedKeys(v) {
			children = append(children, Node{Value: v[k], Path: n.Path + "[" + quotePathName(k) + "]"})
		}
	default:
		return nil
	}
	var out []Node
	for _, child := range children {
		ok, err := evalFilterBool(s.Expr, filterContext{current: child.Value, root: c.root})
		if err != nil || !ok {
			continue
		}
		out = append(out, child)
	}
	return out
}

func orderedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	insertionSort(keys)
	return keys
}

// insertionSort avoids importing sort for a handful of keys per object and
// keeps the common small-object case allocation-free beyond the slice
// itself.
func insertionSort(keys []string) {
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
}
