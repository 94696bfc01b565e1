package jsonpath

import "fmt"

// parser consumes a token stream and builds a validated Selector sequence,
// per spec §4.1:
//  1. Require $; emit Root.
//  2. Repeatedly parse a segment: dot-segment (.name, .*) or bracket-segment.
//  3. Bracket bodies are a comma-separated selector list; one member stays a
//     single selector, more than one becomes a Union.
//  4. .. emits RecursiveDescent and requires a following segment.
//  5. Filter subparser precedence: || < && < ! < comparison < primary.
type parser struct {
	toks []token
	pos  int
	text string
}

func (p *parser) peek() token  { return p.toks[p.pos] }
func (p *parser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) errf(pos int, format string, args ...any) error {
	return &compileError{reason: fmt.Sprintf(format, args...), pos: pos}
}

func (p *parser) expect(kind tokenKind, what string) (token, error) {
	t := p.peek()
	if t.kind != kind {
		return t, p.errf(t.pos, "expected %s, found %q", what, t.text)
	}
	return p.advance(), nil
}

// parseExpression parses a complete JSONPath expression: $ followed by zero
// or more segments.
func parseExpression(text string) (*Expression, error) {
	toks, err := newTokenizer(text).tokenize()
	if err != nil {
		return nil, asInvalidExpression(text, err)
	}
	p := &parser{toks: toks, text: text}

	if p.peek().kind != tokDollar {
		return nil, &InvalidExpressionError{Expression: text, Reason: "expression must start with '$'", Position: p.peek().pos}
	}
	p.advance()

	selectors := []Selector{RootSelector{}}
	for p.peek().kind != tokEOF {
		segSelectors, err := p.parseSegment()
		if err != nil {
			return nil, asInvalidExpression(text, err)
		}
		selectors = append(selectors, segSelectors...)
	}

	if _, ok := selectors[len(selectors)-1].(RecursiveDescentSelector); ok {
		return nil, &InvalidExpressionError{Expression: text, Reason: "recursive descent requires trailing segment", Position: len(text)}
	}

	return &Expression{Text: text, Selectors: selectors}, nil
}

func asInvalidExpression(text string, err error) error {
	if ce, ok := err.(*compileError); ok {
		return &InvalidExpressionError{Expression: text, Reason: ce.reason, Position: ce.pos}
	}
	return &InvalidExpressionError{Expression: text, Reason: err.Error(), Position: -1}
}

// parseSegment parses one dot-segment or bracket-segment, returning the one
// or two Selectors it produces (".." produces RecursiveDescent plus
// whatever the segment after it produces, recursively consumed here so the
// caller sees a flat sequence).
func (p *parser) parseSegment() ([]Selector, error) {
	switch p.peek().kind {
	case tokDotDot:
		dotdot := p.advance()
		if p.peek().kind == tokEOF {
			return nil, p.errf(dotdot.pos, "recursive descent requires trailing segment")
		}
		var rest []Selector
		switch p.peek().kind {
		case tokLBracket:
			sels, err := p.parseBracketSegment()
			if err != nil {
				return nil, err
			}
			rest = sels
		case tokStar:
			p.advance()
			rest = []Selector{WildcardSelector{}}
		case tokIdent:
			name := p.advance().text
			rest = []Selector{ChildSelector{Name: name}}
		default:
			return nil, p.errf(p.peek().pos, "expected segment after '..'")
		}
		return append([]Selector{RecursiveDescentSelector{}}, rest...), nil
	case tokDot:
		p.advance()
		switch p.peek().kind {
		case tokStar:
			p.advance()
			return []Selector{WildcardSelector{}}, nil
		case tokIdent:
			name := p.advance().text
			return []Selector{ChildSelector{Name: name}}, nil
		default:
			return nil, p.errf(p.peek().pos, "expected property name or '*' after '.'")
		}
	case tokLBracket:
		return p.parseBracketSegment()
	default:
		return nil, p.errf(p.peek().pos, "expected '.', '..' or '[' to start a segment")
	}
}

// parseBracketSegment parses `[` selector (`,` selector)* `]`.
func (p *parser) parseBracketSegment() ([]Selector, error) {
	lbr, err := p.expect(tokLBracket, "'['")
	if err != nil {
		return nil, err
	}
	var members []Selector
	for {
		sel, err := p.parseBracketSelector()
		if err != nil {
			return nil, err
		}
		members = append(members, sel)
		if p.peek().kind == tokComma {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(tokRBracket, "']'"); err != nil {
		return nil, err
	}
	if len(members) == 1 {
		return members, nil
	}
	for _, m := range members {
		if _, ok := m.(UnionSelector); ok {
			return nil, p.errf(lbr.pos, "a union member cannot itself be a union")
		}
	}
	return []Selector{UnionSelector{Members: members}}, nil
}

// parseBracketSelector parses one element of a bracket body: integer index,
// slice, quoted name, wildcard, or filter.
func (p *parser) parseBracketSelector() (Selector, error) {
	switch p.peek().kind {
	case tokStar:
		p.advance()
		return WildcardSelector{}, nil
	case tokString:
		name := p.advance().text
		return ChildSelector{Name: name}, nil
	case tokQuestion:
		p.advance()
		expr, err := p.parseLogicalOr()
		if err != nil {
			return nil, err
		}
		if err := typeCheckFilter(expr); err != nil {
			return nil, err
		}
		return FilterSelector{Expr: expr}, nil
	case tokInteger, tokColon:
		return p.parseIndexOrSlice()
	case tokIdent:
		// Unquoted bareword name is not legal per RFC 9535 bracket syntax
		// but some expressions informally use it; reject with a clear
		// message rather than silently accepting.
		t := p.peek()
		return nil, p.errf(t.pos, "bracket name selectors require quotes: %q", t.text)
	default:
		t := p.peek()
		return nil, p.errf(t.pos, "unexpected token %q inside brackets", t.text)
	}
}

func (p *parser) parseIndexOrSlice() (Selector, error) {
	var start, end *int64
	var step int64 = 1
	hasColon := false

	if p.peek().kind == tokInteger {
		v := p.advance().intVal
		start = &v
	}
	if p.peek().kind == tokColon {
		hasColon = true
		p.advance()
		if p.peek().kind == tokInteger {
			v := p.advance().intVal
			end = &v
		}
		if p.peek().kind == tokColon {
			p.advance()
			if p.peek().kind == tokInteger {
				v := p.advance().intVal
				step = v
			}
		}
	}

	if !hasColon {
		if start == nil {
			return nil, p.errf(p.peek().pos, "expected integer index or slice")
		}
		return IndexSelector{Index: *start}, nil
	}
	if step == 0 {
		return nil, p.errf(p.peek().pos, "slice step must not be zero")
	}
	return SliceSelector{Start: start, End: end, Step: step}, nil
}

// --- Filter expression parsing: || < && < ! < comparison < primary ---

func (p *parser) parseLogicalOr() (FilterNode, error) {
	lhs, err := p.parseLogicalAnd()
	if err != nil {
		return nil, err
	}
	children := []FilterNode{lhs}
	for p.peek().kind == tokOr {
		p.advance()
		rhs, err := p.parseLogicalAnd()
		if err != nil {
			return nil, err
		}
		children = append(children, rhs)
	}
	if len(children) == 1 {
		return children[0], nil
	}
	return LogicalNode{Op: LogicalOr, Children: children}, nil
}

func (p *parser) parseLogicalAnd() (FilterNode, error) {
	lhs, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	children := []FilterNode{lhs}
	for p.peek().kind == tokAnd {
		p.advance()
		rhs, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		children = append(children, rhs)
	}
	if len(children) == 1 {
		return children[0], nil
	}
	return LogicalNode{Op: LogicalAnd, Children: children}, nil
}

func (p *parser) parseUnary() (FilterNode, error) {
	if p.peek().kind == tokNot {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return LogicalNode{Op: LogicalNot, Children: []FilterNode{operand}}, nil
	}
	return p.parseComparison()
}

var compareOps = map[tokenKind]ComparisonOp{
	tokEq: CompEq, tokNeq: CompNeq, tokLt: CompLt, tokLe: CompLe, tokGt: CompGt, tokGe: CompGe,
}

func (p *parser) parseComparison() (FilterNode, error) {
	lhs, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if op, ok := compareOps[p.peek().kind]; ok {
		p.advance()
		rhs, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		return ComparisonNode{Op: op, LHS: lhs, RHS: rhs}, nil
	}
	return lhs, nil
}

func (p *parser) parsePrimary() (FilterNode, error) {
	t := p.peek()
	switch t.kind {
	case tokLParen:
		p.advance()
		expr, err := p.parseLogicalOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return expr, nil
	case tokString:
		p.advance()
		return LiteralNode{Value: Str(t.text)}, nil
	case tokInteger:
		p.advance()
		return LiteralNode{Value: Int(t.intVal)}, nil
	case tokNumber:
		p.advance()
		return LiteralNode{Value: Num(t.numVal)}, nil
	case tokTrue:
		p.advance()
		return LiteralNode{Value: Bool(true)}, nil
	case tokFalse:
		p.advance()
		return LiteralNode{Value: Bool(false)}, nil
	case tokNull:
		p.advance()
		return LiteralNode{Value: Null()}, nil
	case tokAt:
		p.advance()
		path, err := p.parseDotPath()
		if err != nil {
			return nil, err
		}
		return CurrentNode{Path: path}, nil
	case tokDollar:
		p.advance()
		path, err := p.parseDotPath()
		if err != nil {
			return nil, err
		}
		return RootNode{Path: path}, nil
	case tokIdent:
		return p.parseFunctionCall()
	default:
		return nil, p.errf(t.pos, "unexpected token %q in filter expression", t.text)
	}
}

// parseDotPath parses a chain of `.name` or `['name']` accessors following
// @ or $ inside a filter expression.
func (p *parser) parseDotPath() ([]string, error) {
	var path []string
	for {
		switch p.peek().kind {
		case tokDot:
			p.advance()
			t := p.peek()
			if t.kind != tokIdent {
				return nil, p.errf(t.pos, "expected property name after '.'")
			}
			p.advance()
			path = append(path, t.text)
		case tokLBracket:
			p.advance()
			t := p.peek()
			if t.kind != tokString {
				return nil, p.errf(t.pos, "expected quoted name inside '[' in filter path")
			}
			p.advance()
			path = append(path, t.text)
			if _, err := p.expect(tokRBracket, "']'"); err != nil {
				return nil, err
			}
		default:
			return path, nil
		}
	}
}

var functionArities = map[string]int{
	"length": 1, "count": 1, "match": 2, "search": 2, "value": 1,
}

func (p *parser) parseFunctionCall() (FilterNode, error) {
	name := p.advance().text
	arity, known := functionArities[name]
	if !known {
		return nil, p.errf(p.toks[p.pos-1].pos, "unknown function %q", name)
	}
	if _, err := p.expect(tokLParen, "'('"); err != nil {
		return nil, err
	}
	var args []FilterNode
	if p.peek().kind != tokRParen {
		for {
			arg, err := p.parseLogicalOr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.peek().kind == tokComma {
				p.advance()
				continue
			}
			break
		}
	}
	if _, err := p.expect(tokRParen, "')'"); err != nil {
		return nil, err
	}
	if len(args) != arity {
		return nil, p.errf(p.toks[p.pos-1].pos, "function %q takes %d argument(s), got %d", name, arity, len(args))
	}
	return FunctionNode{Name: name, Args: args}, nil
}
