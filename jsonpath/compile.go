package jsonpath

// CompileOption configures a compiled Expression's evaluation limits.
type CompileOption func(*compileOptions)

// WithMaxNodes overrides the default result-size cap (see NodeLimitError).
func WithMaxNodes(n int) CompileOption {
	return func(o *compileOptions) { o.maxNodes = n }
}

// Compile parses and validates expr as an RFC 9535 JSONPath expression,
// returning a reusable, concurrency-safe Expression. It is the sole public
// entry point into the package's parser and type checker.
func Compile(expr string, opts ...CompileOption) (*Expression, error) {
	e, err := parseExpression(expr)
	if err != nil {
		return nil, err
	}
	e.opts = defaultCompileOptions()
	for _, opt := range opts {
		opt(&e.opts)
	}
	return e, nil
}

// MustCompile is like Compile but panics on error, for package-level
// expression tables initialized at startup.
func MustCompile(expr string) *Expression {
	e, err := Compile(expr)
	if err != nil {
		panic(err)
	}
	return e
}
