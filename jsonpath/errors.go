package jsonpath

import "fmt"

// InvalidExpressionError is returned by Compile when an expression fails to
// parse or fails static type checking.
type InvalidExpressionError struct {
	Expression string
	Reason     string
	// Position is the byte offset into Expression where the problem was
	// detected, or -1 if no single position applies.
	Position int
}

func (e *InvalidExpressionError) Error() string {
	if e.Position >= 0 {
		return fmt.Sprintf("invalid expression %q at byte %d: %s", e.Expression, e.Position, e.Reason)
	}
	return fmt.Sprintf("invalid expression %q: %s", e.Expression, e.Reason)
}
