package jsonpath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile_ValidExpressions(t *testing.T) {
	cases := []struct {
		name string
		expr string
		want string
	}{
		{"root", "$", "$"},
		{"dot child", "$.store.book", `$["store"]["book"]`},
		{"bracket child", `$['store']['book']`, `$["store"]["book"]`},
		{"index", "$.store.book[0]", `$["store"]["book"][0]`},
		{"negative index", "$.store.book[-1]", `$["store"]["book"][-1]`},
		{"wildcard", "$.store.book[*]", `$["store"]["book"][*]`},
		{"dot wildcard", "$.store.*", `$["store"][*]`},
		{"slice", "$.store.book[1:3]", `$["store"]["book"][1:3]`},
		{"slice with step", "$.store.book[::2]", `$["store"]["book"][::2]`},
		{"recursive descent", "$..price", `$..["price"]`},
		{"union", "$.store.book[0,2]", `$["store"]["book"][[0],[2]]`},
		{"filter", "$.store.book[?@.price < 10]", `$["store"]["book"][?@.price < 10]`},
		{"function filter", "$.store.book[?length(@.title) > 5]", `$["store"]["book"][?length(@.title) > 5]`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Compile(tc.expr)
			require.NoError(t, err)
		})
	}
}

func TestCompile_InvalidExpressions(t *testing.T) {
	cases := []struct {
		name string
		expr string
	}{
		{"missing root", "store.book"},
		{"bare recursive descent", "$.."},
		{"unquoted bracket name", "$[store]"},
		{"zero step slice", "$.book[::0]"},
		{"nested union", "$[0,[1,2]]"},
		{"unknown function", "$[?unknown(@.x)]"},
		{"wrong arity", "$[?length(@.x, @.y)]"},
		{"non singular comparison", "$[?@.* == 1]"},
		{"unterminated string", `$['abc]`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Compile(tc.expr)
			require.Error(t, err)
			var invalid *InvalidExpressionError
			assert.ErrorAs(t, err, &invalid)
		})
	}
}

func TestCompile_Idempotent(t *testing.T) {
	e1, err := Compile("$.a.b[0]")
	require.NoError(t, err)
	e2, err := Compile("$.a.b[0]")
	require.NoError(t, err)
	assert.Equal(t, e1.String(), e2.String())
}
