package contracts

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuncProxy(t *testing.T) {
	reg := NewRegistry()
	c := mustBuild(t, reg, Func(String, Int), At("api.go", 4))
	impl := Located(func(n int) string { return strings.Repeat("x", n) }, At("impl.go", 9))

	out, err := c.CheckAndWrap(impl, Root(At("api.go", 4), At("main.go", 1)))
	require.NoError(t, err)
	fp := out.(*FuncProxy)
	assert.Equal(t, 1, fp.Arity())
	assert.Equal(t, "impl.go:9", token(fp.Location()))
	assert.Same(t, impl, fp.Inner())

	got, err := fp.Call(At("main.go", 2), 3)
	require.NoError(t, err)
	assert.Equal(t, "xxx", got)

	t.Run("bad argument blames the call site", func(t *testing.T) {
		_, err := fp.Call(At("main.go", 3), "3")
		e := requireViolation(t, err)
		assert.Equal(t, "main.go:3", token(e.LastResponsible()))
		ty, _ := e.NextTypeAndIndicator()
		assert.Equal(t, "func(int) string", ty)
		assert.Equal(t, "     ^^^", caret(e))
	})

	t.Run("wrong arity", func(t *testing.T) {
		_, err := fp.Call(At("main.go", 4))
		e := requireViolation(t, err)
		assert.Equal(t, []string{"expected 1 arguments, got 0"}, e.Notes)
		assert.Equal(t, "main.go:4", token(e.LastResponsible()))
	})
}

func TestFuncProxyBadResultBlamesImplementation(t *testing.T) {
	c := mustBuild(t, NewRegistry(), Func(String, Int), nil)
	impl := Located(func(n int) int { return n }, At("impl.go", 20))
	out, err := c.CheckAndWrap(impl, Root(At("api.go", 1), At("main.go", 1)))
	require.NoError(t, err)

	_, err = out.(*FuncProxy).Call(At("main.go", 2), 1)
	e := requireViolation(t, err)
	assert.Equal(t, "impl.go:20", token(e.LastResponsible()))
	assert.Equal(t, strings.Repeat(" ", len("func(int) "))+"^^^^^^", caret(e))
}

func TestFunctionCheckerRejectsNonCallables(t *testing.T) {
	c := mustBuild(t, NewRegistry(), Func(nil, Int), nil)
	for _, v := range []any{nil, 1, (func(int))(nil)} {
		_, err := c.CheckAndWrap(v, TopLevel())
		requireViolation(t, err)
	}
	_, err := c.CheckAndWrap(func(a, b int) {}, TopLevel())
	e := requireViolation(t, err)
	assert.Equal(t, []string{"expected 1 parameters, got 2"}, e.Notes)
}

func TestFuncProxyForwardsImplementationErrors(t *testing.T) {
	boom := errors.New("boom")
	c := mustBuild(t, NewRegistry(), Func(Int, Int), nil)
	out, err := c.CheckAndWrap(func(n int) (int, error) { return 0, boom }, TopLevel())
	require.NoError(t, err)
	_, err = out.(*FuncProxy).Call(nil, 1)
	assert.ErrorIs(t, err, boom)
}

func TestTypedFunc(t *testing.T) {
	reg := NewRegistry()
	decl := At("math.go", 3)
	add, err := reg.Func("add", Func(Int, Int, Int), func(a, b int) int { return a + b }, decl)
	require.NoError(t, err)
	assert.Equal(t, "func add(int, int) int", add.Describe())
	assert.Equal(t, "add", add.Name())
	assert.Equal(t, 2, add.Arity())
	assert.Same(t, decl, add.Location())

	got, err := add.Call(At("main.go", 10), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, got)

	_, err = add.Call(At("main.go", 11), 1, "2")
	e := requireViolation(t, err)
	assert.Equal(t, "main.go:11", token(e.LastResponsible()))
	assert.Equal(t, "math.go:3", token(e.LastDeclared()))
	assert.Equal(t, strings.Repeat(" ", len("func add(int, "))+"^^^", caret(e))

	_, err = add.Call(At("main.go", 12), 1)
	e = requireViolation(t, err)
	assert.Equal(t, []string{"expected 2 arguments, got 1"}, e.Notes)
}

func TestTypedFuncBadResultBlamesDeclaration(t *testing.T) {
	reg := NewRegistry()
	half, err := reg.Func("half", Func(Int, Int), func(n int) any { return float64(n) / 2 }, At("math.go", 8))
	require.NoError(t, err)

	_, err = half.Call(At("main.go", 1), 3)
	e := requireViolation(t, err)
	assert.Equal(t, "math.go:8", token(e.LastResponsible()))
	assert.Equal(t, strings.Repeat(" ", len("func half(int) "))+"^^^", caret(e))
}

func TestTypedFuncCallbackBlame(t *testing.T) {
	reg := NewRegistry()
	apply, err := reg.Func("apply", Func(Int, Func(Int, Int), Int),
		func(cb func(int) int, x int) int { return cb(x) }, At("lib.go", 5))
	require.NoError(t, err)

	t.Run("callback returning the wrong type blames the callback", func(t *testing.T) {
		cb := Located(func(x int) string { return "bad" }, At("user.go", 20))
		_, err := apply.Call(At("main.go", 7), cb, 1)
		e := requireViolation(t, err)
		assert.Equal(t, "user.go:20", token(e.LastResponsible()))
		ty, _ := e.NextTypeAndIndicator()
		assert.Equal(t, "func apply(func(int) int, int) int", ty)
		assert.Equal(t, strings.Repeat(" ", len("func apply(func(int) "))+"^^^", caret(e))
	})

	t.Run("well behaved callback", func(t *testing.T) {
		got, err := apply.Call(At("main.go", 8), func(x int) int { return x * 10 }, 4)
		require.NoError(t, err)
		assert.Equal(t, 40, got)
	})
}

func TestTypedFuncResultElementBlamesDeclaration(t *testing.T) {
	reg := NewRegistry()
	f, err := reg.Func("f", Func(SequenceOf(String), Int, Func(String, Int)),
		func(x int, cb func(int) string) []any { return []any{cb(x), 42} }, At("lib.go", 5))
	require.NoError(t, err)

	out, err := f.Call(At("main.go", 3), 7, Located(func(x int) string { return "seven" }, At("user.go", 2)))
	require.NoError(t, err)
	seq := out.(*SequenceProxy)

	first, err := seq.Get(0)
	require.NoError(t, err)
	assert.Equal(t, "seven", first)

	_, err = seq.Get(1)
	e := requireViolation(t, err)
	assert.Equal(t, 42, e.Given)
	assert.Equal(t, "lib.go:5", token(e.LastResponsible()))
	assert.Equal(t, "lib.go:5", token(e.LastDeclared()))
}

func TestTypedFuncMisuseOfCallbackBlamesFunction(t *testing.T) {
	reg := NewRegistry()
	decl := At("lib.go", 30)
	each, err := reg.Func("each", Func(nil, Func(nil, Int)), func(cb Invocable) error {
		_, err := cb.Call(decl, "not an int")
		return err
	}, decl)
	require.NoError(t, err)

	_, err = each.Call(At("main.go", 2), func(int) {})
	e := requireViolation(t, err)
	assert.Equal(t, "lib.go:30", token(e.LastResponsible()))
}

func TestTypedFuncConditions(t *testing.T) {
	reg := NewRegistry()
	div, err := reg.Func("div", Func(Int, Int, Int), func(a, b int) int { return a / b }, At("math.go", 1),
		WithPrecondition("b != 0", At("math.go", 2), func(args []any) bool { return args[1].(int) != 0 }),
		WithPostcondition("result <= a", At("math.go", 3), func(ret any, args []any) bool { return ret.(int) <= args[0].(int) }),
	)
	require.NoError(t, err)

	got, err := div.Call(At("main.go", 1), 6, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, got)

	_, err = div.Call(At("main.go", 2), 1, 0)
	e := requireViolation(t, err)
	assert.Equal(t, "passing: b != 0", e.Expected)
	assert.Equal(t, []string{"failed precondition"}, e.Notes)
	assert.Equal(t, "main.go:2", token(e.LastResponsible()))
	ty, _ := e.NextTypeAndIndicator()
	assert.Equal(t, "func div(int, int) int", ty)

	_, err = div.Call(At("main.go", 3), -6, 3)
	e = requireViolation(t, err)
	assert.Equal(t, []string{"failed postcondition"}, e.Notes)
	assert.Equal(t, "math.go:1", token(e.LastResponsible()))
}

func TestFuncConfigurationErrors(t *testing.T) {
	reg := NewRegistry()
	cases := []struct {
		name string
		impl any
		opts []FuncOption
		msg  string
	}{
		{name: "not callable", impl: 3, msg: "implementation int is not callable"},
		{name: "arity", impl: func() int { return 0 }, msg: "implementation takes 0 parameters, contract declares 1"},
		{name: "empty condition", impl: func(int) int { return 0 }, opts: []FuncOption{func(f *TypedFunc) { f.pre = append(f.pre, Condition{Source: "x"}) }}, msg: `condition "x" has no predicate`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := reg.Func("f", Func(Int, Int), tc.impl, At("f.go", 1), tc.opts...)
			ce := requireConfigError(t, err)
			assert.Contains(t, ce.Message, tc.msg)
		})
	}
}
