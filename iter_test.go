package contracts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counter(limit int) *Coroutine {
	return NewCoroutine(func(yield func(any) any) any {
		total := 0
		for i := 0; i < limit; i++ {
			if s, ok := yield(i).(int); ok {
				total += s
			}
		}
		return total
	})
}

func TestCoroutine(t *testing.T) {
	co := counter(2)
	defer co.Close()

	v, done, err := co.Resume(nil, "ignored")
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, 0, v)

	v, done, err = co.Resume(nil, 10)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, 1, v)

	v, done, err = co.Resume(nil, 5)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, 15, v)

	_, done, err = co.Resume(nil, nil)
	assert.True(t, done)
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestCoroutineCloseWhileSuspended(t *testing.T) {
	co := counter(100)
	_, _, err := co.Resume(nil, nil)
	require.NoError(t, err)
	co.Close()
	co.Close()

	_, done, err := co.Resume(nil, nil)
	assert.True(t, done)
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestCoroutinePanicBecomesError(t *testing.T) {
	co := NewCoroutine(func(yield func(any) any) any {
		yield(1)
		panic("kaput")
	})
	defer co.Close()

	_, _, err := co.Resume(nil, nil)
	require.NoError(t, err)
	_, done, err := co.Resume(nil, nil)
	assert.True(t, done)
	assert.EqualError(t, err, "contracts: generator panicked: kaput")
}

func wrapGenerator(t *testing.T, g Resumable) *GeneratorProxy {
	t.Helper()
	c := mustBuild(t, NewRegistry(), GeneratorOf(Int, String, Bool), At("api.go", 30))
	out, err := c.CheckAndWrap(g, Root(At("api.go", 30), At("main.go", 1)))
	require.NoError(t, err)
	return out.(*GeneratorProxy)
}

func TestGeneratorBadYieldBlamesGenerator(t *testing.T) {
	co := NewCoroutine(func(yield func(any) any) any {
		yield(1)
		yield("two")
		return true
	}).At(At("gen.go", 4))
	g := wrapGenerator(t, co)
	defer g.Close()

	v, _, err := g.Resume(At("main.go", 2), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	_, _, err = g.Resume(At("main.go", 3), "go on")
	e := requireViolation(t, err)
	assert.Equal(t, "gen.go:4", token(e.LastResponsible()))
	ty, _ := e.NextTypeAndIndicator()
	assert.Equal(t, "Generator[int, string, bool]", ty)
	assert.Equal(t, "          ^^^", caret(e))
}

func TestGeneratorChecksSentValues(t *testing.T) {
	co := NewCoroutine(func(yield func(any) any) any {
		for {
			if yield(0) == "stop" {
				return true
			}
		}
	}).At(At("gen.go", 10))
	g := wrapGenerator(t, co)
	defer g.Close()

	_, _, err := g.Resume(At("main.go", 2), 12345)
	require.NoError(t, err, "the first send only starts the generator")

	_, _, err = g.Resume(At("main.go", 3), 7)
	e := requireViolation(t, err)
	assert.Equal(t, "main.go:3", token(e.LastResponsible()))
	assert.Equal(t, strings.Repeat(" ", len("Generator[int, "))+"^^^^^^", caret(e))

	v, done, err := g.Resume(At("main.go", 4), "stop")
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, true, v)
}

func TestGeneratorBadReturnValue(t *testing.T) {
	co := NewCoroutine(func(yield func(any) any) any { return "done" }).At(At("gen.go", 20))
	g := wrapGenerator(t, co)
	defer g.Close()

	_, done, err := g.Resume(nil, nil)
	assert.True(t, done)
	e := requireViolation(t, err)
	assert.Equal(t, "gen.go:20", token(e.LastResponsible()))
	assert.Equal(t, strings.Repeat(" ", len("Generator[int, string, "))+"^^^^", caret(e))
}

func TestGeneratorRejectsNonGenerators(t *testing.T) {
	c := mustBuild(t, NewRegistry(), GeneratorOf(Int, nil, nil), nil)
	for _, v := range []any{nil, 1, []int{1}, (*Coroutine)(nil)} {
		_, err := c.CheckAndWrap(v, TopLevel())
		requireViolation(t, err)
	}
}

func drain(t *testing.T, it *IteratorProxy) ([]any, error) {
	t.Helper()
	var got []any
	for v, err := range it.All() {
		if err != nil {
			return got, err
		}
		got = append(got, v)
	}
	return got, nil
}

func TestIteratorSources(t *testing.T) {
	reg := NewRegistry()
	c := mustBuild(t, reg, IteratorOf(Int), At("api.go", 40))

	ch := make(chan int, 3)
	ch <- 1
	ch <- 2
	ch <- 3
	close(ch)

	seq := func(yield func(int) bool) {
		for i := 10; i < 13; i++ {
			if !yield(i) {
				return
			}
		}
	}

	cases := []struct {
		name string
		src  any
		want []any
	}{
		{"channel", ch, []any{1, 2, 3}},
		{"seq", seq, []any{10, 11, 12}},
		{"coroutine", counter(3), []any{0, 1, 2}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := c.CheckAndWrap(tc.src, TopLevel())
			require.NoError(t, err)
			got, err := drain(t, out.(*IteratorProxy))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestIteratorBadElementBlamesSource(t *testing.T) {
	c := mustBuild(t, NewRegistry(), IteratorOf(Int), nil)
	co := NewCoroutine(func(yield func(any) any) any {
		yield(1)
		yield("x")
		yield(3)
		return nil
	}).At(At("gen.go", 50))

	out, err := c.CheckAndWrap(co, Root(nil, At("main.go", 1)))
	require.NoError(t, err)
	got, err := drain(t, out.(*IteratorProxy))
	assert.Equal(t, []any{1}, got)
	e := requireViolation(t, err)
	assert.Equal(t, "gen.go:50", token(e.LastResponsible()))
	assert.Equal(t, strings.Repeat(" ", len("Iterator["))+"^^^", caret(e))
}

func TestIteratorStopReleasesSeq(t *testing.T) {
	c := mustBuild(t, NewRegistry(), IteratorOf(Int), nil)
	out, err := c.CheckAndWrap(func(yield func(int) bool) {
		for i := 0; ; i++ {
			if !yield(i) {
				return
			}
		}
	}, TopLevel())
	require.NoError(t, err)
	it := out.(*IteratorProxy)

	v, ok, err := it.Next()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, v)
	it.Stop()

	_, ok, err = it.Next()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIteratorRejectsNonIterators(t *testing.T) {
	c := mustBuild(t, NewRegistry(), IteratorOf(Int), nil)
	for _, v := range []any{nil, 1, func(int) bool { return true }, make(chan<- int)} {
		_, err := c.CheckAndWrap(v, TopLevel())
		requireViolation(t, err)
	}
}
