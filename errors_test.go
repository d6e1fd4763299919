package contracts

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFramePadsIndicator(t *testing.T) {
	f := NewFrame("[]int", "  ^", nil, nil)
	assert.Equal(t, "  ^  ", f.Indicator)

	f = NewFrame("int", "", nil, nil)
	assert.Equal(t, "^^^", f.Indicator)

	f = NewFrame("Τύπος", "", nil, nil)
	assert.Equal(t, "^^^^^", f.Indicator)
}

func TestValueContractErrorIsImmutable(t *testing.T) {
	base := NewValueContractError(1, "string").WithNote("first")
	a := base.WithNote("a").WithFrame(NewFrame("[]string", "", nil, At("a.go", 1)))
	b := base.WithNote("b")

	assert.Equal(t, []string{"first"}, base.Notes)
	assert.Equal(t, []string{"first", "a"}, a.Notes)
	assert.Equal(t, []string{"first", "b"}, b.Notes)
	assert.Empty(t, base.Frames)
	assert.Len(t, a.Frames, 1)

	inv := base.WithInvertedDirection()
	assert.Equal(t, In, base.Direction)
	assert.Equal(t, Out, inv.Direction)
	assert.Equal(t, In, inv.WithInvertedDirection().Direction)
}

func TestFramesRecordDirection(t *testing.T) {
	e := NewValueContractError("x", "int").
		WithFrame(NewFrame("[]int", "  ^^^", nil, At("writer.go", 5))).
		Settled().
		WithFrame(NewFrame("[]int", "  ^^^", At("api.go", 1), At("owner.go", 9)))

	want := []Frame{
		{Type: "[]int", Indicator: "  ^^^", Responsible: At("writer.go", 5), Direction: In},
		{Type: "[]int", Indicator: "  ^^^", Declared: At("api.go", 1), Responsible: At("owner.go", 9), Direction: Out},
	}
	if diff := cmp.Diff(want, e.Frames); diff != "" {
		t.Fatalf("frames mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "writer.go:5", token(e.LastResponsible()))
	assert.Equal(t, "api.go:1", token(e.LastDeclared()))
	assert.Same(t, e, e.Settled())
}

func TestLastResponsibleWithoutFrames(t *testing.T) {
	e := NewValueContractError(1, "string")
	assert.Nil(t, e.LastResponsible())
	assert.Nil(t, e.LastDeclared())
	ty, ind := e.NextTypeAndIndicator()
	assert.Equal(t, "string", ty)
	assert.Equal(t, "^^^^^^", ind)
}

func TestRender(t *testing.T) {
	decl := &Location{Unit: "api.go", Line: 12, Snippet: "var Ints = SequenceOf(Int)"}
	e := NewValueContractError("3", "int").
		WithFrame(NewFrame("[]int", "  ^^^", nil, At("main.go", 41))).
		Settled().
		WithFrame(NewFrame("[]int", "  ^^^", decl, At("main.go", 40))).
		WithNote("appended through a proxy")

	want := `given:    "3"
expected: value of type int
in:       []int
            ^^^

declared at: api.go:12
 12 | var Ints = SequenceOf(Int)

caused by: main.go:41

note: appended through a proxy`
	assert.Equal(t, want, e.Render(DefaultSnippetLines))
	assert.Equal(t, want, e.Error())
}

func TestRenderPreviousFirst(t *testing.T) {
	cause := NewValueContractError("", "Refined[string]").WithNote("failed predicate: non-empty")
	e := NewValueContractError(nil, "nil").WithPrevious(cause)

	want := `given:    ""
expected: value of type Refined[string]

note: failed predicate: non-empty

which caused:

given:    nil
expected: nil`
	assert.Equal(t, want, e.Render(0))
}

func TestRenderNil(t *testing.T) {
	var e *ValueContractError
	assert.Equal(t, "contract violation", e.Error())
	var ce *ConfigurationError
	assert.Equal(t, "invalid contract", ce.Error())
}

func TestConfigurationError(t *testing.T) {
	e := configErrorf("bad contract", At("api.go", 3))
	e2 := e.WithLocation(Location{Unit: "main.go", Line: 9})
	require.Len(t, e.Locations, 1)
	require.Len(t, e2.Locations, 2)
	assert.Equal(t, "bad contract\napi.go:3\nmain.go:9", e2.Error())
}
