package contractdoc

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openbindings/contracts-go"
)

const sampleDoc = `
version: 0.1.0
x-owner: platform
types:
  Stack:
    declared: stack.go:12
    params: [T]
    methods:
      Push: func(T)
      Len: func() int
  Named:
    methods:
      Name: func() string
contracts:
  Port:
    declared: net.go:4
    type: int
    schema: {minimum: 1, maximum: 65535}
    hints: [a TCP port]
  Level:
    declared: log.go:9
    type: string
    members: [debug, info, warn]
  Ports:
    type: "[]Port"
  Lookup:
    type: map[string]Named
`

func mustParse(t *testing.T, src string) *Document {
	t.Helper()
	d, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return d
}

func TestParseDocument(t *testing.T) {
	d := mustParse(t, sampleDoc)
	assert.Equal(t, "0.1.0", d.Version)
	assert.Equal(t, map[string]any{"x-owner": "platform"}, d.Extensions)
	assert.Empty(t, d.Unknown)

	want := TypeDecl{
		Declared: "stack.go:12",
		Params:   []ParamDecl{{Name: "T"}},
		Methods:  map[string]string{"Push": "func(T)", "Len": "func() int"},
	}
	if diff := cmp.Diff(want, d.Types["Stack"]); diff != "" {
		t.Fatalf("Stack mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []any{"debug", "info", "warn"}, d.Contracts["Level"].Members)
	assert.Equal(t, []string{"a TCP port"}, d.Contracts["Port"].Hints)
}

func TestParseJSON(t *testing.T) {
	d := mustParse(t, `{"version": "0.1.0", "contracts": {"Age": {"type": "int", "schema": {"minimum": 0}}}, "extra": true}`)
	assert.Equal(t, "int", d.Contracts["Age"].Type)
	assert.Equal(t, map[string]any{"extra": true}, d.Unknown)
}

func TestParseParamDeclForms(t *testing.T) {
	d := mustParse(t, `
version: 0.1.0
types:
  Box:
    params:
      - T
      - name: N
        oneOf: [int, float64]
    methods:
      Get: func() T
`)
	want := []ParamDecl{{Name: "T"}, {Name: "N", Constraints: []string{"int", "float64"}}}
	if diff := cmp.Diff(want, d.Types["Box"].Params); diff != "" {
		t.Fatalf("params mismatch (-want +got):\n%s", diff)
	}
}

func TestMarshalPreservesLosslessFields(t *testing.T) {
	d := mustParse(t, `
version: 0.1.0
x-top: 1
contracts:
  Age:
    type: int
    x-doc: years
    legacy: true
`)
	out, err := Marshal(d)
	require.NoError(t, err)

	back := mustParse(t, string(out))
	assert.Equal(t, map[string]any{"x-top": 1}, back.Extensions)
	assert.Equal(t, map[string]any{"x-doc": "years"}, back.Contracts["Age"].Extensions)
	assert.Equal(t, map[string]any{"legacy": true}, back.Contracts["Age"].Unknown)
	assert.Equal(t, "int", back.Contracts["Age"].Type)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contracts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleDoc), 0o600))
	d, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, d.Contracts, 4)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		src  string
		opts []ValidateOption
		want []string
	}{
		{
			name: "ok",
			src:  sampleDoc,
		},
		{
			name: "missing version",
			src:  "contracts: {A: {type: int}}",
			want: []string{"version: required"},
		},
		{
			name: "bad version",
			src:  "version: v1",
			want: []string{"version: must be MAJOR.MINOR.PATCH (e.g. 0.1.0)"},
		},
		{
			name: "unsupported version",
			src:  "version: 9.0.0",
			opts: []ValidateOption{WithRequireSupportedVersion()},
			want: []string{"version: unsupported version 9.0.0 (supported 0.1.0-0.1.x)"},
		},
		{
			name: "later patch is supported",
			src:  "version: 0.1.4\ncontracts: {A: {type: int}}",
			opts: []ValidateOption{WithRequireSupportedVersion()},
		},
		{
			name: "problems are sorted by key",
			src: `
version: 0.1.0
types:
  T1:
    declared: nowhere
    methods: {}
contracts:
  B: {type: ""}
  A: {type: int, members: []}
`,
			want: []string{
				`types["T1"].declared: location: invalid "nowhere" (want unit:line)`,
				`types["T1"].methods: required`,
				`contracts["A"].members: must not be empty`,
				`contracts["B"].type: required`,
			},
		},
		{
			name: "duplicate params",
			src: `
version: 0.1.0
types:
  Box:
    params: [T, T]
    methods: {Get: func() T}
`,
			want: []string{`types["Box"].params[1].name: duplicate parameter "T"`},
		},
		{
			name: "name in both sections",
			src: `
version: 0.1.0
types:
  Age: {methods: {Get: func() int}}
contracts:
  Age: {type: int}
`,
			want: []string{`types["Age"]: also declared under contracts`},
		},
		{
			name: "unknown fields only in strict mode",
			src:  "version: 0.1.0\nfoo: 1\nx-ok: 2\ncontracts: {A: {type: int, bar: 1}}",
			opts: []ValidateOption{WithRejectUnknownFields()},
			want: []string{`contracts["A"]: unknown fields: bar`, "unknown fields: foo"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := mustParse(t, tc.src).Validate(tc.opts...)
			if tc.want == nil {
				require.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			if diff := cmp.Diff(tc.want, ve.Problems); diff != "" {
				t.Fatalf("problems mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestValidationErrorNil(t *testing.T) {
	var e *ValidationError
	assert.Equal(t, "invalid contract document", e.Error())
}

func TestBuild(t *testing.T) {
	set, err := mustParse(t, sampleDoc).Build(contracts.NewRegistry())
	require.NoError(t, err)
	assert.Equal(t, []string{"Level", "Lookup", "Named", "Port", "Ports", "Stack"}, set.Names())

	c, ok := set.Checker("Port")
	require.True(t, ok)
	assert.Equal(t, `Refined[int, "a TCP port"]`, c.Describe())

	c, ok = set.Checker("Lookup")
	require.True(t, ok)
	assert.Equal(t, "map[string]Named", c.Describe())

	c, ok = set.Checker("Ports")
	require.True(t, ok)
	assert.Equal(t, `[]Refined[int, "a TCP port"]`, c.Describe())

	_, ok = set.Descriptor("Stack")
	assert.True(t, ok)
}

func TestSetCheck(t *testing.T) {
	set, err := mustParse(t, sampleDoc).Build(contracts.NewRegistry())
	require.NoError(t, err)
	site := contracts.At("main.go", 30)

	v, err := set.Check("Port", 8080, site)
	require.NoError(t, err)
	assert.Equal(t, 8080, v)

	_, err = set.Check("Port", 70000, site)
	var vce *contracts.ValueContractError
	require.True(t, errors.As(err, &vce))
	assert.Equal(t, "main.go:30", vce.LastResponsible().Token())
	assert.Equal(t, "net.go:4", vce.LastDeclared().Token())

	_, err = set.Check("Level", "trace", site)
	require.True(t, errors.As(err, &vce))
	assert.Contains(t, vce.Error(), `"trace" is not in ["debug", "info", "warn"]`)

	_, err = set.Check("Nope", 1, site)
	assert.ErrorIs(t, err, ErrUnknownContract)
}

func TestBuildErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
		msg  string
	}{
		{
			name: "bad expression",
			src:  "version: 0.1.0\ncontracts: {A: {type: \"map[int\"}}",
			msg:  `contracts["A"].type`,
		},
		{
			name: "self reference",
			src:  "version: 0.1.0\ncontracts: {A: {type: \"[]A\"}}",
			msg:  `contracts["A"]: refers to itself`,
		},
		{
			name: "method is not a function",
			src:  "version: 0.1.0\ntypes: {T: {methods: {Get: int}}}",
			msg:  `types["T"].methods["Get"]: "int" is not a function type`,
		},
		{
			name: "bad schema",
			src:  "version: 0.1.0\ncontracts: {A: {type: int, schema: {type: 12}}}",
			msg:  `contracts["A"].schema`,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := mustParse(t, tc.src).Build(contracts.NewRegistry())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.msg)
		})
	}
}

func TestBuildRecursiveTypes(t *testing.T) {
	set, err := mustParse(t, `
version: 0.1.0
types:
  Node:
    methods:
      Next: func() Optional[Node]
      Value: func() int
`).Build(contracts.NewRegistry())
	require.NoError(t, err)
	c, ok := set.Checker("Node")
	require.True(t, ok)
	assert.Equal(t, "Node", c.Describe())
}

func TestBuildStrictRejectsUnknown(t *testing.T) {
	_, err := mustParse(t, "version: 0.1.0\nbogus: 1").Build(contracts.NewRegistry(), WithRejectUnknownFields())
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
}

func TestSupportedVersions(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{in: "0.1.0", want: true},
		{in: "0.1.7", want: true},
		{in: "0.0.9", want: false},
		{in: "0.2.0", want: false},
		{in: "1.0.0", want: false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			v, err := ParseVersion(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.in, v.String())
			assert.Equal(t, tc.want, SupportedVersions.Contains(v))
		})
	}
	assert.Equal(t, "0.1.0-0.1.x", SupportedVersions.String())
}

func TestParseVersionRejects(t *testing.T) {
	for _, in := range []string{"", "1.2", "1.-2.0", "1.+2.0", "v1.0.0", "1.2.3.4", " 0.1.0"} {
		_, err := ParseVersion(in)
		assert.Error(t, err, in)
	}
}

func TestVersionCompare(t *testing.T) {
	a := Version{Major: 0, Minor: 1, Patch: 2}
	assert.Equal(t, 0, a.Compare(a))
	assert.Equal(t, -1, a.Compare(Version{Minor: 2}))
	assert.Equal(t, 1, a.Compare(Version{Minor: 1, Patch: 1}))
	assert.Equal(t, -1, a.Compare(Version{Major: 1}))
}
