package contracts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoadConfig(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		want    Config
		wantErr string
	}{
		{name: "empty", in: "", want: Config{SnippetLines: DefaultSnippetLines}},
		{name: "partial", in: "log_level: debug\n", want: Config{SnippetLines: DefaultSnippetLines, LogLevel: "debug"}},
		{name: "full", in: "snippet_lines: 0\ndisable_cache: true\nlog_level: warn\n", want: Config{DisableCache: true, LogLevel: "warn"}},
		{name: "unknown key", in: "colour: red\n", wantErr: "parse config"},
		{name: "negative snippets", in: "snippet_lines: -1\n", wantErr: "snippet_lines must be >= 0 (got -1)"},
		{name: "bad level", in: "log_level: loud\n", wantErr: `unknown log_level "loud"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := LoadConfig(strings.NewReader(tc.in))
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestConfigLogger(t *testing.T) {
	l, err := Config{}.Logger()
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.ErrorLevel))

	l, err = Config{LogLevel: "WARN"}.Logger()
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))

	_, err = Config{LogLevel: "chatty"}.Logger()
	require.Error(t, err)
}

func TestRegistryRenderUsesSnippetLines(t *testing.T) {
	decl := &Location{Unit: "api.go", Line: 4, Snippet: "Ports = SequenceOf(\n\tInt,\n)"}
	e := NewValueContractError("x", "int").WithFrame(NewFrame("[]int", "  ^^^", decl, nil))

	short := NewRegistry(WithConfig(Config{SnippetLines: 1})).Render(e)
	assert.Contains(t, short, "declared at: api.go:4\n  4 | Ports = SequenceOf(\n    | ...")

	none := NewRegistry(WithConfig(Config{})).Render(e)
	assert.True(t, strings.HasSuffix(none, "declared at: api.go:4"), none)
	assert.NotContains(t, none, " | ")

	full := NewRegistry().Render(e)
	assert.Contains(t, full, "  5 | \tInt,\n  6 | )")

	assert.Equal(t, "", NewRegistry().Render(nil))
	assert.Equal(t, "plain", NewRegistry().Render(errString("plain")))
}

type errString string

func (e errString) Error() string { return string(e) }

func TestRegistryLogsBuilds(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	reg := NewRegistry(WithLogger(zap.New(core)))

	mustBuild(t, reg, SequenceOf(Int), nil)
	assert.NotZero(t, logs.FilterMessage("contracts: built checker").Len())
	assert.Equal(t, 1, logs.FilterMessage("contracts: cached checker").FilterField(zap.String("contract", "[]int")).Len())

	_, err := reg.Build(EnumOf(), nil)
	require.Error(t, err)
	assert.Equal(t, 1, logs.FilterMessage("contracts: invalid contract").Len())
}
