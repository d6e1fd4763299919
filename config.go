package contracts

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config holds registry-wide settings. The zero value is usable; see DefaultConfig.
type Config struct {
	// SnippetLines bounds the source lines rendered under each location.
	SnippetLines int `yaml:"snippet_lines"`
	// DisableCache rebuilds checkers on every Build call.
	DisableCache bool `yaml:"disable_cache"`
	// LogLevel is one of debug, info, warn, error. Empty disables logging.
	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns the settings used when no Config is supplied.
func DefaultConfig() Config {
	return Config{SnippetLines: DefaultSnippetLines}
}

// LoadConfig decodes a YAML config. Unknown keys are rejected.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("contracts: parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports invalid settings.
func (c Config) Validate() error {
	if c.SnippetLines < 0 {
		return fmt.Errorf("contracts: snippet_lines must be >= 0 (got %d)", c.SnippetLines)
	}
	if _, err := c.level(); err != nil {
		return err
	}
	return nil
}

func (c Config) level() (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("contracts: unknown log_level %q", c.LogLevel)
	}
}

// Logger builds a production zap logger at the configured level, or a no-op logger when
// LogLevel is empty.
func (c Config) Logger() (*zap.Logger, error) {
	if strings.TrimSpace(c.LogLevel) == "" {
		return zap.NewNop(), nil
	}
	lvl, err := c.level()
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("contracts: build logger: %w", err)
	}
	return logger, nil
}
