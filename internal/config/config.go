// Package config loads the vecverify YAML configuration.
//
// Every key is optional; absent keys keep their defaults. Unknown keys are
// rejected so typos surface as errors instead of silently using defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/vecverify/internal/harness"
	"github.com/roach88/vecverify/internal/vm"
)

// Config is the complete vecverify configuration.
type Config struct {
	Runtime   RuntimeConfig   `yaml:"runtime"`
	Harness   HarnessConfig   `yaml:"harness"`
	Tolerance ToleranceConfig `yaml:"tolerance"`
	Log       LogConfig       `yaml:"log"`
}

// RuntimeConfig configures the tiered runtime.
type RuntimeConfig struct {
	UnlockDiagnostics     bool `yaml:"unlock_diagnostics"`
	Tier3Threshold        int  `yaml:"tier3_invocation_threshold"`
	Tier4Threshold        int  `yaml:"tier4_invocation_threshold"`
	BackgroundCompilation bool `yaml:"background_compilation"`

	// VectorWidth is in bytes; 0 detects the host width, negative disables
	// vectorization.
	VectorWidth int `yaml:"vector_width"`

	UseSuperWord          bool `yaml:"use_superword"`
	StrictFloatReductions bool `yaml:"strict_float_reductions"`
}

// HarnessConfig configures the verification harness.
type HarnessConfig struct {
	// WarmupBudget bounds the warm-up loop, in invocations.
	WarmupBudget     int  `yaml:"warmup_budget"`
	CheckIdempotence bool `yaml:"check_idempotence"`
}

// ToleranceConfig holds the default comparison policies for floating-point
// kernels without an explicit //vec:tolerance directive.
type ToleranceConfig struct {
	FloatElementwise  string `yaml:"float_elementwise"`
	DoubleElementwise string `yaml:"double_elementwise"`
	FloatReduction    string `yaml:"float_reduction"`
	DoubleReduction   string `yaml:"double_reduction"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	rt := vm.DefaultConfig()
	return &Config{
		Runtime: RuntimeConfig{
			UnlockDiagnostics:     rt.UnlockDiagnostics,
			Tier3Threshold:        rt.Tier3Threshold,
			Tier4Threshold:        rt.Tier4Threshold,
			BackgroundCompilation: rt.BackgroundCompilation,
			VectorWidth:           rt.VectorWidth,
			UseSuperWord:          rt.UseSuperWord,
			StrictFloatReductions: rt.StrictFloatReductions,
		},
		Harness: HarnessConfig{
			WarmupBudget:     harness.DefaultWarmupBudget,
			CheckIdempotence: true,
		},
		Tolerance: ToleranceConfig{
			FloatElementwise:  "ulp=1",
			DoubleElementwise: "ulp=1",
			FloatReduction:    "abs=1e-5,rel=1e-5",
			DoubleReduction:   "abs=1e-12,rel=1e-12",
		},
		Log: LogConfig{Level: "warn"},
	}
}

// Load reads the configuration file at path. An empty path returns the
// defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every setting.
func (c *Config) Validate() error {
	if err := c.VM().Validate(); err != nil {
		return fmt.Errorf("runtime: %w", err)
	}
	if c.Harness.WarmupBudget < 1 {
		return fmt.Errorf("harness: warmup_budget must be at least 1, got %d", c.Harness.WarmupBudget)
	}
	if _, err := c.Tolerances(); err != nil {
		return err
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

// VM returns the runtime settings.
func (c *Config) VM() vm.Config {
	return vm.Config{
		UnlockDiagnostics:     c.Runtime.UnlockDiagnostics,
		Tier3Threshold:        c.Runtime.Tier3Threshold,
		Tier4Threshold:        c.Runtime.Tier4Threshold,
		BackgroundCompilation: c.Runtime.BackgroundCompilation,
		VectorWidth:           c.Runtime.VectorWidth,
		UseSuperWord:          c.Runtime.UseSuperWord,
		StrictFloatReductions: c.Runtime.StrictFloatReductions,
	}
}

// Tolerances parses the default tolerance policies.
func (c *Config) Tolerances() (harness.Tolerances, error) {
	var out harness.Tolerances
	fields := []struct {
		key string
		src string
		dst *harness.Tolerance
	}{
		{"float_elementwise", c.Tolerance.FloatElementwise, &out.FloatElementwise},
		{"double_elementwise", c.Tolerance.DoubleElementwise, &out.DoubleElementwise},
		{"float_reduction", c.Tolerance.FloatReduction, &out.FloatReduction},
		{"double_reduction", c.Tolerance.DoubleReduction, &out.DoubleReduction},
	}
	for _, f := range fields {
		tol, err := harness.ParseTolerance(f.src)
		if err != nil {
			return harness.Tolerances{}, fmt.Errorf("tolerance.%s: %w", f.key, err)
		}
		*f.dst = tol
	}
	return out, nil
}

// HarnessOptions returns the harness settings.
func (c *Config) HarnessOptions() (harness.Options, error) {
	tols, err := c.Tolerances()
	if err != nil {
		return harness.Options{}, err
	}
	return harness.Options{
		WarmupBudget:     c.Harness.WarmupBudget,
		CheckIdempotence: c.Harness.CheckIdempotence,
		Tolerances:       tols,
	}, nil
}

// LogLevel parses the configured log level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// Logger returns a text logger writing to w at the configured level.
// Verbose lowers the level to debug.
func (c *Config) Logger(w io.Writer, verbose bool) (*slog.Logger, error) {
	level, err := c.LogLevel()
	if err != nil {
		return nil, err
	}
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), nil
}
