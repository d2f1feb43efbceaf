package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vecverify/internal/harness"
)

func TestDefault(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	assert.True(t, cfg.Runtime.UnlockDiagnostics)
	assert.Equal(t, 4, cfg.Runtime.Tier3Threshold)
	assert.Equal(t, 16, cfg.Runtime.Tier4Threshold)
	assert.False(t, cfg.Runtime.BackgroundCompilation)
	assert.Equal(t, 0, cfg.Runtime.VectorWidth)
	assert.True(t, cfg.Runtime.UseSuperWord)
	assert.False(t, cfg.Runtime.StrictFloatReductions)
	assert.Equal(t, 200, cfg.Harness.WarmupBudget)
	assert.True(t, cfg.Harness.CheckIdempotence)

	tols, err := cfg.Tolerances()
	require.NoError(t, err)
	assert.Equal(t, harness.Tolerance{Mode: harness.ToleranceULP, ULP: 1}, tols.FloatElementwise)
	assert.Equal(t, harness.Tolerance{Mode: harness.ToleranceAbsRel, Abs: 1e-5, Rel: 1e-5}, tols.FloatReduction)
	assert.Equal(t, harness.Tolerance{Mode: harness.ToleranceAbsRel, Abs: 1e-12, Rel: 1e-12}, tols.DoubleReduction)

	level, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)
}

func TestParse_PartialOverride(t *testing.T) {
	cfg, err := Parse([]byte(`
runtime:
  vector_width: 16
  background_compilation: true
harness:
  check_idempotence: false
tolerance:
  float_reduction: "ulp=4"
log:
  level: debug
`))
	require.NoError(t, err)

	assert.Equal(t, 16, cfg.Runtime.VectorWidth)
	assert.True(t, cfg.Runtime.BackgroundCompilation)
	assert.Equal(t, 4, cfg.Runtime.Tier3Threshold, "unset keys keep defaults")
	assert.True(t, cfg.Runtime.UseSuperWord, "unset keys keep defaults")
	assert.False(t, cfg.Harness.CheckIdempotence)
	assert.Equal(t, 200, cfg.Harness.WarmupBudget)

	vmCfg := cfg.VM()
	assert.Equal(t, 16, vmCfg.VectorWidth)
	assert.True(t, vmCfg.BackgroundCompilation)

	opts, err := cfg.HarnessOptions()
	require.NoError(t, err)
	assert.Equal(t, harness.Tolerance{Mode: harness.ToleranceULP, ULP: 4}, opts.Tolerances.FloatReduction)
	assert.False(t, opts.CheckIdempotence)

	level, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"unknown key", "runtime:\n  vector_widht: 16\n", "field vector_widht not found"},
		{"bad tolerance", "tolerance:\n  float_elementwise: \"ulp=-1\"\n", "tolerance.float_elementwise"},
		{"bad level", "log:\n  level: loud\n", "log.level"},
		{"thresholds", "runtime:\n  tier4_invocation_threshold: 2\n", "runtime: tier4 invocation threshold 2 is below tier3 threshold 4"},
		{"budget", "harness:\n  warmup_budget: 0\n", "warmup_budget must be at least 1"},
		{"syntax", "runtime: [", "failed to parse config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	path := filepath.Join(t.TempDir(), "vecverify.yaml")
	require.NoError(t, os.WriteFile(path, []byte("harness:\n  warmup_budget: 50\n"), 0o644))
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Harness.WarmupBudget)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Default().Logger(&buf, false)
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=shown")

	buf.Reset()
	logger, err = Default().Logger(&buf, true)
	require.NoError(t, err)
	logger.Debug("detail")
	assert.Contains(t, buf.String(), "msg=detail")

	cfg := Default()
	cfg.Log.Level = "loud"
	_, err = cfg.Logger(&buf, false)
	assert.ErrorContains(t, err, "log.level")
}
