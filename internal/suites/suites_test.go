package suites

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vecverify/internal/harness"
	"github.com/roach88/vecverify/internal/testutil"
)

func TestLoad(t *testing.T) {
	suites, err := Load()
	require.NoError(t, err)

	var names []string
	for _, s := range suites {
		names = append(names, s.Name)
		assert.True(t, s.Instance.Frozen(), s.Name)
	}
	assert.Equal(t, []string{"Floats", "IntArith", "Reductions", "Scalar"}, names)
}

// Every built-in suite passes on a correct compiler.
func TestCorpusPasses(t *testing.T) {
	suites, err := Load()
	require.NoError(t, err)

	for _, s := range suites {
		t.Run(s.Name, func(t *testing.T) {
			rt := testutil.NewRuntime(t, testutil.Config())
			report, err := harness.Run(context.Background(), rt, s, harness.DefaultOptions())
			require.NoError(t, err)
			assert.NoError(t, report.Err())
		})
	}
}

func TestCorpusWithoutSuperWord(t *testing.T) {
	suites, err := Load()
	require.NoError(t, err)

	cfg := testutil.Config()
	cfg.UseSuperWord = false
	for _, s := range suites {
		if s.Name == "Scalar" {
			continue
		}
		t.Run(s.Name, func(t *testing.T) {
			rt := testutil.NewRuntime(t, cfg)
			report, err := harness.Run(context.Background(), rt, s, harness.DefaultOptions())
			require.NoError(t, err)

			assert.False(t, report.Pass())
			assert.Zero(t, report.Count(harness.OutcomeValueMismatch), "scalar code computes the same values")
			assert.Zero(t, report.Count(harness.OutcomeError))
			assert.Equal(t, len(report.Verdicts), report.Count(harness.OutcomeMissingVectorization))
		})
	}
}
