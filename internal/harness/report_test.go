package harness

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vecverify/internal/testutil"
)

func TestReport_GoldenJSON(t *testing.T) {
	report := runMixed(t, testutil.Config(), DefaultOptions())

	var buf bytes.Buffer
	require.NoError(t, report.WriteJSON(&buf))
	testutil.AssertGolden(t, "mixed.json", buf.Bytes())

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "Mixed", decoded["suite"])
}

func TestReport_GoldenText(t *testing.T) {
	report := runMixed(t, testutil.Config(), DefaultOptions())

	var verbose bytes.Buffer
	require.NoError(t, report.WriteText(&verbose, true))
	testutil.AssertGolden(t, "mixed.txt", verbose.Bytes())

	var summary bytes.Buffer
	require.NoError(t, report.WriteText(&summary, false))
	testutil.AssertGolden(t, "mixed_summary.txt", summary.Bytes())
}

func TestReport_PassingText(t *testing.T) {
	r := &Report{Suite: "AddI", Verdicts: []*Verdict{
		{Kernel: "AddInts", Outcome: OutcomePass, Level: 4, Warmup: 15},
	}}
	var buf bytes.Buffer
	require.NoError(t, r.WriteText(&buf, false))
	assert.Equal(t, "PASS AddI: 1 kernels, 1 passed, 0 value mismatches, 0 missing vectorization, 0 errors\n", buf.String())
	assert.NoError(t, r.Err())
}

func TestReport_Err(t *testing.T) {
	report := runMixed(t, testutil.Config(), DefaultOptions())

	err := report.Err()
	require.Error(t, err)

	var failure *SuiteFailure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, 6, failure.Total)
	assert.Len(t, failure.Failures, 3)
	assert.Equal(t, testutil.RunID, failure.RunID)

	assert.Equal(t, `suite Mixed: 3 of 6 kernels failed
  Tiny: MISSING_VECTORIZATION: missing vectorization: AddVI (observed 0)
  SumExact: VALUE_MISMATCH: value mismatch: baseline 1.6777216e+07, optimized 1.6777272e+07
  Divide: ERROR: baseline tier: ARITHMETIC: / by zero (method=Mixed.Divide)`, err.Error())
}

func TestVerdict_Decide(t *testing.T) {
	missing := []TagResult{{Tag: "AddVI", Observed: 0, Holds: false}}
	mismatch := &Mismatch{Index: 3, Baseline: "1", Optimized: "2"}

	tests := []struct {
		name string
		v    Verdict
		want Outcome
	}{
		{"nothing found", Verdict{Tags: []TagResult{{Tag: "AddVI", Observed: 1, Holds: true}}}, OutcomePass},
		{"missing tags", Verdict{Tags: missing}, OutcomeMissingVectorization},
		{"mismatch outranks missing tags", Verdict{Mismatch: mismatch, Tags: missing}, OutcomeValueMismatch},
		{"idempotence", Verdict{Idempotence: "baseline 1, optimized 2"}, OutcomeValueMismatch},
		{"error outranks everything", Verdict{Error: "boom", Mismatch: mismatch, Tags: missing}, OutcomeError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.v.decide()
			assert.Equal(t, tt.want, tt.v.Outcome)
		})
	}
}

func TestVerdict_DetailCombinesFindings(t *testing.T) {
	v := &Verdict{
		Mismatch:    &Mismatch{Index: 3, Baseline: "1", Optimized: "2"},
		Idempotence: "index 0: baseline 5, optimized 6",
		Tags: []TagResult{
			{Tag: "AddVI", Observed: 0},
			{Tag: "LoadVector>=2", Observed: 1},
		},
	}
	assert.Equal(t,
		"value mismatch: index 3: baseline 1, optimized 2; "+
			"second optimized run: index 0: baseline 5, optimized 6; "+
			"missing vectorization: AddVI (observed 0), LoadVector>=2 (observed 1)",
		v.Detail())
}
