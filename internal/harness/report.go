package harness

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/samber/lo"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Outcome is the per-kernel verdict.
type Outcome string

const (
	OutcomePass                 Outcome = "PASS"
	OutcomeValueMismatch        Outcome = "VALUE_MISMATCH"
	OutcomeMissingVectorization Outcome = "MISSING_VECTORIZATION"
	OutcomeError                Outcome = "ERROR"
)

// Verdict is the outcome of one kernel with its diagnostic payload. Value
// comparison and IR inspection both run whenever both tiers produced a
// result, so a verdict can carry a mismatch and missing tags at once.
type Verdict struct {
	Kernel    string    `json:"kernel"`
	Outcome   Outcome   `json:"outcome"`
	Tolerance Tolerance `json:"tolerance"`

	// Level and CompileID identify the optimized code that was inspected.
	Level     int   `json:"level"`
	CompileID int64 `json:"compile_id,omitempty"`
	Warmup    int   `json:"warmup"`

	Mismatch *Mismatch   `json:"mismatch,omitempty"`
	Tags     []TagResult `json:"tags,omitempty"`

	// Idempotence describes a disagreement between two consecutive
	// optimized runs.
	Idempotence string `json:"idempotence,omitempty"`

	// Error, ErrorCode and Tier describe an ERROR verdict.
	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
	Tier      Tier   `json:"tier,omitempty"`
}

// Missing returns the expected-IR tags the artifact did not satisfy.
func (v *Verdict) Missing() []TagResult {
	return Missing(v.Tags)
}

// decide sets Outcome from the collected diagnostics.
func (v *Verdict) decide() {
	switch {
	case v.Error != "":
		v.Outcome = OutcomeError
	case v.Mismatch != nil || v.Idempotence != "":
		v.Outcome = OutcomeValueMismatch
	case len(v.Missing()) > 0:
		v.Outcome = OutcomeMissingVectorization
	default:
		v.Outcome = OutcomePass
	}
}

// Detail formats the diagnostic payload, one clause per finding.
func (v *Verdict) Detail() string {
	var parts []string
	if v.Error != "" {
		parts = append(parts, fmt.Sprintf("%s tier: %s", v.Tier, v.Error))
	}
	if v.Mismatch != nil {
		parts = append(parts, "value mismatch: "+v.Mismatch.String())
	}
	if v.Idempotence != "" {
		parts = append(parts, "second optimized run: "+v.Idempotence)
	}
	if missing := v.Missing(); len(missing) > 0 {
		parts = append(parts, "missing vectorization: "+strings.Join(lo.Map(missing, func(r TagResult, _ int) string {
			return r.String()
		}), ", "))
	}
	return strings.Join(parts, "; ")
}

// Report collects the verdicts of one suite run, in kernel order.
type Report struct {
	RunID       string     `json:"run_id"`
	Suite       string     `json:"suite"`
	VectorWidth int        `json:"vector_width"`
	Verdicts    []*Verdict `json:"verdicts"`
}

// Pass reports whether every kernel passed.
func (r *Report) Pass() bool {
	return len(r.Failures()) == 0
}

// Failures returns the non-PASS verdicts.
func (r *Report) Failures() []*Verdict {
	return lo.Filter(r.Verdicts, func(v *Verdict, _ int) bool { return v.Outcome != OutcomePass })
}

// Count returns the number of verdicts with outcome o.
func (r *Report) Count(o Outcome) int {
	return lo.CountBy(r.Verdicts, func(v *Verdict) bool { return v.Outcome == o })
}

// Err returns nil if every kernel passed and a *SuiteFailure naming every
// failing kernel otherwise.
func (r *Report) Err() error {
	failures := r.Failures()
	if len(failures) == 0 {
		return nil
	}
	return &SuiteFailure{Suite: r.Suite, RunID: r.RunID, Total: len(r.Verdicts), Failures: failures}
}

// SuiteFailure is the suite-level failure composed from every non-PASS
// verdict.
type SuiteFailure struct {
	Suite    string
	RunID    string
	Total    int
	Failures []*Verdict
}

// Error lists every failing kernel with its detail.
func (e *SuiteFailure) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "suite %s: %d of %d kernels failed", e.Suite, len(e.Failures), e.Total)
	for _, v := range e.Failures {
		fmt.Fprintf(&b, "\n  %s: %s: %s", v.Kernel, v.Outcome, v.Detail())
	}
	return b.String()
}

// printer formats counts with digit grouping.
var printer = message.NewPrinter(language.English)

// WriteText renders the report for terminals. A passing suite renders as a
// single summary line unless verbose is set, which lists every kernel.
func (r *Report) WriteText(w io.Writer, verbose bool) error {
	var b strings.Builder
	for _, v := range r.Verdicts {
		if v.Outcome == OutcomePass && !verbose {
			continue
		}
		printer.Fprintf(&b, "%-24s %-22s level=%d warmup=%d", v.Kernel, v.Outcome, v.Level, v.Warmup)
		if d := v.Detail(); d != "" {
			b.WriteString("  ")
			b.WriteString(d)
		}
		b.WriteByte('\n')
	}
	status := "PASS"
	if !r.Pass() {
		status = "FAIL"
	}
	printer.Fprintf(&b, "%s %s: %d kernels, %d passed, %d value mismatches, %d missing vectorization, %d errors\n",
		status, r.Suite, len(r.Verdicts),
		r.Count(OutcomePass),
		r.Count(OutcomeValueMismatch),
		r.Count(OutcomeMissingVectorization),
		r.Count(OutcomeError),
	)
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteJSON renders the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(r)
}
