package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/vecverify/internal/interp"
	"github.com/roach88/vecverify/internal/loader"
	"github.com/roach88/vecverify/internal/vm"
)

// ErrNoKernelsSelected is returned when Options.Filter rejects every kernel
// of a suite.
var ErrNoKernelsSelected = errors.New("no kernels selected")

// Options configures a suite run.
type Options struct {
	// WarmupBudget bounds the warm-up loop of each kernel, in invocations.
	WarmupBudget int

	// CheckIdempotence re-runs the optimized tier after inspection and
	// requires the same result from the same compiled code.
	CheckIdempotence bool

	// Tolerances are the default floating-point policies. The zero value
	// compares every kernel exactly.
	Tolerances Tolerances

	// Filter selects kernels by name. Nil selects every kernel.
	Filter func(name string) bool

	// Logger receives progress records. Nil discards them.
	Logger *slog.Logger
}

// DefaultOptions returns the options used when no configuration is given.
func DefaultOptions() Options {
	return Options{
		WarmupBudget:     DefaultWarmupBudget,
		CheckIdempotence: true,
		Tolerances:       DefaultTolerances(),
	}
}

// Run verifies every kernel of suite on rt, one kernel at a time, and
// returns the report.
//
// An INVALID_KERNEL_SIGNATURE error aborts the suite before any kernel runs.
// Kernel failures, including COMPILATION_TIMEOUT, are collected in the
// report; use Report.Err to turn them into a suite failure. The returned
// error is reserved for setup errors and runtime failures.
func Run(ctx context.Context, rt *vm.Runtime, suite *loader.Suite, opts Options) (*Report, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	kernels, err := Discover(suite.Class, opts.Tolerances)
	if err != nil {
		return nil, err
	}
	if opts.Filter != nil {
		var selected []*Kernel
		for _, k := range kernels {
			if opts.Filter(k.Name) {
				selected = append(selected, k)
			}
		}
		if len(selected) == 0 {
			return nil, fmt.Errorf("suite %s: %w", suite.Name, ErrNoKernelsSelected)
		}
		kernels = selected
	}

	if err := rt.Load(suite.Class); err != nil {
		return nil, err
	}
	ctrl, err := NewController(rt, opts.WarmupBudget, logger)
	if err != nil {
		return nil, err
	}

	report := &Report{
		RunID:       rt.RunID(),
		Suite:       suite.Name,
		VectorWidth: rt.Target().Width,
		Verdicts:    make([]*Verdict, 0, len(kernels)),
	}
	logger.Debug("suite started", "suite", suite.Name, "kernels", len(kernels), "run_id", rt.RunID())

	for _, k := range kernels {
		v, err := verify(ctx, ctrl, k, suite.Instance, opts)
		if err != nil {
			return nil, fmt.Errorf("suite %s: kernel %s: %w", suite.Name, k.Name, err)
		}
		report.Verdicts = append(report.Verdicts, v)

		attrs := []any{"suite", suite.Name, "kernel", k.Name, "outcome", v.Outcome, "warmup", v.Warmup}
		if v.Outcome == OutcomePass {
			logger.Debug("kernel verified", attrs...)
		} else {
			logger.Warn("kernel failed", append(attrs, "detail", v.Detail())...)
		}
	}

	logger.Debug("suite finished", "suite", suite.Name, "pass", report.Pass())
	return report, nil
}

// verify measures k and turns the measurement into a verdict. Value
// comparison and IR inspection both run before the verdict is decided.
func verify(ctx context.Context, ctrl *Controller, k *Kernel, inst *interp.Instance, opts Options) (*Verdict, error) {
	m, err := ctrl.Measure(ctx, k, inst)
	if err != nil {
		return nil, err
	}

	v := &Verdict{Kernel: k.Name, Tolerance: k.Tolerance, Warmup: m.Warmup}
	if m.State == StateFailed {
		v.setError(m.FailedTier, m.Err)
		v.decide()
		return v, nil
	}

	opt := m.Optimized
	v.Level = opt.Level
	v.CompileID = opt.Artifact.CompileID()
	v.Mismatch = Compare(m.Baseline.Value, opt.Value, k.Tolerance)

	// The artifact is only readable until the next invocation may
	// recompile the method.
	graph, err := opt.Artifact.Graph()
	if err != nil {
		v.setError(TierOptimized, err)
		v.decide()
		return v, nil
	}
	v.Tags = Inspect(graph, k.Tags)

	if opts.CheckIdempotence {
		if err := checkIdempotence(ctx, ctrl, k, inst, opt, v); err != nil {
			return nil, err
		}
	}
	v.decide()
	return v, nil
}

func checkIdempotence(ctx context.Context, ctrl *Controller, k *Kernel, inst *interp.Instance, first *ExecutionResult, v *Verdict) error {
	again, err := ctrl.Rerun(ctx, k, inst)
	if err != nil {
		if kernelError(err) {
			v.setError(TierOptimized, err)
			return nil
		}
		return err
	}
	if id := again.Artifact.CompileID(); id != first.Artifact.CompileID() {
		v.setError(TierOptimized, fmt.Errorf("method recompiled between optimized runs (compile id %d, then %d)", first.Artifact.CompileID(), id))
		return nil
	}
	if mm := Compare(first.Value, again.Value, Exact); mm != nil {
		v.Idempotence = mm.String()
	}
	return nil
}

func (v *Verdict) setError(tier Tier, err error) {
	v.Tier = tier
	v.Error = err.Error()
	switch {
	case interp.ErrorCode(err) != "":
		v.ErrorCode = string(interp.ErrorCode(err))
	case Code(err) != "":
		v.ErrorCode = string(Code(err))
	case errors.Is(err, interp.ErrDatasetModified):
		v.ErrorCode = "DATASET_MODIFIED"
	case errors.Is(err, vm.ErrArtifactInvalidated):
		v.ErrorCode = "ARTIFACT_INVALIDATED"
	}
}
