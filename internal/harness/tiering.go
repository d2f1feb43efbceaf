package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/vecverify/internal/compiler"
	"github.com/roach88/vecverify/internal/interp"
	"github.com/roach88/vecverify/internal/vm"
)

// DefaultWarmupBudget bounds the warm-up loop when no budget is configured.
const DefaultWarmupBudget = 200

// State is the tiering state of one kernel.
type State int

const (
	// StateUncompiled: the method has no compiled code; the baseline runs
	// in this state.
	StateUncompiled State = iota
	// StateWarming: the method is being invoked until it is promoted.
	StateWarming
	// StateCompiled: the method reached the optimized level.
	StateCompiled
	// StateMeasured: both results and the artifact were captured.
	StateMeasured
	// StateFailed: the kernel raised an error or was never promoted.
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUncompiled:
		return "UNCOMPILED"
	case StateWarming:
		return "WARMING"
	case StateCompiled:
		return "COMPILED"
	case StateMeasured:
		return "MEASURED"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// transitions lists the legal successors of every state.
var transitions = map[State][]State{
	StateUncompiled: {StateWarming, StateFailed},
	StateWarming:    {StateCompiled, StateFailed},
	StateCompiled:   {StateMeasured, StateFailed},
}

// Tier identifies the regime a result was produced in.
type Tier string

const (
	// TierBaseline is interpreter-only execution.
	TierBaseline Tier = "baseline"
	// TierOptimized is execution of optimized, vectorization-eligible code.
	TierOptimized Tier = "optimized"
)

// ExecutionResult is the value of one kernel invocation at one tier.
type ExecutionResult struct {
	Tier  Tier
	Level int
	Value interp.Value

	// Artifact is the compiled code that produced Value; nil at the
	// baseline tier.
	Artifact *vm.Artifact
}

// Measurement is the outcome of driving one kernel through both tiers.
type Measurement struct {
	Kernel *Kernel
	State  State

	Baseline  *ExecutionResult
	Optimized *ExecutionResult

	// Warmup is the number of warm-up invocations it took to reach the
	// optimized level.
	Warmup int

	// Err is the kernel-local failure of a FAILED measurement: a kernel
	// body error or a COMPILATION_TIMEOUT HarnessError.
	Err error

	// FailedTier is the tier Err was raised in.
	FailedTier Tier
}

func (m *Measurement) advance(to State) {
	for _, next := range transitions[m.State] {
		if next == to {
			m.State = to
			return
		}
	}
	panic(fmt.Sprintf("harness: illegal transition %s -> %s for %s", m.State, to, m.Kernel.Name))
}

func (m *Measurement) fail(tier Tier, err error) *Measurement {
	m.advance(StateFailed)
	m.FailedTier = tier
	m.Err = err
	return m
}

// Controller drives kernels through the runtime's tiers using the
// diagnostic API. It runs one kernel at a time.
type Controller struct {
	rt     *vm.Runtime
	wb     *vm.WhiteBox
	budget int
	logger *slog.Logger
}

// NewController returns a controller for rt. It fails when the runtime's
// diagnostic API is locked.
func NewController(rt *vm.Runtime, budget int, logger *slog.Logger) (*Controller, error) {
	wb, err := rt.WhiteBox()
	if err != nil {
		return nil, err
	}
	if budget < 1 {
		budget = DefaultWarmupBudget
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{rt: rt, wb: wb, budget: budget, logger: logger}, nil
}

// Measure runs k on inst: once interpreter-only for the baseline, then
// repeatedly until the method is promoted to the optimized level, then once
// more for the optimized result.
//
// Kernel-local failures are recorded in the returned Measurement. The error
// is reserved for runtime failures that stop the whole suite.
func (c *Controller) Measure(ctx context.Context, k *Kernel, inst *interp.Instance) (*Measurement, error) {
	m := &Measurement{Kernel: k, State: StateUncompiled}

	// Start from a clean counter and profile so every run of the kernel
	// takes the same path.
	if err := c.wb.DeoptimizeMethod(ctx, k.Method); err != nil {
		return nil, err
	}

	baseline, err := c.baseline(ctx, k, inst)
	if err != nil {
		if kernelError(err) {
			return m.fail(TierBaseline, err), nil
		}
		return nil, err
	}
	m.Baseline = baseline

	m.advance(StateWarming)
	for m.Warmup < c.budget {
		m.Warmup++
		if _, err := c.rt.Invoke(ctx, k.Method, inst); err != nil {
			if kernelError(err) {
				return m.fail(TierOptimized, err), nil
			}
			return nil, err
		}
		if err := c.wb.DrainCompileQueue(ctx); err != nil {
			return nil, err
		}
		level, err := c.wb.CompilationLevel(k.Method)
		if err != nil {
			return nil, err
		}
		if level >= compiler.LevelOptimized {
			m.advance(StateCompiled)
			break
		}
	}
	if m.State != StateCompiled {
		level, _ := c.wb.CompilationLevel(k.Method)
		return m.fail(TierOptimized, &HarnessError{
			Code:    ErrCodeCompilationTimeout,
			Kernel:  k.Name,
			Message: fmt.Sprintf("not promoted to level %d after %d invocations (level %d)", compiler.LevelOptimized, c.budget, level),
		}), nil
	}
	c.logger.Debug("kernel promoted", "kernel", k.Method, "warmup", m.Warmup)

	optimized, err := c.optimized(ctx, k, inst)
	if err != nil {
		if kernelError(err) {
			return m.fail(TierOptimized, err), nil
		}
		return nil, err
	}
	m.Optimized = optimized
	m.advance(StateMeasured)
	return m, nil
}

// Rerun invokes a measured kernel's optimized code once more. The caller
// must be done reading the first result's artifact.
func (c *Controller) Rerun(ctx context.Context, k *Kernel, inst *interp.Instance) (*ExecutionResult, error) {
	return c.optimized(ctx, k, inst)
}

func (c *Controller) baseline(ctx context.Context, k *Kernel, inst *interp.Instance) (res *ExecutionResult, err error) {
	if err := c.wb.SetInterpreterOnly(k.Method, true); err != nil {
		return nil, err
	}
	defer func() {
		if rerr := c.wb.SetInterpreterOnly(k.Method, false); rerr != nil && err == nil {
			res, err = nil, rerr
		}
	}()

	v, err := c.rt.Invoke(ctx, k.Method, inst)
	if err != nil {
		return nil, err
	}
	if err := inst.Verify(); err != nil {
		return nil, err
	}
	return &ExecutionResult{Tier: TierBaseline, Level: compiler.LevelInterpreted, Value: v}, nil
}

func (c *Controller) optimized(ctx context.Context, k *Kernel, inst *interp.Instance) (*ExecutionResult, error) {
	v, err := c.rt.Invoke(ctx, k.Method, inst)
	if err != nil {
		return nil, err
	}
	if err := inst.Verify(); err != nil {
		return nil, err
	}
	level, err := c.wb.CompilationLevel(k.Method)
	if err != nil {
		return nil, err
	}
	art, err := c.wb.CompiledArtifact(k.Method, level)
	if err != nil {
		return nil, err
	}
	return &ExecutionResult{Tier: TierOptimized, Level: level, Value: v, Artifact: art}, nil
}

// kernelError reports whether err was raised by kernel code or broke the
// dataset, rather than by the runtime.
func kernelError(err error) bool {
	var re *interp.RuntimeError
	return errors.As(err, &re) || errors.Is(err, interp.ErrDatasetModified)
}
