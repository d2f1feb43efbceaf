package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/vecverify/internal/harness"
	"github.com/roach88/vecverify/internal/loader"
)

// IRResult is the optimized code of one kernel.
type IRResult struct {
	Suite     string              `json:"suite"`
	Kernel    string              `json:"kernel"`
	Level     int                 `json:"level"`
	CompileID int64               `json:"compile_id"`
	Warmup    int                 `json:"warmup"`
	Loops     []string            `json:"loops"`
	Tags      []harness.TagResult `json:"tags,omitempty"`
	Graph     string              `json:"graph"`
}

// WriteText renders the loop decisions, the tag checks and the graph.
func (r *IRResult) WriteText(w io.Writer, verbose bool) error {
	fmt.Fprintf(w, "%s.%s level=%d compile_id=%d warmup=%d\n", r.Suite, r.Kernel, r.Level, r.CompileID, r.Warmup)
	for _, l := range r.Loops {
		fmt.Fprintf(w, "  %s\n", l)
	}
	for _, t := range r.Tags {
		status := "ok"
		if !t.Holds {
			status = "MISSING"
		}
		fmt.Fprintf(w, "  tag %s observed=%d %s\n", t.Tag, t.Observed, status)
	}
	_, err := io.WriteString(w, r.Graph)
	return err
}

// NewIRCommand creates the ir command.
func NewIRCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ir <suite> <kernel>",
		Short: "Print the optimized graph of a kernel",
		Long: `Warm up one kernel until it is promoted to the optimized level and print
its instruction graph, the vectorizer's decision for every loop and the
result of each expected-IR tag. The suite is a suite file or the name of a
built-in suite.

Examples:
  vecverify ir IntArith AddInts
  vecverify ir ./suites/add.cue AddInts --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runIR(ctx, rootOpts, args[0], args[1], cmd)
		},
	}
	return cmd
}

func runIR(ctx context.Context, opts *RootOptions, suiteArg, kernelName string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	loaded, err := loadSuiteArg(suiteArg)
	if err != nil {
		return out.fail(ExitCommandError, ErrCodeSuiteLoad, "failed to load suite", err)
	}
	tols, err := opts.Config.Tolerances()
	if err != nil {
		return out.fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}

	var (
		suite  *loader.Suite
		kernel *harness.Kernel
	)
	for _, s := range loaded {
		kernels, err := harness.Discover(s.Class, tols)
		if err != nil {
			return out.fail(ExitCommandError, ErrCodeInvalidSignature, "invalid kernel signature", err)
		}
		for _, k := range kernels {
			if k.Name == kernelName {
				suite, kernel = s, k
			}
		}
	}
	if kernel == nil {
		return out.fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("kernel %s not found in %s", kernelName, suiteArg), nil)
	}

	rt, err := opts.newRuntime()
	if err != nil {
		return out.fail(ExitCommandError, ErrCodeConfig, "failed to start runtime", err)
	}
	defer rt.Close()
	if err := rt.Load(suite.Class); err != nil {
		return out.fail(ExitCommandError, ErrCodeRuntime, "failed to load suite", err)
	}
	ctrl, err := harness.NewController(rt, opts.Config.Harness.WarmupBudget, opts.Logger)
	if err != nil {
		return out.fail(ExitCommandError, ErrCodeConfig, "runtime.unlock_diagnostics must be true", err)
	}

	m, err := ctrl.Measure(ctx, kernel, suite.Instance)
	if err != nil {
		return out.fail(ExitCommandError, ErrCodeRuntime, "failed to compile kernel", err)
	}
	if m.State == harness.StateFailed {
		return out.fail(ExitFailure, ErrCodeVerification, fmt.Sprintf("%s tier failed", m.FailedTier), m.Err)
	}

	art := m.Optimized.Artifact
	graph, err := art.Graph()
	if err != nil {
		return out.fail(ExitCommandError, ErrCodeRuntime, "failed to read graph", err)
	}
	loops, err := art.Loops()
	if err != nil {
		return out.fail(ExitCommandError, ErrCodeRuntime, "failed to read loops", err)
	}

	result := &IRResult{
		Suite:     suite.Name,
		Kernel:    kernel.Name,
		Level:     art.Level(),
		CompileID: art.CompileID(),
		Warmup:    m.Warmup,
		Loops:     make([]string, len(loops)),
		Tags:      harness.Inspect(graph, kernel.Tags),
		Graph:     graph.String(),
	}
	for i, l := range loops {
		result.Loops[i] = l.String()
	}
	return out.Success(result)
}
