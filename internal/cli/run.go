package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/vecverify/internal/harness"
	"github.com/roach88/vecverify/internal/store"
	"github.com/roach88/vecverify/internal/vm"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Filter     string
	CompileLog string
}

// RunResult holds the reports of one run command, in suite order.
type RunResult struct {
	RunID   string            `json:"-"`
	Reports []*harness.Report `json:"reports"`
}

// Pass reports whether every kernel of every suite passed.
func (r *RunResult) Pass() bool {
	for _, rep := range r.Reports {
		if !rep.Pass() {
			return false
		}
	}
	return true
}

// Err joins the suite failures of every failing suite.
func (r *RunResult) Err() error {
	var errs []error
	for _, rep := range r.Reports {
		if err := rep.Err(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WriteText renders every report.
func (r *RunResult) WriteText(w io.Writer, verbose bool) error {
	for _, rep := range r.Reports {
		if err := rep.WriteText(w, verbose); err != nil {
			return err
		}
	}
	return nil
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [suite...]",
		Short: "Verify kernels at both tiers",
		Long: `Run every kernel of the given suites in the interpreter, warm it up until
the optimizing compiler promotes it, run it again and compare. Each suite
argument is a suite file, a directory of suite files or the name of a
built-in suite. Without arguments the built-in corpus runs.

Exit codes:
  0 - Every kernel passed
  1 - At least one kernel failed (value mismatch, missing vectorization or error)
  2 - Command error (unreadable suite, invalid kernel signature, bad config)

Examples:
  vecverify run
  vecverify run ./suites/add.cue --filter 'Add*'
  vecverify run ./suites --compile-log ./compile.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runVerify(ctx, opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "glob selecting kernels by name")
	cmd.Flags().StringVar(&opts.CompileLog, "compile-log", "", "persist the compile log to this SQLite file")

	return cmd
}

func runVerify(ctx context.Context, opts *RunOptions, args []string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	filter, err := globFilter(opts.Filter)
	if err != nil {
		return out.fail(ExitCommandError, ErrCodeGeneric, "invalid --filter", err)
	}
	loaded, err := loadSuites(args)
	if err != nil {
		return out.fail(ExitCommandError, ErrCodeSuiteLoad, "failed to load suites", err)
	}
	hopts, err := opts.Config.HarnessOptions()
	if err != nil {
		return out.fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}
	hopts.Filter = filter
	hopts.Logger = opts.Logger

	// An empty path keeps the compile log in memory.
	log, err := store.Open(opts.CompileLog)
	if err != nil {
		return out.fail(ExitCommandError, ErrCodeCompileLog, "failed to open compile log", err)
	}
	defer func() {
		if closeErr := log.Close(); closeErr != nil {
			opts.Logger.Error("error closing compile log", "error", closeErr)
		}
	}()

	rt, err := opts.newRuntime(vm.WithStore(log))
	if err != nil {
		return out.fail(ExitCommandError, ErrCodeConfig, "failed to start runtime", err)
	}
	defer rt.Close()

	result := &RunResult{RunID: rt.RunID()}
	for _, s := range loaded {
		out.VerboseLog("verifying suite %s (%s)", s.Name, s.File)
		report, err := harness.Run(ctx, rt, s, hopts)
		switch {
		case errors.Is(err, harness.ErrNoKernelsSelected):
			continue
		case harness.IsInvalidSignature(err):
			return out.fail(ExitCommandError, ErrCodeInvalidSignature, "invalid kernel signature", err)
		case errors.Is(err, vm.ErrDiagnosticsLocked):
			return out.fail(ExitCommandError, ErrCodeConfig, "runtime.unlock_diagnostics must be true", err)
		case err != nil:
			return out.fail(ExitCommandError, ErrCodeRuntime, "verification aborted", err)
		}
		result.Reports = append(result.Reports, report)
	}
	if len(result.Reports) == 0 {
		return out.fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("no kernels match %q", opts.Filter), nil)
	}

	if err := out.Result(result.RunID, result.Pass(), result); err != nil {
		return err
	}
	if err := result.Err(); err != nil {
		return WrapExitError(ExitFailure, "verification failed", err)
	}
	return nil
}
