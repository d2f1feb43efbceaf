package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/roach88/vecverify/internal/harness"
)

// KernelInfo describes one discovered kernel.
type KernelInfo struct {
	Suite     string   `json:"suite"`
	Kernel    string   `json:"kernel"`
	Result    string   `json:"result"`
	Tolerance string   `json:"tolerance"`
	Tags      []string `json:"tags,omitempty"`
	Pos       string   `json:"pos"`
}

// ListResult holds the kernels of every listed suite.
type ListResult struct {
	Kernels []KernelInfo `json:"kernels"`
}

// WriteText renders one kernel per line.
func (r *ListResult) WriteText(w io.Writer, verbose bool) error {
	for _, k := range r.Kernels {
		line := fmt.Sprintf("%-14s %-18s %-10s %-22s %s", k.Suite, k.Kernel, k.Result, k.Tolerance, strings.Join(k.Tags, " "))
		if verbose {
			line += "  " + k.Pos
		}
		if _, err := fmt.Fprintln(w, strings.TrimRight(line, " ")); err != nil {
			return err
		}
	}
	return nil
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list [suite...]",
		Short: "List discovered kernels",
		Long: `List the kernels of the given suites with their result type, comparison
tolerance and expected-IR tags. Without arguments the built-in corpus is
listed.

Examples:
  vecverify list
  vecverify list ./suites/add.cue --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(rootOpts, args, cmd)
		},
	}
	return cmd
}

func runList(opts *RootOptions, args []string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	loaded, err := loadSuites(args)
	if err != nil {
		return out.fail(ExitCommandError, ErrCodeSuiteLoad, "failed to load suites", err)
	}
	tols, err := opts.Config.Tolerances()
	if err != nil {
		return out.fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}

	result := &ListResult{Kernels: []KernelInfo{}}
	for _, s := range loaded {
		kernels, err := harness.Discover(s.Class, tols)
		if err != nil {
			return out.fail(ExitCommandError, ErrCodeInvalidSignature, "invalid kernel signature", err)
		}
		for _, k := range kernels {
			result.Kernels = append(result.Kernels, KernelInfo{
				Suite:     s.Name,
				Kernel:    k.Name,
				Result:    k.Result.String(),
				Tolerance: k.Tolerance.String(),
				Tags:      lo.Map(k.Tags, func(t harness.Tag, _ int) string { return t.String() }),
				Pos:       k.Pos,
			})
		}
	}
	return out.Success(result)
}
