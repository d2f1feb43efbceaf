package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/vecverify/internal/store"
)

// LogOptions holds flags for the log command.
type LogOptions struct {
	*RootOptions
	RunID string // optional - specific run only
}

// LogEvent is one compilation or deoptimization.
type LogEvent struct {
	Seq        int64              `json:"seq"`
	Event      string             `json:"event"` // "compile" | "deopt"
	Method     string             `json:"method"`
	Level      int                `json:"level"`
	Vectorized bool               `json:"vectorized,omitempty"`
	Nodes      int                `json:"nodes,omitempty"`
	Loops      []store.LoopRecord `json:"loops,omitempty"`
	Reason     string             `json:"reason,omitempty"`
}

// RunEvents is the compile log of one run in clock order.
type RunEvents struct {
	RunID  string     `json:"run_id"`
	Events []LogEvent `json:"events"`
}

// LogResult holds the compile log of every selected run.
type LogResult struct {
	Runs []RunEvents `json:"runs"`
}

// WriteText renders one event per line, grouped by run.
func (r *LogResult) WriteText(w io.Writer, verbose bool) error {
	for _, run := range r.Runs {
		fmt.Fprintf(w, "run %s: %d events\n", run.RunID, len(run.Events))
		for _, e := range run.Events {
			switch e.Event {
			case "compile":
				fmt.Fprintf(w, "%6d compile %-28s level=%d vectorized=%t nodes=%d\n", e.Seq, e.Method, e.Level, e.Vectorized, e.Nodes)
				if verbose {
					for _, l := range e.Loops {
						if l.Vectorized {
							fmt.Fprintf(w, "         loop %d: vectorized %s x%d\n", l.Loop, l.Elem, l.Lanes)
						} else {
							fmt.Fprintf(w, "         loop %d: scalar (%s)\n", l.Loop, l.Reason)
						}
					}
				}
			default:
				fmt.Fprintf(w, "%6d deopt   %-28s level=%d reason=%s\n", e.Seq, e.Method, e.Level, e.Reason)
			}
		}
	}
	return nil
}

// NewLogCommand creates the log command.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "log <db>",
		Short: "Print a persisted compile log",
		Long: `Print the compilations and deoptimizations recorded by
"vecverify run --compile-log <db>", one run after another.

Examples:
  vecverify log ./compile.db
  vecverify log ./compile.db --run 01927c4e-... --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runLog(ctx, opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.RunID, "run", "", "print this run only")

	return cmd
}

func runLog(ctx context.Context, opts *LogOptions, path string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	// Opening a missing file would create an empty log.
	if _, err := os.Stat(path); err != nil {
		return out.fail(ExitCommandError, ErrCodeNotFound, "compile log not found", err)
	}
	st, err := store.Open(path)
	if err != nil {
		return out.fail(ExitCommandError, ErrCodeCompileLog, "failed to open compile log", err)
	}
	defer st.Close()

	runs, err := st.Runs(ctx)
	if err != nil {
		return out.fail(ExitCommandError, ErrCodeCompileLog, "failed to read compile log", err)
	}
	if opts.RunID != "" {
		if !slices.Contains(runs, opts.RunID) {
			return out.fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("run %s not found", opts.RunID), nil)
		}
		runs = []string{opts.RunID}
	}

	result := &LogResult{Runs: make([]RunEvents, 0, len(runs))}
	for _, id := range runs {
		rl, err := st.ReadRun(ctx, id)
		if err != nil {
			return out.fail(ExitCommandError, ErrCodeCompileLog, "failed to read compile log", err)
		}
		result.Runs = append(result.Runs, runEvents(rl))
	}
	return out.Success(result)
}

// runEvents merges compilations and deoptimizations by clock seq.
func runEvents(rl store.RunLog) RunEvents {
	events := make([]LogEvent, 0, len(rl.Compilations)+len(rl.Deoptimizations))
	for _, c := range rl.Compilations {
		events = append(events, LogEvent{
			Seq:        c.Seq,
			Event:      "compile",
			Method:     c.Method,
			Level:      c.Level,
			Vectorized: c.Vectorized,
			Nodes:      c.NodeCount,
			Loops:      c.Loops,
		})
	}
	for _, d := range rl.Deoptimizations {
		events = append(events, LogEvent{
			Seq:    d.Seq,
			Event:  "deopt",
			Method: d.Method,
			Level:  d.Level,
			Reason: d.Reason,
		})
	}
	slices.SortFunc(events, func(a, b LogEvent) int {
		return int(a.Seq - b.Seq)
	})
	return RunEvents{RunID: rl.RunID, Events: events}
}
