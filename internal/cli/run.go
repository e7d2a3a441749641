package cli

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/r2s/internal/task"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	FailedOnly  bool
	MetricsFile string
}

// RunResult is the output of the run command.
type RunResult struct {
	Completed int          `json:"completed"`
	Failed    []FailedCase `json:"failed"`
	Skipped   []string     `json:"skipped,omitempty"`
}

// FailedCase identifies a failed case.
type FailedCase struct {
	Name  string `json:"name"`
	Dir   string `json:"dir"`
	Error string `json:"error"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <task-dir>",
		Short: "Run the FISPACT cases of a prepared task",
		Long: `Run the decay data condense case and then every case of the task.

Cases run concurrently, up to the configured number of threads. With the
best-effort failure policy every case is attempted and the failed ones are
listed at the end; fail-fast stops at the first failure. Failed cases can
be retried with --failed-only.

Example:
  r2s run ./run1
  r2s run ./run1 --failed-only --metrics-file run1.prom`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCases(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.FailedOnly, "failed-only", false, "run only cases that did not finish")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "write case metrics in the Prometheus text format to this file")

	return cmd
}

func runCases(opts *RunOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	tk, err := openTask(opts.RootOptions, dir, false)
	if err != nil {
		return fail(formatter, "failed to open task", err)
	}
	defer closeTask(tk)

	reg := prometheus.NewRegistry()
	tk.Registry = reg
	tk.Progress = formatter.Progress("cases")

	ctx, cancel := commandContext(cmd)
	defer cancel()
	res, runErr := tk.Run(ctx, task.RunOptions{FailedOnly: opts.FailedOnly})

	if opts.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(opts.MetricsFile, reg); err != nil {
			return fail(formatter, "failed to write metrics", err)
		}
	}
	if res == nil {
		return fail(formatter, "failed to run task", runErr)
	}

	result := RunResult{Completed: res.Completed, Failed: []FailedCase{}, Skipped: res.Skipped}
	for _, f := range res.Failed {
		result.Failed = append(result.Failed, FailedCase{Name: f.Name, Dir: f.Dir, Error: f.Err.Error()})
	}

	if formatter.Format == "json" {
		if runErr != nil {
			code, exit := classify(runErr)
			_ = formatter.Error(code, runErr.Error(), result)
			return WrapExitError(exit, "run failed", runErr)
		}
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "Completed %d, failed %d, skipped %d\n",
		result.Completed, len(result.Failed), len(result.Skipped))
	if len(result.Failed) > 0 {
		rows := make([][]string, len(result.Failed))
		for i, f := range result.Failed {
			rows[i] = []string{f.Name, f.Dir, f.Error}
		}
		formatter.Table([]string{"CASE", "DIR", "ERROR"}, rows)
	}
	if runErr != nil {
		code, exit := classify(runErr)
		if !errors.Is(runErr, task.ErrCasesFailed) {
			fmt.Fprintf(formatter.Writer, "Error [%s]: %v\n", code, runErr)
		}
		return WrapExitError(exit, "run failed", runErr)
	}
	return nil
}
