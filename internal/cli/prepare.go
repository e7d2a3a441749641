package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/r2s/internal/config"
)

// PrepareResult is the output of the prepare command.
type PrepareResult struct {
	Dir   string `json:"dir"`
	Cases int    `json:"cases"`
}

// NewPrepareCommand creates the prepare command.
func NewPrepareCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prepare <config> <task-dir>",
		Short: "Write the FISPACT cases of a task",
		Long: `Prepare a task directory from a configuration.

The cells of the model inside the flux mesh are selected and their volumes
per voxel computed. One FISPACT case is written per cell part in a voxel
(full approach) or per material and energy group (simple approach). The
task directory is created if missing; earlier cases and results in it are
replaced.

Example:
  r2s prepare task.yaml ./run1`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrepare(rootOpts, args[0], args[1], cmd)
		},
	}

	return cmd
}

func runPrepare(opts *RootOptions, cfgPath, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	cfg, err := config.Load(cfgPath)
	if err == nil {
		err = cfg.ApplyEnv()
	}
	if err != nil {
		return fail(formatter, "failed to load configuration", err)
	}

	tk, err := openTask(opts, dir, true)
	if err != nil {
		return fail(formatter, "failed to open task", err)
	}
	defer closeTask(tk)

	ctx, cancel := commandContext(cmd)
	defer cancel()
	if err := tk.Prepare(ctx, cfg); err != nil {
		return fail(formatter, "failed to prepare task", err)
	}

	counts, err := tk.Store.CaseCounts(ctx)
	if err != nil {
		return fail(formatter, "failed to count cases", err)
	}
	result := PrepareResult{Dir: dir}
	for _, n := range counts {
		result.Cases += n
	}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "Prepared %d cases in %s\n", result.Cases, dir)
	return nil
}
