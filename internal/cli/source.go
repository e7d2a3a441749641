package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/r2s/internal/task"
)

// SourceOptions holds flags for the source command.
type SourceOptions struct {
	*RootOptions
	Time   string
	Output string
}

// SourceResult is the output of the source command.
type SourceResult struct {
	Path                 string  `json:"path"`
	Total                float64 `json:"total"`
	Entries              int     `json:"entries"`
	IntensityRejectedPct float64 `json:"intensity_rejected_pct"`
	VolumeRejectedPct    float64 `json:"volume_rejected_pct"`
	Peak                 string  `json:"peak"`
	PeakIntensity        float64 `json:"peak_intensity"`
}

// NewSourceCommand creates the source command.
func NewSourceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SourceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "source <task-dir>",
		Short: "Write the gamma source of a fetched time",
		Long: `Write an MCNP SDEF gamma source from a fetched gamma frame.

The time is a literal such as 1d or 2.5y counted from the scenario start;
without --time the configured time or the last fetched time is used.

Example:
  r2s source ./run1 --time 1d --output sdef_1d.i`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSource(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Time, "time", "t", "", "time literal of the gamma frame")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "SDEF file (relative to the task directory)")

	return cmd
}

func runSource(opts *SourceOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	tk, err := openTask(opts.RootOptions, dir, false)
	if err != nil {
		return fail(formatter, "failed to open task", err)
	}
	defer closeTask(tk)

	ctx, cancel := commandContext(cmd)
	defer cancel()
	src, path, err := tk.Source(ctx, task.SourceOptions{Time: opts.Time, Output: opts.Output})
	if err != nil {
		return fail(formatter, "failed to write source", err)
	}

	result := SourceResult{
		Path:                 path,
		Total:                src.Total,
		Entries:              src.Entries,
		IntensityRejectedPct: src.IntensityRejectedPct(),
		VolumeRejectedPct:    src.VolumeRejectedPct(),
		Peak:                 src.Peak.String(),
		PeakIntensity:        src.PeakIntensity,
	}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "Wrote %s: %d entries, total %.5e gamma/s\n", path, result.Entries, result.Total)
	fmt.Fprintf(formatter.Writer, "Rejected %.4f%% by intensity, %.4f%% by volume\n",
		result.IntensityRejectedPct, result.VolumeRejectedPct)
	fmt.Fprintf(formatter.Writer, "Strongest cell part %s: %.5e gamma/s\n", result.Peak, result.PeakIntensity)
	return nil
}
