package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// FetchOptions holds flags for the fetch command.
type FetchOptions struct {
	*RootOptions
	AllowPartial bool
}

// FetchResult is the output of the fetch command.
type FetchResult struct {
	Frames int      `json:"frames"`
	Failed []string `json:"failed,omitempty"`
}

// NewFetchCommand creates the fetch command.
func NewFetchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FetchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "fetch <task-dir>",
		Short: "Collect case results into frames",
		Long: `Collect the inventory reports of a run task.

Atoms, activity and gamma yields are assembled per time into frames over
the cell parts of every voxel, superposing the unit cases in the simple
approach. Frames are written under results/ and indexed in the task store.
A case without a report fails the fetch unless --allow-partial is given.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.AllowPartial, "allow-partial", false, "leave out cases without results")

	return cmd
}

func runFetch(opts *FetchOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	tk, err := openTask(opts.RootOptions, dir, false)
	if err != nil {
		return fail(formatter, "failed to open task", err)
	}
	defer closeTask(tk)

	ctx, cancel := commandContext(cmd)
	defer cancel()
	out, err := tk.Fetch(ctx, opts.AllowPartial)
	if err != nil {
		return fail(formatter, "failed to fetch results", err)
	}

	result := FetchResult{Frames: len(out.Index)}
	for _, f := range out.Failed {
		result.Failed = append(result.Failed, f.Name)
	}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "Wrote %d frames\n", result.Frames)
	if len(result.Failed) > 0 {
		fmt.Fprintf(formatter.Writer, "Left out %d failed cases: %v\n", len(result.Failed), result.Failed)
	}
	return nil
}
