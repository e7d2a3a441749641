package cli

import (
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/r2s/internal/store"
)

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "status <task-dir>",
		Short:         "Show case states, runs and results of a task",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runStatus(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	tk, err := openTask(opts, dir, false)
	if err != nil {
		return fail(formatter, "failed to open task", err)
	}
	defer closeTask(tk)

	st, err := tk.Status(cmd.Context())
	if err != nil {
		return fail(formatter, "failed to read task status", err)
	}
	if formatter.Format == "json" {
		return formatter.Success(st)
	}

	fmt.Fprintf(formatter.Writer, "Approach: %s\n\n", st.Approach)
	var rows [][]string
	for _, name := range slices.Sorted(maps.Keys(st.Masses)) {
		rows = append(rows, []string{name, strconv.FormatFloat(st.Masses[name], 'g', 6, 64)})
	}
	formatter.Table([]string{"MATERIAL", "MASS (KG)"}, rows)
	fmt.Fprintln(formatter.Writer)

	rows = rows[:0]
	for _, s := range []string{store.CasePending, store.CaseDone, store.CaseFailed} {
		rows = append(rows, []string{s, strconv.Itoa(st.Counts[s])})
	}
	formatter.Table([]string{"STATUS", "CASES"}, rows)

	if len(st.Runs) > 0 {
		fmt.Fprintln(formatter.Writer)
		rows = rows[:0]
		for _, r := range st.Runs {
			rows = append(rows, []string{strconv.FormatInt(r.Seq, 10), r.Phase, r.Status,
				strconv.Itoa(r.Completed), strconv.Itoa(r.Failed), strconv.Itoa(r.Skipped), r.ID})
		}
		formatter.Table([]string{"SEQ", "PHASE", "STATUS", "DONE", "FAILED", "SKIPPED", "ID"}, rows)
	}

	if len(st.Failed) > 0 {
		fmt.Fprintln(formatter.Writer)
		rows = rows[:0]
		for _, c := range st.Failed {
			rows = append(rows, []string{c.Name, c.Error})
		}
		formatter.Table([]string{"FAILED CASE", "ERROR"}, rows)
	}

	fmt.Fprintf(formatter.Writer, "\n%d result frames\n", len(st.Results))
	return nil
}
