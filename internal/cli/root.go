package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/r2s/internal/config"
	"github.com/roach88/r2s/internal/fispact"
	"github.com/roach88/r2s/internal/runner"
	"github.com/roach88/r2s/internal/task"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Solver overrides the FISPACT solver (for testing).
	// If nil, the configured executable is run.
	Solver fispact.Solver

	// IDs overrides the run identifier generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDs runner.IDGenerator
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the r2s CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "r2s",
		Short: "r2s - Rigorous 2-Step residual gamma sources",
		Long: `Compute residual gamma sources of activated structures.

A task is prepared from a model, a neutron flux mesh and an irradiation
scenario, its FISPACT cases are run, the results are fetched into frames
and a frame is written as an MCNP SDEF source.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if err := config.LoadEnv("."); err != nil {
				return WrapExitError(ExitCommandError, "failed to load environment", err)
			}
			setupLogging(opts, cmd.ErrOrStderr())
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	// Add subcommands
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewPrepareCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewFetchCommand(opts))
	cmd.AddCommand(NewSourceCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))

	return cmd
}

// setupLogging installs the default logger: text on w, debug level with
// --verbose.
func setupLogging(opts *RootOptions, w io.Writer) {
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// openTask opens the task directory and loads its .env file.
func openTask(opts *RootOptions, dir string, create bool) (*task.Task, error) {
	tk, err := task.Open(dir, create)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open task", err)
	}
	if err := config.LoadEnv(dir); err != nil {
		tk.Close()
		return nil, WrapExitError(ExitCommandError, "failed to load environment", err)
	}
	tk.Logger = slog.Default()
	tk.Solver = opts.Solver
	if opts.IDs != nil {
		tk.IDs = opts.IDs
	}
	return tk, nil
}

func closeTask(tk *task.Task) {
	if err := tk.Close(); err != nil {
		slog.Error("error closing task store", "error", err)
	}
}
