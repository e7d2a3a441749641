package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/r2s/internal/config"
	"github.com/roach88/r2s/internal/fetch"
	"github.com/roach88/r2s/internal/store"
	"github.com/roach88/r2s/internal/task"
)

// classify maps an error to a response code and an exit code.
func classify(err error) (string, int) {
	switch {
	case errors.Is(err, config.ErrInvalidConfig):
		return ErrCodeConfig, ExitFailure
	case errors.Is(err, task.ErrCasesFailed):
		return ErrCodeCases, ExitFailure
	case errors.Is(err, fetch.ErrPartial):
		return ErrCodePartial, ExitFailure
	case errors.Is(err, store.ErrNotFound), errors.Is(err, os.ErrNotExist):
		return ErrCodeNotFound, ExitCommandError
	}
	return ErrCodeGeneric, ExitCommandError
}

// fail reports err through the formatter and returns the matching
// ExitError.
func fail(formatter *OutputFormatter, message string, err error) error {
	code, exit := classify(err)
	_ = formatter.Error(code, message+": "+err.Error(), nil)
	return WrapExitError(exit, message, err)
}

// commandContext returns the command context, cancelled on SIGINT or
// SIGTERM.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}
