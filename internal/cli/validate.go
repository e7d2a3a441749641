package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/r2s/internal/config"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool   `json:"valid"`
	Approach string `json:"approach,omitempty"`
	Scenario string `json:"scenario,omitempty"`
	Error    string `json:"error,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config>",
		Short: "Validate a task configuration",
		Long: `Validate a YAML or CUE task configuration without preparing it.

The file is checked against the configuration schema, defaults are applied
and the field constraints are verified. The model and mesh files are not
read.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	cfg, err := config.Load(path)
	if err == nil {
		err = cfg.ApplyEnv()
	}
	if err != nil {
		if formatter.Format == "json" {
			_ = formatter.Error(ErrCodeConfig, err.Error(), ValidationResult{Valid: false, Error: err.Error()})
		} else {
			fmt.Fprintln(formatter.Writer, "✗ Validation failed")
			fmt.Fprintf(formatter.Writer, "  %s\n", err)
		}
		code, exit := classify(err)
		return WrapExitError(exit, code+": validation failed", err)
	}

	formatter.VerboseLog("model %s, mesh %s", cfg.Resolve(cfg.Model), cfg.Resolve(cfg.Mesh))
	result := ValidationResult{Valid: true, Approach: cfg.Approach, Scenario: scenarioKind(&cfg.Scenario)}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ Configuration valid (%s approach, %s scenario)\n", result.Approach, result.Scenario)
	return nil
}

func scenarioKind(s *config.Scenario) string {
	switch {
	case s.Template != "":
		return "template"
	case s.Profile != "":
		return "profile " + s.Profile
	}
	return fmt.Sprintf("%d steps", len(s.Steps))
}
