// Package fispact drives the FISPACT inventory code: it renders input
// files, runs the solver process and reads its JSON inventory report.
package fispact

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
)

// Solver runs one FISPACT step in dir and returns its console output.
type Solver interface {
	Run(ctx context.Context, dir, input, files string) (string, error)
}

// SolverError reports a run that FISPACT itself terminated.
type SolverError struct {
	// Line is the termination line of the console output.
	Line string

	// Dir and Input identify the failed step when known.
	Dir   string
	Input string
}

// Error implements the error interface.
func (e *SolverError) Error() string {
	if e.Dir != "" {
		return fmt.Sprintf("fispact %s in %s: %s", e.Input, e.Dir, e.Line)
	}
	return "fispact: " + e.Line
}

var terminated = regexp.MustCompile(`(?im)^.*run +terminated.*$`)

// CheckStatus returns a *SolverError if the output reports a terminated run.
func CheckStatus(output string) error {
	if m := terminated.FindString(output); m != "" {
		return &SolverError{Line: m}
	}
	return nil
}

// ExecSolver runs the FISPACT executable as "<exe> <input> <files>".
type ExecSolver struct {
	Executable string
	Env        []string
}

// Run implements Solver.
func (s ExecSolver) Run(ctx context.Context, dir, input, files string) (string, error) {
	exe := s.Executable
	if exe == "" {
		exe = "fispact"
	}
	cmd := exec.CommandContext(ctx, exe, input, files)
	cmd.Dir = dir
	if len(s.Env) > 0 {
		cmd.Env = append(cmd.Environ(), s.Env...)
	}
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		return out.String(), fmt.Errorf("run %s %s %s in %s: %w", exe, input, files, dir, err)
	}
	if err := CheckStatus(out.String()); err != nil {
		se := err.(*SolverError)
		se.Dir, se.Input = dir, input
		return out.String(), se
	}
	return out.String(), nil
}
