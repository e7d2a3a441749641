package task

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/r2s/internal/config"
	"github.com/roach88/r2s/internal/fispact"
	"github.com/roach88/r2s/internal/runner"
	"github.com/roach88/r2s/internal/store"
)

// Phase names recorded in the runs table.
const (
	PhaseRun   = "run"
	PhaseFetch = "fetch"
)

// RunOptions select the cases of a run.
type RunOptions struct {
	// FailedOnly re-runs the cases that failed or never finished.
	FailedOnly bool
}

// caseSteps are the solver steps of a case, in order.
var caseSteps = []struct {
	input string
	files string
}{
	{fispact.ConvertInput, fispact.ConvertFilesName},
	{fispact.CollapseInput, fispact.FilesName},
	{fispact.InventoryInput, fispact.FilesName},
}

func (t *Task) solver(cfg *config.Task) fispact.Solver {
	if t.Solver != nil {
		return t.Solver
	}
	return fispact.ExecSolver{Executable: cfg.Fispact.Executable}
}

// Run runs the condense case and then the cases on the pool. Case outcomes
// are saved in the store. It returns ErrCasesFailed, wrapping the case
// errors, when a case failed.
func (t *Task) Run(ctx context.Context, opts RunOptions) (*runner.Result, error) {
	log := t.logger()
	cfg, err := t.Config(ctx)
	if err != nil {
		return nil, err
	}
	cases, err := t.Store.Cases(ctx, "")
	if err != nil {
		return nil, err
	}
	if opts.FailedOnly {
		var todo []store.Case
		for _, c := range cases {
			if c.Status != store.CaseDone {
				todo = append(todo, c)
			}
		}
		cases = todo
	}
	solver := t.solver(cfg)
	pool, err := t.pool(cfg)
	if err != nil {
		return nil, err
	}

	id := t.ids().Generate()
	if _, err := t.Store.StartRun(ctx, id, PhaseRun); err != nil {
		return nil, err
	}
	// Outcomes are recorded even after ctx is cancelled.
	book := context.WithoutCancel(ctx)
	log.Info("run started", "run", id, "cases", len(cases))

	condense := filepath.Join(t.Dir, CondenseDir)
	if _, err := os.Stat(filepath.Join(condense, fispact.ArrayxName)); !opts.FailedOnly || err != nil {
		if _, err := solver.Run(ctx, condense, fispact.CondenseInput, fispact.FilesName); err != nil {
			_ = t.Store.FinishRun(book, id, store.RunFailed, 0, 0, len(cases))
			return nil, fmt.Errorf("condense: %w", err)
		}
		log.Info("decay data condensed")
	}

	jobs := make([]runner.Job, len(cases))
	for n, c := range cases {
		jobs[n] = runner.Job{Name: c.Name, Dir: c.Dir, Run: func(ctx context.Context) error {
			return runCase(ctx, solver, c.Dir)
		}}
	}
	res, runErr := pool.Run(ctx, jobs)
	if res == nil {
		_ = t.Store.FinishRun(book, id, store.RunFailed, 0, 0, len(cases))
		return nil, runErr
	}

	// Case outcomes are stored from this goroutine only.
	failed := make(map[string]bool, len(res.Failed))
	for _, f := range res.Failed {
		failed[f.Name] = true
		if err := t.Store.SetCaseStatus(book, f.Name, store.CaseFailed, f.Err.Error(), id); err != nil {
			return res, err
		}
	}
	skipped := make(map[string]bool, len(res.Skipped))
	for _, name := range res.Skipped {
		skipped[name] = true
	}
	for _, c := range cases {
		if failed[c.Name] || skipped[c.Name] {
			continue
		}
		if err := t.Store.SetCaseStatus(book, c.Name, store.CaseDone, "", id); err != nil {
			return res, err
		}
	}

	status := store.RunFinished
	if len(res.Failed) > 0 || runErr != nil {
		status = store.RunFailed
	}
	if err := t.Store.FinishRun(book, id, status, res.Completed, len(res.Failed), len(res.Skipped)); err != nil {
		return res, err
	}
	log.Info("run finished", "run", id, "completed", res.Completed, "failed", len(res.Failed), "skipped", len(res.Skipped))

	if runErr != nil {
		return res, runErr
	}
	if len(res.Failed) > 0 {
		return res, fmt.Errorf("%w: %d of %d: %w", ErrCasesFailed, len(res.Failed), len(jobs), res.Err())
	}
	return res, nil
}

// runCase runs the steps of one case and checks it left a report.
func runCase(ctx context.Context, solver fispact.Solver, dir string) error {
	for _, step := range caseSteps {
		if _, err := solver.Run(ctx, dir, step.input, step.files); err != nil {
			return err
		}
	}
	if _, err := os.Stat(filepath.Join(dir, fispact.ReportName)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("no %s written", fispact.ReportName)
		}
		return err
	}
	return nil
}
