package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
)

// Policy decides what happens to pending jobs after a failure.
type Policy int

const (
	// BestEffort runs every job whatever the failures.
	BestEffort Policy = iota

	// FailFast cancels pending jobs after the first failure.
	FailFast
)

// String returns the policy name used in configuration.
func (p Policy) String() string {
	if p == FailFast {
		return "fail-fast"
	}
	return "best-effort"
}

// ParsePolicy parses "best-effort" or "fail-fast". Empty means BestEffort.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "best-effort":
		return BestEffort, nil
	case "fail-fast":
		return FailFast, nil
	}
	return BestEffort, fmt.Errorf("unknown failure policy %q", s)
}

// Job is one case.
type Job struct {
	Name string
	Dir  string
	Run  func(ctx context.Context) error
}

// CaseError is the failure of one job.
type CaseError struct {
	Name string
	Dir  string
	Err  error
}

// Error implements the error interface.
func (e *CaseError) Error() string {
	if e.Dir != "" {
		return fmt.Sprintf("case %s (%s): %v", e.Name, e.Dir, e.Err)
	}
	return fmt.Sprintf("case %s: %v", e.Name, e.Err)
}

// Unwrap returns the job error.
func (e *CaseError) Unwrap() error { return e.Err }

// Result summarizes a pool run. Failed and Skipped keep the job order.
type Result struct {
	Completed int
	Failed    []*CaseError
	Skipped   []string
}

// Err joins the case failures, or returns nil if every job succeeded.
func (r *Result) Err() error {
	errs := make([]error, len(r.Failed))
	for i, f := range r.Failed {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// Pool runs jobs with at most Workers in flight.
type Pool struct {
	Workers int
	Policy  Policy
	Logger  *slog.Logger
	Metrics *Metrics

	// Progress, when set, is called after every finished job with the number
	// of finished jobs and the total. Calls may come from several goroutines.
	Progress func(done, total int)
}

func (p *Pool) workers() int {
	if p.Workers > 0 {
		return p.Workers
	}
	return runtime.NumCPU()
}

func (p *Pool) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Run executes jobs and waits for them. The returned error is only set when
// ctx ends before every job was scheduled; job failures are in the Result.
func (p *Pool) Run(ctx context.Context, jobs []Job) (*Result, error) {
	log := p.logger()
	errs := make([]error, len(jobs))
	ran := make([]bool, len(jobs))
	counter := NewCounter(len(jobs))

	var g *errgroup.Group
	gctx := ctx
	if p.Policy == FailFast {
		g, gctx = errgroup.WithContext(ctx)
	} else {
		g = new(errgroup.Group)
	}
	g.SetLimit(p.workers())

	for n, job := range jobs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			ran[n] = true
			p.Metrics.started()
			start := time.Now()

			err := job.Run(gctx)
			p.Metrics.finished(time.Since(start), err)
			done := counter.Next()
			if p.Progress != nil {
				p.Progress(done, len(jobs))
			}
			if err != nil {
				errs[n] = err
				log.Warn("case failed", "case", job.Name, "dir", job.Dir, "err", err)
				if p.Policy == FailFast {
					return err
				}
				return nil
			}
			log.Debug("case done", "case", job.Name, "done", done, "total", len(jobs))
			return nil
		})
	}
	_ = g.Wait()

	res := &Result{}
	for n, job := range jobs {
		switch {
		case !ran[n]:
			res.Skipped = append(res.Skipped, job.Name)
		case errs[n] != nil:
			res.Failed = append(res.Failed, &CaseError{Name: job.Name, Dir: job.Dir, Err: errs[n]})
		default:
			res.Completed++
		}
	}
	if err := ctx.Err(); err != nil && len(res.Skipped) > 0 {
		return res, fmt.Errorf("pool interrupted: %w", err)
	}
	return res, nil
}
