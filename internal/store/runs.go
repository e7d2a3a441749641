package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Run status values.
const (
	RunRunning  = "running"
	RunFinished = "finished"
	RunFailed   = "failed"
)

// Run is one execution of a task phase.
type Run struct {
	ID        string `json:"id"`
	Seq       int64  `json:"seq"`
	Phase     string `json:"phase"`
	Status    string `json:"status"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
}

// StartRun records a new run of phase and returns it. Its seq follows every
// existing run.
func (s *Store) StartRun(ctx context.Context, id, phase string) (Run, error) {
	r := Run{ID: id, Phase: phase, Status: RunRunning}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO runs (id, seq, phase, status)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM runs), ?, ?)
		RETURNING seq
	`, id, phase, RunRunning).Scan(&r.Seq)
	if err != nil {
		return Run{}, fmt.Errorf("start run: %w", err)
	}
	return r, nil
}

// FinishRun stores the outcome of a run.
func (s *Store) FinishRun(ctx context.Context, id, status string, completed, failed, skipped int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, completed = ?, failed = ?, skipped = ?
		WHERE id = ?
	`, status, completed, failed, skipped, id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run %s: %w", id, ErrNotFound)
	}
	return nil
}

// Runs returns every run ordered by seq.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, phase, status, completed, failed, skipped
		FROM runs ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Seq, &r.Phase, &r.Status, &r.Completed, &r.Failed, &r.Skipped); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// LastRun returns the latest run of phase.
func (s *Store) LastRun(ctx context.Context, phase string) (Run, error) {
	r := Run{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, seq, phase, status, completed, failed, skipped
		FROM runs WHERE phase = ? ORDER BY seq DESC LIMIT 1
	`, phase).Scan(&r.ID, &r.Seq, &r.Phase, &r.Status, &r.Completed, &r.Failed, &r.Skipped)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run of %s: %w", phase, ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("last run: %w", err)
	}
	return r, nil
}
