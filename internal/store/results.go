package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Result locates a persisted frame.
type Result struct {
	Kind string `json:"kind"`
	Time int    `json:"time"`
	Path string `json:"path"`
}

// PutResults replaces the result index with results.
func (s *Store) PutResults(ctx context.Context, runID string, results []Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("put results: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM results`); err != nil {
		return fmt.Errorf("put results: %w", err)
	}
	for _, r := range results {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO results (kind, time, path, run_id) VALUES (?, ?, ?, ?)
		`, r.Kind, r.Time, r.Path, runRef(runID)); err != nil {
			return fmt.Errorf("put result %s/%d: %w", r.Kind, r.Time, err)
		}
	}
	return tx.Commit()
}

// ResultPath returns the frame path of kind at time.
func (s *Store) ResultPath(ctx context.Context, kind string, time int) (string, error) {
	var path string
	err := s.db.QueryRowContext(ctx, `
		SELECT path FROM results WHERE kind = ? AND time = ?
	`, kind, time).Scan(&path)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("result %s/%d: %w", kind, time, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("result path: %w", err)
	}
	return path, nil
}

// Results returns the result index ordered by kind and time.
func (s *Store) Results(ctx context.Context) ([]Result, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, time, path FROM results ORDER BY kind COLLATE BINARY ASC, time ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var out []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.Kind, &r.Time, &r.Path); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
