package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// Case status values.
const (
	CasePending = "pending"
	CaseDone    = "done"
	CaseFailed  = "failed"
)

// Case is a FISPACT case of the task.
type Case struct {
	Name   string `json:"name"`
	Dir    string `json:"dir"`
	Labels []any  `json:"labels"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	RunID  string `json:"run_id,omitempty"`
}

// PutCases inserts cases as pending, resetting cases that already exist.
func (s *Store) PutCases(ctx context.Context, cases []Case) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("put cases: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cases (name, dir, labels, status, error, run_id)
		VALUES (?, ?, ?, ?, '', NULL)
		ON CONFLICT(name) DO UPDATE SET
			dir = excluded.dir, labels = excluded.labels,
			status = excluded.status, error = '', run_id = NULL
	`)
	if err != nil {
		return fmt.Errorf("put cases: %w", err)
	}
	defer stmt.Close()

	for _, c := range cases {
		labels, err := json.Marshal(c.Labels)
		if err != nil {
			return fmt.Errorf("put case %s: %w", c.Name, err)
		}
		if _, err := stmt.ExecContext(ctx, c.Name, c.Dir, string(labels), CasePending); err != nil {
			return fmt.Errorf("put case %s: %w", c.Name, err)
		}
	}
	return tx.Commit()
}

// SetCaseStatus records the outcome of a case in run runID.
func (s *Store) SetCaseStatus(ctx context.Context, name, status, errText, runID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE cases SET status = ?, error = ?, run_id = ? WHERE name = ?
	`, status, errText, runRef(runID), name)
	if err != nil {
		return fmt.Errorf("set case status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("case %s: %w", name, ErrNotFound)
	}
	return nil
}

// Cases returns the cases with the given status, or all cases when status
// is empty, ordered by name.
func (s *Store) Cases(ctx context.Context, status string) ([]Case, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, dir, labels, status, error, run_id FROM cases
		WHERE ? = '' OR status = ?
		ORDER BY name COLLATE BINARY ASC
	`, status, status)
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	defer rows.Close()

	var cases []Case
	for rows.Next() {
		var c Case
		var labels string
		var runID sql.NullString
		if err := rows.Scan(&c.Name, &c.Dir, &labels, &c.Status, &c.Error, &runID); err != nil {
			return nil, fmt.Errorf("scan case: %w", err)
		}
		if err := json.Unmarshal([]byte(labels), &c.Labels); err != nil {
			return nil, fmt.Errorf("decode case %s labels: %w", c.Name, err)
		}
		c.RunID = runID.String
		cases = append(cases, c)
	}
	return cases, rows.Err()
}

// CaseCounts returns the number of cases per status.
func (s *Store) CaseCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM cases GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count cases: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan case count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
