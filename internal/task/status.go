package task

import (
	"context"

	"github.com/roach88/r2s/internal/store"
)

// Status summarizes a task.
type Status struct {
	Approach string             `json:"approach"`
	Masses   map[string]float64 `json:"masses"`
	Counts   map[string]int     `json:"counts"`
	Runs     []store.Run        `json:"runs"`
	Failed   []store.Case       `json:"failed"`
	Results  []store.Result     `json:"results"`
}

// Status reports material masses, case states, runs, failures and
// results.
func (t *Task) Status(ctx context.Context) (*Status, error) {
	cfg, err := t.Config(ctx)
	if err != nil {
		return nil, err
	}
	layout, err := t.Layout(ctx)
	if err != nil {
		return nil, err
	}
	st := &Status{Approach: cfg.Approach, Masses: layout.MaterialMasses()}
	if st.Counts, err = t.Store.CaseCounts(ctx); err != nil {
		return nil, err
	}
	if st.Runs, err = t.Store.Runs(ctx); err != nil {
		return nil, err
	}
	if st.Failed, err = t.Store.Cases(ctx, store.CaseFailed); err != nil {
		return nil, err
	}
	if st.Results, err = t.Store.Results(ctx); err != nil {
		return nil, err
	}
	return st, nil
}
