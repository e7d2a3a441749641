package task

import (
	"fmt"
	"os"

	"github.com/roach88/r2s/internal/config"
	"github.com/roach88/r2s/internal/fispact"
	"github.com/roach88/r2s/internal/profile"
)

// Scenario builds the irradiation scenario the configuration selects.
func Scenario(cfg *config.Scenario) (fispact.Scenario, error) {
	switch {
	case cfg.Template != "":
		if len(cfg.Records) > 0 {
			return nil, fmt.Errorf("%w: records cannot be inserted into a template", config.ErrInvalidConfig)
		}
		data, err := os.ReadFile(cfg.Template)
		if err != nil {
			return nil, fmt.Errorf("read scenario template: %w", err)
		}
		norm := cfg.NormFlux
		if norm == 0 {
			norm = 1
		}
		return profile.ParseScenarioTemplate(string(data), norm)
	case cfg.Profile != "":
		p, err := profile.Named(cfg.Profile)
		if err != nil {
			return nil, err
		}
		return p, insertRecords(p, cfg.Records)
	}

	p := profile.New(cfg.NormFlux)
	for n, s := range cfg.Steps {
		secs, err := profile.ConvertTimeLiteral(s.Duration)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", n, err)
		}
		record := profile.Record(s.Record)
		if s.Flux > 0 {
			err = p.Irradiate(s.Flux, float64(secs), profile.Secs, record, s.Nominal)
		} else {
			err = p.Relax(float64(secs), profile.Secs, record)
		}
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", n, err)
		}
	}
	return p, insertRecords(p, cfg.Records)
}

func insertRecords(p *profile.Profile, records []string) error {
	for _, lit := range records {
		secs, err := profile.ConvertTimeLiteral(lit)
		if err != nil {
			return fmt.Errorf("record %q: %w", lit, err)
		}
		if _, err := p.InsertRecord(profile.RecordAtoms, float64(secs), profile.Secs); err != nil {
			return fmt.Errorf("record %q: %w", lit, err)
		}
	}
	return nil
}
