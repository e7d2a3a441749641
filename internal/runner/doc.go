// Package runner executes independent cases on a bounded worker pool.
//
// Each case is a Job. A failed job is reported as a *CaseError carrying the
// case identity; under BestEffort the remaining jobs still run, under
// FailFast the pool stops scheduling after the first failure.
//
// Progress is counted with an atomic counter and reported through an
// optional callback. Metrics are registered on the registry given to
// NewMetrics, so every pool can use its own.
package runner
