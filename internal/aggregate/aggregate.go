// Package aggregate folds per-query findings reports into a run summary.
package aggregate

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"qlscan/internal/models"
	"qlscan/internal/sarif"
)

var (
	// ErrDuplicateIngest reports a second ingest for the same
	// (project, query) pair without an intervening reset. Double counting
	// is never silent.
	ErrDuplicateIngest = errors.New("duplicate ingest")

	// ErrFinalized reports an ingest after Finalize froze the aggregate.
	ErrFinalized = errors.New("aggregate already finalized")
)

// DefaultSampleCap bounds retained exemplar findings per (query, project)
// when no cap is configured.
const DefaultSampleCap = 5

// Aggregator accumulates finding counts and bounded exemplar findings.
// Merging is associative and commutative across projects; the same pair may
// only be ingested once. Safe for concurrent use.
type Aggregator struct {
	mu        sync.Mutex
	runID     string
	sampleCap int
	startedAt time.Time
	finalized bool

	counts  map[string]map[string]int             // query -> project -> count
	samples map[string]map[string][]sarif.Finding // query -> project -> exemplars
	seen    map[string]bool                       // query + "\x00" + project

	total, created, skipped, failed int
}

// New returns an empty aggregator for one batch run.
func New(runID string, sampleCap int) *Aggregator {
	if sampleCap <= 0 {
		sampleCap = DefaultSampleCap
	}
	return &Aggregator{
		runID:     runID,
		sampleCap: sampleCap,
		startedAt: time.Now().UTC(),
		counts:    make(map[string]map[string]int),
		samples:   make(map[string]map[string][]sarif.Finding),
		seen:      make(map[string]bool),
	}
}

// Ingest merges one report's findings under (queryID, projectKey). Counts
// follow the engine's raw result count, matching what a later rebuild from
// the SARIF files on disk reports; exemplars come from the locatable
// findings only.
func (a *Aggregator) Ingest(projectKey, queryID string, report sarif.Report) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.finalized {
		return fmt.Errorf("%w: %s/%s", ErrFinalized, queryID, projectKey)
	}
	key := queryID + "\x00" + projectKey
	if a.seen[key] {
		return fmt.Errorf("%w: %s/%s", ErrDuplicateIngest, queryID, projectKey)
	}
	a.seen[key] = true

	if a.counts[queryID] == nil {
		a.counts[queryID] = make(map[string]int)
		a.samples[queryID] = make(map[string][]sarif.Finding)
	}
	a.counts[queryID][projectKey] = report.Count()
	a.samples[queryID][projectKey] = sample(report.Findings(), a.sampleCap)
	return nil
}

// RecordUnit tallies one terminal unit result.
func (a *Aggregator) RecordUnit(res models.BatchUnitResult) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.total++
	switch res.Status {
	case models.UnitCreated:
		a.created++
	case models.UnitSkipped:
		a.skipped++
	case models.UnitError:
		a.failed++
	}
}

// Finalize freezes the aggregate and returns the run summary, counts and
// retained exemplars included. Further ingests fail with ErrFinalized.
func (a *Aggregator) Finalize() models.RunSummary {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.finalized = true

	findings := make(map[string]map[string]int, len(a.counts))
	for queryID, byProject := range a.counts {
		m := make(map[string]int, len(byProject))
		for project, n := range byProject {
			m[project] = n
		}
		findings[queryID] = m
	}

	exemplars := make(map[string]map[string][]sarif.Finding, len(a.samples))
	for queryID, byProject := range a.samples {
		m := make(map[string][]sarif.Finding, len(byProject))
		for project, fs := range byProject {
			out := make([]sarif.Finding, len(fs))
			copy(out, fs)
			m[project] = out
		}
		exemplars[queryID] = m
	}

	return models.RunSummary{
		RunID:       a.runID,
		Total:       a.total,
		Created:     a.created,
		Skipped:     a.skipped,
		Failed:      a.failed,
		Findings:    findings,
		Exemplars:   exemplars,
		StartedAt:   a.startedAt,
		CompletedAt: time.Now().UTC(),
	}
}

// QuerySummary builds the persisted per-query summary. When threshold is
// non-nil only projects at or above it are included.
func (a *Aggregator) QuerySummary(queryID string, threshold *int) models.QuerySummary {
	a.mu.Lock()
	defer a.mu.Unlock()

	results := make(map[string]int)
	for project, n := range a.counts[queryID] {
		if threshold != nil && n < *threshold {
			continue
		}
		results[project] = n
	}
	return models.QuerySummary{
		QueryID:       queryID,
		TotalProjects: len(results),
		Results:       results,
		GeneratedAt:   time.Now().UTC(),
		Threshold:     threshold,
	}
}

// sample picks at most cap exemplars, guaranteeing at least one per distinct
// rule ID (as far as cap allows): first occurrence of each rule wins a slot,
// then remaining slots fill in document order.
func sample(findings []sarif.Finding, limit int) []sarif.Finding {
	if len(findings) <= limit {
		out := make([]sarif.Finding, len(findings))
		copy(out, findings)
		return out
	}

	out := make([]sarif.Finding, 0, limit)
	taken := make([]bool, len(findings))
	seenRule := make(map[string]bool)

	for i, f := range findings {
		if len(out) == limit {
			break
		}
		if !seenRule[f.RuleID] {
			seenRule[f.RuleID] = true
			taken[i] = true
			out = append(out, f)
		}
	}
	for i, f := range findings {
		if len(out) == limit {
			break
		}
		if !taken[i] {
			out = append(out, f)
		}
	}
	return out
}
