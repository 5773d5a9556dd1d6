package models

import (
	"time"

	"qlscan/internal/sarif"
)

// DatabaseStatus tracks the lifecycle of an analysis database on disk.
type DatabaseStatus string

const (
	DatabaseAbsent   DatabaseStatus = "absent"
	DatabaseBuilding DatabaseStatus = "building"
	DatabaseReady    DatabaseStatus = "ready"
	DatabaseFailed   DatabaseStatus = "failed"
)

// DatabaseRecord describes one analysis database, keyed by (project, language).
// A record left in "building" by a crashed run is treated as failed and
// rebuildable on the next pass.
type DatabaseRecord struct {
	Project  string         `json:"project"`
	Language string         `json:"language"`
	Path     string         `json:"path"`
	BuiltAt  time.Time      `json:"built_at"`
	Status   DatabaseStatus `json:"status"`
}

// UnitStatus is the terminal outcome of one project in a batch run.
type UnitStatus string

const (
	UnitCreated UnitStatus = "created"
	UnitSkipped UnitStatus = "skipped"
	UnitError   UnitStatus = "error"
)

// BatchUnitResult is the canonical per-project resumability record: exactly
// one is committed per project per run. Units already created/skipped are not
// reprocessed on re-run unless forced.
type BatchUnitResult struct {
	Project string        `json:"project"`
	Stage   string        `json:"stage"` // last stage reached
	Status  UnitStatus    `json:"status"`
	Error   string        `json:"error,omitempty"`
	Elapsed time.Duration `json:"elapsed"`
}

// RunSummary aggregates one batch run. Findings maps query ID to a mapping
// from project key to finding count; Exemplars carries the bounded sample
// of findings retained per pair as evidence.
type RunSummary struct {
	RunID       string                                `json:"run_id"`
	Total       int                                   `json:"total"`
	Created     int                                   `json:"created"`
	Skipped     int                                   `json:"skipped"`
	Failed      int                                   `json:"failed"`
	Findings    map[string]map[string]int             `json:"findings,omitempty"`
	Exemplars   map[string]map[string][]sarif.Finding `json:"exemplars,omitempty"`
	StartedAt   time.Time                             `json:"started_at"`
	CompletedAt time.Time                             `json:"completed_at"`
}

// QuerySummary is the persisted per-query summary document
// (outputs/queries/<query-id>/summary.json).
type QuerySummary struct {
	QueryID       string         `json:"query_id"`
	TotalProjects int            `json:"total_projects"`
	Results       map[string]int `json:"results"`
	GeneratedAt   time.Time      `json:"generated_at"`
	Threshold     *int           `json:"threshold,omitempty"`
}
