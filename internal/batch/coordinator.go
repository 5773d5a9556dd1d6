package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"qlscan/internal/aggregate"
	"qlscan/internal/codeql"
	"qlscan/internal/fetch"
	"qlscan/internal/models"
	"qlscan/internal/sarif"
)

// ErrStoreUnavailable wraps persistence failures that make continuing the
// batch meaningless. It is the only error class that aborts a run; everything
// else is absorbed into per-unit results.
var ErrStoreUnavailable = errors.New("status store unavailable")

// Store is the persistence collaborator: a durable record per project plus
// read-once/commit-once unit status semantics.
type Store interface {
	ListProjects(ctx context.Context, limit int) ([]models.ProjectDescriptor, error)
	// GetUnitStatus returns the persisted unit result for (project, configKey),
	// or nil when none exists.
	GetUnitStatus(ctx context.Context, project, configKey string) (*models.BatchUnitResult, error)
	CommitUnitResult(ctx context.Context, configKey string, res models.BatchUnitResult) error
}

// Fetcher materializes and releases ephemeral source checkouts.
type Fetcher interface {
	Fetch(ctx context.Context, sourceRef, destDir string) (fetch.Result, error)
	Release(path string)
}

// Builder creates analysis databases.
type Builder interface {
	Build(ctx context.Context, fullName, sourcePath, language string, policy codeql.Policy) codeql.BuildResult
	DatabasePath(fullName, language string) string
}

// QueryRunner executes one query against one built database.
type QueryRunner interface {
	RunQuery(ctx context.Context, dbPath string, q codeql.Query, outputPath string, timeout time.Duration) (sarif.Report, error)
}

// Options configures one batch run.
type Options struct {
	Language     string
	Queries      []codeql.Query // empty = build only
	SkipExisting bool
	Force        bool
	Rerun        bool // reprocess units with a persisted terminal status
	MaxUnits     int  // 0 = unlimited
}

// Event reports unit progress to an optional observer (the CLI progress UI).
type Event struct {
	Project string
	Index   int // 1-based position in the run
	Total   int
	State   State
	Status  models.UnitStatus // set on terminal events
	Err     error
}

// Coordinator owns one batch run. Units are processed strictly sequentially:
// the engine is CPU- and disk-heavy, so at most one pipeline instance runs at
// a time.
type Coordinator struct {
	Store        Store
	Fetcher      Fetcher
	Builder      Builder
	Queries      QueryRunner
	CloneDir     string
	OutputDir    string
	QueryTimeout time.Duration
	SampleCap    int
	Logger       *slog.Logger
	OnEvent      func(Event)
}

func (c *Coordinator) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c *Coordinator) emit(ev Event) {
	if c.OnEvent != nil {
		c.OnEvent(ev)
	}
}

// configKey identifies a run configuration for resumability: a persisted
// unit result only short-circuits a later run with the same key.
func configKey(opts Options) string {
	parts := []string{"lang=" + opts.Language}
	ids := make([]string, 0, len(opts.Queries))
	for _, q := range opts.Queries {
		ids = append(ids, q.ID)
	}
	sort.Strings(ids)
	if len(ids) > 0 {
		parts = append(parts, "queries="+strings.Join(ids, ","))
	}
	return strings.Join(parts, "|")
}

// Run processes every stored project through the pipeline. One project's
// failure never stops iteration; the returned summary always satisfies
// created + skipped + failed == total processed. Cancellation stops launching
// new units but the unit in flight still runs its cleanup.
func (c *Coordinator) Run(ctx context.Context, opts Options) (models.RunSummary, []models.BatchUnitResult, error) {
	projects, err := c.Store.ListProjects(ctx, opts.MaxUnits)
	if err != nil {
		return models.RunSummary{}, nil, fmt.Errorf("%w: list projects: %v", ErrStoreUnavailable, err)
	}

	runID := uuid.New().String()[:8]
	agg := aggregate.New(runID, c.SampleCap)
	key := configKey(opts)
	results := make([]models.BatchUnitResult, 0, len(projects))

	c.logger().Info("starting batch run",
		"run_id", runID, "projects", len(projects), "config", key,
		"skip_existing", opts.SkipExisting, "force", opts.Force)

	for i, project := range projects {
		if ctx.Err() != nil {
			c.logger().Warn("batch cancelled, not launching further units",
				"run_id", runID, "remaining", len(projects)-i)
			break
		}

		// Resumability short-circuit: a terminal created/skipped result for
		// this configuration stands unless the caller forces reprocessing.
		if !opts.Force && !opts.Rerun {
			prev, err := c.Store.GetUnitStatus(ctx, project.FullName, key)
			if err != nil {
				return agg.Finalize(), results, fmt.Errorf("%w: read unit status: %v", ErrStoreUnavailable, err)
			}
			if prev != nil && prev.Status != models.UnitError {
				c.logger().Info("unit already processed, skipping",
					"project", project.FullName, "status", prev.Status)
				res := *prev
				agg.RecordUnit(res)
				results = append(results, res)
				c.emit(Event{Project: project.FullName, Index: i + 1, Total: len(projects),
					State: StateDone, Status: res.Status})
				continue
			}
		}

		res := c.processUnit(ctx, project, opts, agg, i+1, len(projects))
		agg.RecordUnit(res)
		results = append(results, res)

		if err := c.Store.CommitUnitResult(ctx, key, res); err != nil {
			return agg.Finalize(), results, fmt.Errorf("%w: commit unit result: %v", ErrStoreUnavailable, err)
		}
	}

	summary := agg.Finalize()
	c.logger().Info("batch run completed", "run_id", runID,
		"total", summary.Total, "created", summary.Created,
		"skipped", summary.Skipped, "failed", summary.Failed)
	return summary, results, nil
}

// processUnit walks one project through the state machine. The source
// checkout acquired in fetching is released exactly once on every exit path.
func (c *Coordinator) processUnit(ctx context.Context, project models.ProjectDescriptor, opts Options, agg *aggregate.Aggregator, index, total int) (result models.BatchUnitResult) {
	start := time.Now()
	state := StatePending
	log := c.logger().With("project", project.FullName)

	advance := func(to State) {
		next, err := transition(state, to)
		if err != nil {
			// A broken transition is a programming error, not a unit failure.
			panic(err)
		}
		state = next
		c.emit(Event{Project: project.FullName, Index: index, Total: total, State: state})
	}

	fail := func(stage State, err error) models.BatchUnitResult {
		advance(StateFailed)
		log.Error("unit failed", "stage", stage, "error", err)
		res := models.BatchUnitResult{
			Project: project.FullName,
			Stage:   string(stage),
			Status:  models.UnitError,
			Error:   err.Error(),
			Elapsed: time.Since(start),
		}
		c.emit(Event{Project: project.FullName, Index: index, Total: total,
			State: StateFailed, Status: models.UnitError, Err: err})
		return res
	}

	done := func(stage State, status models.UnitStatus) models.BatchUnitResult {
		advance(StateDone)
		res := models.BatchUnitResult{
			Project: project.FullName,
			Stage:   string(stage),
			Status:  status,
			Elapsed: time.Since(start),
		}
		c.emit(Event{Project: project.FullName, Index: index, Total: total,
			State: StateDone, Status: status})
		return res
	}

	language := opts.Language
	if language == "" {
		language = project.Language
	}

	clonePath := filepath.Join(c.CloneDir, models.SanitizeName(project.FullName))

	// The checkout never outlives its unit, whichever stage fails.
	var fetched string
	defer func() {
		if fetched != "" {
			c.Fetcher.Release(fetched)
		}
	}()

	advance(StateFetching)
	fetchRes, err := c.Fetcher.Fetch(ctx, project.URL, clonePath)
	if err != nil {
		return fail(StateFetching, err)
	}
	fetched = fetchRes.Path

	advance(StateBuilding)
	buildRes := c.Builder.Build(ctx, project.FullName, fetched, language, codeql.Policy{
		SkipExisting: opts.SkipExisting,
		Force:        opts.Force,
	})
	switch buildRes.Status {
	case codeql.StatusSkipped:
		return done(StateBuilding, models.UnitSkipped)
	case codeql.StatusError:
		return fail(StateBuilding, buildRes.Err)
	}

	if len(opts.Queries) == 0 {
		return done(StateBuilding, models.UnitCreated)
	}

	advance(StateQuerying)
	reports := make(map[string]sarif.Report, len(opts.Queries))
	var queryErrs []error
	for _, q := range opts.Queries {
		outputPath := filepath.Join(c.OutputDir, q.ID, models.SanitizeName(project.FullName)+".sarif")
		report, err := c.Queries.RunQuery(ctx, buildRes.Path, q, outputPath, c.QueryTimeout)
		if err != nil {
			log.Error("query failed", "query", q.ID, "error", err)
			queryErrs = append(queryErrs, err)
			continue
		}
		reports[q.ID] = report
	}

	advance(StateAggregating)
	// Successful queries are ingested even when a sibling query failed:
	// partial success is preserved, not discarded.
	for queryID, report := range reports {
		if err := agg.Ingest(project.FullName, queryID, report); err != nil {
			queryErrs = append(queryErrs, err)
		}
	}
	if len(queryErrs) > 0 {
		return fail(StateQuerying, errors.Join(queryErrs...))
	}

	return done(StateAggregating, models.UnitCreated)
}
