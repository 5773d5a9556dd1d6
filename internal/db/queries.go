package db

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"

	"qlscan/internal/models"
)

// projectRecord is the stored shape of a project row.
type projectRecord struct {
	FullName       string     `json:"full_name"`
	URL            string     `json:"url"`
	Stars          int        `json:"stars"`
	Language       *string    `json:"language,omitempty"`
	Description    *string    `json:"description,omitempty"`
	Topics         []string   `json:"topics"`
	LastCommitDate *time.Time `json:"last_commit_date,omitempty"`
	FetchedAt      time.Time  `json:"fetched_at"`
}

func (r projectRecord) toDescriptor() models.ProjectDescriptor {
	d := models.ProjectDescriptor{
		FullName:   r.FullName,
		URL:        r.URL,
		Stars:      r.Stars,
		Topics:     r.Topics,
		LastCommit: r.LastCommitDate,
		FetchedAt:  r.FetchedAt,
	}
	if r.Language != nil {
		d.Language = *r.Language
	}
	if r.Description != nil {
		d.Description = *r.Description
	}
	return d
}

// unitRecord is the stored shape of a scan_unit row.
type unitRecord struct {
	Project   string    `json:"project"`
	Config    string    `json:"config"`
	Stage     string    `json:"stage"`
	Status    string    `json:"status"`
	Error     *string   `json:"error,omitempty"`
	ElapsedMS int64     `json:"elapsed_ms"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r unitRecord) toResult() models.BatchUnitResult {
	res := models.BatchUnitResult{
		Project: r.Project,
		Stage:   r.Stage,
		Status:  models.UnitStatus(r.Status),
		Elapsed: time.Duration(r.ElapsedMS) * time.Millisecond,
	}
	if r.Error != nil {
		res.Error = *r.Error
	}
	return res
}

// UpsertProject creates or refreshes a project record keyed by its qualified
// name.
func (c *Client) UpsertProject(ctx context.Context, p models.ProjectDescriptor) error {
	vars := map[string]any{
		"id":          p.FullName,
		"full_name":   p.FullName,
		"url":         p.URL,
		"stars":       p.Stars,
		"language":    nilIfEmpty(p.Language),
		"description": nilIfEmpty(p.Description),
		"topics":      topicsOrEmpty(p.Topics),
		"last_commit": p.LastCommit,
	}
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPSERT type::record("project", $id) SET
			full_name = $full_name,
			url = $url,
			stars = $stars,
			language = $language,
			description = $description,
			topics = $topics,
			last_commit_date = $last_commit,
			fetched_at = time::now()
	`, vars)
	if err != nil {
		return fmt.Errorf("upsert project: %w", wrapQueryError(err))
	}
	return nil
}

// GetProjectByName fetches a project by qualified name. Returns ErrNotFound
// when no such project exists.
func (c *Client) GetProjectByName(ctx context.Context, fullName string) (models.ProjectDescriptor, error) {
	results, err := surrealdb.Query[[]projectRecord](ctx, c.db, `
		SELECT * FROM project WHERE full_name = $full_name LIMIT 1
	`, map[string]any{"full_name": fullName})
	if err != nil {
		return models.ProjectDescriptor{}, fmt.Errorf("get project: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return models.ProjectDescriptor{}, fmt.Errorf("%w: project %s", ErrNotFound, fullName)
	}
	return (*results)[0].Result[0].toDescriptor(), nil
}

// ListProjects returns stored projects ordered by stars descending. limit 0
// means no limit.
func (c *Client) ListProjects(ctx context.Context, limit int) ([]models.ProjectDescriptor, error) {
	sql := `SELECT * FROM project ORDER BY stars DESC`
	vars := map[string]any{}
	if limit > 0 {
		sql += ` LIMIT $limit`
		vars["limit"] = limit
	}

	results, err := surrealdb.Query[[]projectRecord](ctx, c.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 {
		return nil, nil
	}

	records := (*results)[0].Result
	projects := make([]models.ProjectDescriptor, 0, len(records))
	for _, r := range records {
		projects = append(projects, r.toDescriptor())
	}
	return projects, nil
}

// CountProjects returns the number of stored projects.
func (c *Client) CountProjects(ctx context.Context) (int, error) {
	type countRow struct {
		Count int `json:"count"`
	}
	results, err := surrealdb.Query[[]countRow](ctx, c.db, `
		SELECT count() AS count FROM project GROUP ALL
	`, nil)
	if err != nil {
		return 0, fmt.Errorf("count projects: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return 0, nil
	}
	return (*results)[0].Result[0].Count, nil
}

// GetUnitStatus reads the persisted unit result for (project, configKey).
// Returns nil when no record exists.
func (c *Client) GetUnitStatus(ctx context.Context, project, configKey string) (*models.BatchUnitResult, error) {
	results, err := surrealdb.Query[[]unitRecord](ctx, c.db, `
		SELECT * FROM scan_unit WHERE project = $project AND config = $config LIMIT 1
	`, map[string]any{"project": project, "config": configKey})
	if err != nil {
		return nil, fmt.Errorf("get unit status: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	res := (*results)[0].Result[0].toResult()
	return &res, nil
}

// CommitUnitResult writes the terminal status for one unit. The record is
// replaced wholesale so a concurrent reader never observes a partial write.
func (c *Client) CommitUnitResult(ctx context.Context, configKey string, res models.BatchUnitResult) error {
	vars := map[string]any{
		"id":         res.Project + "|" + configKey,
		"project":    res.Project,
		"config":     configKey,
		"stage":      res.Stage,
		"status":     string(res.Status),
		"error":      nilIfEmpty(res.Error),
		"elapsed_ms": res.Elapsed.Milliseconds(),
	}
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPSERT type::record("scan_unit", $id) SET
			project = $project,
			config = $config,
			stage = $stage,
			status = $status,
			error = $error,
			elapsed_ms = $elapsed_ms,
			updated_at = time::now()
	`, vars)
	if err != nil {
		return fmt.Errorf("commit unit result: %w", wrapQueryError(err))
	}
	return nil
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func topicsOrEmpty(topics []string) []string {
	if topics == nil {
		return []string{}
	}
	return topics
}
