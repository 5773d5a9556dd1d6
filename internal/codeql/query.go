package codeql

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"qlscan/internal/proc"
	"qlscan/internal/sarif"
)

// QueryCause classifies query execution failures.
type QueryCause string

const (
	QueryEngineFailure   QueryCause = "engineFailure"
	QueryMalformedOutput QueryCause = "malformedOutput"
	QueryTimeout         QueryCause = "timeout"
)

// QueryError is returned for any failed query run.
type QueryError struct {
	Cause QueryCause
	Query string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("run query %s (%s): %v", e.Query, e.Cause, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// Query names one analysis query. ID defaults to the file stem
// ("queries/id_10.ql" -> "id_10").
type Query struct {
	ID   string `yaml:"id"`
	File string `yaml:"file"`
}

// QueryFromFile builds a Query for a bare .ql path.
func QueryFromFile(path string) Query {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Query{ID: stem, File: path}
}

// RunQuery executes one query against one built database, writing the SARIF
// report to outputPath and returning its parsed form. A report with zero
// findings is a successful result; failure is signalled by the engine's exit
// code, never by emptiness.
func (m *Manager) RunQuery(ctx context.Context, dbPath string, q Query, outputPath string, timeout time.Duration) (sarif.Report, error) {
	if _, err := os.Stat(q.File); err != nil {
		return sarif.Report{}, &QueryError{Cause: QueryEngineFailure, Query: q.ID,
			Err: fmt.Errorf("query file missing: %w", err)}
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return sarif.Report{}, &QueryError{Cause: QueryEngineFailure, Query: q.ID, Err: err}
	}

	res, err := m.CLI.analyze(ctx, dbPath, q.File, outputPath, timeout)
	if err != nil {
		if errors.Is(err, proc.ErrTimeout) {
			return sarif.Report{}, &QueryError{Cause: QueryTimeout, Query: q.ID, Err: err}
		}
		return sarif.Report{}, &QueryError{Cause: QueryEngineFailure, Query: q.ID, Err: err}
	}
	if res.ExitCode != 0 {
		return sarif.Report{}, &QueryError{Cause: QueryEngineFailure, Query: q.ID,
			Err: fmt.Errorf("engine exited %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))}
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		return sarif.Report{}, &QueryError{Cause: QueryMalformedOutput, Query: q.ID,
			Err: fmt.Errorf("read report: %w", err)}
	}
	report, err := sarif.Parse(data)
	if err != nil {
		return sarif.Report{}, &QueryError{Cause: QueryMalformedOutput, Query: q.ID, Err: err}
	}

	m.logger().Info("query completed", "query", q.ID, "database", dbPath, "findings", report.Count())
	return report, nil
}
