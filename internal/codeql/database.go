package codeql

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"qlscan/internal/models"
	"qlscan/internal/proc"
)

// buildingMarkerSuffix names the sibling file flagging a database whose
// build did not finish. A directory still flagged on a later run is treated
// as failed and rebuildable. The marker sits next to the directory because
// the engine insists on creating the directory itself.
const buildingMarkerSuffix = ".building"

func buildingMarker(dbPath string) string { return dbPath + buildingMarkerSuffix }

// BuildCause classifies database build failures.
type BuildCause string

const (
	BuildEngineFailure BuildCause = "engineFailure"
	BuildTimeout       BuildCause = "timeout"
	BuildDiskFull      BuildCause = "diskFull"
)

// BuildError is returned for any failed database build.
type BuildError struct {
	Cause   BuildCause
	Project string
	Err     error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build database for %s (%s): %v", e.Project, e.Cause, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// BuildStatus is the outcome of a Build call.
type BuildStatus string

const (
	StatusCreated BuildStatus = "created"
	StatusSkipped BuildStatus = "skipped"
	StatusError   BuildStatus = "error"
)

// BuildResult describes one build attempt. Err is set when Status is
// StatusError and always wraps a *BuildError.
type BuildResult struct {
	Status BuildStatus
	Path   string
	Record models.DatabaseRecord
	Err    error
}

// Policy controls how an existing database at the destination is handled.
type Policy struct {
	SkipExisting bool
	Force        bool
}

// Manager owns the on-disk database namespace: one directory per
// (project, language), derived deterministically from the qualified name.
type Manager struct {
	CLI     *CLI
	BaseDir string
	Timeout time.Duration // per-build deadline
	Logger  *slog.Logger
}

func (m *Manager) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

// DatabasePath returns the storage path for a (project, language) pair,
// e.g. "data/codeql-dbs/javascript/facebook+react".
func (m *Manager) DatabasePath(fullName, language string) string {
	return filepath.Join(m.BaseDir, language, models.SanitizeName(fullName))
}

// Exists reports whether a ready database is present for the pair. A
// directory still carrying the building marker counts as absent.
func (m *Manager) Exists(fullName, language string) bool {
	path := m.DatabasePath(fullName, language)
	if _, err := os.Stat(path); err != nil {
		return false
	}
	if _, err := os.Stat(buildingMarker(path)); err == nil {
		m.logger().Warn("found interrupted database build, treating as absent", "path", path)
		return false
	}
	return true
}

// Build creates the analysis database for fullName from sourcePath.
//
// Decision order: an existing ready database is skipped when SkipExisting is
// set and Force is not; Force removes any existing database first. Failed
// builds never leave partial output behind, so a later run cannot mistake a
// corrupt directory for a ready database.
func (m *Manager) Build(ctx context.Context, fullName, sourcePath, language string, policy Policy) BuildResult {
	dbPath := m.DatabasePath(fullName, language)

	if m.Exists(fullName, language) {
		if !policy.Force && policy.SkipExisting {
			m.logger().Info("database already exists, skipping", "project", fullName, "path", dbPath)
			return BuildResult{
				Status: StatusSkipped,
				Path:   dbPath,
				Record: m.record(fullName, language, dbPath, models.DatabaseReady),
			}
		}
	}
	if policy.Force {
		if err := os.RemoveAll(dbPath); err != nil {
			return m.fail(fullName, language, dbPath, &BuildError{
				Cause: BuildEngineFailure, Project: fullName,
				Err: fmt.Errorf("remove existing database: %w", err),
			})
		}
	}

	// A leftover interrupted build also has to go before the engine runs:
	// `codeql database create` refuses an existing destination.
	if _, err := os.Stat(dbPath); err == nil {
		if err := os.RemoveAll(dbPath); err != nil {
			return m.fail(fullName, language, dbPath, &BuildError{
				Cause: BuildEngineFailure, Project: fullName,
				Err: fmt.Errorf("remove stale database: %w", err),
			})
		}
	}

	if _, err := os.Stat(sourcePath); err != nil {
		return m.fail(fullName, language, dbPath, &BuildError{
			Cause: BuildEngineFailure, Project: fullName,
			Err: fmt.Errorf("source root missing: %w", err),
		})
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return m.fail(fullName, language, dbPath, &BuildError{
			Cause: BuildEngineFailure, Project: fullName, Err: err,
		})
	}

	if err := os.WriteFile(buildingMarker(dbPath), nil, 0o644); err != nil {
		return m.fail(fullName, language, dbPath, &BuildError{
			Cause: BuildEngineFailure, Project: fullName,
			Err: fmt.Errorf("write building marker: %w", err),
		})
	}

	res, err := m.CLI.createDatabase(ctx, dbPath, sourcePath, language, m.Timeout)
	if err != nil || res.ExitCode != 0 {
		// Remove whatever the engine managed to write. The marker stays so
		// a crash between these two removals still reads as failed.
		_ = os.RemoveAll(dbPath)
		_ = os.Remove(buildingMarker(dbPath))

		buildErr := &BuildError{Cause: BuildEngineFailure, Project: fullName}
		switch {
		case errors.Is(err, proc.ErrTimeout):
			buildErr.Cause = BuildTimeout
			buildErr.Err = err
		case err != nil:
			buildErr.Err = err
		case strings.Contains(strings.ToLower(res.Stderr), "no space left on device"):
			buildErr.Cause = BuildDiskFull
			buildErr.Err = fmt.Errorf("engine exited %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
		default:
			buildErr.Err = fmt.Errorf("engine exited %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
		}
		return m.fail(fullName, language, dbPath, buildErr)
	}

	if err := os.Remove(buildingMarker(dbPath)); err != nil {
		m.logger().Warn("failed to clear building marker", "path", dbPath, "error", err)
	}

	m.logger().Info("created analysis database", "project", fullName, "path", dbPath, "elapsed", res.Elapsed)
	return BuildResult{
		Status: StatusCreated,
		Path:   dbPath,
		Record: m.record(fullName, language, dbPath, models.DatabaseReady),
	}
}

func (m *Manager) record(fullName, language, path string, status models.DatabaseStatus) models.DatabaseRecord {
	return models.DatabaseRecord{
		Project:  fullName,
		Language: language,
		Path:     path,
		BuiltAt:  time.Now().UTC(),
		Status:   status,
	}
}

func (m *Manager) fail(fullName, language, dbPath string, err *BuildError) BuildResult {
	m.logger().Error("database build failed", "project", fullName, "cause", err.Cause, "error", err.Err)
	return BuildResult{
		Status: StatusError,
		Path:   dbPath,
		Record: m.record(fullName, language, dbPath, models.DatabaseFailed),
		Err:    err,
	}
}
