package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	// Make sure ambient variables don't leak into the assertions.
	for _, key := range []string{
		"QLSCAN_DATA_DIR", "QLSCAN_DB_DIR", "QLSCAN_CLONE_DIR", "QLSCAN_OUTPUT_DIR",
		"QLSCAN_CODEQL_PATH", "QLSCAN_DEFAULT_LANGUAGE", "QLSCAN_BUILD_TIMEOUT",
		"QLSCAN_QUERY_TIMEOUT", "QLSCAN_THREADS", "QLSCAN_RAM_MIB",
		"QLSCAN_SAMPLE_CAP", "QLSCAN_LOG_LEVEL", "GITHUB_TOKEN",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, filepath.Join("data", "codeql-dbs"), cfg.DatabaseDir)
	assert.Equal(t, filepath.Join("data", "repositories"), cfg.CloneDir)
	assert.Equal(t, filepath.Join("outputs", "queries"), cfg.OutputDir)
	assert.Equal(t, "codeql", cfg.CodeQLPath)
	assert.Equal(t, "javascript", cfg.DefaultLanguage)
	assert.Equal(t, time.Hour, cfg.BuildTimeout)
	assert.Equal(t, 30*time.Minute, cfg.QueryTimeout)
	assert.Equal(t, 10*time.Minute, cfg.CloneTimeout)
	assert.Equal(t, 0, cfg.Threads)
	assert.Equal(t, 5, cfg.SampleCap)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Empty(t, cfg.GitHubToken)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("QLSCAN_DATA_DIR", "/var/lib/qlscan")
	t.Setenv("QLSCAN_CODEQL_PATH", "/opt/codeql/codeql")
	t.Setenv("QLSCAN_DEFAULT_LANGUAGE", "python")
	t.Setenv("QLSCAN_BUILD_TIMEOUT", "90m")
	t.Setenv("QLSCAN_THREADS", "8")
	t.Setenv("QLSCAN_RAM_MIB", "4096")
	t.Setenv("QLSCAN_SAMPLE_CAP", "10")
	t.Setenv("QLSCAN_LOG_LEVEL", "debug")
	t.Setenv("GITHUB_TOKEN", "tok123")

	cfg := Load()

	assert.Equal(t, "/var/lib/qlscan", cfg.DataDir)
	assert.Equal(t, filepath.Join("/var/lib/qlscan", "codeql-dbs"), cfg.DatabaseDir)
	assert.Equal(t, "/opt/codeql/codeql", cfg.CodeQLPath)
	assert.Equal(t, "python", cfg.DefaultLanguage)
	assert.Equal(t, 90*time.Minute, cfg.BuildTimeout)
	assert.Equal(t, 8, cfg.Threads)
	assert.Equal(t, 4096, cfg.RAMMiB)
	assert.Equal(t, 10, cfg.SampleCap)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "tok123", cfg.GitHubToken)
}

func TestLoadIgnoresInvalidValues(t *testing.T) {
	t.Setenv("QLSCAN_BUILD_TIMEOUT", "not-a-duration")
	t.Setenv("QLSCAN_THREADS", "many")
	t.Setenv("QLSCAN_LOG_LEVEL", "shout")

	cfg := Load()

	assert.Equal(t, time.Hour, cfg.BuildTimeout)
	assert.Equal(t, 0, cfg.Threads)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Info("pipeline started", "projects", 3)
	logger.Debug("not visible at info level")

	assert.Contains(t, stderr.String(), "pipeline started")
	assert.NotContains(t, stderr.String(), "not visible")

	// The file side is structured JSON.
	var entry map[string]any
	require.NoError(t, json.Unmarshal(file.Bytes(), &entry))
	assert.Equal(t, "pipeline started", entry["msg"])
	assert.Equal(t, float64(3), entry["projects"])
}

func TestSetupLoggerFallsBackWithoutFile(t *testing.T) {
	// Point the log file into an unwritable location: still get a logger.
	logger, cleanup := SetupLogger(filepath.Join("/proc/definitely/not/writable", "q.log"), slog.LevelInfo)
	require.NotNil(t, logger)
	assert.NoError(t, cleanup())
}
