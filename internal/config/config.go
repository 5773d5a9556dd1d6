// Package config loads qlscan configuration from the environment.
package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration values.
type Config struct {
	// SurrealDB connection (project store)
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// Storage layout
	DataDir     string // root for databases and clones
	DatabaseDir string // analysis database storage, keyed per (project, language)
	CloneDir    string // ephemeral source checkouts
	OutputDir   string // per-query SARIF output and summaries

	// CodeQL engine
	CodeQLPath      string
	DefaultLanguage string
	BuildTimeout    time.Duration
	QueryTimeout    time.Duration
	Threads         int // 0 = engine default
	RAMMiB          int // 0 = engine default

	// Source fetching
	GitHubToken  string
	CloneTimeout time.Duration

	// Aggregation
	SampleCap int // exemplar findings retained per (query, project)

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first without overriding already-set variables.
func Load() Config {
	_ = godotenv.Load()

	dataDir := getEnv("QLSCAN_DATA_DIR", "data")

	return Config{
		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "qlscan"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "scanner"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		DataDir:     dataDir,
		DatabaseDir: getEnv("QLSCAN_DB_DIR", filepath.Join(dataDir, "codeql-dbs")),
		CloneDir:    getEnv("QLSCAN_CLONE_DIR", filepath.Join(dataDir, "repositories")),
		OutputDir:   getEnv("QLSCAN_OUTPUT_DIR", filepath.Join("outputs", "queries")),

		CodeQLPath:      getEnv("QLSCAN_CODEQL_PATH", "codeql"),
		DefaultLanguage: getEnv("QLSCAN_DEFAULT_LANGUAGE", "javascript"),
		BuildTimeout:    getDuration("QLSCAN_BUILD_TIMEOUT", time.Hour),
		QueryTimeout:    getDuration("QLSCAN_QUERY_TIMEOUT", 30*time.Minute),
		Threads:         getInt("QLSCAN_THREADS", 0),
		RAMMiB:          getInt("QLSCAN_RAM_MIB", 0),

		GitHubToken:  os.Getenv("GITHUB_TOKEN"),
		CloneTimeout: getDuration("QLSCAN_CLONE_TIMEOUT", 10*time.Minute),

		SampleCap: getInt("QLSCAN_SAMPLE_CAP", 5),

		LogFile:  getEnv("QLSCAN_LOG_FILE", filepath.Join(dataDir, "qlscan.log")),
		LogLevel: parseLogLevel(getEnv("QLSCAN_LOG_LEVEL", "INFO")),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
