// Package cli provides the command-line interface for qlscan.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"qlscan/internal/codeql"
	"qlscan/internal/config"
	"qlscan/internal/db"
	"qlscan/internal/fetch"
	"qlscan/internal/models"
	"qlscan/internal/proc"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool

	// Global config, logger and db client
	cfg        config.Config
	logger     *slog.Logger
	logCleanup func() error
	dbClient   *db.Client
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "qlscan",
	Short: "Batch static analysis across project corpora",
	Long: `Qlscan runs CodeQL analysis over a corpus of projects: it clones
sources, builds per-language analysis databases, executes queries against
them, and aggregates SARIF findings into per-query summaries.

Projects are registered in a SurrealDB store; batch runs are resumable, so
a re-run after an interruption only processes the units that have no
recorded outcome yet.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Load config and logging for every command
		cfg = config.Load()
		level := cfg.LogLevel
		if verbose {
			level = slog.LevelDebug
		}
		logger, logCleanup = config.SetupLogger(cfg.LogFile, level)
		slog.SetDefault(logger)

		// Skip DB connection for commands that only touch the filesystem
		switch cmd.Name() {
		case "version", "help", "summary":
			return nil
		}

		ctx := context.Background()
		dbCfg := db.Config{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			AuthLevel: cfg.SurrealDBAuthLevel,
		}

		var err error
		dbClient, err = db.NewClient(ctx, dbCfg, logger)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}

		if err := dbClient.InitSchema(ctx); err != nil {
			return fmt.Errorf("initialize schema: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if dbClient != nil {
			if err := dbClient.Close(context.Background()); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
			}
		}
		if logCleanup != nil {
			_ = logCleanup()
		}
	},
}

// newEngine wires the process runner and engine CLI from the loaded config.
func newEngine() *codeql.CLI {
	return &codeql.CLI{
		Path:    cfg.CodeQLPath,
		Runner:  &proc.Runner{Logger: logger},
		Threads: cfg.Threads,
		RAMMiB:  cfg.RAMMiB,
		Logger:  logger,
	}
}

// newManager wires the database manager from the loaded config.
func newManager() *codeql.Manager {
	return &codeql.Manager{
		CLI:     newEngine(),
		BaseDir: cfg.DatabaseDir,
		Timeout: cfg.BuildTimeout,
		Logger:  logger,
	}
}

// newCloner wires the source fetcher from the loaded config.
func newCloner() *fetch.Cloner {
	return &fetch.Cloner{
		Runner:  &proc.Runner{Logger: logger},
		Token:   cfg.GitHubToken,
		Timeout: cfg.CloneTimeout,
		Logger:  logger,
	}
}

// clonePathFor returns the ephemeral checkout location for a project.
func clonePathFor(fullName string) string {
	return filepath.Join(cfg.CloneDir, models.SanitizeName(fullName))
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Add subcommands
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(projectsCmd)
	rootCmd.AddCommand(versionCmd)
}

// exitWithError prints an error message and exits with code 1.
func exitWithError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
