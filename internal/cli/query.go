package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"qlscan/internal/models"
)

var (
	queryLanguage string
	queryFiles    []string
	querySuite    string
	queryThreads  int
	queryRAMMiB   int
)

var queryCmd = &cobra.Command{
	Use:   "query <owner/repo>",
	Short: "Run queries against an existing analysis database",
	Long: `Query executes one or more queries against a project's already
built analysis database and writes one SARIF report per query under the
output directory.

The database must exist; run 'qlscan build' first.

Examples:
  qlscan query facebook/react --queries queries/id_10.ql
  qlscan query facebook/react --suite suites/injection.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVarP(&queryLanguage, "language", "l", "", "analysis language (default: project language or configured default)")
	queryCmd.Flags().StringSliceVarP(&queryFiles, "queries", "q", nil, "query files to run (.ql)")
	queryCmd.Flags().StringVarP(&querySuite, "suite", "s", "", "query suite manifest (yaml)")
	queryCmd.Flags().IntVar(&queryThreads, "threads", 0, "engine threads (0 = engine default)")
	queryCmd.Flags().IntVar(&queryRAMMiB, "ram", 0, "engine memory budget in MiB (0 = engine default)")
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	fullName := args[0]

	queries, err := resolveQueries(queryFiles, querySuite)
	if err != nil {
		return err
	}
	if len(queries) == 0 {
		exitWithError("no queries given; pass --queries or --suite")
	}

	language := queryLanguage
	if language == "" {
		if project, err := dbClient.GetProjectByName(ctx, fullName); err == nil {
			language = project.Language
		}
	}
	if language == "" {
		language = cfg.DefaultLanguage
	}

	manager := newManager()
	if queryThreads > 0 {
		manager.CLI.Threads = queryThreads
	}
	if queryRAMMiB > 0 {
		manager.CLI.RAMMiB = queryRAMMiB
	}
	if !manager.Exists(fullName, language) {
		return fmt.Errorf("no %s database for %s; run 'qlscan build %s' first",
			language, fullName, fullName)
	}
	dbPath := manager.DatabasePath(fullName, language)

	for _, q := range queries {
		outputPath := filepath.Join(cfg.OutputDir, q.ID, models.SanitizeName(fullName)+".sarif")
		fmt.Printf("Running %s...\n", q.ID)

		report, err := manager.RunQuery(ctx, dbPath, q, outputPath, cfg.QueryTimeout)
		if err != nil {
			return err
		}

		fmt.Printf("  %d findings -> %s\n", report.Count(), outputPath)
		if verbose {
			for _, f := range report.Findings() {
				fmt.Printf("  [%s] %s:%d %s\n", f.Severity, f.File, f.StartLine, f.Message)
			}
		}
	}
	return nil
}
