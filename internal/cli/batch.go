package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"qlscan/internal/aggregate"
	"qlscan/internal/batch"
	"qlscan/internal/codeql"
	"qlscan/internal/models"
	"qlscan/internal/sarif"
)

var (
	batchLanguage     string
	batchQueries      []string
	batchSuite        string
	batchMaxUnits     int
	batchSkipExisting bool
	batchForce        bool
	batchRerun        bool
	batchNoProgress   bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run the full pipeline over all stored projects",
	Long: `Batch processes every stored project: clone, build the analysis
database, run the configured queries, and aggregate the findings.

One project's failure never stops the run. Units that already have a
recorded outcome for the same configuration are skipped; use --rerun to
reprocess them or --force to also rebuild existing databases.

With no --queries or --suite the run is build-only.

Examples:
  qlscan batch --language javascript
  qlscan batch --queries queries/id_10.ql,queries/id_222.ql
  qlscan batch --suite suites/injection.yaml --max-units 50
  qlscan batch --rerun --force`,
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().StringVarP(&batchLanguage, "language", "l", "", "analysis language (default: per-project language, then configured default)")
	batchCmd.Flags().StringSliceVarP(&batchQueries, "queries", "q", nil, "query files to run (.ql)")
	batchCmd.Flags().StringVarP(&batchSuite, "suite", "s", "", "query suite manifest (yaml)")
	batchCmd.Flags().IntVarP(&batchMaxUnits, "max-units", "n", 0, "max projects to process (0 = all)")
	batchCmd.Flags().BoolVar(&batchSkipExisting, "skip-existing", true, "skip projects with an existing database")
	batchCmd.Flags().BoolVar(&batchForce, "force", false, "rebuild databases and reprocess recorded units")
	batchCmd.Flags().BoolVar(&batchRerun, "rerun", false, "reprocess units with a recorded outcome")
	batchCmd.Flags().BoolVar(&batchNoProgress, "no-progress", false, "disable the interactive progress display")
}

// resolveQueries merges --queries files and a --suite manifest into one
// query list, rejecting duplicate IDs across the two sources.
func resolveQueries(files []string, suitePath string) ([]codeql.Query, error) {
	var queries []codeql.Query
	seen := make(map[string]bool)

	if suitePath != "" {
		suite, err := codeql.LoadSuite(suitePath)
		if err != nil {
			return nil, err
		}
		for _, q := range suite.Queries {
			queries = append(queries, q)
			seen[q.ID] = true
		}
	}
	for _, f := range files {
		q := codeql.QueryFromFile(f)
		if seen[q.ID] {
			return nil, fmt.Errorf("duplicate query id %q", q.ID)
		}
		seen[q.ID] = true
		queries = append(queries, q)
	}
	return queries, nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	queries, err := resolveQueries(batchQueries, batchSuite)
	if err != nil {
		return err
	}

	language := batchLanguage
	if language == "" {
		language = cfg.DefaultLanguage
	}

	// First interrupt cancels the run (the unit in flight still cleans up);
	// a second one kills the process the usual way. The progress UI cancels
	// through the same context since it captures Ctrl+C as a key press.
	sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	manager := newManager()
	coord := &batch.Coordinator{
		Store:        dbClient,
		Fetcher:      newCloner(),
		Builder:      manager,
		Queries:      manager,
		CloneDir:     cfg.CloneDir,
		OutputDir:    cfg.OutputDir,
		QueryTimeout: cfg.QueryTimeout,
		SampleCap:    cfg.SampleCap,
		Logger:       logger,
	}

	opts := batch.Options{
		Language:     language,
		Queries:      queries,
		SkipExisting: batchSkipExisting,
		Force:        batchForce,
		Rerun:        batchRerun,
		MaxUnits:     batchMaxUnits,
	}

	type outcome struct {
		summary models.RunSummary
		results []models.BatchUnitResult
		err     error
	}

	events := make(chan batch.Event, 16)
	coord.OnEvent = func(ev batch.Event) { events <- ev }

	outc := make(chan outcome, 1)
	go func() {
		summary, results, err := coord.Run(ctx, opts)
		close(events)
		outc <- outcome{summary, results, err}
	}()

	interactive := !batchNoProgress && term.IsTerminal(int(os.Stdout.Fd()))
	if interactive {
		if err := runBatchProgress(events, cancel); err != nil {
			return err
		}
		// The UI can quit before the channel closes; keep draining so the
		// coordinator never blocks on an event send.
		for range events {
		}
	} else {
		for ev := range events {
			if ev.Status == "" {
				continue
			}
			line := fmt.Sprintf("[%d/%d] %s: %s", ev.Index, ev.Total, ev.Project, ev.Status)
			if ev.Err != nil {
				line += fmt.Sprintf(" (%v)", ev.Err)
			}
			fmt.Println(line)
		}
	}

	out := <-outc
	if out.err != nil {
		return out.err
	}

	printRunSummary(out.summary, out.results)
	return writeQuerySummaries(out.summary)
}

// printRunSummary prints the final tallies and any failed units.
func printRunSummary(summary models.RunSummary, results []models.BatchUnitResult) {
	fmt.Printf("\nRun %s: %d total, %d created, %d skipped, %d failed (%s)\n",
		summary.RunID, summary.Total, summary.Created, summary.Skipped, summary.Failed,
		summary.CompletedAt.Sub(summary.StartedAt).Round(time.Second))

	if summary.Failed > 0 {
		fmt.Println("\nFailed units:")
		for _, res := range results {
			if res.Status != models.UnitError {
				continue
			}
			fmt.Printf("  - %s [%s]: %s\n", res.Project, res.Stage, res.Error)
		}
	}
}

// writeQuerySummaries persists one summary.json per query from the run's
// aggregated findings.
func writeQuerySummaries(summary models.RunSummary) error {
	if len(summary.Findings) == 0 {
		return nil
	}
	fmt.Println("\nFindings:")
	for queryID, perProject := range summary.Findings {
		total := 0
		for _, n := range perProject {
			total += n
		}
		fmt.Printf("  %s: %d findings across %d projects\n", queryID, total, len(perProject))
		if verbose {
			printExemplars(summary.Exemplars[queryID])
		}

		path := filepath.Join(cfg.OutputDir, queryID, aggregate.SummaryFilename(nil))
		qs := models.QuerySummary{
			QueryID:       queryID,
			TotalProjects: len(perProject),
			Results:       perProject,
			GeneratedAt:   summary.CompletedAt,
		}
		if err := aggregate.WriteSummary(path, qs); err != nil {
			return err
		}
		fmt.Printf("  wrote %s\n", path)
	}
	return nil
}

// printExemplars lists the retained sample findings per project, sorted so
// the output is stable across runs.
func printExemplars(perProject map[string][]sarif.Finding) {
	projects := make([]string, 0, len(perProject))
	for project := range perProject {
		projects = append(projects, project)
	}
	sort.Strings(projects)

	for _, project := range projects {
		for _, f := range perProject[project] {
			fmt.Printf("    %s %s:%d [%s] %s\n", project, f.File, f.StartLine, f.RuleID, f.Message)
		}
	}
}
