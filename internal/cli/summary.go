package cli

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"qlscan/internal/aggregate"
)

var (
	summaryThreshold int
	summaryOutputDir string
)

var summaryCmd = &cobra.Command{
	Use:   "summary <query-id>",
	Short: "Rebuild a query summary from SARIF reports on disk",
	Long: `Summary scans a query's output directory and regenerates its
summary.json from the SARIF reports found there. No database connection is
needed; this works purely from the filesystem.

With --threshold N only projects with at least N findings are included and
the summary is written as limit_N_summary.json instead.

Examples:
  qlscan summary id_10
  qlscan summary id_10 --threshold 5`,
	Args: cobra.ExactArgs(1),
	RunE: runSummary,
}

func init() {
	summaryCmd.Flags().IntVarP(&summaryThreshold, "threshold", "t", 0, "minimum findings per project (0 = include all)")
	summaryCmd.Flags().StringVarP(&summaryOutputDir, "output-dir", "o", "", "query output root (default: configured output dir)")
}

func runSummary(cmd *cobra.Command, args []string) error {
	queryID := args[0]
	outputDir := summaryOutputDir
	if outputDir == "" {
		outputDir = cfg.OutputDir
	}
	queryDir := filepath.Join(outputDir, queryID)

	var threshold *int
	if summaryThreshold > 0 {
		threshold = &summaryThreshold
	}

	summary, skipped := aggregate.SummaryFromDir(queryID, queryDir, threshold)
	if summary.Results == nil {
		// ReadDir itself failed; skipped carries the reason.
		return skipped[0]
	}
	for _, err := range skipped {
		fmt.Printf("Warning: skipped report: %v\n", err)
	}

	path := filepath.Join(queryDir, aggregate.SummaryFilename(threshold))
	if err := aggregate.WriteSummary(path, summary); err != nil {
		return err
	}

	fmt.Printf("%s: %d projects\n", queryID, summary.TotalProjects)
	projects := make([]string, 0, len(summary.Results))
	for p := range summary.Results {
		projects = append(projects, p)
	}
	sort.Slice(projects, func(i, j int) bool {
		if summary.Results[projects[i]] != summary.Results[projects[j]] {
			return summary.Results[projects[i]] > summary.Results[projects[j]]
		}
		return projects[i] < projects[j]
	})
	for _, p := range projects {
		fmt.Printf("  %-50s %d\n", p, summary.Results[p])
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}
