package aggregate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"qlscan/internal/models"
	"qlscan/internal/sarif"
)

// SummaryFilename returns the conventional summary file name for a query
// directory: summary.json, or limit_<n>_summary.json when thresholded.
func SummaryFilename(threshold *int) string {
	if threshold != nil {
		return fmt.Sprintf("limit_%d_summary.json", *threshold)
	}
	return "summary.json"
}

// WriteSummary persists a query summary as indented JSON.
func WriteSummary(path string, s models.QuerySummary) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create summary dir: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}

// SummaryFromDir rebuilds a query summary from the SARIF files already on
// disk under a query output directory. File stems map back to qualified
// names by inverting the storage sanitization. Files that fail to parse are
// skipped rather than aborting the whole summary.
func SummaryFromDir(queryID, queryDir string, threshold *int) (models.QuerySummary, []error) {
	entries, err := os.ReadDir(queryDir)
	if err != nil {
		return models.QuerySummary{}, []error{fmt.Errorf("read query dir: %w", err)}
	}

	var skipped []error
	results := make(map[string]int)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sarif") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(queryDir, name))
		if err != nil {
			skipped = append(skipped, fmt.Errorf("%s: %w", name, err))
			continue
		}
		report, err := sarif.Parse(data)
		if err != nil {
			skipped = append(skipped, fmt.Errorf("%s: %w", name, err))
			continue
		}

		project := models.QualifiedName(strings.TrimSuffix(name, ".sarif"))
		count := report.Count()
		if threshold != nil && count < *threshold {
			continue
		}
		results[project] = count
	}

	return models.QuerySummary{
		QueryID:       queryID,
		TotalProjects: len(results),
		Results:       results,
		GeneratedAt:   time.Now().UTC(),
		Threshold:     threshold,
	}, skipped
}
