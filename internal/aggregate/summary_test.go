package aggregate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qlscan/internal/models"
)

func writeSarif(t *testing.T, dir, stem string, findings int) {
	t.Helper()
	results := ""
	for i := 0; i < findings; i++ {
		if i > 0 {
			results += ","
		}
		results += fmt.Sprintf(`{
			"ruleId": "r1",
			"message": {"text": "finding %d"},
			"locations": [{"physicalLocation": {
				"artifactLocation": {"uri": "src/app.js"},
				"region": {"startLine": %d}
			}}]
		}`, i, i+1)
	}
	doc := fmt.Sprintf(`{"version": "2.1.0", "runs": [{"results": [%s]}]}`, results)
	require.NoError(t, os.WriteFile(filepath.Join(dir, stem+".sarif"), []byte(doc), 0o644))
}

func TestSummaryFilename(t *testing.T) {
	assert.Equal(t, "summary.json", SummaryFilename(nil))
	n := 5
	assert.Equal(t, "limit_5_summary.json", SummaryFilename(&n))
}

func TestSummaryFromDir(t *testing.T) {
	dir := t.TempDir()
	writeSarif(t, dir, "acme+widget", 3)
	writeSarif(t, dir, "acme+gadget", 0)
	writeSarif(t, dir, "my-org+kube-state-metrics", 1)

	summary, skipped := SummaryFromDir("id_10", dir, nil)
	assert.Empty(t, skipped)
	assert.Equal(t, "id_10", summary.QueryID)
	assert.Equal(t, 3, summary.TotalProjects)
	assert.Equal(t, map[string]int{
		"acme/widget": 3,
		"acme/gadget": 0,
		// Hyphens in the owner survive the round trip untouched.
		"my-org/kube-state-metrics": 1,
	}, summary.Results)
}

func TestSummaryFromDirThreshold(t *testing.T) {
	dir := t.TempDir()
	writeSarif(t, dir, "acme+widget", 3)
	writeSarif(t, dir, "acme+gadget", 1)

	threshold := 2
	summary, skipped := SummaryFromDir("id_10", dir, &threshold)
	assert.Empty(t, skipped)
	assert.Equal(t, 1, summary.TotalProjects)
	assert.Equal(t, map[string]int{"acme/widget": 3}, summary.Results)
}

func TestSummaryFromDirSkipsUnparseableFiles(t *testing.T) {
	dir := t.TempDir()
	writeSarif(t, dir, "acme+widget", 2)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "acme+broken.sarif"), []byte("not json"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	summary, skipped := SummaryFromDir("id_10", dir, nil)
	assert.Len(t, skipped, 1, "the broken report is reported, not fatal")
	assert.Equal(t, map[string]int{"acme/widget": 2}, summary.Results)
}

func TestSummaryFromDirMissingDir(t *testing.T) {
	summary, skipped := SummaryFromDir("id_10", filepath.Join(t.TempDir(), "absent"), nil)
	assert.Nil(t, summary.Results)
	require.Len(t, skipped, 1)
	assert.Error(t, skipped[0])
}

func TestWriteSummaryRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "id_10", "summary.json")
	in := models.QuerySummary{
		QueryID:       "id_10",
		TotalProjects: 1,
		Results:       map[string]int{"acme/widget": 3},
	}
	require.NoError(t, WriteSummary(path, in))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var out models.QuerySummary
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in.QueryID, out.QueryID)
	assert.Equal(t, in.Results, out.Results)
	assert.Nil(t, out.Threshold)
}
