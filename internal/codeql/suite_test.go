package codeql

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSuite(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "suite.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadSuite(t *testing.T) {
	dir := t.TempDir()
	path := writeSuite(t, dir, `
name: injection-checks
queries:
  - id: sqli
    file: queries/id_10.ql
  - file: queries/id_222.ql
`)

	suite, err := LoadSuite(path)
	require.NoError(t, err)
	assert.Equal(t, "injection-checks", suite.Name)
	require.Len(t, suite.Queries, 2)

	assert.Equal(t, "sqli", suite.Queries[0].ID)
	assert.Equal(t, filepath.Join(dir, "queries", "id_10.ql"), suite.Queries[0].File,
		"relative paths resolve against the manifest")

	assert.Equal(t, "id_222", suite.Queries[1].ID, "missing id falls back to the file stem")
}

func TestLoadSuiteAbsolutePathKept(t *testing.T) {
	dir := t.TempDir()
	abs := filepath.Join(dir, "elsewhere", "id_1.ql")
	path := writeSuite(t, dir, "queries:\n  - file: "+abs+"\n")

	suite, err := LoadSuite(path)
	require.NoError(t, err)
	assert.Equal(t, abs, suite.Queries[0].File)
}

func TestLoadSuiteErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no queries", "name: empty\n"},
		{"entry without file", "queries:\n  - id: orphan\n"},
		{"duplicate ids", "queries:\n  - file: a/id_1.ql\n  - file: b/id_1.ql\n"},
		{"invalid yaml", "queries: [unterminated\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeSuite(t, t.TempDir(), tt.content)
			_, err := LoadSuite(path)
			assert.Error(t, err)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadSuite(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})
}
