package codeql

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Suite is a named collection of queries loaded from a YAML manifest:
//
//	name: injection-checks
//	queries:
//	  - id: id_10
//	    file: queries/id_10.ql
//	  - file: queries/id_222.ql
//
// Entries without an explicit id fall back to the file stem. File paths are
// resolved relative to the manifest.
type Suite struct {
	Name    string  `yaml:"name"`
	Queries []Query `yaml:"queries"`
}

// LoadSuite reads and validates a suite manifest.
func LoadSuite(path string) (Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Suite{}, fmt.Errorf("read suite: %w", err)
	}

	var s Suite
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Suite{}, fmt.Errorf("parse suite %s: %w", path, err)
	}
	if len(s.Queries) == 0 {
		return Suite{}, fmt.Errorf("suite %s lists no queries", path)
	}

	base := filepath.Dir(path)
	seen := make(map[string]bool, len(s.Queries))
	for i := range s.Queries {
		q := &s.Queries[i]
		if q.File == "" {
			return Suite{}, fmt.Errorf("suite %s: query %d has no file", path, i)
		}
		if !filepath.IsAbs(q.File) {
			q.File = filepath.Join(base, q.File)
		}
		if q.ID == "" {
			*q = Query{ID: QueryFromFile(q.File).ID, File: q.File}
		}
		if seen[q.ID] {
			return Suite{}, fmt.Errorf("suite %s: duplicate query id %q", path, q.ID)
		}
		seen[q.ID] = true
	}
	return s, nil
}
