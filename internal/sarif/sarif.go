// Package sarif parses the analysis engine's SARIF 2.1.0 output into a
// normalized findings report.
//
// Only the fields the pipeline consumes are modeled; everything else in the
// document is ignored. Parsing is defensive: a malformed or truncated file is
// an error, an empty results array is a valid report.
package sarif

import (
	"encoding/json"
	"fmt"
	"net/url"
)

// Report is the root of a parsed SARIF document.
type Report struct {
	Version string `json:"version"`
	Runs    []Run  `json:"runs"`
}

// Run is one analysis run inside a report.
type Run struct {
	Results []Result `json:"results"`
}

// Result is a single raw finding as emitted by the engine.
type Result struct {
	RuleID    string     `json:"ruleId"`
	Level     string     `json:"level,omitempty"`
	Message   Message    `json:"message"`
	Locations []Location `json:"locations,omitempty"`
}

// Message holds the finding text.
type Message struct {
	Text string `json:"text"`
}

// Location points into an artifact.
type Location struct {
	PhysicalLocation PhysicalLocation `json:"physicalLocation"`
}

// PhysicalLocation is a file/region pair.
type PhysicalLocation struct {
	ArtifactLocation ArtifactLocation `json:"artifactLocation"`
	Region           *Region          `json:"region,omitempty"`
}

// ArtifactLocation names the file a finding lives in.
type ArtifactLocation struct {
	URI string `json:"uri"`
}

// Region is a source range, optionally carrying the engine-extracted snippet
// (present when the engine runs with snippet output enabled).
type Region struct {
	StartLine   int      `json:"startLine"`
	EndLine     int      `json:"endLine,omitempty"`
	StartColumn int      `json:"startColumn,omitempty"`
	EndColumn   int      `json:"endColumn,omitempty"`
	Snippet     *Snippet `json:"snippet,omitempty"`
}

// Snippet is the extracted source text for a region.
type Snippet struct {
	Text string `json:"text"`
}

// Finding is the normalized representation consumed by the aggregator.
type Finding struct {
	RuleID    string `json:"rule_id"`
	Severity  string `json:"severity"`
	File      string `json:"file"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Message   string `json:"message"`
	Snippet   string `json:"snippet,omitempty"`
}

// Parse decodes a SARIF document. A document without a runs array is
// malformed; a run with zero results is not.
func Parse(data []byte) (Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return Report{}, fmt.Errorf("decode sarif: %w", err)
	}
	if len(r.Runs) == 0 {
		return Report{}, fmt.Errorf("invalid sarif: no runs")
	}
	return r, nil
}

// Findings flattens the first run into normalized findings. Results without a
// usable location are dropped, matching the engine's occasional synthetic
// results. A missing endLine means the finding covers a single line.
func (r Report) Findings() []Finding {
	if len(r.Runs) == 0 {
		return nil
	}

	findings := make([]Finding, 0, len(r.Runs[0].Results))
	for _, res := range r.Runs[0].Results {
		loc, ok := primaryLocation(res)
		if !ok {
			continue
		}

		region := loc.PhysicalLocation.Region
		endLine := region.EndLine
		if endLine == 0 {
			endLine = region.StartLine
		}

		severity := res.Level
		if severity == "" {
			severity = "warning"
		}

		uri := loc.PhysicalLocation.ArtifactLocation.URI
		if decoded, err := url.PathUnescape(uri); err == nil {
			uri = decoded
		}

		f := Finding{
			RuleID:    res.RuleID,
			Severity:  severity,
			File:      uri,
			StartLine: region.StartLine,
			EndLine:   endLine,
			Message:   res.Message.Text,
		}
		if region.Snippet != nil {
			f.Snippet = region.Snippet.Text
		}
		findings = append(findings, f)
	}
	return findings
}

// Count returns the number of raw results in the first run.
func (r Report) Count() int {
	if len(r.Runs) == 0 {
		return 0
	}
	return len(r.Runs[0].Results)
}

func primaryLocation(res Result) (Location, bool) {
	for _, loc := range res.Locations {
		if loc.PhysicalLocation.Region != nil && loc.PhysicalLocation.Region.StartLine > 0 {
			return loc, true
		}
	}
	return Location{}, false
}
