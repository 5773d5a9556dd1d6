// Package models defines data structures shared across the qlscan pipeline.
package models

import "time"

// ProjectDescriptor identifies one unit-of-work codebase. Descriptors are
// supplied by the project store and treated as immutable by the pipeline.
type ProjectDescriptor struct {
	FullName    string     `json:"full_name"` // qualified name, "owner/repo"
	URL         string     `json:"url"`       // clone URL
	Language    string     `json:"language,omitempty"`
	Stars       int        `json:"stars"`
	Description string     `json:"description,omitempty"`
	Topics      []string   `json:"topics,omitempty"`
	LastCommit  *time.Time `json:"last_commit_date,omitempty"`
	FetchedAt   time.Time  `json:"fetched_at"`
}

// Key returns the unit-of-work key for the project.
func (p ProjectDescriptor) Key() string { return p.FullName }
