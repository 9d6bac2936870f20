// Package suite loads, validates and manages CSV and YAML test suites.
package suite

import (
	"github.com/foundationallm/foundationallm-sub000/internal/validate"
)

// Case is a single test case.
type Case struct {
	ID       string         `json:"id" yaml:"id"`
	Question string         `json:"question" yaml:"question"`
	Filename string         `json:"filename,omitempty" yaml:"filename,omitempty"`
	Expected string         `json:"expected_answer" yaml:"expected_answer"`
	Rules    validate.Rules `json:"validation_rules,omitempty" yaml:"validation_rules,omitempty"`
	Mode     validate.Mode  `json:"validation_mode,omitempty" yaml:"validation_mode,omitempty"`
	Tags     []string       `json:"tags,omitempty" yaml:"tags,omitempty"`
	// Extra holds CSV columns this tool does not interpret, keyed by header.
	Extra map[string]string `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// Suite is an ordered set of cases loaded from one file.
type Suite struct {
	Name string `json:"name" yaml:"name"`
	// Path is the file the suite was loaded from; attachments resolve against its directory.
	Path  string `json:"-" yaml:"-"`
	Cases []Case `json:"cases" yaml:"cases"`
	// Columns is the CSV header order when loaded from CSV.
	Columns []string `json:"-" yaml:"-"`
}

// Info describes a discovered suite file.
type Info struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Format string `json:"format"`
}

// Stats counts cases by mode and feature.
type Stats struct {
	Total           int            `json:"total"`
	ByMode          map[string]int `json:"by_mode"`
	WithRules       int            `json:"with_rules"`
	WithAttachments int            `json:"with_attachments"`
	Tags            map[string]int `json:"tags,omitempty"`
}

// Format names.
const (
	FormatCSV  = "csv"
	FormatYAML = "yaml"
	FormatJSON = "json"
)
