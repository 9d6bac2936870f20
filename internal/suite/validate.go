package suite

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingColumn reports a CSV header without a required column.
var ErrMissingColumn = errors.New("missing required column")

// Issue captures a validation problem in a suite.
type Issue struct {
	Field   string
	Message string
}

// ValidationError reports one or more suite issues.
type ValidationError struct {
	Path   string
	Issues []Issue
}

// Error returns a readable message for validation failures.
func (err *ValidationError) Error() string {
	if err == nil || len(err.Issues) == 0 {
		return ""
	}
	parts := make([]string, 0, len(err.Issues))
	for _, issue := range err.Issues {
		parts = append(parts, fmt.Sprintf("%s: %s", issue.Field, issue.Message))
	}
	prefix := "suite validation failed"
	if err.Path != "" {
		prefix = fmt.Sprintf("suite %s validation failed", err.Path)
	}
	return fmt.Sprintf("%s: %s", prefix, strings.Join(parts, "; "))
}

type issueCollector struct {
	issues []Issue
}

func (collector *issueCollector) add(field, message string) {
	collector.issues = append(collector.issues, Issue{Field: field, Message: message})
}

func (collector *issueCollector) result(path string) error {
	if len(collector.issues) == 0 {
		return nil
	}
	return &ValidationError{Path: path, Issues: collector.issues}
}

// Normalize trims fields, assigns default ids and validates the suite.
func Normalize(s Suite) (Suite, error) {
	collector := &issueCollector{}
	normalizeInto(&s, collector, nil)
	if err := collector.result(s.Path); err != nil {
		return Suite{}, err
	}
	return s, nil
}

// normalizeInto validates cases in place. labels overrides the per-case
// field prefix (CSV uses row numbers).
func normalizeInto(s *Suite, collector *issueCollector, labels []string) {
	if len(s.Cases) == 0 {
		collector.add("cases", "must include at least one entry")
	}
	seen := map[string]struct{}{}
	for i := range s.Cases {
		item := &s.Cases[i]
		prefix := fmt.Sprintf("cases[%d]", i)
		if i < len(labels) {
			prefix = labels[i]
		}
		item.ID = strings.TrimSpace(item.ID)
		if item.ID == "" {
			item.ID = fmt.Sprintf("case-%d", i+1)
		}
		if _, dup := seen[item.ID]; dup {
			collector.add(prefix+".id", fmt.Sprintf("duplicate id %q", item.ID))
		}
		seen[item.ID] = struct{}{}

		item.Question = strings.TrimSpace(item.Question)
		if item.Question == "" {
			collector.add(prefix+".question", "is required")
		}
		item.Filename = strings.TrimSpace(item.Filename)
		item.Expected = strings.TrimSpace(item.Expected)
		item.Tags = normalizeTags(item.Tags)
		if err := item.Rules.Check(); err != nil {
			collector.add(prefix+".validation_rules", err.Error())
		}
	}
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
