package suite

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/foundationallm/foundationallm-sub000/internal/validate"
)

// Filter keeps cases matching any of ids and carrying any of tags.
// Empty ids or tags match everything. Unknown ids are reported.
func Filter(s Suite, ids, tags []string) (Suite, error) {
	wantIDs := toSet(ids)
	wantTags := toSet(tags)
	found := map[string]bool{}
	out := s
	out.Cases = nil
	for _, item := range s.Cases {
		if len(wantIDs) > 0 {
			if _, ok := wantIDs[item.ID]; !ok {
				continue
			}
			found[item.ID] = true
		}
		if len(wantTags) > 0 && !hasAnyTag(item.Tags, wantTags) {
			continue
		}
		out.Cases = append(out.Cases, item)
	}
	var missing []string
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" && !found[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return Suite{}, fmt.Errorf("unknown case ids: %s", strings.Join(missing, ", "))
	}
	return out, nil
}

// Merge concatenates suites, keeping the first case for each id. A later
// case whose id collides but whose question differs is kept under
// "<suite>-<id>". Columns are the union of source columns in first-seen
// order. The ids of dropped duplicates are returned.
func Merge(name string, suites ...Suite) (Suite, []string) {
	merged := Suite{Name: name}
	seen := map[string]string{}
	seenColumn := map[string]bool{}
	var dropped []string
	for _, s := range suites {
		for _, column := range s.Columns {
			key := strings.ToLower(column)
			if !seenColumn[key] {
				seenColumn[key] = true
				merged.Columns = append(merged.Columns, column)
			}
		}
		for _, item := range s.Cases {
			if question, dup := seen[item.ID]; dup {
				renamed := s.Name + "-" + item.ID
				if _, taken := seen[renamed]; question == item.Question || taken {
					dropped = append(dropped, item.ID)
					continue
				}
				item.ID = renamed
			}
			seen[item.ID] = item.Question
			item.Filename = absAttachment(s, item)
			merged.Cases = append(merged.Cases, item)
		}
	}
	return merged, dropped
}

// Summary counts cases by resolved mode and feature.
func Summary(s Suite, defaultMode validate.Mode) Stats {
	summary := Stats{Total: len(s.Cases), ByMode: map[string]int{}}
	for _, item := range s.Cases {
		summary.ByMode[string(validate.ResolveMode(item.Mode, defaultMode))]++
		if !item.Rules.IsZero() {
			summary.WithRules++
		}
		if item.Filename != "" {
			summary.WithAttachments++
		}
		for _, tag := range item.Tags {
			if summary.Tags == nil {
				summary.Tags = map[string]int{}
			}
			summary.Tags[tag]++
		}
	}
	return summary
}

// AttachmentPath resolves a case's file against the suite directory.
func (s Suite) AttachmentPath(item Case) string {
	if item.Filename == "" || filepath.IsAbs(item.Filename) || s.Path == "" {
		return item.Filename
	}
	return filepath.Join(filepath.Dir(s.Path), item.Filename)
}

// absAttachment resolves an attachment against its source suite so it
// stays valid wherever a merged suite is saved.
func absAttachment(s Suite, item Case) string {
	path := s.AttachmentPath(item)
	if path == "" || filepath.IsAbs(path) || s.Path == "" {
		return path
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

func toSet(values []string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			set[value] = struct{}{}
		}
	}
	return set
}

func hasAnyTag(tags []string, want map[string]struct{}) bool {
	for _, tag := range tags {
		if _, ok := want[tag]; ok {
			return true
		}
	}
	return false
}
