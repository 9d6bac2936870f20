package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/foundationallm/foundationallm-sub000/internal/harness"
)

// RunRef locates a run directory on disk.
type RunRef struct {
	Suite string
	RunID string
	Dir   string
}

// ResultsPath returns the run's results.json path.
func (r RunRef) ResultsPath() string {
	return filepath.Join(r.Dir, "results.json")
}

// LoadResults reads a results.json file.
func LoadResults(path string) (harness.Results, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return harness.Results{}, fmt.Errorf("read results: %w", err)
	}
	var results harness.Results
	if err := json.Unmarshal(data, &results); err != nil {
		return harness.Results{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return results, nil
}

// ListRuns returns every run under outputDir ordered by suite, then run id.
// Run ids sort chronologically.
func ListRuns(outputDir string) ([]RunRef, error) {
	suites, err := os.ReadDir(outputDir)
	if err != nil {
		return nil, fmt.Errorf("read output dir: %w", err)
	}
	var refs []RunRef
	for _, suiteEntry := range suites {
		if !suiteEntry.IsDir() {
			continue
		}
		suiteDir := filepath.Join(outputDir, suiteEntry.Name())
		runs, err := os.ReadDir(suiteDir)
		if err != nil {
			return nil, fmt.Errorf("read suite dir: %w", err)
		}
		for _, runEntry := range runs {
			if !runEntry.IsDir() {
				continue
			}
			ref := RunRef{Suite: suiteEntry.Name(), RunID: runEntry.Name(), Dir: filepath.Join(suiteDir, runEntry.Name())}
			if _, err := os.Stat(ref.ResultsPath()); err == nil {
				refs = append(refs, ref)
			}
		}
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Suite != refs[j].Suite {
			return refs[i].Suite < refs[j].Suite
		}
		return refs[i].RunID < refs[j].RunID
	})
	return refs, nil
}

// ResolveRun finds a run by suite and ref. An empty ref or "latest" picks the
// newest run of the suite; otherwise ref is a run id, searched across all
// suites when suiteName is empty.
func ResolveRun(outputDir, suiteName, ref string) (harness.Results, RunRef, error) {
	suiteName = strings.TrimSpace(suiteName)
	ref = strings.TrimSpace(ref)
	if suiteName == "" && (ref == "" || ref == "latest") {
		return harness.Results{}, RunRef{}, fmt.Errorf("suite or run id is required")
	}
	refs, err := ListRuns(outputDir)
	if err != nil {
		return harness.Results{}, RunRef{}, err
	}
	safeSuite := ""
	if suiteName != "" {
		safeSuite = harness.SafeName(suiteName)
	}
	var match *RunRef
	for i := range refs {
		candidate := refs[i]
		if safeSuite != "" && candidate.Suite != safeSuite {
			continue
		}
		if ref == "" || ref == "latest" || candidate.RunID == ref {
			match = &refs[i]
		}
	}
	if match == nil {
		if ref == "" || ref == "latest" {
			return harness.Results{}, RunRef{}, fmt.Errorf("no runs found for suite %s", suiteName)
		}
		return harness.Results{}, RunRef{}, fmt.Errorf("run %s not found", ref)
	}
	results, err := LoadResults(match.ResultsPath())
	if err != nil {
		return harness.Results{}, RunRef{}, err
	}
	return results, *match, nil
}
