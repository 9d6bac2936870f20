package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// addGitignoreEntries appends missing entries to root/.gitignore.
func addGitignoreEntries(root string, dirs ...string) (bool, error) {
	gitignorePath := filepath.Join(root, ".gitignore")
	var existing []byte
	if data, err := os.ReadFile(gitignorePath); err == nil {
		existing = data
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("read .gitignore: %w", err)
	}

	present := map[string]bool{}
	for _, line := range strings.Split(string(existing), "\n") {
		present[strings.TrimSpace(line)] = true
	}

	updated := string(existing)
	changed := false
	for _, dir := range dirs {
		entry, err := normalizeGitignorePath(root, dir)
		if err != nil {
			return false, err
		}
		if present[entry] || present[entry+"/"] {
			continue
		}
		if len(updated) > 0 && !strings.HasSuffix(updated, "\n") {
			updated += "\n"
		}
		updated += entry + "/\n"
		present[entry] = true
		changed = true
	}
	if !changed {
		return false, nil
	}
	if err := os.WriteFile(gitignorePath, []byte(updated), 0o644); err != nil {
		return false, fmt.Errorf("write .gitignore: %w", err)
	}
	return true, nil
}

func normalizeGitignorePath(root, dir string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", fmt.Errorf("gitignore entry is empty")
	}
	clean := filepath.Clean(dir)
	if filepath.IsAbs(clean) {
		rel, err := filepath.Rel(root, clean)
		if err != nil {
			return "", fmt.Errorf("resolve %s: %w", dir, err)
		}
		clean = rel
	}
	if clean == "." || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("%q is outside the repo root", dir)
	}
	return filepath.ToSlash(clean), nil
}
