package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/foundationallm/foundationallm-sub000/internal/config"
)

func TestInitScaffoldsProject(t *testing.T) {
	root := t.TempDir()
	code, stdout, stderr := runCLI("init", "--dir", root)
	if code != ExitOK {
		t.Fatalf("init failed: %d %s", code, stderr)
	}
	for _, path := range []string{config.ConfigPath(root), filepath.Join(root, "suites", "sample.csv")} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s: %v", path, err)
		}
		if !strings.Contains(stdout, path) {
			t.Fatalf("stdout does not mention %s", path)
		}
	}
	data, err := os.ReadFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		t.Fatalf("read .gitignore: %v", err)
	}
	for _, entry := range []string{".fllm/results/", ".fllm/history/"} {
		if !strings.Contains(string(data), entry) {
			t.Fatalf(".gitignore missing %s: %q", entry, data)
		}
	}

	code, _, stderr = runCLI("init", "--dir", root)
	if code != ExitError || !strings.Contains(stderr, "already exists") {
		t.Fatalf("expected second init to fail, got %d %q", code, stderr)
	}
}

func TestInitWithoutGitignore(t *testing.T) {
	root := t.TempDir()
	if code, _, stderr := runCLI("init", "--dir", root, "--gitignore=false"); code != ExitOK {
		t.Fatalf("init failed: %s", stderr)
	}
	if _, err := os.Stat(filepath.Join(root, ".gitignore")); !os.IsNotExist(err) {
		t.Fatalf("expected no .gitignore, got %v", err)
	}
}

func TestAddGitignoreEntriesIsIdempotent(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".gitignore"), "node_modules\n.fllm/results\n")
	changed, err := addGitignoreEntries(root, ".fllm/results", "./.fllm/history/")
	if err != nil || !changed {
		t.Fatalf("expected change, got %v %v", changed, err)
	}
	changed, err = addGitignoreEntries(root, ".fllm/results", ".fllm/history")
	if err != nil || changed {
		t.Fatalf("expected no change, got %v %v", changed, err)
	}
	data, _ := os.ReadFile(filepath.Join(root, ".gitignore"))
	if strings.Count(string(data), ".fllm/history/") != 1 || strings.Count(string(data), ".fllm/results") != 1 {
		t.Fatalf("unexpected .gitignore %q", data)
	}
}
