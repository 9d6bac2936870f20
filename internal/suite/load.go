package suite

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// document is the YAML/JSON file shape.
type document struct {
	Version int    `json:"version" yaml:"version"`
	Name    string `json:"name,omitempty" yaml:"name,omitempty"`
	Cases   []Case `json:"cases" yaml:"cases"`
}

// NameFromPath derives a suite name from its file name.
func NameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// FormatFromPath picks a format from the file extension.
func FormatFromPath(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".yml", ".yaml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported suite format %q (expected .csv, .yml, .yaml or .json)", filepath.Ext(path))
	}
}

// Load reads, parses, and validates a suite file.
func Load(path string) (Suite, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return Suite{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Suite{}, fmt.Errorf("read suite: %w", err)
	}
	return Parse(data, format, NameFromPath(path), path)
}

// Parse decodes suite bytes in the given format.
func Parse(data []byte, format, name, path string) (Suite, error) {
	if format == FormatCSV {
		return ParseCSV(bytes.NewReader(data), name, path)
	}
	var doc document
	var err error
	if format == FormatJSON {
		err = decodeJSON(data, &doc)
	} else {
		err = decodeYAML(data, &doc)
	}
	if err != nil {
		return Suite{}, err
	}
	if doc.Version != 0 && doc.Version != 1 {
		return Suite{}, fmt.Errorf("unsupported suite version %d", doc.Version)
	}
	if doc.Name != "" {
		name = doc.Name
	}
	return Normalize(Suite{Name: name, Path: path, Cases: doc.Cases})
}

func decodeJSON(data []byte, out any) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("parse json: %w", err)
	}
	if err := decoder.Decode(&json.RawMessage{}); err != io.EOF {
		if err == nil {
			return fmt.Errorf("parse json: multiple documents are not supported")
		}
		return fmt.Errorf("parse json: %w", err)
	}
	return nil
}

func decodeYAML(data []byte, out any) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	if err := decoder.Decode(&yaml.Node{}); err != io.EOF {
		if err == nil {
			return fmt.Errorf("parse yaml: multiple documents are not supported")
		}
		return fmt.Errorf("parse yaml: %w", err)
	}
	return nil
}

// Encode writes a suite in the given format.
func Encode(w io.Writer, s Suite, format string) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, s)
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(document{Version: 1, Name: s.Name, Cases: s.Cases})
	case FormatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(document{Version: 1, Name: s.Name, Cases: s.Cases}); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return encoder.Close()
	default:
		return fmt.Errorf("unsupported suite format %q", format)
	}
}

// Save writes the suite to path, choosing the format from its extension.
func Save(path string, s Suite) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create suite dir: %w", err)
	}
	var buf bytes.Buffer
	if err := Encode(&buf, s, format); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write suite: %w", err)
	}
	return nil
}

// Discover lists suite files directly under dir, sorted by name.
func Discover(dir string) ([]Info, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read suites dir: %w", err)
	}
	var infos []Info
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		format, err := FormatFromPath(path)
		if err != nil {
			continue
		}
		infos = append(infos, Info{Name: NameFromPath(path), Path: path, Format: format})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// Resolve finds a suite by name or path. A bare name is looked up in dir.
func Resolve(dir, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("suite is required")
	}
	if _, err := FormatFromPath(ref); err == nil {
		if _, statErr := os.Stat(ref); statErr == nil {
			return ref, nil
		}
	}
	infos, err := Discover(dir)
	if err != nil {
		return "", err
	}
	for _, info := range infos {
		if info.Name == ref || filepath.Base(info.Path) == ref {
			return info.Path, nil
		}
	}
	return "", fmt.Errorf("suite %q not found in %s", ref, dir)
}
