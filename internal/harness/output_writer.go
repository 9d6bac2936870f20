package harness

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/foundationallm/foundationallm-sub000/internal/suite"
)

// Result columns appended after the suite's own columns in results.csv.
var ResultColumns = []string{"ActualAnswer", "Passed", "Status", "Checks", "LatencySeconds", "Error"}

// ReportRenderer renders the HTML report for a single run.
type ReportRenderer func(ctx context.Context, results Results) (string, error)

// WriteOutputs writes results.json, results.csv and report.html under
// <outputDir>/<suite>/<run-id>. A nil render writes a minimal page.
func WriteOutputs(ctx context.Context, results Results, outputDir string, render ReportRenderer) (OutputPaths, error) {
	if outputDir == "" {
		return OutputPaths{}, fmt.Errorf("output directory is required")
	}
	paths, err := NewOutputPaths(outputDir, results.Suite, results.RunID)
	if err != nil {
		return OutputPaths{}, err
	}
	if err := os.MkdirAll(paths.RunDir(), 0o755); err != nil {
		return OutputPaths{}, fmt.Errorf("create output dir: %w", err)
	}
	if err := writeJSON(paths.ResultsPath(), results); err != nil {
		return OutputPaths{}, err
	}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, results); err != nil {
		return OutputPaths{}, err
	}
	if err := os.WriteFile(paths.CSVPath(), buf.Bytes(), 0o644); err != nil {
		return OutputPaths{}, fmt.Errorf("write results.csv: %w", err)
	}
	page := placeholderReport(results)
	if render != nil {
		rendered, err := render(ctx, results)
		if err != nil {
			return OutputPaths{}, fmt.Errorf("render report: %w", err)
		}
		page = rendered
	}
	if err := os.WriteFile(paths.ReportPath(), []byte(page), 0o644); err != nil {
		return OutputPaths{}, fmt.Errorf("write report: %w", err)
	}
	return paths, nil
}

// WriteCSV writes the suite columns of each case followed by ResultColumns.
func WriteCSV(w io.Writer, results Results) error {
	columns := results.Columns
	if len(columns) == 0 {
		columns = suite.DefaultColumns
	}
	writer := csv.NewWriter(w)
	header := append(append([]string(nil), columns...), ResultColumns...)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, item := range results.Cases {
		original := item.Case()
		row := make([]string, 0, len(header))
		for _, column := range columns {
			row = append(row, original.Value(column))
		}
		row = append(row,
			item.Actual,
			strconv.FormatBool(item.Passed),
			string(item.Status),
			strings.Join(item.FailedChecks(), "; "),
			strconv.FormatFloat(item.LatencySeconds, 'f', 3, 64),
			item.Error,
		)
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write csv row %s: %w", item.ID, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// writeJSON writes a Results payload as pretty JSON.
func writeJSON(path string, results Results) error {
	payload, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func placeholderReport(results Results) string {
	return fmt.Sprintf("<!doctype html>\n<html><head><meta charset=\"utf-8\"><title>fllm report</title></head><body><h1>fllm report</h1><p>Run %s for suite %s</p></body></html>\n", html.EscapeString(results.RunID), html.EscapeString(results.Suite))
}
