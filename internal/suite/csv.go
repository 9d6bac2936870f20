package suite

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/foundationallm/foundationallm-sub000/internal/validate"
)

// Canonical CSV column names.
const (
	ColumnID              = "ID"
	ColumnQuestion        = "Question"
	ColumnFilename        = "Filename"
	ColumnExpectedAnswer  = "ExpectedAnswer"
	ColumnValidationRules = "ValidationRules"
	ColumnValidationMode  = "ValidationMode"
	ColumnTags            = "Tags"
)

// DefaultColumns is the header written for suites without a source header.
var DefaultColumns = []string{ColumnID, ColumnQuestion, ColumnFilename, ColumnExpectedAnswer, ColumnValidationRules, ColumnValidationMode, ColumnTags}

type columnKind int

const (
	colExtra columnKind = iota
	colID
	colQuestion
	colFilename
	colExpected
	colRules
	colMode
	colTags
)

// classifyColumn maps a header (case, spacing and underscores ignored) to a field.
func classifyColumn(header string) columnKind {
	key := strings.ToLower(strings.NewReplacer("_", "", " ", "", "-", "").Replace(strings.TrimSpace(header)))
	switch key {
	case "id", "caseid", "testid":
		return colID
	case "question", "prompt":
		return colQuestion
	case "filename", "file", "attachment":
		return colFilename
	case "answer", "expectedanswer", "expected":
		return colExpected
	case "validationrules", "rules":
		return colRules
	case "validationmode", "mode":
		return colMode
	case "tags":
		return colTags
	default:
		return colExtra
	}
}

// ParseCSV reads a suite from CSV. Missing Question or answer columns yield
// ErrMissingColumn; row problems are collected into a ValidationError and
// reported alongside it. With both Answer and ExpectedAnswer present, the
// first non-blank value wins.
func ParseCSV(r io.Reader, name, path string) (Suite, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return Suite{}, fmt.Errorf("%w: file is empty", ErrMissingColumn)
	}
	if err != nil {
		return Suite{}, fmt.Errorf("read csv header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	kinds := make([]columnKind, len(header))
	present := map[columnKind]bool{}
	for i, column := range header {
		header[i] = strings.TrimSpace(column)
		kinds[i] = classifyColumn(column)
		present[kinds[i]] = true
	}
	var missing []string
	if !present[colQuestion] {
		missing = append(missing, ColumnQuestion)
	}
	if !present[colExpected] {
		missing = append(missing, "Answer|ExpectedAnswer")
	}
	var missingErr error
	if len(missing) > 0 {
		missingErr = fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}

	suite := Suite{Name: name, Path: path, Columns: header}
	collector := &issueCollector{}
	labels := make([]string, 0)
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return Suite{}, fmt.Errorf("read csv row %d: %w", line, err)
		}
		if blankRecord(record) {
			continue
		}
		label := fmt.Sprintf("row %d", line)
		item := Case{}
		for i, value := range record {
			if i >= len(kinds) {
				collector.add(label, fmt.Sprintf("has %d fields, header has %d", len(record), len(header)))
				break
			}
			switch kinds[i] {
			case colID:
				item.ID = value
			case colQuestion:
				item.Question = value
			case colFilename:
				item.Filename = value
			case colExpected:
				if item.Expected == "" {
					item.Expected = strings.TrimSpace(value)
				}
			case colRules:
				rules, err := validate.ParseRules(value)
				if err != nil {
					collector.add(label+"."+ColumnValidationRules, err.Error())
				}
				item.Rules = rules
			case colMode:
				mode, err := validate.ParseMode(value)
				if err != nil {
					collector.add(label+"."+ColumnValidationMode, err.Error())
				}
				item.Mode = mode
			case colTags:
				item.Tags = strings.Split(value, ";")
			default:
				if item.Extra == nil {
					item.Extra = map[string]string{}
				}
				item.Extra[header[i]] = value
			}
		}
		suite.Cases = append(suite.Cases, item)
		labels = append(labels, label)
	}
	normalizeInto(&suite, collector, labels)
	if err := errors.Join(missingErr, collector.result(path)); err != nil {
		return Suite{}, err
	}
	return suite, nil
}

// WriteCSV writes the suite using its original columns (or DefaultColumns),
// adding any columns needed to hold populated fields.
func WriteCSV(w io.Writer, s Suite) error {
	columns := csvColumns(s)
	writer := csv.NewWriter(w)
	if err := writer.Write(columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, item := range s.Cases {
		row := make([]string, len(columns))
		for i, column := range columns {
			row[i] = item.Value(column)
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write csv row %s: %w", item.ID, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func csvColumns(s Suite) []string {
	columns := append([]string(nil), s.Columns...)
	if len(columns) == 0 {
		columns = append(columns, DefaultColumns...)
	}
	has := map[columnKind]bool{}
	extras := map[string]bool{}
	for _, column := range columns {
		kind := classifyColumn(column)
		has[kind] = true
		if kind == colExtra {
			extras[column] = true
		}
	}
	ensure := func(kind columnKind, name string, needed bool) {
		if needed && !has[kind] {
			columns = append(columns, name)
			has[kind] = true
		}
	}
	var anyID, anyFile, anyRules, anyMode, anyTags bool
	for i, item := range s.Cases {
		anyID = anyID || (item.ID != "" && item.ID != fmt.Sprintf("case-%d", i+1))
		anyFile = anyFile || item.Filename != ""
		anyRules = anyRules || !item.Rules.IsZero()
		anyMode = anyMode || item.Mode != ""
		anyTags = anyTags || len(item.Tags) > 0
		for key := range item.Extra {
			if !extras[key] {
				extras[key] = true
				columns = append(columns, key)
			}
		}
	}
	ensure(colQuestion, ColumnQuestion, true)
	ensure(colExpected, ColumnExpectedAnswer, true)
	ensure(colID, ColumnID, anyID)
	ensure(colFilename, ColumnFilename, anyFile)
	ensure(colRules, ColumnValidationRules, anyRules)
	ensure(colMode, ColumnValidationMode, anyMode)
	ensure(colTags, ColumnTags, anyTags)
	return columns
}

// Value returns the case field a CSV column maps to.
func (item Case) Value(column string) string {
	switch classifyColumn(column) {
	case colID:
		return item.ID
	case colQuestion:
		return item.Question
	case colFilename:
		return item.Filename
	case colExpected:
		return item.Expected
	case colRules:
		return item.Rules.String()
	case colMode:
		return string(item.Mode)
	case colTags:
		return strings.Join(item.Tags, ";")
	default:
		return item.Extra[column]
	}
}

func blankRecord(record []string) bool {
	for _, value := range record {
		if strings.TrimSpace(value) != "" {
			return false
		}
	}
	return true
}
