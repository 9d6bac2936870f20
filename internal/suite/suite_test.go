package suite

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/foundationallm/foundationallm-sub000/internal/validate"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestParseCSVAcceptsAliasesInAnyOrder(t *testing.T) {
	payload := "validation_mode,Answer,notes,QUESTION,Validation Rules,tags\n" +
		"hybrid,Paris,geo,\" What is the capital of France? \",\"{\"\"contains\"\":\"\"Paris\"\"}\",geo; easy\n"
	s, err := ParseCSV(strings.NewReader(payload), "geo", "")
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(s.Cases) != 1 {
		t.Fatalf("expected one case, got %d", len(s.Cases))
	}
	item := s.Cases[0]
	if item.ID != "case-1" {
		t.Fatalf("expected default id, got %q", item.ID)
	}
	if item.Question != "What is the capital of France?" || item.Expected != "Paris" {
		t.Fatalf("unexpected case %+v", item)
	}
	if item.Mode != validate.ModeHybrid {
		t.Fatalf("expected hybrid mode, got %q", item.Mode)
	}
	if len(item.Rules.Contains) != 1 || item.Rules.Contains[0] != "Paris" {
		t.Fatalf("unexpected rules %+v", item.Rules)
	}
	if len(item.Tags) != 2 || item.Tags[1] != "easy" {
		t.Fatalf("unexpected tags %v", item.Tags)
	}
	if item.Extra["notes"] != "geo" {
		t.Fatalf("expected extra column preserved, got %v", item.Extra)
	}
}

func TestParseCSVRequiresQuestionAndAnswer(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("Question,Filename\nhi,\n"), "x", "")
	if !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("expected missing column error, got %v", err)
	}
	if !strings.Contains(err.Error(), "ExpectedAnswer") {
		t.Fatalf("expected answer column named, got %v", err)
	}
	if _, err := ParseCSV(strings.NewReader(""), "x", ""); !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("expected missing column error for empty file, got %v", err)
	}
}

func TestParseCSVReportsRowIssuesWithMissingColumn(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("Question,ValidationMode\nWhat?,fuzzy\n"), "broken", "broken.csv")
	if !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("expected missing column error, got %v", err)
	}
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected row issues alongside the missing column, got %v", err)
	}
	if len(validationErr.Issues) != 1 || validationErr.Issues[0].Field != "row 2."+ColumnValidationMode {
		t.Fatalf("unexpected issues %+v", validationErr.Issues)
	}
}

func TestParseCSVKeepsNonBlankAnswerColumn(t *testing.T) {
	cases := map[string]string{
		"blank ExpectedAnswer": "Question,Answer,ExpectedAnswer\nWhat is 6*7?,42,\n",
		"blank Answer":         "Question,Answer,ExpectedAnswer\nWhat is 6*7?, ,42\n",
		"both set":             "Question,ExpectedAnswer,Answer\nWhat is 6*7?,42,forty-two\n",
	}
	for name, payload := range cases {
		parsed, err := ParseCSV(strings.NewReader(payload), "math", "")
		if err != nil {
			t.Fatalf("%s: parse: %v", name, err)
		}
		if got := parsed.Cases[0].Expected; got != "42" {
			t.Fatalf("%s: expected answer 42, got %q", name, got)
		}
	}
}

func TestParseCSVCollectsRowIssues(t *testing.T) {
	payload := "Question,ExpectedAnswer,ValidationRules,ValidationMode\n" +
		"ok,yes,,rule\n" +
		",yes,,\n" +
		"q3,yes,{not json},\n" +
		"q4,yes,,fuzzy\n"
	_, err := ParseCSV(strings.NewReader(payload), "bad", "bad.csv")
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(validationErr.Issues) != 3 {
		t.Fatalf("expected 3 issues, got %v", validationErr.Issues)
	}
	fields := []string{"row 4.ValidationRules", "row 5.ValidationMode", "row 3.question"}
	for i, field := range fields {
		if validationErr.Issues[i].Field != field {
			t.Fatalf("issue %d: expected field %s, got %s", i, field, validationErr.Issues[i].Field)
		}
	}
	if !strings.Contains(err.Error(), "bad.csv") {
		t.Fatalf("expected path in message, got %v", err)
	}
}

func TestParseCSVRejectsDuplicateIDs(t *testing.T) {
	payload := "ID,Question,Answer\na,one,1\na,two,2\n"
	_, err := ParseCSV(strings.NewReader(payload), "dup", "")
	if err == nil || !strings.Contains(err.Error(), "duplicate id") {
		t.Fatalf("expected duplicate id error, got %v", err)
	}
}

func TestSaveCSVPreservesColumnOrder(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "order.csv", "Notes,Answer,Question\nkeep,4,What is 2+2?\n")
	s, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	s.Cases[0].Expected = "four"
	out := filepath.Join(dir, "out.csv")
	if err := Save(out, s); err != nil {
		t.Fatalf("save: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read saved: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if lines[0] != "Notes,Answer,Question" {
		t.Fatalf("expected original header, got %q", lines[0])
	}
	if lines[1] != "keep,four,What is 2+2?" {
		t.Fatalf("unexpected row %q", lines[1])
	}
}

func TestSaveCSVAddsColumnsForNewFields(t *testing.T) {
	s := Suite{
		Name:    "x",
		Columns: []string{"Question", "Answer"},
		Cases: []Case{{
			ID:       "custom",
			Question: "q",
			Expected: "a",
			Mode:     validate.ModeLLM,
		}},
	}
	var buf strings.Builder
	if err := WriteCSV(&buf, s); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	header := strings.SplitN(buf.String(), "\n", 2)[0]
	if header != "Question,Answer,ID,ValidationMode" {
		t.Fatalf("unexpected header %q", header)
	}
}

func TestLoadYAMLSuite(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "smoke.yml", `version: 1
name: smoke-tests
cases:
  - id: capital
    question: What is the capital of France?
    expected_answer: Paris
    validation_rules:
      contains: Paris
      max_length: 200
    validation_mode: hybrid
    tags: [geo]
`)
	s, err := Load(path)
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}
	if s.Name != "smoke-tests" || s.Path != path {
		t.Fatalf("unexpected suite %q %q", s.Name, s.Path)
	}
	item := s.Cases[0]
	if item.Rules.MaxLength == nil || *item.Rules.MaxLength != 200 {
		t.Fatalf("expected max_length 200, got %+v", item.Rules)
	}
	if item.Mode != validate.ModeHybrid {
		t.Fatalf("unexpected mode %q", item.Mode)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bad.json", `{"version":1,"cases":[{"question":"q","expected_answer":"a","bogus":1}]}`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected unknown field error")
	}
	if _, err := Load(filepath.Join(dir, "suite.txt")); err == nil {
		t.Fatalf("expected unsupported format error")
	}
}

func TestParseRejectsMultipleDocuments(t *testing.T) {
	yamlDocs := "version: 1\ncases:\n  - question: q\n    expected_answer: a\n---\nversion: 1\n"
	if _, err := Parse([]byte(yamlDocs), FormatYAML, "x", ""); err == nil || !strings.Contains(err.Error(), "multiple documents") {
		t.Fatalf("expected multiple documents error for yaml, got %v", err)
	}
	jsonDocs := `{"version":1,"cases":[{"question":"q","expected_answer":"a"}]} {"version":1}`
	if _, err := Parse([]byte(jsonDocs), FormatJSON, "x", ""); err == nil || !strings.Contains(err.Error(), "multiple documents") {
		t.Fatalf("expected multiple documents error for json, got %v", err)
	}
}

func TestYAMLRoundTripKeepsRules(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "src.csv", "Question,ExpectedAnswer,ValidationRules\nq,a,\"{\"\"regex\"\":\"\"^a$\"\"}\"\n")
	s, err := Load(src)
	if err != nil {
		t.Fatalf("load csv: %v", err)
	}
	dst := filepath.Join(dir, "dst.yaml")
	if err := Save(dst, s); err != nil {
		t.Fatalf("save yaml: %v", err)
	}
	again, err := Load(dst)
	if err != nil {
		t.Fatalf("reload yaml: %v", err)
	}
	if again.Name != "src" {
		t.Fatalf("expected name carried over, got %q", again.Name)
	}
	if len(again.Cases[0].Rules.Regex) != 1 || again.Cases[0].Rules.Regex[0] != "^a$" {
		t.Fatalf("expected regex rule kept, got %+v", again.Cases[0].Rules)
	}
}

func TestDiscoverAndResolve(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.csv", "Question,Answer\nq,a\n")
	writeFile(t, dir, "a.yml", "cases: [{question: q, expected_answer: a}]\n")
	writeFile(t, dir, "notes.txt", "ignored")
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	infos, err := Discover(dir)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(infos) != 2 || infos[0].Name != "a" || infos[1].Format != FormatCSV {
		t.Fatalf("unexpected suites %+v", infos)
	}
	path, err := Resolve(dir, "b")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if path != filepath.Join(dir, "b.csv") {
		t.Fatalf("unexpected path %s", path)
	}
	if _, err := Resolve(dir, "missing"); err == nil {
		t.Fatalf("expected not found error")
	}
}

func sampleSuite() Suite {
	return Suite{Name: "s", Cases: []Case{
		{ID: "a", Question: "qa", Tags: []string{"smoke"}},
		{ID: "b", Question: "qb", Tags: []string{"slow"}, Mode: validate.ModeLLM},
		{ID: "c", Question: "qc", Filename: "doc.txt"},
	}}
}

func TestFilter(t *testing.T) {
	byTag, err := Filter(sampleSuite(), nil, []string{"smoke", "slow"})
	if err != nil {
		t.Fatalf("filter tags: %v", err)
	}
	if len(byTag.Cases) != 2 {
		t.Fatalf("expected 2 tagged cases, got %d", len(byTag.Cases))
	}
	byID, err := Filter(sampleSuite(), []string{"c"}, nil)
	if err != nil {
		t.Fatalf("filter ids: %v", err)
	}
	if len(byID.Cases) != 1 || byID.Cases[0].ID != "c" {
		t.Fatalf("unexpected cases %+v", byID.Cases)
	}
	if _, err := Filter(sampleSuite(), []string{"zzz"}, nil); err == nil {
		t.Fatalf("expected unknown id error")
	}
}

func TestMergeDedupesByID(t *testing.T) {
	first := Suite{Name: "one", Path: "/suites/one.csv", Columns: []string{"Question", "Answer"}, Cases: []Case{
		{ID: "case-1", Question: "same", Filename: "doc.txt"},
	}}
	second := Suite{Name: "two", Columns: []string{"question", "answer", "Notes"}, Cases: []Case{
		{ID: "case-1", Question: "same"},
		{ID: "case-1", Question: "different"},
	}}
	merged, dropped := Merge("all", first, second)
	if len(merged.Cases) != 2 {
		t.Fatalf("expected 2 cases, got %+v", merged.Cases)
	}
	if merged.Cases[1].ID != "two-case-1" {
		t.Fatalf("expected renamed colliding id, got %q", merged.Cases[1].ID)
	}
	if len(dropped) != 1 || dropped[0] != "case-1" {
		t.Fatalf("unexpected dropped %v", dropped)
	}
	if merged.Cases[0].Filename != filepath.Join("/suites", "doc.txt") {
		t.Fatalf("expected attachment rebased, got %q", merged.Cases[0].Filename)
	}
	if strings.Join(merged.Columns, ",") != "Question,Answer,Notes" {
		t.Fatalf("unexpected columns %v", merged.Columns)
	}
}

func TestMergedAttachmentsSurviveSavingElsewhere(t *testing.T) {
	dir := t.TempDir()
	first := Suite{Name: "one", Path: filepath.Join(dir, "suites", "one.csv"), Cases: []Case{
		{ID: "a", Question: "q", Filename: "docs/report.pdf"},
	}}
	merged, _ := Merge("all", first)
	want := filepath.Join(dir, "suites", "docs", "report.pdf")
	if merged.Cases[0].Filename != want {
		t.Fatalf("expected absolute attachment %q, got %q", want, merged.Cases[0].Filename)
	}

	merged.Path = filepath.Join(dir, "merged", "all.csv")
	if got := merged.AttachmentPath(merged.Cases[0]); got != want {
		t.Fatalf("expected attachment to resolve to %q after saving elsewhere, got %q", want, got)
	}

	relative := Suite{Name: "rel", Path: filepath.Join("suites", "rel.csv"), Cases: []Case{
		{ID: "b", Question: "q", Filename: "doc.txt"},
	}}
	merged, _ = Merge("all", relative)
	if !filepath.IsAbs(merged.Cases[0].Filename) {
		t.Fatalf("expected relative suite attachments made absolute, got %q", merged.Cases[0].Filename)
	}
}

func TestSummary(t *testing.T) {
	stats := Summary(sampleSuite(), validate.ModeHybrid)
	if stats.Total != 3 || stats.ByMode["hybrid"] != 2 || stats.ByMode["llm"] != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.WithAttachments != 1 || stats.Tags["smoke"] != 1 {
		t.Fatalf("unexpected feature counts %+v", stats)
	}
}

func TestAttachmentPath(t *testing.T) {
	s := Suite{Path: filepath.Join("suites", "x.csv")}
	if got := s.AttachmentPath(Case{Filename: "docs/a.pdf"}); got != filepath.Join("suites", "docs", "a.pdf") {
		t.Fatalf("unexpected path %s", got)
	}
}
