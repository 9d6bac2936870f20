package validate

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/xeipuuv/gojsonschema"
)

// Check is the outcome of a single predicate.
type Check struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

var numberPattern = regexp.MustCompile(`[-+]?\d[\d,]*(?:\.\d+)?|[-+]?\.\d+`)

// RunRules applies every configured rule to answer in a fixed order.
// With no rules, the fallback is case-insensitive containment of expected.
func RunRules(answer, expected string, rules Rules) []Check {
	trimmed := strings.TrimSpace(answer)
	if rules.IsZero() {
		return []Check{fallbackCheck(trimmed, expected)}
	}
	fold := func(s string) string {
		if rules.CaseSensitive {
			return s
		}
		return strings.ToLower(s)
	}
	haystack := fold(trimmed)

	checks := make([]Check, 0, 8)
	for _, needle := range rules.Contains {
		checks = append(checks, containsCheck("contains", haystack, fold(needle), needle))
	}
	for _, needle := range rules.ContainsAll {
		checks = append(checks, containsCheck("contains_all", haystack, fold(needle), needle))
	}
	if len(rules.ContainsAny) > 0 {
		check := Check{Name: "contains_any", Detail: fmt.Sprintf("none of %q found", []string(rules.ContainsAny))}
		for _, needle := range rules.ContainsAny {
			if strings.Contains(haystack, fold(needle)) {
				check = Check{Name: "contains_any", Passed: true, Detail: fmt.Sprintf("found %q", needle)}
				break
			}
		}
		checks = append(checks, check)
	}
	for _, needle := range rules.NotContains {
		check := Check{Name: "not_contains", Passed: !strings.Contains(haystack, fold(needle))}
		if !check.Passed {
			check.Detail = fmt.Sprintf("unexpected %q present", needle)
		}
		checks = append(checks, check)
	}
	for _, pattern := range rules.Regex {
		checks = append(checks, regexCheck("regex", pattern, trimmed, rules.CaseSensitive, true))
	}
	for _, pattern := range rules.NotRegex {
		checks = append(checks, regexCheck("not_regex", pattern, trimmed, rules.CaseSensitive, false))
	}
	length := utf8.RuneCountInString(trimmed)
	if rules.MinLength != nil {
		check := Check{Name: "min_length", Passed: length >= *rules.MinLength}
		if !check.Passed {
			check.Detail = fmt.Sprintf("length %d < %d", length, *rules.MinLength)
		}
		checks = append(checks, check)
	}
	if rules.MaxLength != nil {
		check := Check{Name: "max_length", Passed: length <= *rules.MaxLength}
		if !check.Passed {
			check.Detail = fmt.Sprintf("length %d > %d", length, *rules.MaxLength)
		}
		checks = append(checks, check)
	}
	if rules.NumericValue != nil {
		tolerance := 0.0
		if rules.Tolerance != nil {
			tolerance = *rules.Tolerance
		}
		checks = append(checks, numericCheck(trimmed, *rules.NumericValue, tolerance))
	}
	if rules.ExactMatch != nil && *rules.ExactMatch {
		want := strings.TrimSpace(expected)
		check := Check{Name: "exact_match", Passed: fold(trimmed) == fold(want)}
		if !check.Passed {
			check.Detail = fmt.Sprintf("expected exactly %q", want)
		}
		checks = append(checks, check)
	}
	if len(rules.JSONSchema) > 0 {
		checks = append(checks, schemaCheck(trimmed, rules.JSONSchema))
	}
	if rules.StartsWith != "" {
		check := Check{Name: "starts_with", Passed: strings.HasPrefix(haystack, fold(rules.StartsWith))}
		if !check.Passed {
			check.Detail = fmt.Sprintf("does not start with %q", rules.StartsWith)
		}
		checks = append(checks, check)
	}
	return checks
}

// AllPassed reports whether every check passed.
func AllPassed(checks []Check) bool {
	for _, check := range checks {
		if !check.Passed {
			return false
		}
	}
	return true
}

// FailedChecks formats the failing checks as "name: detail".
func FailedChecks(checks []Check) []string {
	out := make([]string, 0)
	for _, check := range checks {
		if check.Passed {
			continue
		}
		if check.Detail == "" {
			out = append(out, check.Name)
			continue
		}
		out = append(out, check.Name+": "+check.Detail)
	}
	return out
}

func fallbackCheck(answer, expected string) Check {
	want := strings.TrimSpace(expected)
	if want == "" {
		return Check{Name: "expected_answer", Passed: true, Detail: "no expected answer"}
	}
	check := Check{Name: "expected_answer", Passed: strings.Contains(strings.ToLower(answer), strings.ToLower(want))}
	if !check.Passed {
		check.Detail = fmt.Sprintf("missing %q", want)
	}
	return check
}

func containsCheck(name, haystack, needle, original string) Check {
	check := Check{Name: name, Passed: strings.Contains(haystack, needle)}
	if !check.Passed {
		check.Detail = fmt.Sprintf("missing %q", original)
	}
	return check
}

func regexCheck(name, pattern, answer string, caseSensitive, wantMatch bool) Check {
	re, err := compilePattern(pattern, caseSensitive)
	if err != nil {
		return Check{Name: name, Detail: fmt.Sprintf("invalid pattern %q: %v", pattern, err)}
	}
	matched := re.MatchString(answer)
	check := Check{Name: name, Passed: matched == wantMatch}
	if !check.Passed {
		if wantMatch {
			check.Detail = fmt.Sprintf("no match for %q", pattern)
		} else {
			check.Detail = fmt.Sprintf("unexpected match for %q", pattern)
		}
	}
	return check
}

func numericCheck(answer string, want, tolerance float64) Check {
	match := numberPattern.FindString(answer)
	if match == "" {
		return Check{Name: "numeric_value", Detail: "no number found"}
	}
	got, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", ""), 64)
	if err != nil {
		return Check{Name: "numeric_value", Detail: fmt.Sprintf("unparseable number %q", match)}
	}
	check := Check{Name: "numeric_value", Passed: math.Abs(got-want) <= tolerance}
	if !check.Passed {
		check.Detail = fmt.Sprintf("got %g, want %g±%g", got, want, tolerance)
	}
	return check
}

func schemaCheck(answer string, schema json.RawMessage) Check {
	if !json.Valid([]byte(answer)) {
		return Check{Name: "json_schema", Detail: "answer is not valid json"}
	}
	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schema), gojsonschema.NewStringLoader(answer))
	if err != nil {
		return Check{Name: "json_schema", Detail: err.Error()}
	}
	if result.Valid() {
		return Check{Name: "json_schema", Passed: true}
	}
	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return Check{Name: "json_schema", Detail: strings.Join(problems, "; ")}
}
