// Package validate checks agent answers against rule, LLM and hybrid criteria.
package validate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// StringList accepts either a single string or a list of strings.
type StringList []string

// UnmarshalJSON implements json.Unmarshaler.
func (s *StringList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var single string
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return err
		}
		*s = StringList{single}
		return nil
	}
	var list []string
	if err := json.Unmarshal(trimmed, &list); err != nil {
		return fmt.Errorf("expected string or list of strings")
	}
	*s = list
	return nil
}

// Rules are the per-case checks from the ValidationRules column.
type Rules struct {
	Contains      StringList      `json:"contains,omitempty"`
	ContainsAll   StringList      `json:"contains_all,omitempty"`
	ContainsAny   StringList      `json:"contains_any,omitempty"`
	NotContains   StringList      `json:"not_contains,omitempty"`
	Regex         StringList      `json:"regex,omitempty"`
	NotRegex      StringList      `json:"not_regex,omitempty"`
	MinLength     *int            `json:"min_length,omitempty"`
	MaxLength     *int            `json:"max_length,omitempty"`
	NumericValue  *float64        `json:"numeric_value,omitempty"`
	Tolerance     *float64        `json:"tolerance,omitempty"`
	ExactMatch    *bool           `json:"exact_match,omitempty"`
	JSONSchema    json.RawMessage `json:"json_schema,omitempty"`
	StartsWith    string          `json:"starts_with,omitempty"`
	CaseSensitive bool            `json:"case_sensitive,omitempty"`
}

// IsZero reports whether no rule is set.
func (r Rules) IsZero() bool {
	return len(r.Contains) == 0 && len(r.ContainsAll) == 0 && len(r.ContainsAny) == 0 &&
		len(r.NotContains) == 0 && len(r.Regex) == 0 && len(r.NotRegex) == 0 &&
		r.MinLength == nil && r.MaxLength == nil && r.NumericValue == nil &&
		r.ExactMatch == nil && len(r.JSONSchema) == 0 && r.StartsWith == ""
}

// ParseRules decodes a ValidationRules JSON object. Unknown keys are errors.
// An empty string yields zero Rules.
func ParseRules(raw string) (Rules, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Rules{}, nil
	}
	var rules Rules
	decoder := json.NewDecoder(strings.NewReader(raw))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&rules); err != nil {
		return Rules{}, fmt.Errorf("parse validation rules: %w", err)
	}
	if err := rules.Check(); err != nil {
		return Rules{}, err
	}
	return rules, nil
}

// Check verifies regexes compile, bounds are coherent and the schema loads.
func (r Rules) Check() error {
	for _, pattern := range append(append([]string{}, r.Regex...), r.NotRegex...) {
		if _, err := compilePattern(pattern, r.CaseSensitive); err != nil {
			return fmt.Errorf("invalid regex %q: %w", pattern, err)
		}
	}
	if r.MinLength != nil && *r.MinLength < 0 {
		return fmt.Errorf("min_length must be >= 0")
	}
	if r.MaxLength != nil && *r.MaxLength < 0 {
		return fmt.Errorf("max_length must be >= 0")
	}
	if r.MinLength != nil && r.MaxLength != nil && *r.MinLength > *r.MaxLength {
		return fmt.Errorf("min_length %d exceeds max_length %d", *r.MinLength, *r.MaxLength)
	}
	if r.Tolerance != nil && *r.Tolerance < 0 {
		return fmt.Errorf("tolerance must be >= 0")
	}
	if r.Tolerance != nil && r.NumericValue == nil {
		return fmt.Errorf("tolerance requires numeric_value")
	}
	if len(r.JSONSchema) > 0 {
		if _, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(r.JSONSchema)); err != nil {
			return fmt.Errorf("invalid json_schema: %w", err)
		}
	}
	return nil
}

// String renders the rules as compact JSON ("" when empty).
func (r Rules) String() string {
	if r.IsZero() {
		return ""
	}
	data, err := json.Marshal(r)
	if err != nil {
		return ""
	}
	return string(data)
}

// UnmarshalYAML decodes a YAML mapping through the JSON representation so
// both formats share one set of field names.
func (r *Rules) UnmarshalYAML(node *yaml.Node) error {
	var generic map[string]any
	if err := node.Decode(&generic); err != nil {
		return err
	}
	data, err := json.Marshal(generic)
	if err != nil {
		return fmt.Errorf("encode rules: %w", err)
	}
	parsed, err := ParseRules(string(data))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// MarshalYAML emits the JSON representation as a YAML mapping.
func (r Rules) MarshalYAML() (any, error) {
	if r.IsZero() {
		return nil, nil
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	var generic map[string]any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, err
	}
	return generic, nil
}

func compilePattern(pattern string, caseSensitive bool) (*regexp.Regexp, error) {
	if !caseSensitive && !strings.HasPrefix(pattern, "(?i)") {
		pattern = "(?i)" + pattern
	}
	return regexp.Compile(pattern)
}
