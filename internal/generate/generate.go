// Package generate writes test suites with a chat model or from earlier runs.
package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/foundationallm/foundationallm-sub000/internal/harness"
	"github.com/foundationallm/foundationallm-sub000/internal/llm"
	"github.com/foundationallm/foundationallm-sub000/internal/prompt"
	"github.com/foundationallm/foundationallm-sub000/internal/suite"
	"github.com/foundationallm/foundationallm-sub000/internal/validate"
)

const (
	DefaultCount = 10
	MaxCount     = 100
	// MaxDocumentChars bounds how much of a source document is sent.
	MaxDocumentChars = 24000
)

// Request describes a generation job. Exactly one of Topic or Document
// should be set; DocumentPath is read into Document when given.
type Request struct {
	Name         string
	Topic        string
	Document     string
	DocumentPath string
	Count        int
	// Tags are added to every generated case.
	Tags []string
}

// Report lists cases that were adjusted or dropped while parsing.
type Report struct {
	Requested int
	Received  int
	Warnings  []string
}

// Generator asks a chat model for test cases.
type Generator struct {
	Chat llm.Chat
}

type generatedCase struct {
	Question string          `json:"question"`
	Answer   string          `json:"answer"`
	Rules    json.RawMessage `json:"rules"`
}

type generatedDoc struct {
	Cases []generatedCase `json:"cases"`
}

// Generate returns a suite of model-written cases.
func (g *Generator) Generate(ctx context.Context, req Request) (suite.Suite, Report, error) {
	if g == nil || g.Chat == nil {
		return suite.Suite{}, Report{}, errors.New("generate: chat model is not configured")
	}
	if req.DocumentPath != "" {
		data, err := os.ReadFile(req.DocumentPath)
		if err != nil {
			return suite.Suite{}, Report{}, fmt.Errorf("read source document: %w", err)
		}
		req.Document = string(data)
	}
	req.Topic = strings.TrimSpace(req.Topic)
	req.Document = truncate(strings.TrimSpace(req.Document), MaxDocumentChars)
	if req.Topic == "" && req.Document == "" {
		return suite.Suite{}, Report{}, errors.New("generate: a topic or source document is required")
	}
	if req.Count <= 0 {
		req.Count = DefaultCount
	}
	if req.Count > MaxCount {
		return suite.Suite{}, Report{}, fmt.Errorf("generate: count %d exceeds %d", req.Count, MaxCount)
	}

	user, err := prompt.RenderGeneratorPrompt(ctx, prompt.GeneratorInput{Topic: req.Topic, Document: req.Document, Count: req.Count})
	if err != nil {
		return suite.Suite{}, Report{}, fmt.Errorf("render generator prompt: %w", err)
	}
	reply, err := g.Chat.Complete(ctx, []llm.Message{llm.System(prompt.GeneratorSystem), llm.User(user)}, llm.Options{JSON: true})
	if err != nil {
		return suite.Suite{}, Report{}, fmt.Errorf("generate cases: %w", err)
	}
	return Parse(reply, req)
}

// Parse converts a model reply into a suite. Cases without a question are
// dropped; invalid rules are removed from their case.
func Parse(reply string, req Request) (suite.Suite, Report, error) {
	var doc generatedDoc
	if err := json.Unmarshal([]byte(llm.ExtractJSON(reply)), &doc); err != nil {
		return suite.Suite{}, Report{}, fmt.Errorf("parse generated cases: %w", err)
	}
	report := Report{Requested: req.Count, Received: len(doc.Cases)}
	name := req.Name
	if name == "" {
		name = "generated"
	}
	out := suite.Suite{Name: name}
	for i, item := range doc.Cases {
		if req.Count > 0 && len(out.Cases) >= req.Count {
			report.Warnings = append(report.Warnings, fmt.Sprintf("dropped %d extra cases", len(doc.Cases)-i))
			break
		}
		question := strings.TrimSpace(item.Question)
		if question == "" {
			report.Warnings = append(report.Warnings, fmt.Sprintf("case %d: empty question dropped", i+1))
			continue
		}
		c := suite.Case{
			Question: question,
			Expected: strings.TrimSpace(item.Answer),
			Tags:     append([]string(nil), req.Tags...),
		}
		if raw := strings.TrimSpace(string(item.Rules)); raw != "" && raw != "null" && raw != "{}" {
			rules, err := validate.ParseRules(raw)
			if err != nil {
				report.Warnings = append(report.Warnings, fmt.Sprintf("case %d: rules dropped: %v", i+1, err))
			} else {
				c.Rules = rules
			}
		}
		c.Mode = modeFor(c)
		out.Cases = append(out.Cases, c)
	}
	if len(out.Cases) == 0 {
		return suite.Suite{}, report, errors.New("generate: model returned no usable cases")
	}
	normalized, err := suite.Normalize(out)
	if err != nil {
		return suite.Suite{}, report, err
	}
	return normalized, report, nil
}

// FromResults builds a regression suite from a run: passing cases keep
// their actual answer as the new expected answer.
func FromResults(results harness.Results, name string) (suite.Suite, error) {
	if name == "" {
		name = results.Suite + "-regression"
	}
	out := suite.Suite{Name: name, Columns: append([]string(nil), results.Columns...)}
	for _, item := range results.Cases {
		if item.Status != harness.StatusPassed {
			continue
		}
		c := item.Case()
		c.Expected = strings.TrimSpace(item.Actual)
		c.Mode = modeFor(c)
		out.Cases = append(out.Cases, c)
	}
	if len(out.Cases) == 0 {
		return suite.Suite{}, fmt.Errorf("run %s has no passing cases", results.RunID)
	}
	return suite.Normalize(out)
}

// modeFor chooses hybrid when rules are present, else llm.
func modeFor(c suite.Case) validate.Mode {
	if c.Rules.IsZero() {
		return validate.ModeLLM
	}
	return validate.ModeHybrid
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	cut := text[:limit]
	for !utf8.ValidString(cut) && len(cut) > 0 {
		cut = cut[:len(cut)-1]
	}
	return cut
}
