// Package prompt renders the text prompts sent to the chat model.
package prompt

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// render writes a component into a string.
func render(ctx context.Context, component templ.Component) (string, error) {
	var builder strings.Builder
	if err := component.Render(ctx, &builder); err != nil {
		return "", err
	}
	return builder.String(), nil
}

// line writes text and a newline unescaped; prompts are plain text and
// templ text nodes would collapse the layout.
func line(text string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, text+"\n")
		return err
	})
}

// section writes "label:", the trimmed text (or "(empty)") and a blank line.
func section(label, text string) templ.Component {
	text = strings.TrimSpace(text)
	if text == "" {
		text = "(empty)"
	}
	return line(label + ":\n" + text + "\n")
}
