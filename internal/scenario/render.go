package scenario

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"stubcheck/internal/compiler"
)

// templateMarker gates rendering: content without it is used verbatim, so
// files that merely resemble template text never fail to materialize.
const templateMarker = "{{"

// Render substitutes a case's parameters into content when it carries a
// template marker; otherwise the content passes through unchanged.
func Render(content string, params compiler.Params) (string, error) {
	if !strings.Contains(content, templateMarker) {
		return content, nil
	}

	ctx := make(map[string]any, len(params))
	for _, p := range params {
		if p.Value == nil {
			ctx[p.Key] = "None"
		} else {
			ctx[p.Key] = p.Value
		}
	}

	tmpl, err := template.New("content").Option("missingkey=error").Parse(content)
	if err != nil {
		return "", fmt.Errorf("invalid template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("template execution failed: %w", err)
	}
	return buf.String(), nil
}
