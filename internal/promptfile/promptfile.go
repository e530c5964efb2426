// Package promptfile renders the PRD interview prompt handed to agents.
package promptfile

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

//go:embed templates/prd.tmpl
var defaultTemplate string

// RequestLabel precedes the verbatim operator request in every payload.
const RequestLabel = "User request:"

// DefaultSavedPhrase is the confirmation phrase agents are told to print.
const DefaultSavedPhrase = "PRD JSON saved to"

// Data supplies the template fields.
type Data struct {
	Request     string
	Agent       string
	OutPath     string
	SavedPhrase string
}

// Render renders tmpl (the embedded default when empty) with data.
func Render(tmpl string, data Data) (string, error) {
	if strings.TrimSpace(data.Request) == "" {
		return "", errors.New("prompt request is required")
	}
	if tmpl == "" {
		tmpl = defaultTemplate
	}
	if !strings.Contains(tmpl, "{{.Request}}") {
		return "", fmt.Errorf("prompt template must reference {{.Request}}")
	}
	if data.SavedPhrase == "" {
		data.SavedPhrase = DefaultSavedPhrase
	}
	t, err := template.New("prd").Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("parse prompt template: %w", err)
	}
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render prompt template: %w", err)
	}
	out := b.String()
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	return out, nil
}

// Write renders the payload and writes it to path, replacing any previous
// payload atomically. It returns the payload text.
func Write(path, tmpl string, data Data) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New("prompt path is required")
	}
	payload, err := Render(tmpl, data)
	if err != nil {
		return "", err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create prompt dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".prompt-*.txt")
	if err != nil {
		return "", fmt.Errorf("write prompt: %w", err)
	}
	if _, err := tmp.WriteString(payload); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("write prompt: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("write prompt: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("write prompt: %w", err)
	}
	return payload, nil
}

// Request extracts the request text that follows the first RequestLabel.
// The request itself may contain the label.
func Request(payload string) (string, bool) {
	marker := RequestLabel + "\n"
	idx := strings.Index(payload, marker)
	if idx < 0 {
		return "", false
	}
	return strings.TrimSuffix(payload[idx+len(marker):], "\n"), true
}
