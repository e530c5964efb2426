package interview

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/x/ansi"

	"pkt.systems/ralph/schema"
)

// Marker maps a line pattern to the kind of event it signals.
type Marker struct {
	Kind    schema.MarkerKind
	Pattern *regexp.Regexp
}

// Markers is the closed table of recognized agent output lines. Earlier
// entries win when several match the same line.
type Markers []Marker

// DefaultMarkers returns the built-in question and save-confirmation markers.
func DefaultMarkers() Markers {
	markers, _ := NewMarkers(schema.DefaultQuestionPattern, schema.DefaultSavedPattern)
	return markers
}

// NewMarkers compiles a marker table. The saved pattern is matched before
// the question pattern so a confirmation is never mistaken for a question.
func NewMarkers(questionPattern, savedPattern string) (Markers, error) {
	if strings.TrimSpace(questionPattern) == "" {
		questionPattern = schema.DefaultQuestionPattern
	}
	if strings.TrimSpace(savedPattern) == "" {
		savedPattern = regexp.QuoteMeta(schema.DefaultSavedPattern)
	}
	saved, err := regexp.Compile(savedPattern)
	if err != nil {
		return nil, fmt.Errorf("compile saved marker: %w", err)
	}
	question, err := regexp.Compile(questionPattern)
	if err != nil {
		return nil, fmt.Errorf("compile question marker: %w", err)
	}
	return Markers{
		{Kind: schema.MarkerSaved, Pattern: saved},
		{Kind: schema.MarkerQuestion, Pattern: question},
	}, nil
}

// Match classifies one line of agent output. Terminal control sequences and
// carriage returns are removed before matching.
func (m Markers) Match(line string) (schema.MarkerKind, bool) {
	text := CleanLine(line)
	if text == "" {
		return "", false
	}
	for _, marker := range m {
		if marker.Pattern != nil && marker.Pattern.MatchString(text) {
			return marker.Kind, true
		}
	}
	return "", false
}

// CleanLine strips ANSI sequences and line terminators from agent output.
func CleanLine(line string) string {
	text := strings.TrimRight(line, "\r\n")
	if idx := strings.LastIndexByte(text, '\r'); idx >= 0 {
		text = text[idx+1:]
	}
	return ansi.Strip(text)
}
