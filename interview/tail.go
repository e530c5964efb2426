package interview

import "pkt.systems/ralph/schema"

// tail keeps the most recent lines of agent output.
type tail struct {
	lines    []string
	maxLines int
}

func newTail(maxLines int) *tail {
	if maxLines <= 0 {
		maxLines = schema.DefaultTranscriptTailLines
	}
	return &tail{maxLines: maxLines}
}

// Append adds lines, trimming the oldest beyond the limit.
func (t *tail) Append(lines ...string) {
	if len(lines) == 0 {
		return
	}
	t.lines = append(t.lines, lines...)
	if len(t.lines) > t.maxLines {
		trim := len(t.lines) - t.maxLines
		t.lines = append([]string(nil), t.lines[trim:]...)
	}
}

// Lines returns a copy of the retained lines.
func (t *tail) Lines() []string {
	return append([]string(nil), t.lines...)
}
