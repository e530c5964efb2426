package interview

import (
	"strings"
	"testing"

	"pkt.systems/ralph/schema"
)

func TestDefaultMarkers(t *testing.T) {
	markers := DefaultMarkers()
	tests := []struct {
		line string
		kind schema.MarkerKind
		ok   bool
	}{
		{"Question 1: Who is the primary user?\r\n", schema.MarkerQuestion, true},
		{"  Question 12 : deadline?", schema.MarkerQuestion, true},
		{"\x1b[1;36mQuestion 2:\x1b[0m What is the deadline?\r\n", schema.MarkerQuestion, true},
		{"spinner\rQuestion 3: redraw?", schema.MarkerQuestion, true},
		{"PRD JSON saved to .agents/tasks/prd.json. Close this chat and run `ralph build`.", schema.MarkerSaved, true},
		{"\x1b[32mPRD JSON saved to /tmp/x.json\x1b[0m", schema.MarkerSaved, true},
		{"Some Question 1: inline", "", false},
		{"Question one: not numbered", "", false},
		{"Interview ended unexpectedly without saving.", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		kind, ok := markers.Match(tt.line)
		if ok != tt.ok || kind != tt.kind {
			t.Fatalf("Match(%q) = %q, %v; want %q, %v", tt.line, kind, ok, tt.kind, tt.ok)
		}
	}
}

func TestSavedMarkerWinsOverQuestion(t *testing.T) {
	markers := DefaultMarkers()
	kind, ok := markers.Match("Question 3: done. PRD JSON saved to out.json")
	if !ok || kind != schema.MarkerSaved {
		t.Fatalf("expected saved marker, got %q, %v", kind, ok)
	}
}

func TestCustomMarkers(t *testing.T) {
	markers, err := NewMarkers(`^Q\d+\)`, `^DONE:`)
	if err != nil {
		t.Fatalf("new markers: %v", err)
	}
	if kind, ok := markers.Match("Q4) scope?"); !ok || kind != schema.MarkerQuestion {
		t.Fatalf("custom question not matched: %q, %v", kind, ok)
	}
	if kind, ok := markers.Match("DONE: prd.json"); !ok || kind != schema.MarkerSaved {
		t.Fatalf("custom saved not matched: %q, %v", kind, ok)
	}
	if _, ok := markers.Match("Question 1: default?"); ok {
		t.Fatalf("default pattern should not apply")
	}
	if _, err := NewMarkers(`(`, ""); err == nil || !strings.Contains(err.Error(), "question") {
		t.Fatalf("expected question compile error, got %v", err)
	}
}

func TestTailKeepsMostRecentLines(t *testing.T) {
	tl := newTail(3)
	tl.Append("a", "b")
	tl.Append("c", "d", "e")
	got := tl.Lines()
	if strings.Join(got, ",") != "c,d,e" {
		t.Fatalf("tail = %q", got)
	}
}

func TestDiagnoseNamesAgent(t *testing.T) {
	text := Diagnose(Diagnostic{
		Agent:      "qwen",
		Command:    "qwen -i {prompt}",
		ExitCode:   2,
		RecordPath: "/state/interviews/s.json",
		Tail:       []string{"", "Question 2: What is the deadline?", "Interview ended unexpectedly without saving.", ""},
	})
	for _, want := range []string{
		"Qwen PRD session ended before PRD save confirmation.",
		"Troubleshooting:",
		"ralph prd --agent qwen",
		"AGENT_QWEN_INTERACTIVE_CMD",
		"status 2",
		"/state/interviews/s.json",
		"  | Interview ended unexpectedly without saving.",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("diagnostic missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "  | \n") {
		t.Fatalf("blank tail lines should be trimmed:\n%s", text)
	}
}
