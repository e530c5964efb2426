package promptfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteRoundTripsRequestVerbatim(t *testing.T) {
	requests := []string{
		"Incident workflow dashboard for operations",
		"line one\nline two\n\nline four",
		`quotes "double" and 'single' and \backslash\ and $HOME and {{.Request}}`,
		"вот мой текст",
		"intro\nUser request:\nnested",
	}
	for _, request := range requests {
		path := filepath.Join(t.TempDir(), "nested", "prompt.txt")
		payload, err := Write(path, "", Data{Request: request, Agent: "qwen", OutPath: "/tmp/prd.json"})
		if err != nil {
			t.Fatalf("write: %v", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if string(data) != payload {
			t.Fatalf("file content differs from returned payload")
		}
		if !strings.Contains(string(data), RequestLabel+"\n"+request+"\n") {
			t.Fatalf("payload does not contain request verbatim:\n%s", data)
		}
		got, ok := Request(string(data))
		if !ok || got != request {
			t.Fatalf("Request() = %q, %v; want %q", got, ok, request)
		}
	}
}

func TestRenderMentionsOutPathAndPhrase(t *testing.T) {
	payload, err := Render("", Data{Request: "x", Agent: "claude", OutPath: ".agents/tasks/prd.json"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(payload, "PRD JSON saved to .agents/tasks/prd.json") {
		t.Fatalf("payload missing confirmation instruction:\n%s", payload)
	}
	if !strings.Contains(payload, "Question <n>:") {
		t.Fatalf("payload missing question format:\n%s", payload)
	}
}

func TestRenderRejectsBadInput(t *testing.T) {
	if _, err := Render("", Data{Request: "  "}); err == nil {
		t.Fatalf("expected error for empty request")
	}
	if _, err := Render("no request here", Data{Request: "x"}); err == nil {
		t.Fatalf("expected error for template without request")
	}
	if _, err := Write("", "", Data{Request: "x"}); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestRenderCustomTemplate(t *testing.T) {
	payload, err := Render("Agent {{.Agent}}\nUser request:\n{{.Request}}", Data{Request: "build it", Agent: "codex"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if payload != "Agent codex\nUser request:\nbuild it\n" {
		t.Fatalf("payload = %q", payload)
	}
}
