package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pkt.systems/ralph/internal/agent"
	"pkt.systems/ralph/internal/promptfile"
)

func TestAgentMockSuccessWritesArtifact(t *testing.T) {
	out := filepath.Join(t.TempDir(), "tasks", "prd.json")
	payload, err := promptfile.Render("", promptfile.Data{Request: "Ship a widget", OutPath: out})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	var stdout bytes.Buffer
	err = runAgentMock(mockAgentConfig{scenario: "success", questions: 2, out: out}, payload, strings.NewReader("ops\r\nfriday\n"), &stdout)
	if err != nil {
		t.Fatalf("mock: %v", err)
	}
	text := stdout.String()
	for _, want := range []string{"Question 1: Who is the primary user?", "Question 2: What is the deadline?", "PRD JSON saved to " + out} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("artifact: %v", err)
	}
	for _, want := range []string{`"request": "Ship a widget"`, `"ops"`, `"friday"`} {
		if !strings.Contains(string(data), want) {
			t.Fatalf("artifact missing %s:\n%s", want, data)
		}
	}
}

func TestAgentMockNoSave(t *testing.T) {
	out := filepath.Join(t.TempDir(), "prd.json")
	var stdout bytes.Buffer
	err := runAgentMock(mockAgentConfig{scenario: "no-save", questions: 1, out: out}, "User request:\nthing\n", strings.NewReader("yes\n"), &stdout)
	if !errors.Is(err, errMockNoSave) {
		t.Fatalf("expected errMockNoSave, got %v", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("no-save must not write the artifact")
	}
}

func TestAgentMockInputClosed(t *testing.T) {
	var stdout bytes.Buffer
	err := runAgentMock(mockAgentConfig{scenario: "success", questions: 2, out: filepath.Join(t.TempDir(), "prd.json")}, "x", strings.NewReader("only one\n"), &stdout)
	if !errors.Is(err, errMockInputClosed) {
		t.Fatalf("expected errMockInputClosed, got %v", err)
	}
}

func TestAgentMockReadsPromptFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	promptPath := filepath.Join(dir, "prompt.txt")
	if err := os.WriteFile(promptPath, []byte("User request:\nfrom file\n"), 0o644); err != nil {
		t.Fatalf("write prompt: %v", err)
	}
	out := filepath.Join(dir, "prd.json")
	t.Setenv(agent.EnvPromptFile, promptPath)
	t.Setenv(agent.EnvPRDPath, out)
	var stdout bytes.Buffer
	if err := runAgentMock(mockAgentConfig{scenario: "success", questions: 0}, "", strings.NewReader(""), &stdout); err != nil {
		t.Fatalf("mock: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("artifact: %v", err)
	}
	if !strings.Contains(string(data), `"request": "from file"`) {
		t.Fatalf("request not taken from prompt file:\n%s", data)
	}
}

func TestAgentMockSilent(t *testing.T) {
	var stdout bytes.Buffer
	if err := runAgentMock(mockAgentConfig{scenario: "silent"}, "User request:\nhello\n", strings.NewReader(""), &stdout); err != nil {
		t.Fatalf("mock: %v", err)
	}
	if strings.Contains(stdout.String(), "Question") || strings.Contains(stdout.String(), "saved") {
		t.Fatalf("silent scenario must not ask or save:\n%s", stdout.String())
	}
}
