package interview

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/creack/pty"

	"pkt.systems/ralph/internal/agent"
	"pkt.systems/ralph/lineedit"
	"pkt.systems/ralph/schema"
)

const mockPrelude = `set -eu
root="$(pwd)"
mkdir -p "$root/.ralph"
printf '%s\n' "$1" > "$root/.ralph/mock-prompt.txt"
echo "Question 1: Who is the primary user?"
read -r answer_one
printf '%s\n' "$answer_one" > "$root/.ralph/answer-one.txt"
echo "Question 2: What is the deadline?"
read -r answer_two
printf '%s\n' "$answer_two" > "$root/.ralph/answer-two.txt"
`

const mockSuccess = mockPrelude + `mkdir -p "$(dirname "$PRD_PATH")"
printf '{"version":1,"project":"mock-prd","stories":[]}\n' > "$PRD_PATH"
echo "PRD JSON saved to $PRD_PATH. Close this chat and run ` + "`ralph build`" + `."
`

const mockFailure = mockPrelude + `echo "Interview ended unexpectedly without saving."
`

func TestInterviewOverPTYSucceeds(t *testing.T) {
	dir, cmd := setupMockProject(t, mockSuccess)
	request := "Incident workflow dashboard for operations"
	artifact := filepath.Join(dir, ".agents", "tasks", "prd-interview-success.json")
	var out bytes.Buffer
	res, err := runPTYInterview(t, dir, cmd, artifact, request+"\rOps team leads\rEnd of Q2\r", &out)
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out.String())
	}
	if res.Phase != schema.PhaseSucceeded {
		t.Fatalf("phase = %s", res.Phase)
	}
	text := out.String()
	for _, want := range []string{"Question 1:", "Question 2:", "PRD JSON saved to"} {
		if !strings.Contains(text, want) {
			t.Fatalf("transcript missing %q:\n%s", want, text)
		}
	}
	prompt := readFile(t, filepath.Join(dir, ".ralph", "mock-prompt.txt"))
	if !strings.Contains(prompt, "User request:\n"+request) {
		t.Fatalf("request not forwarded to the agent prompt:\n%s", prompt)
	}
	if got := strings.TrimSpace(readFile(t, filepath.Join(dir, ".ralph", "answer-one.txt"))); got != "Ops team leads" {
		t.Fatalf("answer one = %q", got)
	}
	if got := strings.TrimSpace(readFile(t, filepath.Join(dir, ".ralph", "answer-two.txt"))); got != "End of Q2" {
		t.Fatalf("answer two = %q", got)
	}
	if !strings.Contains(readFile(t, artifact), `"project":"mock-prd"`) {
		t.Fatalf("artifact not written")
	}
}

func TestInterviewOverPTYFailsWithoutConfirmation(t *testing.T) {
	dir, cmd := setupMockProject(t, mockFailure)
	artifact := filepath.Join(dir, ".agents", "tasks", "prd-interview-failure.json")
	var out bytes.Buffer
	res, err := runPTYInterview(t, dir, cmd, artifact, "Incident workflow dashboard\rOps team leads\rEnd of Q2\r", &out)
	if !errors.Is(err, schema.ErrNoConfirmation) {
		t.Fatalf("expected ErrNoConfirmation, got %v\n%s", err, out.String())
	}
	if res.Phase != schema.PhaseFailedNoConfirmation {
		t.Fatalf("phase = %s", res.Phase)
	}
	text := out.String()
	for _, want := range []string{
		"Question 1:",
		"Question 2:",
		"Qwen PRD session ended before PRD save confirmation.",
		"Troubleshooting:",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}
	if got := strings.TrimSpace(readFile(t, filepath.Join(dir, ".ralph", "answer-two.txt"))); got != "End of Q2" {
		t.Fatalf("answer two = %q", got)
	}
	if _, err := os.Stat(artifact); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("failure flow must not leave an artifact: %v", err)
	}
}

func setupMockProject(t *testing.T, script string) (string, string) {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
	ptmx, tty, err := pty.Open()
	if err != nil {
		t.Skipf("pty unavailable: %v", err)
	}
	_ = ptmx.Close()
	_ = tty.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "mock-qwen.sh")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write mock: %v", err)
	}
	return dir, "/bin/sh " + path + " {prompt}"
}

func runPTYInterview(t *testing.T, dir, command, artifact, input string, out io.Writer) (Result, error) {
	t.Helper()
	editor := lineedit.NewEditor(strings.NewReader(input), io.Discard)
	launcher := AgentLauncher{Launcher: agent.NewLauncher(agent.Config{TerminateGrace: time.Second})}
	orch, err := New(Config{
		Agent:        "qwen",
		Command:      command,
		ArtifactPath: artifact,
		PromptPath:   filepath.Join(dir, ".ralph", "prd-prompt.txt"),
		WorkingDir:   dir,
	}, Deps{Editor: editor, Launcher: launcher, Output: out})
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	return orch.Run(ctx)
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}
