package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"pkt.systems/pslog"
	"pkt.systems/ralph/schema"
)

func TestWithAgentSessionAddsFields(t *testing.T) {
	capture := &logCapture{}
	logger := newCaptureLogger(capture)
	ctx := pslog.ContextWithLogger(context.Background(), logger)
	log := WithAgentSession(ctx, "qwen", "s-1")
	log.Info("hello")

	entry := capture.firstEntry(t)
	if entry["agent"] != "qwen" {
		t.Fatalf("expected agent field, got %+v", entry)
	}
	if entry["session"] != "s-1" {
		t.Fatalf("expected session field, got %+v", entry)
	}
}

func TestWithAgentSkipsDuplicateMarker(t *testing.T) {
	capture := &logCapture{}
	logger := newCaptureLogger(capture).With("agent", "qwen")
	ctx := ContextWithAgentSessionLogger(context.Background(), logger, "qwen", "")
	WithAgent(ctx, "qwen").Info("hello")

	line := bytes.TrimSpace(capture.buf.Bytes())
	if bytes.Count(line, []byte(`"agent"`)) != 1 {
		t.Fatalf("expected a single agent field, got %s", line)
	}
}

func TestWithPhase(t *testing.T) {
	capture := &logCapture{}
	WithPhase(newCaptureLogger(capture), schema.PhaseAwaitingAnswer).Info("hello")
	entry := capture.firstEntry(t)
	if entry["phase"] != "awaiting_answer" {
		t.Fatalf("expected phase field, got %+v", entry)
	}
}

func newCaptureLogger(capture *logCapture) pslog.Logger {
	return pslog.NewWithOptions(capture, pslog.Options{
		Mode:          pslog.ModeStructured,
		NoColor:       true,
		MinLevel:      pslog.InfoLevel,
		VerboseFields: true,
	})
}

type logCapture struct {
	buf bytes.Buffer
}

func (c *logCapture) Write(p []byte) (int, error) {
	return c.buf.Write(p)
}

func (c *logCapture) firstEntry(t *testing.T) map[string]any {
	t.Helper()
	data := c.buf.Bytes()
	idx := bytes.IndexByte(data, '\n')
	if idx == -1 {
		idx = len(data)
	}
	line := bytes.TrimSpace(data[:idx])
	entry := map[string]any{}
	if err := json.Unmarshal(line, &entry); err != nil {
		t.Fatalf("parse log entry: %v", err)
	}
	return entry
}
