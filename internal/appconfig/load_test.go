package appconfig

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pkt.systems/ralph/schema"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Source.ConfigLoaded {
		t.Fatalf("expected defaults without a config file")
	}
	if cfg.PRD.DefaultAgent != "codex" || cfg.Interview.TranscriptTailLines != schema.DefaultTranscriptTailLines {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Source.AgentOrigins["qwen"] != OriginDefault {
		t.Fatalf("expected built-in origin, got %q", cfg.Source.AgentOrigins["qwen"])
	}
}

func TestLoadRejectsUnsupportedConfigVersion(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeConfig(t, `
config_version: 7
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "unsupported config_version") {
		t.Fatalf("expected config_version error, got %v", err)
	}
}

func TestLoadRequiresConfigVersion(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeConfig(t, `
prd:
  default_agent: qwen
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "config_version is required") {
		t.Fatalf("expected config_version error, got %v", err)
	}
}

func TestLoadRejectsBadMarker(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeConfig(t, `
config_version: 1
markers:
  question: "(unclosed"
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "markers.question") {
		t.Fatalf("expected marker error, got %v", err)
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("RALPH_SKIP_UPDATE_CHECK", "1")
	t.Setenv("RALPH_PRD_OUT_DIR", "$HOME/prds")
	t.Setenv("HOME", "/home/op")
	path := writeConfig(t, `
config_version: 1
prd:
  default_agent: mine
agents:
  mine:
    interactive_cmd: my-agent --chat {prompt}
    display_name: My Agent
interview:
  transcript_tail_lines: 5
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.SkipUpdateCheck {
		t.Fatalf("expected RALPH_SKIP_UPDATE_CHECK to apply")
	}
	if cfg.PRD.OutDir != "/home/op/prds" {
		t.Fatalf("out_dir = %q", cfg.PRD.OutDir)
	}
	if cfg.Interview.TranscriptTailLines != 5 {
		t.Fatalf("tail lines = %d", cfg.Interview.TranscriptTailLines)
	}
	agent, err := cfg.ResolveAgent("")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if agent.Name != "mine" || agent.Command != "my-agent --chat {prompt}" || agent.DisplayName != "My Agent" || agent.Origin != OriginConfig {
		t.Fatalf("unexpected agent: %+v", agent)
	}
	if _, ok := cfg.Agents["claude"]; !ok {
		t.Fatalf("built-in agents should remain available")
	}
}

func TestLoadAgentsFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	agentsDir := filepath.Join(dir, ".agents", "ralph")
	if err := os.MkdirAll(agentsDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	content := `#!/bin/bash
# agent commands
AGENT_QWEN_INTERACTIVE_CMD='/tmp/mock-qwen.sh {prompt}'
AGENT_QWEN_CMD='/tmp/mock-qwen.sh {prompt} --batch'
export AGENT_OPENCODE_CMD="opencode run {prompt}"
AGENT_CODEX_CMD="codex exec -"
DEFAULT_AGENT=qwen
if [ -n "$X" ]; then echo hi; fi
`
	if err := os.WriteFile(filepath.Join(agentsDir, "agents.sh"), []byte(content), 0o644); err != nil {
		t.Fatalf("write agents: %v", err)
	}
	cfg, err := Load(filepath.Join(dir, "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.Source.AgentsFileLoaded {
		t.Fatalf("expected agents file to load")
	}
	qwen, err := cfg.ResolveAgent("QWEN")
	if err != nil {
		t.Fatalf("resolve qwen: %v", err)
	}
	if qwen.Command != "/tmp/mock-qwen.sh {prompt}" || qwen.Origin != OriginAgentsFile {
		t.Fatalf("interactive command should win: %+v", qwen)
	}
	opencode, err := cfg.ResolveAgent("opencode")
	if err != nil || opencode.Command != "opencode run {prompt}" {
		t.Fatalf("fallback command not applied: %+v, %v", opencode, err)
	}
	codex, err := cfg.ResolveAgent("codex")
	if err != nil || codex.Command != DefaultConfig().Agents["codex"].InteractiveCmd {
		t.Fatalf("non-interactive command must not replace a configured one: %+v, %v", codex, err)
	}
	if cfg.PRD.DefaultAgent != "qwen" {
		t.Fatalf("DEFAULT_AGENT not applied: %q", cfg.PRD.DefaultAgent)
	}
}

func TestResolveUnknownAgent(t *testing.T) {
	cfg := DefaultConfig()
	_, err := cfg.ResolveAgent("nope")
	if !errors.Is(err, schema.ErrUnknownAgent) {
		t.Fatalf("expected ErrUnknownAgent, got %v", err)
	}
	if !strings.Contains(err.Error(), "claude, codex, droid, qwen") {
		t.Fatalf("expected configured agents in error, got %v", err)
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("FOO", "bar")
	value := expandEnv("$FOO/$UID/$GID/$MISSING")
	if !strings.HasPrefix(value, "bar/") {
		t.Fatalf("expected env expansion, got %q", value)
	}
	if strings.Contains(value, "$UID") || strings.Contains(value, "$GID") {
		t.Fatalf("expected UID/GID expansion, got %q", value)
	}
	if !strings.HasSuffix(value, "/$MISSING") {
		t.Fatalf("expected missing vars to remain, got %q", value)
	}
}

func TestWriteDefaultRespectsOverwrite(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "config.yaml")
	written, err := WriteDefault(path, false)
	if err != nil {
		t.Fatalf("write default: %v", err)
	}
	if written != path {
		t.Fatalf("expected path %q, got %q", path, written)
	}
	if _, err := WriteDefault(path, false); err == nil {
		t.Fatalf("expected error when config exists")
	}
	if _, err := WriteDefault(path, true); err != nil {
		t.Fatalf("expected overwrite to succeed: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("written default must load: %v", err)
	}
	if !cfg.Source.ConfigLoaded || cfg.Agents["qwen"].InteractiveCmd == "" {
		t.Fatalf("unexpected config from default file: %+v", cfg)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(content)+"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
