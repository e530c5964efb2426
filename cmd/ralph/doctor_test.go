package main

import (
	"bytes"
	"strings"
	"testing"

	"pkt.systems/pslog"
	"pkt.systems/ralph/internal/appconfig"
)

func TestDoctorReportsAgents(t *testing.T) {
	cfg := appconfig.DefaultConfig()
	cfg.Agents = map[string]appconfig.AgentConfig{
		"shell":   {InteractiveCmd: "sh -c 'cat' {prompt}"},
		"missing": {InteractiveCmd: "definitely-not-installed-ralph-agent {prompt}"},
	}
	cfg.PRD.DefaultAgent = "shell"

	var out bytes.Buffer
	if err := runDoctor(&out, pslog.NewWithOptions(&bytes.Buffer{}, pslog.Options{}), cfg); err != nil {
		t.Fatalf("doctor: %v\n%s", err, out.String())
	}
	text := out.String()
	if !strings.Contains(text, "ok       shell") {
		t.Fatalf("shell agent not ok:\n%s", text)
	}
	if !strings.Contains(text, "missing  missing") {
		t.Fatalf("missing agent not reported:\n%s", text)
	}
}

func TestDoctorFailsWhenDefaultAgentMissing(t *testing.T) {
	cfg := appconfig.DefaultConfig()
	cfg.Agents = map[string]appconfig.AgentConfig{
		"ghost": {InteractiveCmd: "definitely-not-installed-ralph-agent"},
	}
	cfg.PRD.DefaultAgent = "ghost"
	var out bytes.Buffer
	err := runDoctor(&out, pslog.NewWithOptions(&bytes.Buffer{}, pslog.Options{}), cfg)
	if err == nil || !strings.Contains(err.Error(), "default agent ghost") {
		t.Fatalf("expected default agent failure, got %v", err)
	}
}
