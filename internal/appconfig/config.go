package appconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"pkt.systems/ralph/internal/promptfile"
	"pkt.systems/ralph/schema"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion   int                    `mapstructure:"config_version" yaml:"config_version"`
	StateDir        string                 `mapstructure:"state_dir" yaml:"state_dir"`
	AgentsFile      string                 `mapstructure:"agents_file" yaml:"agents_file"`
	SkipUpdateCheck bool                   `mapstructure:"skip_update_check" yaml:"skip_update_check"`
	PRD             PRDConfig              `mapstructure:"prd" yaml:"prd"`
	Agents          map[string]AgentConfig `mapstructure:"agents" yaml:"agents"`
	Markers         MarkersConfig          `mapstructure:"markers" yaml:"markers"`
	Interview       InterviewConfig        `mapstructure:"interview" yaml:"interview"`
	SSH             SSHConfig              `mapstructure:"ssh" yaml:"ssh"`

	// Source records where the configuration came from.
	Source Source `mapstructure:"-" yaml:"-"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// PRDConfig controls the prd command.
type PRDConfig struct {
	OutDir         string `mapstructure:"out_dir" yaml:"out_dir"`
	PromptPath     string `mapstructure:"prompt_path" yaml:"prompt_path"`
	PromptTemplate string `mapstructure:"prompt_template" yaml:"prompt_template"`
	DefaultAgent   string `mapstructure:"default_agent" yaml:"default_agent"`
}

// AgentConfig describes one interactive agent.
type AgentConfig struct {
	InteractiveCmd string `mapstructure:"interactive_cmd" yaml:"interactive_cmd"`
	DisplayName    string `mapstructure:"display_name" yaml:"display_name,omitempty"`
}

// MarkersConfig holds the regular expressions recognized in agent output.
type MarkersConfig struct {
	Question string `mapstructure:"question" yaml:"question"`
	Saved    string `mapstructure:"saved" yaml:"saved"`
}

// InterviewConfig tunes the interview loop.
type InterviewConfig struct {
	TranscriptTailLines int    `mapstructure:"transcript_tail_lines" yaml:"transcript_tail_lines"`
	AnswerPrompt        string `mapstructure:"answer_prompt" yaml:"answer_prompt"`
	TerminateGraceMS    int    `mapstructure:"terminate_grace_ms" yaml:"terminate_grace_ms"`
}

// SSHConfig configures the SSH interview server.
type SSHConfig struct {
	Addr           string `mapstructure:"addr" yaml:"addr"`
	HostKeyPath    string `mapstructure:"host_key_path" yaml:"host_key_path"`
	AuthorizedKeys string `mapstructure:"authorized_keys" yaml:"authorized_keys"`
}

// Source describes the files a Config was assembled from.
type Source struct {
	ConfigFile       string
	ConfigLoaded     bool
	AgentsFile       string
	AgentsFileLoaded bool
	// AgentOrigins maps agent names to where their command came from.
	AgentOrigins map[string]string
}

// Agent origins reported by Source.AgentOrigins.
const (
	OriginDefault    = "default"
	OriginConfig     = "config"
	OriginAgentsFile = "agents_file"
)

// DefaultConfig returns a config with sensible defaults. Relative paths are
// resolved against the working directory by callers.
func DefaultConfig() Config {
	return Config{
		ConfigVersion:   CurrentConfigVersion,
		StateDir:        ".ralph",
		AgentsFile:      filepath.Join(".agents", "ralph", "agents.sh"),
		SkipUpdateCheck: false,
		PRD: PRDConfig{
			OutDir:         filepath.Join(".agents", "tasks"),
			PromptPath:     filepath.Join(".ralph", "prd-prompt.txt"),
			PromptTemplate: "",
			DefaultAgent:   "codex",
		},
		Agents: map[string]AgentConfig{
			"claude": {InteractiveCmd: "claude --dangerously-skip-permissions {prompt}"},
			"codex":  {InteractiveCmd: "codex --yolo {prompt}"},
			"droid":  {InteractiveCmd: "droid --skip-permissions-unsafe {prompt}"},
			"qwen":   {InteractiveCmd: "qwen --yolo -i {prompt}"},
		},
		Markers: MarkersConfig{
			Question: schema.DefaultQuestionPattern,
			Saved:    schema.DefaultSavedPattern,
		},
		Interview: InterviewConfig{
			TranscriptTailLines: schema.DefaultTranscriptTailLines,
			AnswerPrompt:        "? ",
			TerminateGraceMS:    2000,
		},
		SSH: SSHConfig{
			Addr:           ":27422",
			HostKeyPath:    filepath.Join(".ralph", "ssh_host_key"),
			AuthorizedKeys: filepath.Join("$HOME", ".ssh", "authorized_keys"),
		},
	}
}

// DefaultConfigPath returns the standard config path in the working directory.
func DefaultConfigPath() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, ".ralph", "config.yaml"), nil
}

// SavedPhrase returns the literal confirmation phrase agents are told to
// print. It falls back to the default when the saved marker is a pattern
// rather than plain text.
func (c Config) SavedPhrase() string {
	if c.Markers.Saved == "" || c.Markers.Saved == schema.DefaultSavedPattern {
		return promptfile.DefaultSavedPhrase
	}
	if isLiteral(c.Markers.Saved) {
		return c.Markers.Saved
	}
	return promptfile.DefaultSavedPhrase
}

func isLiteral(pattern string) bool {
	for _, r := range pattern {
		switch r {
		case '\\', '.', '+', '*', '?', '(', ')', '|', '[', ']', '{', '}', '^', '$':
			return false
		}
	}
	return true
}

// ResolvedAgent is an agent selected for an interview.
type ResolvedAgent struct {
	Name        schema.AgentName
	DisplayName string
	Command     string
	Origin      string
}

// ResolveAgent returns the interactive command for name, or for the default
// agent when name is empty.
func (c Config) ResolveAgent(name string) (ResolvedAgent, error) {
	if strings.TrimSpace(name) == "" {
		name = c.PRD.DefaultAgent
	}
	normalized, err := schema.NormalizeAgentName(name)
	if err != nil {
		return ResolvedAgent{}, err
	}
	name = string(normalized)
	agent, ok := c.Agents[name]
	if !ok || strings.TrimSpace(agent.InteractiveCmd) == "" {
		return ResolvedAgent{}, fmt.Errorf("%w %q; configured agents: %s", schema.ErrUnknownAgent, name, strings.Join(c.AgentNames(), ", "))
	}
	origin := c.Source.AgentOrigins[name]
	if origin == "" {
		origin = OriginConfig
	}
	display := strings.TrimSpace(agent.DisplayName)
	if display == "" {
		display = schema.AgentName(name).DisplayName()
	}
	return ResolvedAgent{
		Name:        schema.AgentName(name),
		DisplayName: display,
		Command:     agent.InteractiveCmd,
		Origin:      origin,
	}, nil
}

// AgentNames returns the configured agent names in sorted order.
func (c Config) AgentNames() []string {
	names := make([]string, 0, len(c.Agents))
	for name, agent := range c.Agents {
		if strings.TrimSpace(agent.InteractiveCmd) != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
