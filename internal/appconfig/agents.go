package appconfig

import (
	"bufio"
	"errors"
	"io/fs"
	"os"
	"regexp"
	"strings"

	"github.com/subosito/gotenv"

	"pkt.systems/ralph/schema"
)

// AgentsFile holds the variables read from a legacy agents.sh file.
type AgentsFile struct {
	Path string
	Env  gotenv.Env
}

// ReadAgentsFile parses KEY=value assignments from path. Lines that are not
// plain assignments (shebangs, comments, shell logic) are skipped. A missing
// file is not an error.
func ReadAgentsFile(path string) (AgentsFile, bool, error) {
	if strings.TrimSpace(path) == "" {
		return AgentsFile{}, false, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return AgentsFile{}, false, nil
		}
		return AgentsFile{}, false, err
	}
	defer f.Close()

	// gotenv stops at the first line it cannot parse, so only assignments
	// are handed to it.
	var assignments strings.Builder
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if assignmentLine.MatchString(line) {
			assignments.WriteString(line)
			assignments.WriteByte('\n')
		}
	}
	if err := scanner.Err(); err != nil {
		return AgentsFile{}, false, err
	}
	return AgentsFile{Path: path, Env: gotenv.Parse(strings.NewReader(assignments.String()))}, true, nil
}

var assignmentLine = regexp.MustCompile(`^(export\s+)?[A-Za-z_][A-Za-z0-9_]*=`)

// Commands returns agent names mapped to their interactive commands.
// AGENT_<NAME>_INTERACTIVE_CMD wins over AGENT_<NAME>_CMD.
func (a AgentsFile) Commands() (interactive map[string]string, fallback map[string]string) {
	interactive = map[string]string{}
	fallback = map[string]string{}
	for key, value := range a.Env {
		if !strings.HasPrefix(key, "AGENT_") || strings.TrimSpace(value) == "" {
			continue
		}
		rest := strings.TrimPrefix(key, "AGENT_")
		switch {
		case strings.HasSuffix(rest, "_INTERACTIVE_CMD"):
			if name, err := schema.NormalizeAgentName(strings.TrimSuffix(rest, "_INTERACTIVE_CMD")); err == nil {
				interactive[string(name)] = value
			}
		case strings.HasSuffix(rest, "_CMD"):
			if name, err := schema.NormalizeAgentName(strings.TrimSuffix(rest, "_CMD")); err == nil {
				fallback[string(name)] = value
			}
		}
	}
	return interactive, fallback
}

// Apply merges the agents file into cfg. Interactive commands override the
// configured command; plain commands only fill in agents that have no
// command at all. DEFAULT_AGENT is honored when useDefault is set.
func (a AgentsFile) Apply(cfg *Config, useDefault bool) {
	if cfg.Agents == nil {
		cfg.Agents = map[string]AgentConfig{}
	}
	if cfg.Source.AgentOrigins == nil {
		cfg.Source.AgentOrigins = map[string]string{}
	}
	interactive, fallback := a.Commands()
	for name, cmd := range interactive {
		agent := cfg.Agents[name]
		agent.InteractiveCmd = cmd
		cfg.Agents[name] = agent
		cfg.Source.AgentOrigins[name] = OriginAgentsFile
	}
	for name, cmd := range fallback {
		if _, ok := interactive[name]; ok {
			continue
		}
		agent, ok := cfg.Agents[name]
		if ok && strings.TrimSpace(agent.InteractiveCmd) != "" {
			continue
		}
		agent.InteractiveCmd = cmd
		cfg.Agents[name] = agent
		cfg.Source.AgentOrigins[name] = OriginAgentsFile
	}
	if useDefault {
		if name := strings.ToLower(strings.TrimSpace(a.Env["DEFAULT_AGENT"])); name != "" {
			cfg.PRD.DefaultAgent = name
		}
	}
}
