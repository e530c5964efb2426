package interview

import (
	"fmt"
	"strings"

	"pkt.systems/ralph/schema"
)

// Diagnostic describes an interview that ended without save confirmation.
type Diagnostic struct {
	Agent schema.AgentName
	// DisplayName overrides the capitalized agent name.
	DisplayName string
	Command     string
	SavedPhrase string
	ExitCode    int
	RecordPath  string
	Tail        []string
}

// Diagnose renders the operator-facing failure message with troubleshooting
// steps and the bounded transcript tail.
func Diagnose(d Diagnostic) string {
	name := strings.TrimSpace(string(d.Agent))
	display := strings.TrimSpace(d.DisplayName)
	if display == "" {
		display = d.Agent.DisplayName()
	}
	phrase := d.SavedPhrase
	if phrase == "" {
		phrase = schema.DefaultSavedPattern
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s PRD session ended before PRD save confirmation.\n", display)
	if d.ExitCode != 0 {
		fmt.Fprintf(&b, "The agent exited with status %d.\n", d.ExitCode)
	}
	b.WriteString("Troubleshooting:\n")
	if name != "" {
		fmt.Fprintf(&b, "  - Re-run `ralph prd --agent %s` and answer each question until the agent prints %q.\n", name, phrase)
		fmt.Fprintf(&b, "  - Check the interactive command for %s: agents.%s.interactive_cmd in .ralph/config.yaml or AGENT_%s_INTERACTIVE_CMD in .agents/ralph/agents.sh.\n",
			name, name, strings.ToUpper(name))
	} else {
		fmt.Fprintf(&b, "  - Re-run `ralph prd` and answer each question until the agent prints %q.\n", phrase)
	}
	if d.Command != "" {
		fmt.Fprintf(&b, "  - Confirm the agent starts on its own: %s\n", d.Command)
	}
	b.WriteString("  - Run `ralph doctor` to verify agent commands resolve on PATH.\n")
	if d.RecordPath != "" {
		fmt.Fprintf(&b, "  - Interview record: %s\n", d.RecordPath)
	}
	lines := trimBlank(d.Tail)
	if len(lines) > 0 {
		b.WriteString("Last agent output:\n")
		for _, line := range lines {
			fmt.Fprintf(&b, "  | %s\n", line)
		}
	}
	return b.String()
}

func trimBlank(lines []string) []string {
	start, end := 0, len(lines)
	for start < end && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return lines[start:end]
}
