package schema

import (
	"fmt"
	"strings"
)

// NormalizeAgentName lower-cases and validates an agent name.
// Allowed characters after lower-casing: a-z, 0-9, '.', '_', '-'.
func NormalizeAgentName(name string) (AgentName, error) {
	trimmed := strings.ToLower(strings.TrimSpace(name))
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty agent name", ErrUnknownAgent)
	}
	for _, r := range trimmed {
		if r >= 'a' && r <= 'z' {
			continue
		}
		if r >= '0' && r <= '9' {
			continue
		}
		if r == '.' || r == '_' || r == '-' {
			continue
		}
		return "", fmt.Errorf("%w %q: names may only contain letters, digits, '.', '_' and '-'", ErrUnknownAgent, name)
	}
	return AgentName(trimmed), nil
}
