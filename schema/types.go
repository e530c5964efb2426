package schema

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// AgentName identifies a configured interactive agent (claude, codex, qwen, ...).
type AgentName string

// DisplayName returns the agent name with its first letter upper-cased.
func (a AgentName) DisplayName() string {
	name := strings.TrimSpace(string(a))
	if name == "" {
		return "Agent"
	}
	r, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(r)) + name[size:]
}

// SessionID identifies one interview session.
type SessionID string

// Phase is the interview session phase.
type Phase int

const (
	PhaseAwaitingRequest Phase = iota
	PhaseRequestSent
	PhaseAwaitingAnswer
	PhaseSucceeded
	PhaseFailedNoConfirmation
	PhaseCancelled
)

func (p Phase) String() string {
	switch p {
	case PhaseAwaitingRequest:
		return "awaiting_request"
	case PhaseRequestSent:
		return "request_sent"
	case PhaseAwaitingAnswer:
		return "awaiting_answer"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailedNoConfirmation:
		return "failed_no_confirmation"
	case PhaseCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are allowed.
func (p Phase) Terminal() bool {
	return p == PhaseSucceeded || p == PhaseFailedNoConfirmation || p == PhaseCancelled
}

// MarkerKind classifies a recognized line of agent output.
type MarkerKind string

const (
	MarkerQuestion MarkerKind = "question"
	MarkerSaved    MarkerKind = "saved"
)

const (
	// DefaultQuestionPattern matches numbered clarifying questions ("Question 2: ...").
	DefaultQuestionPattern = `^\s*Question\s+\d+\s*:`
	// DefaultSavedPattern matches the agent's save confirmation line.
	DefaultSavedPattern = `PRD JSON saved to`
	// DefaultTranscriptTailLines bounds the agent output kept for diagnostics.
	DefaultTranscriptTailLines = 40
	// DefaultRequestPrompt is rendered before the request line.
	DefaultRequestPrompt = "> "
)
