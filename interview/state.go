package interview

import (
	"fmt"

	"pkt.systems/ralph/schema"
)

// State is the interview session state machine. Phases only move forward;
// AwaitingAnswer recurs once per question.
type State struct {
	phase     schema.Phase
	questions []string
	answers   []string
}

// NewState returns a state awaiting the operator's request.
func NewState() *State {
	return &State{phase: schema.PhaseAwaitingRequest}
}

// Phase returns the current phase.
func (s *State) Phase() schema.Phase {
	return s.phase
}

// QuestionIndex returns the zero-based index of the question being answered,
// or -1 before the first question.
func (s *State) QuestionIndex() int {
	return len(s.questions) - 1
}

// Questions returns the question lines observed so far.
func (s *State) Questions() []string {
	return append([]string(nil), s.questions...)
}

// Answers returns the answers forwarded so far.
func (s *State) Answers() []string {
	return append([]string(nil), s.answers...)
}

// RequestSent records that the request was handed to the agent.
func (s *State) RequestSent() error {
	if s.phase != schema.PhaseAwaitingRequest {
		return s.invalid(schema.PhaseRequestSent)
	}
	s.phase = schema.PhaseRequestSent
	return nil
}

// Question records a question marker. A new question is only accepted once
// every earlier one has been answered.
func (s *State) Question(line string) error {
	switch s.phase {
	case schema.PhaseRequestSent:
	case schema.PhaseAwaitingAnswer:
		if len(s.answers) < len(s.questions) {
			return fmt.Errorf("%w: question %d still unanswered", schema.ErrInvalidTransition, len(s.questions))
		}
	default:
		return s.invalid(schema.PhaseAwaitingAnswer)
	}
	s.phase = schema.PhaseAwaitingAnswer
	s.questions = append(s.questions, line)
	return nil
}

// Answer records the operator's answer to the pending question.
func (s *State) Answer(text string) error {
	if s.phase != schema.PhaseAwaitingAnswer || len(s.answers) >= len(s.questions) {
		return fmt.Errorf("%w: no question awaiting an answer", schema.ErrInvalidTransition)
	}
	s.answers = append(s.answers, text)
	return nil
}

// Saved records the save-confirmation marker.
func (s *State) Saved() error {
	switch s.phase {
	case schema.PhaseRequestSent, schema.PhaseAwaitingAnswer:
		s.phase = schema.PhaseSucceeded
		return nil
	case schema.PhaseSucceeded:
		return nil
	default:
		return s.invalid(schema.PhaseSucceeded)
	}
}

// Exited records that the agent ended. Without a prior confirmation the
// session fails. It returns the resulting terminal phase.
func (s *State) Exited() (schema.Phase, error) {
	switch s.phase {
	case schema.PhaseRequestSent, schema.PhaseAwaitingAnswer:
		s.phase = schema.PhaseFailedNoConfirmation
	case schema.PhaseSucceeded, schema.PhaseFailedNoConfirmation, schema.PhaseCancelled:
	default:
		return s.phase, s.invalid(schema.PhaseFailedNoConfirmation)
	}
	return s.phase, nil
}

// Cancel records an operator interrupt. Terminal phases are kept.
func (s *State) Cancel() schema.Phase {
	if !s.phase.Terminal() {
		s.phase = schema.PhaseCancelled
	}
	return s.phase
}

func (s *State) invalid(to schema.Phase) error {
	return fmt.Errorf("%w: %s -> %s", schema.ErrInvalidTransition, s.phase, to)
}
