package schema

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput indicates the operator submitted an empty or whitespace-only line.
	ErrEmptyInput = errors.New("no description provided")
	// ErrLaunchFailed indicates the agent process could not be started.
	ErrLaunchFailed = errors.New("agent launch failed")
	// ErrInterviewCancelled indicates the operator interrupted the session.
	ErrInterviewCancelled = errors.New("interview cancelled")
	// ErrNoConfirmation indicates the agent exited without confirming the PRD was saved.
	ErrNoConfirmation = errors.New("agent session ended before save confirmation")
	// ErrArtifactMissing indicates the agent confirmed a save but no artifact exists.
	ErrArtifactMissing = errors.New("prd artifact missing after save confirmation")
	// ErrInvalidTransition indicates an interview phase change that would move backwards.
	ErrInvalidTransition = errors.New("invalid interview phase transition")
	// ErrUnknownAgent indicates the selected agent has no configured command.
	ErrUnknownAgent = errors.New("unknown agent")
)

// LaunchError describes why an agent command could not be spawned.
type LaunchError struct {
	Agent   AgentName
	Command string
	Err     error
}

func (e *LaunchError) Error() string {
	if e.Command == "" {
		return fmt.Sprintf("launch %s: %v", e.Agent, e.Err)
	}
	return fmt.Sprintf("launch %s (%s): %v", e.Agent, e.Command, e.Err)
}

// Unwrap exposes both the launch sentinel and the underlying cause.
func (e *LaunchError) Unwrap() []error {
	return []error{ErrLaunchFailed, e.Err}
}

// reportedError marks an error whose user-facing text was already printed.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

// Reported wraps err so the CLI boundary does not log it a second time.
func Reported(err error) error {
	if err == nil {
		return nil
	}
	return &reportedError{err: err}
}

// IsReported reports whether err was already presented to the operator.
func IsReported(err error) bool {
	var rep *reportedError
	return errors.As(err, &rep)
}

// Exit codes returned by the CLI.
const (
	ExitOK        = 0
	ExitFailure   = 1
	ExitCancelled = 130
)

// ExitCode maps a session outcome error to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrInterviewCancelled):
		return ExitCancelled
	default:
		return ExitFailure
	}
}
