package logx

import (
	"context"

	"pkt.systems/pslog"
	"pkt.systems/ralph/schema"
)

type contextKey int

const (
	agentKey contextKey = iota
	sessionKey
)

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	if ctx == nil {
		ctx = context.Background()
	}
	return pslog.Ctx(ctx)
}

// WithAgent annotates the logger with the agent name if present.
func WithAgent(ctx context.Context, agent schema.AgentName) pslog.Logger {
	log := Ctx(ctx)
	if agent != "" {
		if current, ok := valueOf[schema.AgentName](ctx, agentKey); ok && current == agent {
			return log
		}
		log = log.With("agent", agent)
	}
	return log
}

// WithAgentSession annotates the logger with agent and interview session ids.
func WithAgentSession(ctx context.Context, agent schema.AgentName, sessionID schema.SessionID) pslog.Logger {
	log := WithAgent(ctx, agent)
	if sessionID != "" {
		if current, ok := valueOf[schema.SessionID](ctx, sessionKey); ok && current == sessionID {
			return log
		}
		log = log.With("session", sessionID)
	}
	return log
}

// WithPhase annotates the logger with the interview phase.
func WithPhase(log pslog.Logger, phase schema.Phase) pslog.Logger {
	return log.With("phase", phase.String())
}

// ContextWithAgent stores the agent marker on the context for log de-duplication.
func ContextWithAgent(ctx context.Context, agent schema.AgentName) context.Context {
	if ctx == nil || agent == "" {
		return ctx
	}
	return context.WithValue(ctx, agentKey, agent)
}

// ContextWithSession stores the session marker on the context for log de-duplication.
func ContextWithSession(ctx context.Context, sessionID schema.SessionID) context.Context {
	if ctx == nil || sessionID == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionKey, sessionID)
}

// ContextWithAgentSessionLogger attaches the logger and agent/session markers to the context.
func ContextWithAgentSessionLogger(ctx context.Context, log pslog.Logger, agent schema.AgentName, sessionID schema.SessionID) context.Context {
	ctx = pslog.ContextWithLogger(ctx, log)
	return ContextWithSession(ContextWithAgent(ctx, agent), sessionID)
}

func valueOf[T any](ctx context.Context, key contextKey) (T, bool) {
	var zero T
	if ctx == nil {
		return zero, false
	}
	v, ok := ctx.Value(key).(T)
	return v, ok
}
