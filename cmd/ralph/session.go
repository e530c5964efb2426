package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"pkt.systems/pslog"
	"pkt.systems/ralph/interview"
	"pkt.systems/ralph/internal/agent"
	"pkt.systems/ralph/internal/appconfig"
	"pkt.systems/ralph/internal/persist"
	"pkt.systems/ralph/lineedit"
	"pkt.systems/ralph/schema"
)

// interviewTarget describes where an interview runs: the operator terminal
// streams and the files it produces.
type interviewTarget struct {
	Agent   string
	OutPath string
	// PromptPath overrides prd.prompt_path for this interview.
	PromptPath string
	WorkDir    string
	Input      io.Reader
	Output     io.Writer
	Cols       int
	Rows       int
}

// prepared is a ready-to-run interview.
type prepared struct {
	Orchestrator *interview.Orchestrator
	Agent        appconfig.ResolvedAgent
	OutPath      string
	PromptPath   string
}

func prepareInterview(ctx context.Context, cfg appconfig.Config, target interviewTarget) (prepared, error) {
	logger := pslog.Ctx(ctx)
	resolved, err := cfg.ResolveAgent(target.Agent)
	if err != nil {
		return prepared{}, err
	}
	workDir := target.WorkDir
	if workDir == "" {
		if workDir, err = os.Getwd(); err != nil {
			return prepared{}, err
		}
	}
	outPath := target.OutPath
	if strings.TrimSpace(outPath) == "" {
		outPath = defaultOutPath(cfg.PRD.OutDir, time.Now())
	}
	outPath = resolvePath(workDir, outPath)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return prepared{}, fmt.Errorf("create output dir: %w", err)
	}

	promptPath := cfg.PRD.PromptPath
	if strings.TrimSpace(target.PromptPath) != "" {
		promptPath = target.PromptPath
	}
	promptPath = resolvePath(workDir, promptPath)

	tmpl, err := loadPromptTemplate(resolvePath(workDir, cfg.PRD.PromptTemplate))
	if err != nil {
		return prepared{}, err
	}
	markers, err := interview.NewMarkers(cfg.Markers.Question, cfg.Markers.Saved)
	if err != nil {
		return prepared{}, err
	}
	store, err := persist.NewStoreWithLogger(filepath.Join(resolvePath(workDir, cfg.StateDir), "interviews"), logger)
	if err != nil {
		return prepared{}, err
	}
	launcher := agent.NewLauncher(agent.Config{
		TerminateGrace: time.Duration(cfg.Interview.TerminateGraceMS) * time.Millisecond,
	})
	orch, err := interview.New(interview.Config{
		Agent:          resolved.Name,
		DisplayName:    resolved.DisplayName,
		Command:        resolved.Command,
		ArtifactPath:   outPath,
		PromptPath:     promptPath,
		PromptTemplate: tmpl,
		SavedPhrase:    cfg.SavedPhrase(),
		WorkingDir:     workDir,
		AnswerPrompt:   cfg.Interview.AnswerPrompt,
		Markers:        markers,
		TailLines:      cfg.Interview.TranscriptTailLines,
		Cols:           target.Cols,
		Rows:           target.Rows,
	}, interview.Deps{
		Editor:   lineedit.NewEditor(target.Input, target.Output),
		Launcher: interview.AgentLauncher{Launcher: launcher},
		Output:   target.Output,
		Records:  store,
	})
	if err != nil {
		return prepared{}, err
	}
	logger.Info("interview prepared",
		"agent", resolved.Name,
		"agent_origin", resolved.Origin,
		"out", outPath,
		"prompt", promptPath,
		"config_loaded", cfg.Source.ConfigLoaded,
		"agents_file_loaded", cfg.Source.AgentsFileLoaded,
	)
	return prepared{Orchestrator: orch, Agent: resolved, OutPath: outPath, PromptPath: promptPath}, nil
}

// reportOutcome prints the operator-facing result of an interview and marks
// errors it has already explained.
func reportOutcome(w io.Writer, eol string, res interview.Result, err error) error {
	switch {
	case err == nil:
		_, _ = fmt.Fprintf(w, "PRD saved to %s%s", res.ArtifactPath, eol)
		return nil
	case schema.IsReported(err):
		return err
	case errors.Is(err, schema.ErrEmptyInput):
		_, _ = fmt.Fprintf(w, "No description provided.%s", eol)
	case errors.Is(err, schema.ErrInterviewCancelled):
		_, _ = fmt.Fprintf(w, "Interview cancelled.%s", eol)
	case errors.Is(err, schema.ErrLaunchFailed):
		_, _ = fmt.Fprintf(w, "Could not start the agent: %v%s", err, eol)
		if res.RecordPath != "" {
			_, _ = fmt.Fprintf(w, "Interview record: %s%s", res.RecordPath, eol)
		}
	default:
		return err
	}
	return schema.Reported(err)
}

func defaultOutPath(outDir string, now time.Time) string {
	return filepath.Join(outDir, "prd-"+now.Format("20060102-150405")+".json")
}

func resolvePath(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

func loadPromptTemplate(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read prompt template: %w", err)
	}
	return string(data), nil
}

func remoteOutName(user string) string {
	name := defaultOutPath("", time.Now())
	if user = sanitizeName(user); user != "" {
		name = "prd-" + user + "-" + name[len("prd-"):]
	}
	return name
}

// remotePromptPath gives each SSH session its own prompt payload so
// concurrent interviews never overwrite each other's prompt.
func remotePromptPath(stateDir, sessionID string) string {
	id := sanitizeName(sessionID)
	if id == "" {
		id = uuid.NewString()
	}
	return filepath.Join(stateDir, "prompts", id+".txt")
}

func sanitizeName(value string) string {
	var b strings.Builder
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	return b.String()
}
