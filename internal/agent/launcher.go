package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/creack/pty"
	"github.com/google/shlex"

	"pkt.systems/ralph/internal/logx"
	"pkt.systems/ralph/internal/promptfile"
	"pkt.systems/ralph/schema"
)

// Placeholders understood in interactive command templates.
const (
	PlaceholderPrompt     = "{prompt}"
	PlaceholderPromptFile = "{prompt_file}"
	PlaceholderOut        = "{out}"
)

// Environment variables exported to the agent process.
const (
	EnvPRDPath    = "PRD_PATH"
	EnvPromptFile = "RALPH_PROMPT_FILE"
)

// Config controls how agent processes are started.
type Config struct {
	// Env is appended to the inherited environment.
	Env []string
	// TerminateGrace is how long Terminate waits before SIGKILL.
	TerminateGrace time.Duration
}

// Request describes one interactive agent launch.
type Request struct {
	Agent          schema.AgentName
	Command        string
	Request        string
	PromptPath     string
	PromptTemplate string
	SavedPhrase    string
	ArtifactPath   string
	WorkingDir     string
	Cols           int
	Rows           int
}

// Launcher starts interactive agent sessions on a pseudo-terminal.
type Launcher struct {
	cfg Config
}

// NewLauncher constructs a launcher.
func NewLauncher(cfg Config) *Launcher {
	if cfg.TerminateGrace <= 0 {
		cfg.TerminateGrace = 2 * time.Second
	}
	return &Launcher{cfg: cfg}
}

// Launch writes the prompt payload and starts the agent command with the
// payload substituted into its template. The child sees a terminal on
// stdin, stdout and stderr.
func (l *Launcher) Launch(ctx context.Context, req Request) (*Session, error) {
	log := logx.WithAgent(ctx, req.Agent)
	fail := func(err error) (*Session, error) {
		log.Error("agent launch failed", "err", err)
		return nil, &schema.LaunchError{Agent: req.Agent, Command: req.Command, Err: err}
	}

	payload, err := promptfile.Write(req.PromptPath, req.PromptTemplate, promptfile.Data{
		Request:     req.Request,
		Agent:       string(req.Agent),
		OutPath:     req.ArtifactPath,
		SavedPhrase: req.SavedPhrase,
	})
	if err != nil {
		return fail(err)
	}
	args, err := BuildArgs(req.Command, payload, req.PromptPath, req.ArtifactPath)
	if err != nil {
		return fail(err)
	}
	binary, err := exec.LookPath(args[0])
	if err != nil {
		return fail(err)
	}
	log.Info(
		"agent launch start",
		"binary", binary,
		"argc", len(args),
		"workdir", req.WorkingDir,
		"prompt_path", req.PromptPath,
		"prompt_len", len(payload),
		"artifact", req.ArtifactPath,
	)

	cmd := exec.Command(binary, args[1:]...)
	cmd.Dir = req.WorkingDir
	cmd.Env = append(os.Environ(), l.cfg.Env...)
	cmd.Env = append(filterEnv(cmd.Env, EnvPRDPath, EnvPromptFile),
		EnvPRDPath+"="+req.ArtifactPath,
		EnvPromptFile+"="+req.PromptPath,
	)

	ptmx, tty, err := pty.Open()
	if err != nil {
		return fail(fmt.Errorf("open pty: %w", err))
	}
	if err := disableEcho(tty); err != nil {
		log.Warn("agent pty echo not disabled", "err", err)
	}
	cols, rows := req.Cols, req.Rows
	if cols <= 0 || rows <= 0 {
		cols, rows = 80, 24
	}
	if err := pty.Setsize(ptmx, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)}); err != nil {
		log.Warn("agent pty resize failed", "err", err)
	}
	cmd.Stdin = tty
	cmd.Stdout = tty
	cmd.Stderr = tty
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true, Setctty: true}

	if err := cmd.Start(); err != nil {
		_ = ptmx.Close()
		_ = tty.Close()
		return fail(err)
	}
	_ = tty.Close()
	log.Info("agent launch started", "pid", cmd.Process.Pid, "cols", cols, "rows", rows)
	return newSession(cmd, ptmx, log, l.cfg.TerminateGrace), nil
}

// BuildArgs tokenizes an interactive command template and substitutes
// placeholders in each token. The payload is appended as the final argument
// when the template references neither {prompt} nor {prompt_file}.
func BuildArgs(command, payload, promptPath, outPath string) ([]string, error) {
	fields, err := shlex.Split(command)
	if err != nil {
		return nil, fmt.Errorf("parse agent command: %w", err)
	}
	if len(fields) == 0 {
		return nil, errors.New("agent command is empty")
	}
	replacer := strings.NewReplacer(
		PlaceholderPromptFile, promptPath,
		PlaceholderPrompt, payload,
		PlaceholderOut, outPath,
	)
	referenced := false
	args := make([]string, 0, len(fields)+1)
	for _, field := range fields {
		if strings.Contains(field, PlaceholderPrompt) || strings.Contains(field, PlaceholderPromptFile) {
			referenced = true
		}
		args = append(args, replacer.Replace(field))
	}
	if !referenced {
		args = append(args, payload)
	}
	return args, nil
}

func filterEnv(env []string, keys ...string) []string {
	out := make([]string, 0, len(env))
	for _, entry := range env {
		drop := false
		for _, key := range keys {
			if strings.HasPrefix(entry, key+"=") {
				drop = true
				break
			}
		}
		if !drop {
			out = append(out, entry)
		}
	}
	return out
}
