package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/ralph/internal/agent"
	"pkt.systems/ralph/internal/promptfile"
)

var (
	errMockNoSave      = errors.New("agent-mock: interview ended without saving")
	errMockInputClosed = errors.New("agent-mock: input closed before the interview finished")
)

var mockQuestions = []string{
	"Who is the primary user?",
	"What is the deadline?",
	"Which systems does this touch?",
	"How will we know it works?",
	"What is explicitly out of scope?",
}

type mockAgentConfig struct {
	scenario  string
	questions int
	out       string
	delay     time.Duration
}

func newAgentMockCmd() *cobra.Command {
	cfg := mockAgentConfig{}
	cmd := &cobra.Command{
		Use:    "agent-mock [--scenario success|no-save|silent] [--questions n] [--out path] [prompt]",
		Short:  "Scripted interviewing agent for tests and demos",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgentMock(cfg, strings.Join(args, " "), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().SetInterspersed(false)
	cmd.Flags().StringVar(&cfg.scenario, "scenario", "success", "success, no-save or silent")
	cmd.Flags().IntVar(&cfg.questions, "questions", 2, "number of questions to ask")
	cmd.Flags().StringVar(&cfg.out, "out", "", "artifact path (default $PRD_PATH)")
	cmd.Flags().DurationVar(&cfg.delay, "delay", 0, "pause before each question")
	return cmd
}

func runAgentMock(cfg mockAgentConfig, payload string, stdin io.Reader, stdout io.Writer) error {
	if strings.TrimSpace(payload) == "" {
		if path := os.Getenv(agent.EnvPromptFile); path != "" {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("agent-mock: read prompt: %w", err)
			}
			payload = string(data)
		}
	}
	request, ok := promptfile.Request(payload)
	if !ok {
		request = strings.TrimSpace(payload)
	}
	out := cfg.out
	if out == "" {
		out = os.Getenv(agent.EnvPRDPath)
	}

	_, _ = fmt.Fprintln(stdout, "Mock agent ready.")
	if cfg.scenario == "silent" {
		_, _ = fmt.Fprintf(stdout, "Thinking about %q and wandering off.\n", firstLine(request))
		return nil
	}

	answers, err := askMockQuestions(cfg, stdin, stdout)
	if err != nil {
		return err
	}

	switch cfg.scenario {
	case "success":
		if out == "" {
			return errors.New("agent-mock: no artifact path; set --out or PRD_PATH")
		}
		if err := writeMockPRD(out, request, answers); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(stdout, "%s %s. Close this chat and run `ralph build`.\n", promptfile.DefaultSavedPhrase, out)
		return nil
	case "no-save":
		_, _ = fmt.Fprintln(stdout, "Interview ended unexpectedly without saving.")
		return errMockNoSave
	default:
		return fmt.Errorf("agent-mock: unknown scenario %q", cfg.scenario)
	}
}

func askMockQuestions(cfg mockAgentConfig, stdin io.Reader, stdout io.Writer) ([]string, error) {
	reader := bufio.NewReader(stdin)
	answers := make([]string, 0, cfg.questions)
	for i := 0; i < cfg.questions; i++ {
		if cfg.delay > 0 {
			time.Sleep(cfg.delay)
		}
		_, _ = fmt.Fprintf(stdout, "Question %d: %s\n", i+1, mockQuestions[i%len(mockQuestions)])
		line, err := reader.ReadString('\n')
		if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
			return answers, errMockInputClosed
		}
		answers = append(answers, strings.TrimRight(line, "\r\n"))
	}
	return answers, nil
}

type mockPRD struct {
	Version int      `json:"version"`
	Project string   `json:"project"`
	Request string   `json:"request"`
	Answers []string `json:"answers"`
	Stories []string `json:"stories"`
}

func writeMockPRD(path, request string, answers []string) error {
	data, err := json.MarshalIndent(mockPRD{
		Version: 1,
		Project: "mock-prd",
		Request: request,
		Answers: answers,
		Stories: []string{},
	}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("agent-mock: create artifact dir: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
