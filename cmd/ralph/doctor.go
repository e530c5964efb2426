package main

import (
	"fmt"
	"io"
	"os/exec"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/ralph/internal/agent"
	"pkt.systems/ralph/internal/appconfig"
)

func newDoctorCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that configured agents can be started",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			logger.Info("doctor start", "config", cfg.Source.ConfigFile, "config_loaded", cfg.Source.ConfigLoaded)
			return runDoctor(cmd.OutOrStdout(), logger, cfg)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	return cmd
}

type agentCheck struct {
	Name    string
	Origin  string
	Command string
	Binary  string
	Err     error
}

func checkAgents(cfg appconfig.Config) []agentCheck {
	names := cfg.AgentNames()
	checks := make([]agentCheck, 0, len(names))
	for _, name := range names {
		resolved, err := cfg.ResolveAgent(name)
		check := agentCheck{Name: name, Origin: resolved.Origin, Command: resolved.Command, Err: err}
		if err == nil {
			var args []string
			args, check.Err = agent.BuildArgs(resolved.Command, "doctor", "prompt.txt", "prd.json")
			if check.Err == nil {
				check.Binary, check.Err = exec.LookPath(args[0])
			}
		}
		checks = append(checks, check)
	}
	return checks
}

func runDoctor(w io.Writer, logger pslog.Logger, cfg appconfig.Config) error {
	source := "defaults"
	if cfg.Source.ConfigLoaded {
		source = cfg.Source.ConfigFile
	}
	_, _ = fmt.Fprintf(w, "config: %s\n", source)
	if cfg.Source.AgentsFileLoaded {
		_, _ = fmt.Fprintf(w, "agents file: %s\n", cfg.Source.AgentsFile)
	}
	_, _ = fmt.Fprintf(w, "default agent: %s\n", cfg.PRD.DefaultAgent)

	var defaultErr error
	for _, check := range checkAgents(cfg) {
		if check.Err != nil {
			_, _ = fmt.Fprintf(w, "  missing  %-10s %s (%s): %v\n", check.Name, check.Command, check.Origin, check.Err)
			logger.Warn("doctor agent unavailable", "agent", check.Name, "origin", check.Origin, "err", check.Err)
			if check.Name == cfg.PRD.DefaultAgent {
				defaultErr = fmt.Errorf("default agent %s is not runnable: %w", check.Name, check.Err)
			}
			continue
		}
		_, _ = fmt.Fprintf(w, "  ok       %-10s %s (%s)\n", check.Name, check.Binary, check.Origin)
		logger.Debug("doctor agent ok", "agent", check.Name, "binary", check.Binary)
	}
	if defaultErr != nil {
		return defaultErr
	}
	logger.Info("doctor complete")
	return nil
}
