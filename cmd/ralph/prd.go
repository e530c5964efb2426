package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/ralph/interview"
	"pkt.systems/ralph/internal/appconfig"
	"pkt.systems/ralph/internal/rawmode"
)

func newPRDCmd() *cobra.Command {
	var cfgPath string
	var agentName string
	var outPath string
	cmd := &cobra.Command{
		Use:   "prd",
		Short: "Interview an agent until it saves a PRD",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := pslog.Ctx(ctx)

			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			logger.Debug("update check", "skip_update_check", cfg.SkipUpdateCheck)

			in := cmd.InOrStdin()
			out := cmd.OutOrStdout()
			cols, rows := 80, 24
			if f, ok := out.(*os.File); ok {
				cols, rows = rawmode.Size(f)
			}

			p, err := prepareInterview(ctx, cfg, interviewTarget{
				Agent:   agentName,
				OutPath: outPath,
				Input:   in,
				Output:  out,
				Cols:    cols,
				Rows:    rows,
			})
			if err != nil {
				return err
			}

			res, err := runLocal(ctx, p.Orchestrator, in, out)
			return reportOutcome(cmd.ErrOrStderr(), "\n", res, err)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVarP(&agentName, "agent", "a", "", "agent to interview (default prd.default_agent)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "PRD output path (default <prd.out_dir>/prd-<timestamp>.json)")
	return cmd
}

// runLocal runs the interview on the process terminal, holding raw mode for
// the whole session and forwarding window size changes.
func runLocal(ctx context.Context, orch *interview.Orchestrator, in io.Reader, out io.Writer) (interview.Result, error) {
	var guard *rawmode.Guard
	if f, ok := in.(*os.File); ok {
		g, err := rawmode.Acquire(f)
		if err != nil {
			return interview.Result{}, err
		}
		guard = g
		pslog.Ctx(ctx).Debug("operator terminal", "raw_mode", guard.Active())
	}
	defer func() {
		if err := guard.Restore(); err != nil {
			pslog.Ctx(ctx).Warn("terminal restore failed", "err", err)
		}
	}()

	if f, ok := out.(*os.File); ok && rawmode.IsTerminal(f) {
		stop := forwardWinch(ctx, f, orch)
		defer stop()
	}
	return orch.Run(ctx)
}

func forwardWinch(ctx context.Context, f *os.File, orch *interview.Orchestrator) func() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGWINCH)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-sigCh:
				cols, rows := rawmode.Size(f)
				pslog.Ctx(ctx).Trace("terminal resized", "cols", cols, "rows", rows)
				orch.Resize(cols, rows)
			}
		}
	}()
	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}
