package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/ralph/internal/appconfig"
	"pkt.systems/ralph/schema"
	"pkt.systems/ralph/sshserver"
)

func newServeCmd() *cobra.Command {
	var cfgPath string
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve PRD interviews over SSH",
		Long: "Serve PRD interviews over SSH. Operators listed in ssh.authorized_keys connect with\n" +
			"`ssh -t -p <port> host [agent]` and are interviewed exactly like `ralph prd`.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.SSH.Addr = addr
			}
			wd, err := os.Getwd()
			if err != nil {
				return err
			}
			srv := sshserver.New(sshserver.Config{
				Addr:               cfg.SSH.Addr,
				HostKeyPath:        resolvePath(wd, cfg.SSH.HostKeyPath),
				AuthorizedKeysPath: resolvePath(wd, cfg.SSH.AuthorizedKeys),
			}, remoteInterview(cfg, wd))
			pslog.Ctx(ctx).Info("serve start", "addr", cfg.SSH.Addr, "default_agent", cfg.PRD.DefaultAgent)
			return srv.ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default ssh.addr)")
	return cmd
}

// remoteInterview runs one interview per SSH session. The first word of the
// remote command selects the agent.
func remoteInterview(cfg appconfig.Config, workDir string) sshserver.SessionHandler {
	return func(ctx context.Context, term sshserver.Terminal) int {
		agentName := ""
		if len(term.Args) > 0 {
			agentName = term.Args[0]
		}
		p, err := prepareInterview(ctx, cfg, interviewTarget{
			Agent:      agentName,
			WorkDir:    workDir,
			OutPath:    filepath.Join(cfg.PRD.OutDir, remoteOutName(term.User)),
			PromptPath: remotePromptPath(cfg.StateDir, term.SessionID),
			Input:      term.Input,
			Output:     term.Output,
			Cols:       term.Size.Cols,
			Rows:       term.Size.Rows,
		})
		if err != nil {
			_, _ = fmt.Fprintf(term.Output, "%v\r\n", err)
			pslog.Ctx(ctx).Warn("remote interview setup failed", "err", err)
			return schema.ExitFailure
		}
		go func() {
			for size := range term.Resizes {
				p.Orchestrator.Resize(size.Cols, size.Rows)
			}
		}()
		res, err := p.Orchestrator.Run(ctx)
		err = reportOutcome(term.Output, "\r\n", res, err)
		if err != nil && !schema.IsReported(err) {
			_, _ = fmt.Fprintf(term.Output, "%v\r\n", err)
			pslog.Ctx(ctx).Warn("remote interview failed", "err", err)
		}
		return schema.ExitCode(err)
	}
}
