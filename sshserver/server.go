// Package sshserver lets remote operators run PRD interviews over SSH. Each
// session gets the same raw-terminal interview a local `ralph prd` runs.
package sshserver

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"

	gliderssh "github.com/gliderlabs/ssh"
	"golang.org/x/crypto/ssh"

	"pkt.systems/pslog"
)

// WindowSize is a terminal size in cells.
type WindowSize struct {
	Cols int
	Rows int
}

// Terminal is the operator side of one SSH session.
type Terminal struct {
	// SessionID identifies the SSH session; it is unique per connection.
	SessionID string
	User      string
	// Args are the words of the remote command, e.g. `ssh host qwen`.
	Args    []string
	Term    string
	Input   io.Reader
	Output  io.Writer
	Size    WindowSize
	Resizes <-chan WindowSize
}

// SessionHandler runs one interview and returns the exit status reported to
// the SSH client.
type SessionHandler func(ctx context.Context, term Terminal) int

// Server serves interviews over SSH with public-key authentication.
type Server struct {
	Addr               string
	HostKeyPath        string
	AuthorizedKeysPath string
	Listener           net.Listener
	Handler            SessionHandler
	logger             pslog.Logger
}

// New builds a server from cfg.
func New(cfg Config, handler SessionHandler) *Server {
	return &Server{
		Addr:               cfg.Addr,
		HostKeyPath:        cfg.HostKeyPath,
		AuthorizedKeysPath: cfg.AuthorizedKeysPath,
		Handler:            handler,
	}
}

// ListenAndServe starts the SSH server and shuts down on context cancellation.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.logger == nil {
		s.logger = pslog.Ctx(ctx)
	}
	if s.Handler == nil {
		return errors.New("ssh session handler is required")
	}

	hostKey, err := LoadHostKey(s.HostKeyPath)
	if err != nil {
		return err
	}
	s.logger.Info("ssh host key ready", "path", hostKey.Path, "fingerprint", hostKey.Fingerprint, "created", hostKey.Created)
	keys, err := LoadAuthorizedKeys(s.AuthorizedKeysPath)
	if err != nil {
		return err
	}
	s.logger.Info("ssh authorized keys loaded", "path", s.AuthorizedKeysPath, "keys", keys.Len())

	server := &gliderssh.Server{
		Addr:    s.Addr,
		Handler: func(sess gliderssh.Session) { s.handleSession(ctx, sess) },
		PublicKeyHandler: func(gctx gliderssh.Context, key gliderssh.PublicKey) bool {
			return s.handlePublicKey(gctx, keys, key)
		},
	}
	server.AddHostKey(hostKey.Signer)

	errCh := make(chan error, 1)
	go func() {
		if s.Listener != nil {
			s.logger.Info("ssh server listening", "addr", s.Listener.Addr().String(), "fingerprint", hostKey.Fingerprint)
			errCh <- server.Serve(s.Listener)
			return
		}
		s.logger.Info("ssh server listening", "addr", s.Addr, "fingerprint", hostKey.Fingerprint)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		_ = server.Close()
		return nil
	case err := <-errCh:
		if errors.Is(err, gliderssh.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handlePublicKey(ctx gliderssh.Context, keys *AuthorizedKeys, key gliderssh.PublicKey) bool {
	log := s.logger.With("user", ctx.User(), "remote", remoteAddr(ctx), "fingerprint", ssh.FingerprintSHA256(key))
	if !keys.Allows(key) {
		log.Warn("ssh pubkey rejected", "reason", "no matching key")
		return false
	}
	log.Info("ssh pubkey accepted")
	return true
}

func remoteAddr(ctx gliderssh.Context) string {
	if ctx == nil || ctx.RemoteAddr() == nil {
		return ""
	}
	return ctx.RemoteAddr().String()
}

func (s *Server) handleSession(parent context.Context, sess gliderssh.Session) {
	log := s.logger.With("user", sess.User(), "remote", sess.RemoteAddr().String())
	id := sess.Context().SessionID()
	if id != "" {
		log = log.With("ssh_session", id)
	}

	pty, winCh, ok := sess.Pty()
	if !ok {
		log.Info("ssh session rejected", "reason", "pty required")
		_, _ = io.WriteString(sess.Stderr(), "ralph needs a terminal; connect with ssh -t\n")
		_ = sess.Exit(1)
		return
	}

	ctx, cancel := context.WithCancel(pslog.ContextWithLogger(sess.Context(), log))
	defer cancel()
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	resizes := make(chan WindowSize, 1)
	go func() {
		defer close(resizes)
		for {
			select {
			case <-ctx.Done():
				return
			case win, ok := <-winCh:
				if !ok {
					return
				}
				select {
				case resizes <- WindowSize{Cols: win.Width, Rows: win.Height}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	log.Info("ssh session opened", "term", pty.Term, "command", strings.Join(sess.Command(), " "))
	code := s.Handler(ctx, Terminal{
		SessionID: id,
		User:      sess.User(),
		Args:      sess.Command(),
		Term:      pty.Term,
		Input:     sess,
		Output:    sess,
		Size:      WindowSize{Cols: pty.Window.Width, Rows: pty.Window.Height},
		Resizes:   resizes,
	})
	log.Info("ssh session closed", "exit_code", code)
	_ = sess.Exit(code)
}
