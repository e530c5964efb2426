package agent

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"

	"pkt.systems/pslog"
)

// ExitStatus reports how an agent process ended.
type ExitStatus struct {
	Code   int
	Signal string
}

// Session is a running agent bound to the primary side of a PTY.
type Session struct {
	cmd     *exec.Cmd
	ptmx    *os.File
	log     pslog.Logger
	grace   time.Duration
	started time.Time

	done     chan struct{}
	status   ExitStatus
	waitErr  error
	closeMu  sync.Mutex
	closed   bool
	termOnce sync.Once
}

func newSession(cmd *exec.Cmd, ptmx *os.File, log pslog.Logger, grace time.Duration) *Session {
	s := &Session{
		cmd:     cmd,
		ptmx:    ptmx,
		log:     log,
		grace:   grace,
		started: time.Now(),
		done:    make(chan struct{}),
	}
	go s.wait()
	return s
}

func (s *Session) wait() {
	err := s.cmd.Wait()
	status := ExitStatus{Code: -1}
	if state := s.cmd.ProcessState; state != nil {
		status.Code = state.ExitCode()
		if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			status.Signal = ws.Signal().String()
		}
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		err = nil
	}
	s.status = status
	s.waitErr = err
	s.log.Info(
		"agent exited",
		"pid", s.Pid(),
		"exit_code", status.Code,
		"signal", status.Signal,
		"duration_ms", time.Since(s.started).Milliseconds(),
	)
	close(s.done)
}

// Pid returns the agent process id.
func (s *Session) Pid() int {
	if s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}

// Output returns the agent's combined output stream.
func (s *Session) Output() io.Reader {
	return s
}

// Read reads agent output from the PTY. Once the child side is gone the
// kernel reports EIO which is surfaced as io.EOF.
func (s *Session) Read(p []byte) (int, error) {
	n, err := s.ptmx.Read(p)
	if err != nil && (errors.Is(err, syscall.EIO) || errors.Is(err, os.ErrClosed)) {
		err = io.EOF
	}
	return n, err
}

// Write forwards operator input to the agent.
func (s *Session) Write(p []byte) (int, error) {
	return s.ptmx.Write(p)
}

// Resize updates the PTY window size.
func (s *Session) Resize(cols, rows int) error {
	if cols <= 0 || rows <= 0 {
		return nil
	}
	return pty.Setsize(s.ptmx, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)})
}

// Done is closed once the agent process has exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the agent exits or ctx ends.
func (s *Session) Wait(ctx context.Context) (ExitStatus, error) {
	select {
	case <-ctx.Done():
		return ExitStatus{}, ctx.Err()
	case <-s.done:
		return s.status, s.waitErr
	}
}

// Terminate hangs up the agent's process group and escalates to SIGKILL if
// it has not exited after the grace period.
func (s *Session) Terminate() {
	s.termOnce.Do(func() {
		pid := s.Pid()
		if pid <= 0 {
			return
		}
		select {
		case <-s.done:
			return
		default:
		}
		s.log.Info("agent terminate", "pid", pid, "grace_ms", s.grace.Milliseconds())
		_ = unix.Kill(-pid, unix.SIGHUP)
		_ = unix.Kill(-pid, unix.SIGTERM)
		timer := time.NewTimer(s.grace)
		defer timer.Stop()
		select {
		case <-s.done:
		case <-timer.C:
			s.log.Warn("agent did not exit, killing", "pid", pid)
			_ = unix.Kill(-pid, unix.SIGKILL)
			<-s.done
		}
	})
}

// Close releases the PTY. It does not stop the process.
func (s *Session) Close() error {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.ptmx.Close()
}
