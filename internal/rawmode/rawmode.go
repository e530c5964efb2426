// Package rawmode puts the operator terminal into raw mode for the duration
// of an interactive session and guarantees the original mode comes back.
package rawmode

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/term"
)

// Guard holds the saved terminal state. The zero value and guards for
// non-terminal files are valid and restore nothing.
type Guard struct {
	mu    sync.Mutex
	fd    int
	state *term.State
}

// IsTerminal reports whether f refers to a terminal.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// Acquire switches f to raw mode when it is a terminal. Callers must defer
// Restore on the returned guard.
func Acquire(f *os.File) (*Guard, error) {
	g := &Guard{fd: -1}
	if !IsTerminal(f) {
		return g, nil
	}
	fd := int(f.Fd())
	state, err := term.MakeRaw(fd)
	if err != nil {
		return g, fmt.Errorf("enter raw mode: %w", err)
	}
	g.fd = fd
	g.state = state
	return g, nil
}

// Active reports whether the guard currently holds the terminal in raw mode.
func (g *Guard) Active() bool {
	if g == nil {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state != nil
}

// Restore puts the terminal back into its original mode. It is safe to call
// more than once and from a signal path.
func (g *Guard) Restore() error {
	if g == nil {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == nil {
		return nil
	}
	err := term.Restore(g.fd, g.state)
	g.state = nil
	if err != nil {
		return fmt.Errorf("restore terminal mode: %w", err)
	}
	return nil
}

// Size returns the terminal size of f, or 80x24 when unavailable.
func Size(f *os.File) (cols, rows int) {
	if IsTerminal(f) {
		if w, h, err := term.GetSize(int(f.Fd())); err == nil && w > 0 && h > 0 {
			return w, h
		}
	}
	return 80, 24
}
