package lineedit

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/mattn/go-runewidth"

	"pkt.systems/pslog"
	"pkt.systems/ralph/schema"
)

// Editor reads single lines from a raw terminal stream. Input is read by one
// background goroutine; ReadLine blocks until a line is submitted, the
// session is cancelled, or ctx is done. Events decoded after a submitted
// line are kept for the next call.
type Editor struct {
	in  io.Reader
	out io.Writer

	start  sync.Once
	chunks chan []byte
	errMu  sync.Mutex
	err    error

	dec    Decoder
	queue  []Event
	buf    Buffer
	prompt string
}

// NewEditor returns an editor reading raw bytes from in and rendering to out.
func NewEditor(in io.Reader, out io.Writer) *Editor {
	return &Editor{in: in, out: out, chunks: make(chan []byte, 16)}
}

// ReadLine renders prompt and edits a line until it is submitted.
// It returns schema.ErrEmptyInput for a blank submission,
// schema.ErrInterviewCancelled on interrupt, and io.EOF when the input
// closes with nothing typed.
func (e *Editor) ReadLine(ctx context.Context, prompt string) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	e.start.Do(func() { go e.pump() })
	e.buf.Clear()
	e.prompt = prompt
	e.render()
	anomalies := e.dec.Anomalies()
	defer func() {
		if n := e.dec.Anomalies() - anomalies; n > 0 {
			pslog.Ctx(ctx).Debug("line editor discarded malformed input", "count", n)
		}
	}()

	for {
		for len(e.queue) > 0 {
			ev := e.queue[0]
			e.queue = e.queue[1:]
			if line, done, err := e.apply(ev); done {
				return line, err
			}
		}
		select {
		case <-ctx.Done():
			e.newline()
			return "", ctx.Err()
		case chunk, ok := <-e.chunks:
			if !ok {
				if e.buf.Len() > 0 {
					return e.submit()
				}
				e.newline()
				return "", e.readErr()
			}
			e.queue = append(e.queue, e.dec.Feed(chunk)...)
		}
	}
}

// WaitInterrupt consumes operator input while no line is being edited and
// returns schema.ErrInterviewCancelled once an interrupt is typed. Other
// keystrokes stay queued for the next ReadLine. It must not run
// concurrently with ReadLine.
func (e *Editor) WaitInterrupt(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	e.start.Do(func() { go e.pump() })
	for {
		for i, ev := range e.queue {
			if ev.Kind == EventCancel {
				e.queue = e.queue[i+1:]
				e.write("^C\r\n")
				return schema.ErrInterviewCancelled
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk, ok := <-e.chunks:
			if !ok {
				return e.readErr()
			}
			e.queue = append(e.queue, e.dec.Feed(chunk)...)
		}
	}
}

func (e *Editor) apply(ev Event) (string, bool, error) {
	switch ev.Kind {
	case EventSubmit:
		line, err := e.submit()
		return line, true, err
	case EventCancel:
		e.write("^C\r\n")
		return "", true, schema.ErrInterviewCancelled
	case EventEOF:
		if e.buf.Len() == 0 {
			e.newline()
			return "", true, schema.ErrInterviewCancelled
		}
		e.buf.Delete()
	case EventInsert:
		e.buf.InsertRune(ev.Rune)
	case EventBackspace:
		e.buf.Backspace()
	case EventDeleteForward:
		e.buf.Delete()
	case EventMoveLeft:
		e.buf.MoveLeft()
	case EventMoveRight:
		e.buf.MoveRight()
	case EventMoveStart:
		e.buf.MoveStart()
	case EventMoveEnd:
		e.buf.MoveEnd()
	case EventMoveWordLeft:
		e.buf.MoveWordLeft()
	case EventMoveWordRight:
		e.buf.MoveWordRight()
	case EventDeleteWordBackward:
		e.buf.DeleteWordBackward()
	case EventKillLineStart:
		e.buf.KillLineStart()
	case EventKillLineEnd:
		e.buf.KillLineEnd()
	default:
		return "", false, nil
	}
	e.render()
	return "", false, nil
}

func (e *Editor) submit() (string, error) {
	line := strings.TrimSpace(e.buf.String())
	e.buf.Clear()
	e.newline()
	if line == "" {
		return "", schema.ErrEmptyInput
	}
	return line, nil
}

// render redraws prompt and buffer on the current row and places the
// terminal cursor over the buffer cursor.
func (e *Editor) render() {
	runes := e.buf.Runes()
	cursor := e.buf.Cursor()
	var b strings.Builder
	b.WriteString("\r")
	b.WriteString(e.prompt)
	b.WriteString(displayText(runes))
	b.WriteString("\x1b[K")
	if back := runewidth.StringWidth(displayText(runes[cursor:])); back > 0 {
		fmt.Fprintf(&b, "\x1b[%dD", back)
	}
	e.write(b.String())
}

func (e *Editor) newline() {
	e.write("\r\n")
}

func (e *Editor) write(s string) {
	if e.out == nil {
		return
	}
	_, _ = io.WriteString(e.out, s)
}

func (e *Editor) pump() {
	defer close(e.chunks)
	buf := make([]byte, 1024)
	for {
		n, err := e.in.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			e.chunks <- chunk
		}
		if err != nil {
			e.errMu.Lock()
			e.err = err
			e.errMu.Unlock()
			return
		}
	}
}

func (e *Editor) readErr() error {
	e.errMu.Lock()
	defer e.errMu.Unlock()
	if e.err == nil {
		return io.EOF
	}
	return e.err
}

func displayText(runes []rune) string {
	var b strings.Builder
	for _, r := range runes {
		if r == '\t' {
			r = ' '
		}
		b.WriteRune(r)
	}
	return b.String()
}
