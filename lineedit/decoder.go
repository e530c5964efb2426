package lineedit

import "unicode/utf8"

// EventKind tags an edit event.
type EventKind int

const (
	EventInsert EventKind = iota
	EventBackspace
	EventDeleteForward
	EventMoveLeft
	EventMoveRight
	EventSubmit
	EventCancel
	EventMoveStart
	EventMoveEnd
	EventMoveWordLeft
	EventMoveWordRight
	EventDeleteWordBackward
	EventKillLineStart
	EventKillLineEnd
	EventEOF
)

// Event is one decoded edit event. Rune is set for EventInsert only.
type Event struct {
	Kind EventKind
	Rune rune
}

type decodeState int

const (
	stateGround decodeState = iota
	stateEscape
	stateCSI
	stateCSIDiscard
	stateSS3
)

const maxCSILen = 16

// Decoder turns raw terminal bytes into edit events. It keeps partial UTF-8
// and escape sequences between calls to Feed, so a key may arrive split
// across reads.
type Decoder struct {
	state     decodeState
	seq       []byte
	pending   []byte
	lastWasCR bool
	anomalies int
}

// Anomalies returns the number of malformed units discarded so far.
func (d *Decoder) Anomalies() int {
	return d.anomalies
}

// Feed decodes p and returns the events completed by it.
func (d *Decoder) Feed(p []byte) []Event {
	var out []Event
	for _, b := range p {
		out = d.feedByte(b, out)
	}
	return out
}

func (d *Decoder) feedByte(b byte, out []Event) []Event {
	switch d.state {
	case stateEscape:
		return d.escape(b, out)
	case stateCSI:
		return d.csi(b, out)
	case stateCSIDiscard:
		if b >= 0x40 && b <= 0x7e {
			d.state = stateGround
		}
		return out
	case stateSS3:
		d.state = stateGround
		return d.ss3(b, out)
	}

	if len(d.pending) > 0 {
		return d.continueRune(b, out)
	}

	if d.lastWasCR {
		d.lastWasCR = false
		if b == '\n' {
			return out
		}
	}

	switch b {
	case 0x1b:
		d.state = stateEscape
		return out
	case '\r':
		d.lastWasCR = true
		return append(out, Event{Kind: EventSubmit})
	case '\n':
		return append(out, Event{Kind: EventSubmit})
	case 0x7f, 0x08:
		return append(out, Event{Kind: EventBackspace})
	case 0x03:
		return append(out, Event{Kind: EventCancel})
	case 0x04:
		return append(out, Event{Kind: EventEOF})
	case 0x01:
		return append(out, Event{Kind: EventMoveStart})
	case 0x05:
		return append(out, Event{Kind: EventMoveEnd})
	case 0x02:
		return append(out, Event{Kind: EventMoveLeft})
	case 0x06:
		return append(out, Event{Kind: EventMoveRight})
	case 0x15:
		return append(out, Event{Kind: EventKillLineStart})
	case 0x0b:
		return append(out, Event{Kind: EventKillLineEnd})
	case 0x17:
		return append(out, Event{Kind: EventDeleteWordBackward})
	case '\t':
		return append(out, Event{Kind: EventInsert, Rune: '\t'})
	}
	if b < 0x20 {
		return out
	}
	if b < utf8.RuneSelf {
		return append(out, Event{Kind: EventInsert, Rune: rune(b)})
	}
	if !utf8.RuneStart(b) || b >= 0xf8 {
		d.anomalies++
		return out
	}
	d.pending = append(d.pending[:0], b)
	return out
}

func (d *Decoder) continueRune(b byte, out []Event) []Event {
	if utf8.RuneStart(b) {
		// The buffered lead byte was never completed.
		d.pending = d.pending[:0]
		d.anomalies++
		return d.feedByte(b, out)
	}
	d.pending = append(d.pending, b)
	if !utf8.FullRune(d.pending) {
		return out
	}
	r, size := utf8.DecodeRune(d.pending)
	d.pending = d.pending[:0]
	if r == utf8.RuneError && size <= 1 {
		d.anomalies++
		return out
	}
	return append(out, Event{Kind: EventInsert, Rune: r})
}

func (d *Decoder) escape(b byte, out []Event) []Event {
	d.state = stateGround
	switch b {
	case '[':
		d.state = stateCSI
		d.seq = d.seq[:0]
	case 'O':
		d.state = stateSS3
	case 'b', 'B':
		out = append(out, Event{Kind: EventMoveWordLeft})
	case 'f', 'F':
		out = append(out, Event{Kind: EventMoveWordRight})
	case 0x7f, 0x08:
		out = append(out, Event{Kind: EventDeleteWordBackward})
	case 0x1b:
		d.state = stateEscape
	default:
		// A lone ESC followed by an ordinary key: keep the key.
		return d.feedByte(b, out)
	}
	return out
}

func (d *Decoder) csi(b byte, out []Event) []Event {
	if b < 0x20 {
		// Control keys interrupt an unfinished sequence.
		d.state = stateGround
		d.seq = d.seq[:0]
		d.anomalies++
		return d.feedByte(b, out)
	}
	d.seq = append(d.seq, b)
	if b < 0x40 || b > 0x7e {
		if len(d.seq) > maxCSILen {
			d.state = stateCSIDiscard
			d.seq = d.seq[:0]
			d.anomalies++
		}
		return out
	}
	d.state = stateGround
	seq := string(d.seq)
	d.seq = d.seq[:0]
	switch seq {
	case "D":
		out = append(out, Event{Kind: EventMoveLeft})
	case "C":
		out = append(out, Event{Kind: EventMoveRight})
	case "3~":
		out = append(out, Event{Kind: EventDeleteForward})
	case "H", "1~", "7~":
		out = append(out, Event{Kind: EventMoveStart})
	case "F", "4~", "8~":
		out = append(out, Event{Kind: EventMoveEnd})
	case "1;5D", "1;3D":
		out = append(out, Event{Kind: EventMoveWordLeft})
	case "1;5C", "1;3C":
		out = append(out, Event{Kind: EventMoveWordRight})
	}
	return out
}

func (d *Decoder) ss3(b byte, out []Event) []Event {
	switch b {
	case 'D':
		out = append(out, Event{Kind: EventMoveLeft})
	case 'C':
		out = append(out, Event{Kind: EventMoveRight})
	case 'H':
		out = append(out, Event{Kind: EventMoveStart})
	case 'F':
		out = append(out, Event{Kind: EventMoveEnd})
	}
	return out
}
