package lineedit

// Buffer is an editable sequence of runes with a cursor.
// The cursor always satisfies 0 <= cursor <= Len().
type Buffer struct {
	buf    []rune
	cursor int
}

func (b *Buffer) String() string {
	return string(b.buf)
}

// Len returns the number of runes in the buffer.
func (b *Buffer) Len() int {
	return len(b.buf)
}

// Cursor returns the rune index of the cursor.
func (b *Buffer) Cursor() int {
	return b.cursor
}

// Runes returns a copy of the buffer contents.
func (b *Buffer) Runes() []rune {
	return append([]rune(nil), b.buf...)
}

// Clear empties the buffer.
func (b *Buffer) Clear() {
	b.buf = nil
	b.cursor = 0
}

func (b *Buffer) InsertRune(r rune) {
	b.clamp()
	b.buf = append(b.buf, 0)
	copy(b.buf[b.cursor+1:], b.buf[b.cursor:])
	b.buf[b.cursor] = r
	b.cursor++
}

func (b *Buffer) Backspace() {
	if b.cursor <= 0 {
		return
	}
	b.buf = append(b.buf[:b.cursor-1], b.buf[b.cursor:]...)
	b.cursor--
}

// Delete removes the rune under the cursor.
func (b *Buffer) Delete() {
	if b.cursor < 0 || b.cursor >= len(b.buf) {
		return
	}
	b.buf = append(b.buf[:b.cursor], b.buf[b.cursor+1:]...)
}

func (b *Buffer) MoveLeft() {
	if b.cursor > 0 {
		b.cursor--
	}
}

func (b *Buffer) MoveRight() {
	if b.cursor < len(b.buf) {
		b.cursor++
	}
}

func (b *Buffer) MoveStart() {
	b.cursor = 0
}

func (b *Buffer) MoveEnd() {
	b.cursor = len(b.buf)
}

func (b *Buffer) MoveWordLeft() {
	i := b.cursor
	for i > 0 && isSpace(b.buf[i-1]) {
		i--
	}
	for i > 0 && !isSpace(b.buf[i-1]) {
		i--
	}
	b.cursor = i
}

func (b *Buffer) MoveWordRight() {
	i := b.cursor
	for i < len(b.buf) && isSpace(b.buf[i]) {
		i++
	}
	for i < len(b.buf) && !isSpace(b.buf[i]) {
		i++
	}
	b.cursor = i
}

func (b *Buffer) DeleteWordBackward() {
	if b.cursor <= 0 {
		return
	}
	start := b.cursor
	b.MoveWordLeft()
	b.buf = append(b.buf[:b.cursor], b.buf[start:]...)
}

// KillLineStart removes everything left of the cursor.
func (b *Buffer) KillLineStart() {
	if b.cursor <= 0 {
		return
	}
	b.buf = append(b.buf[:0], b.buf[b.cursor:]...)
	b.cursor = 0
}

// KillLineEnd removes everything right of the cursor.
func (b *Buffer) KillLineEnd() {
	if b.cursor >= len(b.buf) {
		return
	}
	b.buf = b.buf[:b.cursor]
}

func (b *Buffer) clamp() {
	if b.cursor < 0 {
		b.cursor = 0
	}
	if b.cursor > len(b.buf) {
		b.cursor = len(b.buf)
	}
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t'
}
