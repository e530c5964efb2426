package lineedit

import "testing"

func TestBufferInsertOnlyConcatenates(t *testing.T) {
	tests := []string{"", "a", "hello world", "вот мой текст", "日本語テキスト", "emoji 🙂 ok", "mixed ünïcödé"}
	for _, want := range tests {
		var b Buffer
		for _, r := range want {
			b.InsertRune(r)
		}
		if got := b.String(); got != want {
			t.Fatalf("insert-only buffer = %q, want %q", got, want)
		}
		if b.Cursor() != b.Len() {
			t.Fatalf("cursor = %d, want %d", b.Cursor(), b.Len())
		}
	}
}

func TestBufferMoveLeftRightInverse(t *testing.T) {
	text := "ab Ж日c"
	n := len([]rune(text))
	for pos := 1; pos < n; pos++ {
		var b Buffer
		for _, r := range text {
			b.InsertRune(r)
		}
		for b.Cursor() > pos {
			b.MoveLeft()
		}
		before, cursor := b.String(), b.Cursor()
		b.MoveLeft()
		b.MoveRight()
		if b.String() != before || b.Cursor() != cursor {
			t.Fatalf("pos %d: MoveLeft+MoveRight changed state to %q@%d", pos, b.String(), b.Cursor())
		}
	}
}

func TestBufferEdgeNoOps(t *testing.T) {
	var b Buffer
	b.Backspace()
	b.Delete()
	b.MoveLeft()
	b.MoveRight()
	if b.Len() != 0 || b.Cursor() != 0 {
		t.Fatalf("expected empty buffer at 0, got %q@%d", b.String(), b.Cursor())
	}

	b.InsertRune('x')
	b.Delete()
	b.MoveRight()
	if b.String() != "x" || b.Cursor() != 1 {
		t.Fatalf("expected x@1, got %q@%d", b.String(), b.Cursor())
	}
	b.MoveStart()
	b.Backspace()
	b.MoveLeft()
	if b.String() != "x" || b.Cursor() != 0 {
		t.Fatalf("expected x@0, got %q@%d", b.String(), b.Cursor())
	}
}

func TestBufferMidStringEdit(t *testing.T) {
	var b Buffer
	for _, r := range "вот мои текст!" {
		b.InsertRune(r)
	}
	b.Backspace()
	for i := 0; i < 7; i++ {
		b.MoveLeft()
	}
	b.Delete()
	b.InsertRune('й')
	if got := b.String(); got != "вот мой текст" {
		t.Fatalf("edited buffer = %q", got)
	}
	if b.Cursor() != 7 {
		t.Fatalf("cursor = %d, want 7", b.Cursor())
	}
}

func TestBufferKillAndWordOps(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		cursor int
		op     func(*Buffer)
		want   string
		wantAt int
	}{
		{name: "kill-start", text: "hello world", cursor: 6, op: (*Buffer).KillLineStart, want: "world", wantAt: 0},
		{name: "kill-end", text: "hello world", cursor: 5, op: (*Buffer).KillLineEnd, want: "hello", wantAt: 5},
		{name: "delete-word", text: "hello big world", cursor: 10, op: (*Buffer).DeleteWordBackward, want: "hello world", wantAt: 6},
		{name: "word-left", text: "hello world", cursor: 11, op: (*Buffer).MoveWordLeft, want: "hello world", wantAt: 6},
		{name: "word-right", text: "hello world", cursor: 0, op: (*Buffer).MoveWordRight, want: "hello world", wantAt: 5},
	}
	for _, tc := range tests {
		var b Buffer
		for _, r := range tc.text {
			b.InsertRune(r)
		}
		for b.Cursor() > tc.cursor {
			b.MoveLeft()
		}
		tc.op(&b)
		if b.String() != tc.want || b.Cursor() != tc.wantAt {
			t.Fatalf("%s: got %q@%d, want %q@%d", tc.name, b.String(), b.Cursor(), tc.want, tc.wantAt)
		}
	}
}
