package protocol

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

// TestFramerSplitAcrossReads tests that a line split over several reads is
// reassembled.
func TestFramerSplitAcrossReads(t *testing.T) {
	f := NewFramer(nil, 0)

	lines, err := f.Append([]byte("hel"))
	if err != nil {
		t.Fatalf("Append returned error: %v", err)
	}
	if len(lines) != 0 {
		t.Fatalf("Expected no lines from a fragment, got %q", lines)
	}
	if f.Buffered() != 3 {
		t.Errorf("Expected 3 buffered bytes, got %d", f.Buffered())
	}

	lines, err = f.Append([]byte("lo\n"))
	if err != nil {
		t.Fatalf("Append returned error: %v", err)
	}
	if !reflect.DeepEqual(lines, []string{"hello"}) {
		t.Errorf("Expected [hello], got %q", lines)
	}
	if f.Buffered() != 0 {
		t.Errorf("Expected empty buffer, got %d bytes", f.Buffered())
	}
}

// TestFramerAppend tests line extraction from appended chunks.
// It verifies terminators, trimming and the retained trailing fragment.
func TestFramerAppend(t *testing.T) {
	tests := []struct {
		name     string
		chunks   []string
		want     []string
		buffered int
	}{
		{"single line", []string{"hi\n"}, []string{"hi"}, 0},
		{"several lines in one read", []string{"a\nb\nc\n"}, []string{"a", "b", "c"}, 0},
		{"crlf terminator", []string{"Oi\r\n"}, []string{"Oi"}, 0},
		{"surrounding whitespace", []string{"  spaced out \t\n"}, []string{"spaced out"}, 0},
		{"empty lines kept", []string{"\n\r\n  \n"}, []string{"", "", ""}, 0},
		{"trailing fragment kept", []string{"one\ntw"}, []string{"one"}, 2},
		{"byte at a time", []string{"o", "k", "\n"}, []string{"ok"}, 0},
		{"carriage return split from newline", []string{"x\r", "\n"}, []string{"x"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFramer(nil, 0)
			var got []string
			for _, chunk := range tt.chunks {
				lines, err := f.Append([]byte(chunk))
				if err != nil {
					t.Fatalf("Append(%q) returned error: %v", chunk, err)
				}
				got = append(got, lines...)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
			if f.Buffered() != tt.buffered {
				t.Errorf("Expected %d buffered bytes, got %d", tt.buffered, f.Buffered())
			}
		})
	}
}

// TestFramerMultiByteRuneSplitAcrossReads tests that a UTF-8 rune split between reads
// decodes intact.
func TestFramerMultiByteRuneSplitAcrossReads(t *testing.T) {
	f := NewFramer(nil, 0)
	word := []byte("olá\n") // 'á' is two bytes

	if lines, _ := f.Append(word[:3]); len(lines) != 0 {
		t.Fatalf("unexpected lines %q", lines)
	}
	lines, err := f.Append(word[3:])
	if err != nil {
		t.Fatalf("Append returned error: %v", err)
	}
	if !reflect.DeepEqual(lines, []string{"olá"}) {
		t.Errorf("Expected [olá], got %q", lines)
	}
}

// TestFramerReplacesInvalidBytes tests that invalid UTF-8 is replaced rather than rejected.
func TestFramerReplacesInvalidBytes(t *testing.T) {
	f := NewFramer(nil, 0)

	lines, err := f.Append([]byte("bad\xffbyte\n"))
	if err != nil {
		t.Fatalf("Append returned error: %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("Expected one line, got %q", lines)
	}
	if lines[0] != "bad�byte" {
		t.Errorf("Expected replacement character, got %q", lines[0])
	}
}

// TestFramerMaxLineLength tests the maximum line length check.
func TestFramerMaxLineLength(t *testing.T) {
	t.Run("fragment over limit", func(t *testing.T) {
		f := NewFramer(nil, 8)
		if _, err := f.Append([]byte("12345678")); err != nil {
			t.Fatalf("fragment at the limit rejected: %v", err)
		}
		if _, err := f.Append([]byte("9")); !errors.Is(err, ErrLineTooLong) {
			t.Errorf("Expected ErrLineTooLong, got %v", err)
		}
	})

	t.Run("complete line over limit", func(t *testing.T) {
		f := NewFramer(nil, 4)
		lines, err := f.Append([]byte("ok\n" + strings.Repeat("x", 10) + "\n"))
		if !errors.Is(err, ErrLineTooLong) {
			t.Errorf("Expected ErrLineTooLong, got %v", err)
		}
		if !reflect.DeepEqual(lines, []string{"ok"}) {
			t.Errorf("Expected lines before the violation, got %q", lines)
		}
	})

	t.Run("carriage return not counted", func(t *testing.T) {
		for _, input := range []string{"1234\n", "1234\r\n"} {
			f := NewFramer(nil, 4)
			lines, err := f.Append([]byte(input))
			if err != nil {
				t.Errorf("Append(%q) returned error: %v", input, err)
			}
			if !reflect.DeepEqual(lines, []string{"1234"}) {
				t.Errorf("Append(%q) = %q", input, lines)
			}
		}

		f := NewFramer(nil, 4)
		if _, err := f.Append([]byte("1234\r")); err != nil {
			t.Errorf("CR-terminated fragment at the limit rejected: %v", err)
		}
		lines, err := f.Append([]byte("\n"))
		if err != nil || !reflect.DeepEqual(lines, []string{"1234"}) {
			t.Errorf("Expected \"1234\", got %q (%v)", lines, err)
		}
	})

	t.Run("unlimited", func(t *testing.T) {
		f := NewFramer(nil, 0)
		long := strings.Repeat("y", 1<<16)
		lines, err := f.Append([]byte(long + "\n"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(lines) != 1 || lines[0] != long {
			t.Error("long line not produced intact")
		}
	})
}
