package protocol

import (
	"bytes"
	"errors"
	"strings"
)

// ErrLineTooLong is returned by Framer.Append when a line grows past the
// configured maximum before its terminator arrives.
var ErrLineTooLong = errors.New("protocol: line exceeds maximum length")

// Framer accumulates a byte stream and cuts it into newline-terminated lines.
// A Framer is owned by a single reader and is not safe for concurrent use.
type Framer struct {
	buf   []byte
	max   int
	codec *Codec
}

// NewFramer builds a Framer. A nil codec means UTF-8; maxLineLength <= 0
// disables the length limit.
func NewFramer(codec *Codec, maxLineLength int) *Framer {
	if codec == nil {
		codec = UTF8()
	}
	return &Framer{max: maxLineLength, codec: codec}
}

// Append adds p to the buffer and returns every line completed by it, in
// arrival order, decoded and trimmed of surrounding whitespace. The trailing
// fragment is kept for the next call. Lines found before a length violation
// are still returned along with ErrLineTooLong.
func (f *Framer) Append(p []byte) ([]string, error) {
	f.buf = append(f.buf, p...)

	var lines []string
	start := 0
	for {
		i := bytes.IndexByte(f.buf[start:], '\n')
		if i < 0 {
			break
		}
		raw := f.buf[start : start+i]
		if f.max > 0 && lineLength(raw) > f.max {
			f.buf = f.buf[:0]
			return lines, ErrLineTooLong
		}
		lines = append(lines, strings.TrimSpace(f.codec.Decode(raw)))
		start += i + 1
	}

	if start > 0 {
		f.buf = f.buf[:copy(f.buf, f.buf[start:])]
	}

	if f.max > 0 && lineLength(f.buf) > f.max {
		f.buf = f.buf[:0]
		return lines, ErrLineTooLong
	}

	return lines, nil
}

// lineLength is the length of b without a trailing carriage return, so CRLF
// and LF peers get the same limit.
func lineLength(b []byte) int {
	if n := len(b); n > 0 && b[n-1] == '\r' {
		return n - 1
	}
	return len(b)
}

// Buffered reports how many bytes are waiting for a terminator.
func (f *Framer) Buffered() int {
	return len(f.buf)
}
