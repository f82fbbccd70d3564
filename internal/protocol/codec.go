package protocol

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// DefaultEncoding is the character set used when none is configured.
const DefaultEncoding = "utf-8"

// Codec converts between wire bytes and text in one character set.
// Undecodable input becomes U+FFFD instead of failing; characters the
// charset cannot represent are replaced on the way out.
type Codec struct {
	name string
	enc  encoding.Encoding
}

// NewCodec looks up a charset by its WHATWG name or label ("utf-8",
// "latin1", "windows-1252", "gbk", ...). An empty name selects UTF-8.
func NewCodec(name string) (*Codec, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultEncoding
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("protocol: unknown encoding %q: %w", name, err)
	}

	canonical, err := htmlindex.Name(enc)
	if err != nil {
		canonical = name
	}

	return &Codec{name: canonical, enc: enc}, nil
}

// UTF8 returns the default codec.
func UTF8() *Codec {
	c, err := NewCodec(DefaultEncoding)
	if err != nil {
		panic(err)
	}
	return c
}

// Name returns the canonical charset name.
func (c *Codec) Name() string {
	return c.name
}

// Decode turns raw bytes into text.
func (c *Codec) Decode(b []byte) string {
	out, err := c.enc.NewDecoder().Bytes(b)
	if err != nil {
		return strings.ToValidUTF8(string(b), string(utf8.RuneError))
	}
	return string(out)
}

// Encode turns text into wire bytes.
func (c *Codec) Encode(s string) []byte {
	out, err := encoding.ReplaceUnsupported(c.enc.NewEncoder()).Bytes([]byte(s))
	if err != nil {
		return []byte(strings.ToValidUTF8(s, string(utf8.RuneError)))
	}
	return out
}
