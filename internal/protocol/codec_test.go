package protocol

import (
	"bytes"
	"testing"
)

// TestNewCodec tests codec lookup by encoding name.
func TestNewCodec(t *testing.T) {
	tests := []struct {
		name      string
		wantName  string
		wantError bool
	}{
		{"", "utf-8", false},
		{"utf-8", "utf-8", false},
		{"UTF8", "utf-8", false},
		{"latin1", "windows-1252", false},
		{"windows-1252", "windows-1252", false},
		{"no-such-charset", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewCodec(tt.name)
			if tt.wantError {
				if err == nil {
					t.Errorf("Expected error for %q", tt.name)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewCodec(%q) returned error: %v", tt.name, err)
			}
			if c.Name() != tt.wantName {
				t.Errorf("Expected canonical name %q, got %q", tt.wantName, c.Name())
			}
		})
	}
}

// TestCodecUTF8 tests decoding and encoding with the UTF-8 codec.
func TestCodecUTF8(t *testing.T) {
	c := UTF8()

	if got := c.Decode([]byte("Olá, mundo")); got != "Olá, mundo" {
		t.Errorf("Decode = %q", got)
	}
	if got := c.Decode([]byte{'h', 'i', 0xff}); got != "hi�" {
		t.Errorf("Expected replacement for invalid byte, got %q", got)
	}
	if got := c.Encode("Olá"); !bytes.Equal(got, []byte("Olá")) {
		t.Errorf("Encode = %v", got)
	}
}

// TestCodecLatin1 tests decoding and encoding with the Latin-1 codec.
func TestCodecLatin1(t *testing.T) {
	c, err := NewCodec("latin1")
	if err != nil {
		t.Fatalf("NewCodec returned error: %v", err)
	}

	if got := c.Decode([]byte{'c', 'a', 'f', 0xe9}); got != "café" {
		t.Errorf("Decode = %q", got)
	}
	if got := c.Encode("café"); !bytes.Equal(got, []byte{'c', 'a', 'f', 0xe9}) {
		t.Errorf("Encode = %v", got)
	}
	if got := c.Encode("世"); len(got) != 1 {
		t.Errorf("Expected a single replacement byte for an unmappable rune, got %v", got)
	}
}

// TestFramerWithLatin1Codec tests framing of Latin-1 input.
func TestFramerWithLatin1Codec(t *testing.T) {
	c, err := NewCodec("latin1")
	if err != nil {
		t.Fatalf("NewCodec returned error: %v", err)
	}

	f := NewFramer(c, 0)
	lines, err := f.Append([]byte{'a', 'l', 0xf4, '\n'})
	if err != nil {
		t.Fatalf("Append returned error: %v", err)
	}
	if len(lines) != 1 || lines[0] != "alô" {
		t.Errorf("Expected [alô], got %q", lines)
	}
}
