// Package protocol defines the newline-delimited text protocol spoken between
// chat clients and the server: line framing, charset conversion, the /nick
// control command and the server's outgoing line formats.
package protocol

import (
	"strings"
	"unicode"
)

const (
	// Terminator ends every line on the wire.
	Terminator = "\n"

	// NickCommand sets or changes the sender's nickname: "/nick <name>".
	NickCommand = "/nick"

	// BroadcastPrefix marks administrative broadcasts from the operator.
	BroadcastPrefix = "[SERVER-BROADCAST] "

	// ShutdownNotice is sent to every client when the server stops.
	ShutdownNotice = "[SERVER] Server shutting down."
)

// LineKind classifies an incoming line.
type LineKind int

const (
	// LineEmpty is a blank line; it is ignored.
	LineEmpty LineKind = iota
	// LineNick is a /nick command; Text holds the requested name (may be empty).
	LineNick
	// LineChat is a chat message; Text holds the message.
	LineChat
)

func (k LineKind) String() string {
	switch k {
	case LineEmpty:
		return "empty"
	case LineNick:
		return "nick"
	case LineChat:
		return "chat"
	default:
		return "unknown"
	}
}

// Line is a classified protocol line.
type Line struct {
	Kind LineKind
	Text string
}

// Parse classifies a received line. "/nick" must be followed by whitespace or
// end the line to count as the command, so "/nickname" is ordinary chat.
func Parse(line string) Line {
	line = strings.TrimSpace(line)
	if line == "" {
		return Line{Kind: LineEmpty}
	}

	if rest, ok := strings.CutPrefix(line, NickCommand); ok {
		if rest == "" {
			return Line{Kind: LineNick}
		}
		if r := []rune(rest)[0]; unicode.IsSpace(r) {
			return Line{Kind: LineNick, Text: strings.TrimSpace(rest)}
		}
	}

	return Line{Kind: LineChat, Text: line}
}

// FormatChat renders a relayed chat line.
func FormatChat(nickname, text string) string {
	return nickname + ": " + text
}

// FormatBroadcast renders an operator broadcast.
func FormatBroadcast(text string) string {
	return BroadcastPrefix + text
}

// FormatNick renders the command a client sends to choose its nickname.
func FormatNick(nickname string) string {
	return NickCommand + " " + nickname
}
