package console

import (
	"strings"
	"time"

	"github.com/Tyrowin/linechat/internal/server"
)

// Frame types sent to viewers.
const (
	FrameLog           = "log"
	FrameClientAdded   = "client_added"
	FrameClientRemoved = "client_removed"
	FrameRoster        = "roster"
	FrameResult        = "result"
)

// Command actions accepted from viewers and the HTTP API.
const (
	ActionStart     = "start"
	ActionStop      = "stop"
	ActionBroadcast = "broadcast"
	ActionRoster    = "roster"
)

// Command is an operator request, e.g. {"action":"start","port":9009}.
// A missing port means the configured chat port.
type Command struct {
	Action string `json:"action"`
	Port   *int   `json:"port,omitempty"`
	Text   string `json:"text,omitempty"`
}

// Frame is one JSON message pushed to a viewer.
type Frame struct {
	Type      string              `json:"type"`
	Time      time.Time           `json:"time"`
	Text      string              `json:"text,omitempty"`
	ClientID  string              `json:"client_id,omitempty"`
	Label     string              `json:"label,omitempty"`
	State     string              `json:"state,omitempty"`
	Clients   []server.ClientInfo `json:"clients,omitempty"`
	Action    string              `json:"action,omitempty"`
	OK        bool                `json:"ok,omitempty"`
	Error     string              `json:"error,omitempty"`
	Delivered int                 `json:"delivered,omitempty"`
}

func eventFrame(e server.Event) Frame {
	return Frame{
		Type:     e.Kind.String(),
		Time:     e.Time,
		Text:     e.Text,
		ClientID: e.ClientID,
		Label:    e.Label,
	}
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
