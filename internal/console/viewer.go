package console

import (
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/linechat/internal/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	sendBufferSize = 256
)

// Viewer is one WebSocket connection to the operator console.
type Viewer struct {
	conn           *websocket.Conn
	send           chan []byte
	hub            *Hub
	execute        func(Command) Frame
	addr           string
	closed         bool
	maxMessageSize int64
	log            *logger.Logger
}

// NewViewer creates a viewer for conn. execute runs commands received from it.
func NewViewer(conn *websocket.Conn, hub *Hub, addr string, maxMessageSize int64, execute func(Command) Frame) *Viewer {
	if conn != nil && maxMessageSize > 0 {
		conn.SetReadLimit(maxMessageSize)
	}
	return &Viewer{
		conn:           conn,
		send:           make(chan []byte, sendBufferSize),
		hub:            hub,
		execute:        execute,
		addr:           addr,
		maxMessageSize: maxMessageSize,
		log:            hub.log.With("viewer", addr),
	}
}

// queue adds a frame before the viewer is registered. It reports false if the
// buffer is full.
func (v *Viewer) queue(f Frame) bool {
	payload, err := json.Marshal(f)
	if err != nil {
		v.log.ErrorWithErr("encoding frame", err)
		return false
	}
	select {
	case v.send <- payload:
		return true
	default:
		return false
	}
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (v *Viewer) setupReadConnection() {
	if err := v.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		v.log.ErrorWithErr("setting initial read deadline", err)
	}
	v.conn.SetPongHandler(func(string) error {
		if err := v.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			v.log.ErrorWithErr("setting read deadline in pong handler", err)
		}
		return nil
	})
}

// handleReadError logs the read failure at the right level.
func (v *Viewer) handleReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		v.log.WarnWith("message exceeded maximum size", "limit", v.maxMessageSize)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		v.log.DebugWith("viewer disconnected", "reason", err)
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		v.log.DebugWith("viewer connection closed", "reason", err)
	default:
		v.log.WarnWith("websocket read error", "error", err)
	}
}

// processCommand decodes one command, runs it and replies to this viewer only.
func (v *Viewer) processCommand(raw []byte) {
	var cmd Command
	var reply Frame
	if err := json.Unmarshal(raw, &cmd); err != nil {
		v.log.DebugWith("invalid command", "error", err)
		reply = resultFrame("", errors.New("invalid command: "+err.Error()))
	} else {
		reply = v.execute(cmd)
	}

	payload, err := json.Marshal(reply)
	if err != nil {
		v.log.ErrorWithErr("encoding result", err)
		return
	}
	if !v.hub.safeSend(v, payload) {
		v.log.DebugWith("dropping result for departed viewer")
	}
}

func (v *Viewer) readPump() {
	defer func() {
		v.hub.Unregister(v)
		if err := v.conn.Close(); err != nil && !isExpectedCloseError(err) {
			v.log.ErrorWithErr("closing connection in readPump", err)
		}
	}()

	v.setupReadConnection()

	for {
		_, raw, err := v.conn.ReadMessage()
		if err != nil {
			v.handleReadError(err)
			return
		}
		v.processCommand(raw)
	}
}

func (v *Viewer) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		v.closeConnection()
	}()

	for v.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing.
func (v *Viewer) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case message, ok := <-v.send:
		return v.handleMessage(message, ok)
	case <-ticker.C:
		return v.handlePing()
	}
}

func (v *Viewer) closeConnection() {
	if err := v.conn.Close(); err != nil && !isExpectedCloseError(err) {
		v.log.ErrorWithErr("closing connection in writePump", err)
	}
}

// handleMessage writes one frame and returns false if the connection should be closed
func (v *Viewer) handleMessage(message []byte, ok bool) bool {
	if err := v.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		v.log.DebugWith("setting write deadline", "error", err)
		return false
	}

	if !ok {
		return v.writeCloseMessage()
	}

	// One JSON document per WebSocket message.
	if err := v.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		if !isExpectedCloseError(err) {
			v.log.WarnWith("writing frame", "error", err)
		}
		return false
	}
	return true
}

func (v *Viewer) writeCloseMessage() bool {
	if err := v.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
		if !isExpectedCloseError(err) {
			v.log.DebugWith("writing close message", "error", err)
		}
	}
	return false
}

// handlePing sends a ping message to keep the connection alive
func (v *Viewer) handlePing() bool {
	if err := v.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		v.log.DebugWith("setting write deadline for ping", "error", err)
		return false
	}
	if err := v.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		v.log.DebugWith("writing ping", "error", err)
		return false
	}
	return true
}
