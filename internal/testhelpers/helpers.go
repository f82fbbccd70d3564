// Package testhelpers provides common utilities shared by the package tests:
// line-oriented TCP peers, polling assertions and WebSocket/HTTP helpers for
// the operator console.
package testhelpers

import (
	"bufio"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultTimeout bounds every blocking helper.
const DefaultTimeout = 2 * time.Second

// LineConn wraps a connection with newline-oriented read and write helpers.
type LineConn struct {
	net.Conn
	r *bufio.Reader
}

// NewLineConn wraps c.
func NewLineConn(c net.Conn) *LineConn {
	return &LineConn{Conn: c, r: bufio.NewReader(c)}
}

// DialLine connects to addr over TCP and closes the connection when the test ends.
func DialLine(t *testing.T, addr string) *LineConn {
	t.Helper()

	conn, err := net.DialTimeout("tcp", addr, DefaultTimeout)
	if err != nil {
		t.Fatalf("Failed to connect to %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return NewLineConn(conn)
}

// WriteLine sends line followed by a newline.
func (c *LineConn) WriteLine(t *testing.T, line string) {
	t.Helper()

	if err := c.SetWriteDeadline(time.Now().Add(DefaultTimeout)); err != nil {
		t.Fatalf("Failed to set write deadline: %v", err)
	}
	if _, err := io.WriteString(c, line+"\n"); err != nil {
		t.Fatalf("Failed to write %q: %v", line, err)
	}
}

// ReadLine reads one line without its terminator.
func (c *LineConn) ReadLine(timeout time.Duration) (string, error) {
	if err := c.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return "", err
	}
	line, err := c.r.ReadString('\n')
	if err != nil {
		return line, err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// ExpectLine fails the test unless the next line equals want.
func (c *LineConn) ExpectLine(t *testing.T, want string) {
	t.Helper()

	got, err := c.ReadLine(DefaultTimeout)
	if err != nil {
		t.Fatalf("Expected line %q, got error: %v", want, err)
	}
	if got != want {
		t.Fatalf("Expected line %q, got %q", want, got)
	}
}

// ExpectNoLine fails the test if a line arrives within wait.
func (c *LineConn) ExpectNoLine(t *testing.T, wait time.Duration) {
	t.Helper()

	line, err := c.ReadLine(wait)
	if err == nil {
		t.Fatalf("Expected no line, got %q", line)
	}
	var netErr net.Error
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		t.Fatalf("Expected read timeout, got %v", err)
	}
}

// ExpectClosed reads until the peer closes the connection and returns the
// lines received before that.
func (c *LineConn) ExpectClosed(t *testing.T) []string {
	t.Helper()

	var lines []string
	deadline := time.Now().Add(DefaultTimeout)
	for time.Now().Before(deadline) {
		line, err := c.ReadLine(time.Until(deadline))
		if err == nil {
			lines = append(lines, line)
			continue
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			break
		}
		return lines
	}
	t.Fatalf("Connection was not closed by the peer; received %q", lines)
	return nil
}

// Eventually polls cond until it holds or timeout expires.
func Eventually(t *testing.T, timeout time.Duration, cond func() bool, format string, args ...any) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		if cond() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("Condition not met within %s: "+format, append([]any{timeout}, args...)...)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// AssertStatusCode checks if the HTTP response has the expected status code.
// It fails the test with a descriptive error message if the status codes don't match.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d", expected, resp.StatusCode)
	}
}

// AssertContentType checks if the HTTP response has the expected Content-Type header.
func AssertContentType(t *testing.T, resp *http.Response, expected string) {
	t.Helper()
	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, expected) {
		t.Errorf("Expected content type %s, got %s", expected, contentType)
	}
}

// ConnectWebSocket creates a WebSocket connection to the specified URL with
// the given Origin header. It returns the connection or an error if
// connection fails.
func ConnectWebSocket(url, origin string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// ReadJSON reads one JSON frame from conn into v within DefaultTimeout.
func ReadJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(DefaultTimeout)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	if err := conn.ReadJSON(v); err != nil {
		t.Fatalf("Failed to read JSON frame: %v", err)
	}
}

// CloseWebSocket gracefully closes a WebSocket connection.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}
