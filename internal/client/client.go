// Package client is the connecting side of the line chat protocol: it dials a
// server, announces a nickname, sends lines and delivers every received line
// as an Event.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Tyrowin/linechat/internal/logger"
	"github.com/Tyrowin/linechat/internal/protocol"
	"github.com/Tyrowin/linechat/internal/queue"
)

// ErrNotConnected is returned by Send once the connection is gone.
var ErrNotConnected = errors.New("client: not connected")

const (
	defaultDialTimeout  = 5 * time.Second
	defaultWriteTimeout = 10 * time.Second
	readBufferSize      = 4096
)

// EventKind identifies what an Event reports.
type EventKind int

const (
	// EventLine carries one line received from the server.
	EventLine EventKind = iota
	// EventConnectionLost is the last event when the server closed the
	// connection or a read failed. A local Disconnect does not produce it.
	EventConnectionLost
)

func (k EventKind) String() string {
	switch k {
	case EventLine:
		return "line"
	case EventConnectionLost:
		return "connection_lost"
	default:
		return "unknown"
	}
}

// Event is delivered on Events in arrival order.
type Event struct {
	Kind EventKind
	Line string
	Err  error
}

// Options tunes Dial. The zero value is usable.
type Options struct {
	Encoding      string
	DialTimeout   time.Duration
	WriteTimeout  time.Duration
	MaxLineLength int
	Logger        *logger.Logger
}

// Client is one connection to a chat server.
type Client struct {
	conn         net.Conn
	codec        *protocol.Codec
	framer       *protocol.Framer
	writeTimeout time.Duration
	events       *queue.Queue[Event]
	log          *logger.Logger

	writeMu   sync.Mutex
	running   atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
}

// Dial connects to addr and, when nickname is not blank, sends the /nick
// command before anything else.
func Dial(ctx context.Context, addr, nickname string, opts Options) (*Client, error) {
	codec, err := protocol.NewCodec(opts.Encoding)
	if err != nil {
		return nil, fmt.Errorf("client.Dial: %w", err)
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = defaultDialTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	log := opts.Logger
	if log == nil {
		log = logger.Get()
	}

	d := net.Dialer{Timeout: opts.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}

	c := &Client{
		conn:         conn,
		codec:        codec,
		framer:       protocol.NewFramer(codec, opts.MaxLineLength),
		writeTimeout: opts.WriteTimeout,
		events:       queue.New[Event](),
		log:          log.With("component", "client", "server", addr),
		done:         make(chan struct{}),
	}
	c.running.Store(true)

	if nickname = strings.TrimSpace(nickname); nickname != "" {
		if err := c.write(protocol.FormatNick(nickname)); err != nil {
			_ = conn.Close()
			c.events.Close()
			return nil, fmt.Errorf("send nickname: %w", err)
		}
	}

	go c.receiveLoop()
	c.log.DebugWith("connected", "local", conn.LocalAddr().String())
	return c, nil
}

// Events returns the event channel. It is closed when the receive loop ends.
func (c *Client) Events() <-chan Event {
	return c.events.Out()
}

// Done is closed once the receive loop has exited.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Connected reports whether the client still considers itself connected.
func (c *Client) Connected() bool {
	return c.running.Load()
}

// LocalAddr returns the local end of the connection, which is the server's
// default nickname for this client.
func (c *Client) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// Send writes text as one line. Surrounding whitespace is trimmed and blank
// input is ignored.
func (c *Client) Send(text string) error {
	if !c.running.Load() {
		return ErrNotConnected
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if err := c.write(text); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// SetNickname asks the server to rename this client.
func (c *Client) SetNickname(nickname string) error {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return nil
	}
	return c.Send(protocol.FormatNick(nickname))
}

// Disconnect closes the connection. It is safe to call more than once.
func (c *Client) Disconnect() error {
	c.running.Store(false)
	return c.close()
}

func (c *Client) close() error {
	var err error
	c.closeOnce.Do(func() {
		if cerr := c.conn.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = cerr
		}
	})
	return err
}

func (c *Client) write(line string) error {
	payload := c.codec.Encode(line + protocol.Terminator)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	_, err := c.conn.Write(payload)
	return err
}

func (c *Client) receiveLoop() {
	defer close(c.done)
	defer c.events.Close()

	err := c.readLines()

	// Only report the loss when nobody asked us to disconnect.
	if c.running.CompareAndSwap(true, false) {
		c.log.DebugWith("connection lost", "error", err)
		c.events.Push(Event{Kind: EventConnectionLost, Err: err})
	}
	_ = c.close()
}

// readLines returns nil when the server closed the connection cleanly.
func (c *Client) readLines() error {
	buf := make([]byte, readBufferSize)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			lines, ferr := c.framer.Append(buf[:n])
			for _, line := range lines {
				if line == "" {
					continue
				}
				c.events.Push(Event{Kind: EventLine, Line: line})
			}
			if ferr != nil {
				return ferr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}
