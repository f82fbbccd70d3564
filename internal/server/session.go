package server

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Tyrowin/linechat/internal/config"
	"github.com/Tyrowin/linechat/internal/protocol"
)

const readBufferSize = 4096

// SessionState tracks where a session is in its lifecycle.
type SessionState int32

const (
	StateConnected SessionState = iota
	StateRegistered
	StateClosing
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateRegistered:
		return "registered"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ClientInfo is a read-only view of a session for rosters.
type ClientInfo struct {
	ID          string    `json:"id"`
	Nickname    string    `json:"nickname"`
	Addr        string    `json:"addr"`
	ConnectedAt time.Time `json:"connected_at"`
}

// Session is the server side of one accepted connection.
//
// The receive loop owns the framer. Send may be called from any goroutine;
// writes are serialized and bounded by the write timeout.
type Session struct {
	id          string
	conn        net.Conn
	addr        string
	connectedAt time.Time

	codec        *protocol.Codec
	framer       *protocol.Framer
	writeTimeout time.Duration
	limiter      *rateLimiter

	mu       sync.RWMutex
	nickname string

	writeMu   sync.Mutex
	state     atomic.Int32
	closeOnce sync.Once
}

func newSession(conn net.Conn, codec *protocol.Codec, cfg config.ServerConfig) *Session {
	addr := ""
	if ra := conn.RemoteAddr(); ra != nil {
		addr = ra.String()
	}
	return &Session{
		id:           uuid.NewString(),
		conn:         conn,
		addr:         addr,
		connectedAt:  time.Now(),
		codec:        codec,
		framer:       protocol.NewFramer(codec, cfg.MaxLineLength),
		writeTimeout: cfg.WriteTimeout,
		limiter:      newRateLimiter(cfg.RateLimit),
		nickname:     addr,
	}
}

// ID returns the session identity.
func (s *Session) ID() string { return s.id }

// Addr returns the peer address as "<ip>:<port>".
func (s *Session) Addr() string { return s.addr }

// Nickname returns the current display name.
func (s *Session) Nickname() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nickname
}

func (s *Session) setNickname(nickname string) {
	s.mu.Lock()
	s.nickname = nickname
	s.mu.Unlock()
}

// State returns the lifecycle state.
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

func (s *Session) setState(from, to SessionState) bool {
	return s.state.CompareAndSwap(int32(from), int32(to))
}

// Info returns a snapshot suitable for rosters.
func (s *Session) Info() ClientInfo {
	return ClientInfo{
		ID:          s.id,
		Nickname:    s.Nickname(),
		Addr:        s.addr,
		ConnectedAt: s.connectedAt,
	}
}

// Send writes line plus the terminator to the connection.
func (s *Session) Send(line string) error {
	if s.State() == StateClosed {
		return ErrSessionClosed
	}

	payload := s.codec.Encode(line + protocol.Terminator)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.writeTimeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
			return fmt.Errorf("set write deadline for %s: %w", s.addr, err)
		}
	}
	if _, err := s.conn.Write(payload); err != nil {
		return fmt.Errorf("send to %s: %w", s.addr, err)
	}
	return nil
}

// Close closes the connection. Only the first call can return an error.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosed))
		if cerr := s.conn.Close(); cerr != nil && !isExpectedCloseError(cerr) {
			err = cerr
		}
	})
	return err
}

// run reads until the peer closes or the connection fails, handing every
// complete line to handle in arrival order. A clean EOF returns nil.
func (s *Session) run(handle func(*Session, string)) error {
	buf := make([]byte, readBufferSize)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			lines, ferr := s.framer.Append(buf[:n])
			for _, line := range lines {
				handle(s, line)
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
