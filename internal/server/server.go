package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Tyrowin/linechat/internal/config"
	"github.com/Tyrowin/linechat/internal/logger"
	"github.com/Tyrowin/linechat/internal/protocol"
)

// State is the acceptor state.
type State int32

const (
	StateStopped State = iota
	StateListening
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateListening:
		return "listening"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

// Server accepts chat connections and relays their lines to every client.
type Server struct {
	cfg         config.ServerConfig
	codec       *protocol.Codec
	log         *logger.Logger
	events      *EventSink
	registry    *Registry
	broadcaster *Broadcaster

	mu       sync.Mutex
	state    State
	listener net.Listener
	wg       sync.WaitGroup

	listen func(ctx context.Context, network, address string) (net.Listener, error)
}

// New creates a stopped server. Events are published to sink, which may be nil.
func New(cfg config.ServerConfig, sink *EventSink, log *logger.Logger) (*Server, error) {
	codec, err := protocol.NewCodec(cfg.Encoding)
	if err != nil {
		return nil, fmt.Errorf("server.New: %w", err)
	}
	if log == nil {
		log = logger.Get()
	}
	log = log.With("component", "chat")

	registry := NewRegistry()
	lc := net.ListenConfig{Control: reuseAddrControl}
	return &Server{
		cfg:         cfg,
		codec:       codec,
		log:         log,
		events:      sink,
		registry:    registry,
		broadcaster: NewBroadcaster(registry, sink, log),
		listen:      lc.Listen,
	}, nil
}

// Start binds cfg.Host:port and begins accepting connections. Port 0 picks a
// free port; see Addr. A bind failure is returned as *BindError and leaves
// the server stopped.
func (s *Server) Start(port int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateStopped {
		return ErrAlreadyRunning
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(port))
	ln, err := s.listen(context.Background(), "tcp", addr)
	if err != nil {
		bindErr := &BindError{Addr: addr, Err: err}
		s.events.Logf("failed to start server: %v", err)
		return bindErr
	}

	s.listener = ln
	s.state = StateListening

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop(ln)
	}()

	s.events.Logf("server started on %s", ln.Addr())
	s.log.InfoWith("listening", "addr", ln.Addr().String(), "encoding", s.codec.Name())
	return nil
}

// Stop closes the listener, tells every client the server is going away,
// closes all sessions and waits for their goroutines. It is a no-op unless
// the server is listening.
func (s *Server) Stop() {
	s.mu.Lock()
	if s.state != StateListening {
		s.mu.Unlock()
		return
	}
	s.state = StateStopping
	ln := s.listener
	s.mu.Unlock()

	if err := ln.Close(); err != nil && !isExpectedCloseError(err) {
		s.log.ErrorWithErr("closing listener", err)
	}

	s.broadcaster.Broadcast(protocol.ShutdownNotice, "")
	s.shutdownSessions()
	s.waitForGoroutines(s.cfg.ShutdownTimeout)

	s.mu.Lock()
	s.state = StateStopped
	s.listener = nil
	s.mu.Unlock()

	s.events.Logf("server stopped")
}

// Broadcast sends an operator message to every client and returns how many
// received it. Blank text is ignored.
func (s *Server) Broadcast(text string) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	n := s.broadcaster.Broadcast(protocol.FormatBroadcast(text), "")
	s.events.Logf("broadcast sent: %s", text)
	return n
}

// State returns the acceptor state.
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Addr returns the bound address, or nil when not listening.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Roster lists the connected clients.
func (s *Server) Roster() []ClientInfo {
	return s.registry.Roster()
}

// Registry exposes the client registry.
func (s *Server) Registry() *Registry {
	return s.registry
}

func (s *Server) listening() bool {
	return s.State() == StateListening
}

func (s *Server) acceptLoop(ln net.Listener) {
	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || !s.listening() {
				return
			}
			backoff = nextBackoff(backoff)
			s.events.Logf("accept error: %v", err)
			s.log.WarnWith("accept failed, retrying", "error", err, "backoff", backoff)
			time.Sleep(backoff)
			continue
		}
		backoff = 0
		s.handleConn(conn)
	}
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return minAcceptBackoff
	}
	d *= 2
	if d > maxAcceptBackoff {
		d = maxAcceptBackoff
	}
	return d
}

func (s *Server) handleConn(conn net.Conn) {
	sess := newSession(conn, s.codec, s.cfg)

	// Registration happens under s.mu so Stop either sees the session in its
	// snapshot or the session is never registered.
	s.mu.Lock()
	if s.state != StateListening {
		s.mu.Unlock()
		_ = sess.Close()
		return
	}
	s.registry.Add(sess)
	s.wg.Add(1)
	s.mu.Unlock()

	s.events.Logf("connection accepted from %s", sess.Addr())
	s.events.ClientAdded(sess.ID(), sess.Nickname())
	s.log.DebugWith("session registered", "client_id", sess.ID(), "addr", sess.Addr())

	go func() {
		defer s.wg.Done()
		s.serveSession(sess)
	}()
}

func (s *Server) serveSession(sess *Session) {
	err := sess.run(s.handleLine)
	sess.setState(StateRegistered, StateClosing)

	switch {
	case err == nil, isExpectedCloseError(err):
	case errors.Is(err, protocol.ErrLineTooLong):
		s.events.Logf("client %s exceeded the maximum line length of %d bytes", sess.Nickname(), s.cfg.MaxLineLength)
	default:
		s.events.Logf("error on client %s: %v", sess.Addr(), err)
	}

	s.events.Logf("client %s disconnected (%s)", sess.Nickname(), sess.Addr())
	if cerr := sess.Close(); cerr != nil {
		s.log.ErrorWithErr("closing session", cerr, "client_id", sess.ID())
	}
	if _, removed := s.registry.Remove(sess.ID()); removed {
		s.events.ClientRemoved(sess.ID())
	}
}

func (s *Server) handleLine(sess *Session, raw string) {
	line := protocol.Parse(raw)
	switch line.Kind {
	case protocol.LineEmpty:
		return

	case protocol.LineNick:
		if line.Text == "" {
			return
		}
		old := sess.Nickname()
		if !s.registry.Rename(sess.ID(), line.Text) {
			return
		}
		s.events.Logf("%s is now %s", old, line.Text)
		s.events.ClientAdded(sess.ID(), line.Text)

	case protocol.LineChat:
		nickname := sess.Nickname()
		if !sess.limiter.allow() {
			s.events.Logf("rate limit exceeded for %s; message dropped", nickname)
			return
		}
		s.events.Logf("received from %s: %s", nickname, line.Text)
		s.broadcaster.Broadcast(protocol.FormatChat(nickname, line.Text), "")
	}
}

func (s *Server) shutdownSessions() {
	sessions := s.registry.Snapshot()
	for _, sess := range sessions {
		if err := sess.Close(); err != nil {
			s.log.ErrorWithErr("closing session", err, "client_id", sess.ID())
		}
		if _, removed := s.registry.Remove(sess.ID()); removed {
			s.events.ClientRemoved(sess.ID())
		}
	}
	s.log.InfoWith("closed client connections", "count", len(sessions))
}

func (s *Server) waitForGoroutines(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	if timeout <= 0 {
		<-done
		return
	}

	select {
	case <-done:
	case <-time.After(timeout):
		s.log.WarnWith("shutdown timeout reached, some goroutines may still be running", "timeout", timeout)
	}
}
