package server

import (
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Tyrowin/linechat/internal/config"
	"github.com/Tyrowin/linechat/internal/logger"
	"github.com/Tyrowin/linechat/internal/protocol"
	"github.com/Tyrowin/linechat/internal/testhelpers"
)

// eventRecorder drains an EventSink into memory.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func recordEvents(t *testing.T, sink *EventSink) *eventRecorder {
	t.Helper()

	rec := &eventRecorder{}
	go func() {
		for e := range sink.Events() {
			rec.mu.Lock()
			rec.events = append(rec.events, e)
			rec.mu.Unlock()
		}
	}()
	t.Cleanup(sink.Close)
	return rec
}

func (r *eventRecorder) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *eventRecorder) count(kind EventKind, clientID string) int {
	n := 0
	for _, e := range r.snapshot() {
		if e.Kind == kind && (clientID == "" || e.ClientID == clientID) {
			n++
		}
	}
	return n
}

func (r *eventRecorder) hasLog(substr string) bool {
	for _, e := range r.snapshot() {
		if e.Kind == EventLog && strings.Contains(e.Text, substr) {
			return true
		}
	}
	return false
}

func (r *eventRecorder) waitForLog(t *testing.T, substr string) {
	t.Helper()
	testhelpers.Eventually(t, testhelpers.DefaultTimeout, func() bool { return r.hasLog(substr) },
		"log event containing %q", substr)
}

func testServerConfig() config.ServerConfig {
	cfg := config.Default().Server
	cfg.Host = "127.0.0.1"
	cfg.WriteTimeout = time.Second
	cfg.ShutdownTimeout = 2 * time.Second
	cfg.RateLimit.Burst = 0
	return cfg
}

// startTestServer starts a server on an ephemeral loopback port.
func startTestServer(t *testing.T, mutate func(*config.ServerConfig)) (*Server, *eventRecorder, string) {
	t.Helper()

	cfg := testServerConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	sink := NewEventSink()
	rec := recordEvents(t, sink)

	srv, err := New(cfg, sink, logger.Discard())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if err := srv.Start(0); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	t.Cleanup(srv.Stop)

	return srv, rec, srv.Addr().String()
}

func waitForClients(t *testing.T, srv *Server, n int) {
	t.Helper()
	testhelpers.Eventually(t, testhelpers.DefaultTimeout, func() bool { return srv.Registry().Len() == n },
		"registry size %d (have %d)", n, srv.Registry().Len())
}

// pipeSession returns a session over one end of a net.Pipe and the peer end.
func pipeSession(t *testing.T, writeTimeout time.Duration) (*Session, *testhelpers.LineConn) {
	t.Helper()

	serverSide, clientSide := net.Pipe()
	cfg := testServerConfig()
	cfg.WriteTimeout = writeTimeout

	sess := newSession(serverSide, protocol.UTF8(), cfg)
	t.Cleanup(func() {
		_ = sess.Close()
		_ = clientSide.Close()
	})
	return sess, testhelpers.NewLineConn(clientSide)
}
