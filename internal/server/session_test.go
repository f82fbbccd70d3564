package server

import (
	"errors"
	"io"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Tyrowin/linechat/internal/protocol"
	"github.com/Tyrowin/linechat/internal/testhelpers"
)

// TestNewSession tests session creation.
// It verifies the identity, default nickname and initial state.
func TestNewSession(t *testing.T) {
	sess, _ := pipeSession(t, time.Second)

	if sess.ID() == "" {
		t.Error("Expected a session identity")
	}
	if sess.Nickname() != sess.Addr() {
		t.Errorf("Expected default nickname %q, got %q", sess.Addr(), sess.Nickname())
	}
	if sess.State() != StateConnected {
		t.Errorf("Expected state connected, got %s", sess.State())
	}

	other, _ := pipeSession(t, time.Second)
	if other.ID() == sess.ID() {
		t.Error("Two sessions share an identity")
	}
}

// TestSessionSend tests that Send writes one newline-terminated line.
func TestSessionSend(t *testing.T) {
	sess, peer := pipeSession(t, time.Second)

	errCh := make(chan error, 1)
	go func() { errCh <- sess.Send("Ana: Oi") }()

	peer.ExpectLine(t, "Ana: Oi")
	if err := <-errCh; err != nil {
		t.Errorf("Send returned error: %v", err)
	}
}

// TestSessionConcurrentSendsDoNotInterleave tests that concurrent sends arrive as
// whole lines.
func TestSessionConcurrentSendsDoNotInterleave(t *testing.T) {
	sess, peer := pipeSession(t, time.Second)

	const senders = 10
	line := strings.Repeat("z", 300)

	var wg sync.WaitGroup
	wg.Add(senders)
	for i := 0; i < senders; i++ {
		go func() {
			defer wg.Done()
			if err := sess.Send(line); err != nil {
				t.Errorf("Send returned error: %v", err)
			}
		}()
	}

	for i := 0; i < senders; i++ {
		peer.ExpectLine(t, line)
	}
	wg.Wait()
}

// TestSessionCloseIsIdempotent tests that Close can be called more than once.
func TestSessionCloseIsIdempotent(t *testing.T) {
	sess, _ := pipeSession(t, time.Second)

	if err := sess.Close(); err != nil {
		t.Errorf("first Close returned error: %v", err)
	}
	if err := sess.Close(); err != nil {
		t.Errorf("second Close returned error: %v", err)
	}
	if sess.State() != StateClosed {
		t.Errorf("Expected state closed, got %s", sess.State())
	}
	if err := sess.Send("late"); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Expected ErrSessionClosed, got %v", err)
	}
}

// TestSessionSendToClosedPeer tests that Send fails once the peer has gone away.
func TestSessionSendToClosedPeer(t *testing.T) {
	sess, peer := pipeSession(t, time.Second)
	_ = peer.Close()

	if err := sess.Send("anyone?"); err == nil {
		t.Error("Expected send to a closed peer to fail")
	}
}

// TestSessionSendTimesOutOnStalledPeer tests that Send gives up after the write timeout
// when the peer never reads.
func TestSessionSendTimesOutOnStalledPeer(t *testing.T) {
	sess, _ := pipeSession(t, 30*time.Millisecond)

	start := time.Now()
	err := sess.Send("nobody reads this")
	if err == nil {
		t.Fatal("Expected a timeout error")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Send blocked for %s despite the write deadline", elapsed)
	}
}

// TestSessionRunDeliversLinesInOrder tests that Run hands decoded lines to the handler in
// arrival order.
func TestSessionRunDeliversLinesInOrder(t *testing.T) {
	sess, peer := pipeSession(t, time.Second)

	var got []string
	done := make(chan error, 1)
	go func() {
		done <- sess.run(func(_ *Session, line string) { got = append(got, line) })
	}()

	for _, chunk := range []string{"hel", "lo\n", "/nick Ana\r\n", "\n", "a\nb\n"} {
		if _, err := io.WriteString(peer, chunk); err != nil {
			t.Fatalf("write %q: %v", chunk, err)
		}
	}
	_ = peer.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run returned error on clean close: %v", err)
		}
	case <-time.After(testhelpers.DefaultTimeout):
		t.Fatal("run did not return after the peer closed")
	}

	want := []string{"hello", "/nick Ana", "", "a", "b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

// TestSessionRunStopsOnOverlongLine tests that Run ends with an error when a line exceeds
// the configured maximum.
func TestSessionRunStopsOnOverlongLine(t *testing.T) {
	sess, peer := pipeSession(t, time.Second)
	sess.framer = protocol.NewFramer(protocol.UTF8(), 8)

	done := make(chan error, 1)
	go func() { done <- sess.run(func(*Session, string) {}) }()

	go func() { _, _ = io.WriteString(peer, strings.Repeat("x", 32)) }()

	select {
	case err := <-done:
		if !errors.Is(err, protocol.ErrLineTooLong) {
			t.Errorf("Expected ErrLineTooLong, got %v", err)
		}
	case <-time.After(testhelpers.DefaultTimeout):
		t.Fatal("run did not stop on an overlong line")
	}
}

// TestSessionRunEndsWhenClosedLocally tests that closing the session unblocks Run.
func TestSessionRunEndsWhenClosedLocally(t *testing.T) {
	sess, _ := pipeSession(t, time.Second)

	done := make(chan error, 1)
	go func() { done <- sess.run(func(*Session, string) {}) }()

	time.Sleep(10 * time.Millisecond)
	_ = sess.Close()

	select {
	case err := <-done:
		if !isExpectedCloseError(err) {
			t.Errorf("Expected a close error, got %v", err)
		}
	case <-time.After(testhelpers.DefaultTimeout):
		t.Fatal("run did not end after Close")
	}
}
