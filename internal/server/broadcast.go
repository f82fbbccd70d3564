package server

import (
	"github.com/Tyrowin/linechat/internal/logger"
)

// Broadcaster fans a line out to every registered session and evicts the
// sessions whose send fails.
type Broadcaster struct {
	registry *Registry
	events   *EventSink
	log      *logger.Logger
}

// NewBroadcaster creates a Broadcaster over registry.
func NewBroadcaster(registry *Registry, events *EventSink, log *logger.Logger) *Broadcaster {
	if log == nil {
		log = logger.Get()
	}
	return &Broadcaster{registry: registry, events: events, log: log}
}

type failedSend struct {
	session *Session
	err     error
}

// Broadcast sends message to every session except the one whose ID equals
// exclude (empty means nobody is excluded) and returns how many sends
// succeeded. Failed sessions are closed and removed after the pass.
func (b *Broadcaster) Broadcast(message, exclude string) int {
	sessions := b.registry.Snapshot()

	b.log.DebugWith("broadcasting message", "targets", b.calculateTargetCount(sessions, exclude))

	delivered, failed := b.broadcastToSessions(sessions, message, exclude)
	b.removeFailedSessions(failed)
	return delivered
}

// calculateTargetCount determines how many sessions will receive the broadcast
func (b *Broadcaster) calculateTargetCount(sessions []*Session, exclude string) int {
	targetCount := len(sessions)
	if exclude == "" {
		return targetCount
	}
	for _, s := range sessions {
		if s.ID() == exclude {
			targetCount--
			break
		}
	}
	return targetCount
}

// broadcastToSessions sends sequentially in snapshot order and collects failures.
func (b *Broadcaster) broadcastToSessions(sessions []*Session, message, exclude string) (int, []failedSend) {
	var (
		delivered int
		failed    []failedSend
	)

	for _, s := range sessions {
		if exclude != "" && s.ID() == exclude {
			continue
		}
		if err := s.Send(message); err != nil {
			failed = append(failed, failedSend{session: s, err: err})
			continue
		}
		delivered++
	}

	return delivered, failed
}

// removeFailedSessions closes and unregisters sessions that could not be reached.
func (b *Broadcaster) removeFailedSessions(failed []failedSend) {
	for _, f := range failed {
		s := f.session
		if err := s.Close(); err != nil {
			b.log.ErrorWithErr("closing evicted session", err, "client_id", s.ID())
		}
		if _, removed := b.registry.Remove(s.ID()); !removed {
			continue
		}
		if !isExpectedCloseError(f.err) {
			b.log.DebugWith("send failed", "client_id", s.ID(), "addr", s.Addr(), "error", f.err)
		}
		b.events.Logf("client %s removed after failed send (%s)", s.Nickname(), s.Addr())
		b.events.ClientRemoved(s.ID())
	}
}
