package server

import (
	"fmt"
	"time"

	"github.com/Tyrowin/linechat/internal/queue"
)

// EventKind identifies what an Event reports.
type EventKind int

const (
	// EventLog carries an operator-facing log line in Text.
	EventLog EventKind = iota
	// EventClientAdded announces a client or a new label for it (roster upsert).
	EventClientAdded
	// EventClientRemoved announces that ClientID left the registry.
	EventClientRemoved
)

func (k EventKind) String() string {
	switch k {
	case EventLog:
		return "log"
	case EventClientAdded:
		return "client_added"
	case EventClientRemoved:
		return "client_removed"
	default:
		return "unknown"
	}
}

// Event is one entry of the ordered stream consumed by the presentation layer.
type Event struct {
	Kind     EventKind `json:"-"`
	Time     time.Time `json:"time"`
	Text     string    `json:"text,omitempty"`
	ClientID string    `json:"client_id,omitempty"`
	Label    string    `json:"label,omitempty"`
}

// EventSink delivers events in publish order to a single consumer.
// Publishing never blocks; the backlog is unbounded.
// All methods are safe on a nil *EventSink: publishing is dropped and the
// channels are already closed.
type EventSink struct {
	q *queue.Queue[Event]
}

// NewEventSink creates a sink and starts its delivery goroutine.
func NewEventSink() *EventSink {
	return &EventSink{q: queue.New[Event]()}
}

// Publish enqueues e, stamping it with the current time if unset.
func (s *EventSink) Publish(e Event) {
	if s == nil {
		return
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	s.q.Push(e)
}

// Logf publishes a log line.
func (s *EventSink) Logf(format string, args ...any) {
	if s == nil {
		return
	}
	s.Publish(Event{Kind: EventLog, Text: fmt.Sprintf(format, args...)})
}

// ClientAdded publishes a roster upsert.
func (s *EventSink) ClientAdded(id, label string) {
	s.Publish(Event{Kind: EventClientAdded, ClientID: id, Label: label})
}

// ClientRemoved publishes a roster removal.
func (s *EventSink) ClientRemoved(id string) {
	s.Publish(Event{Kind: EventClientRemoved, ClientID: id})
}

// Events returns the delivery channel. It is closed after Close once the
// backlog has been consumed.
func (s *EventSink) Events() <-chan Event {
	if s == nil {
		return closedEvents
	}
	return s.q.Out()
}

// Close stops accepting events.
func (s *EventSink) Close() {
	if s == nil {
		return
	}
	s.q.Close()
}

// Done is closed once every event has been delivered after Close.
func (s *EventSink) Done() <-chan struct{} {
	if s == nil {
		return closedDone
	}
	return s.q.Done()
}

var (
	closedEvents = func() chan Event { ch := make(chan Event); close(ch); return ch }()
	closedDone   = func() chan struct{} { ch := make(chan struct{}); close(ch); return ch }()
)
