package server

import (
	"testing"
	"time"
)

// TestEventSinkPreservesOrder tests that events are delivered in publish order.
func TestEventSinkPreservesOrder(t *testing.T) {
	sink := NewEventSink()

	sink.Logf("server started on %s", "127.0.0.1:9009")
	sink.ClientAdded("id-1", "127.0.0.1:5000")
	sink.ClientAdded("id-1", "Ana")
	sink.ClientRemoved("id-1")
	sink.Close()

	var got []Event
	for e := range sink.Events() {
		got = append(got, e)
	}

	want := []struct {
		kind  EventKind
		label string
	}{
		{EventLog, ""},
		{EventClientAdded, "127.0.0.1:5000"},
		{EventClientAdded, "Ana"},
		{EventClientRemoved, ""},
	}
	if len(got) != len(want) {
		t.Fatalf("Expected %d events, got %d", len(want), len(got))
	}
	for i, w := range want {
		if got[i].Kind != w.kind {
			t.Errorf("event %d kind = %s, want %s", i, got[i].Kind, w.kind)
		}
		if got[i].Label != w.label {
			t.Errorf("event %d label = %q, want %q", i, got[i].Label, w.label)
		}
		if got[i].Time.IsZero() {
			t.Errorf("event %d has no timestamp", i)
		}
	}
	if got[0].Text != "server started on 127.0.0.1:9009" {
		t.Errorf("unexpected log text %q", got[0].Text)
	}

	select {
	case <-sink.Done():
	case <-time.After(time.Second):
		t.Error("Done was not closed after the backlog drained")
	}
}

// TestEventSinkPublishDoesNotBlockWithoutConsumer tests that Publish returns while
// nobody reads the event channel.
func TestEventSinkPublishDoesNotBlockWithoutConsumer(t *testing.T) {
	sink := NewEventSink()
	defer sink.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10000; i++ {
			sink.Logf("line %d", i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked without a consumer")
	}
}

// TestNilEventSink tests that every method is safe on a nil sink.
func TestNilEventSink(t *testing.T) {
	var sink *EventSink
	sink.Logf("ignored")
	sink.ClientAdded("id", "label")
	sink.ClientRemoved("id")
	sink.Close()

	if _, ok := <-sink.Events(); ok {
		t.Error("Expected the events channel of a nil sink to be closed")
	}
	select {
	case <-sink.Done():
	default:
		t.Error("Expected Done of a nil sink to be closed")
	}
}

// TestEventKindString tests the string form of every event kind.
func TestEventKindString(t *testing.T) {
	tests := map[EventKind]string{
		EventLog:           "log",
		EventClientAdded:   "client_added",
		EventClientRemoved: "client_removed",
		EventKind(42):      "unknown",
	}
	for kind, want := range tests {
		if got := kind.String(); got != want {
			t.Errorf("EventKind(%d).String() = %q, want %q", int(kind), got, want)
		}
	}
}
