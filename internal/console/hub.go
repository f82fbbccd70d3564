// Package console serves the operator console: an HTTP API plus a WebSocket
// feed that streams chat server events to viewers and accepts start, stop and
// broadcast commands from them.
package console

import (
	"context"
	"sync"
	"time"

	"github.com/Tyrowin/linechat/internal/logger"
)

// Hub tracks the connected viewers and fans frames out to them.
// A viewer whose send buffer is full is dropped rather than waited for.
type Hub struct {
	viewers    map[*Viewer]bool
	broadcast  chan []byte
	register   chan *Viewer
	unregister chan *Viewer
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	log        *logger.Logger
}

// NewHub creates a Hub. Call Run to start it.
func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Get()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		viewers:    make(map[*Viewer]bool),
		broadcast:  make(chan []byte),
		register:   make(chan *Viewer),
		unregister: make(chan *Viewer),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		log:        log,
	}
}

// Register hands v to the hub, which starts its pumps. It reports false once
// the hub is shutting down.
func (h *Hub) Register(v *Viewer) bool {
	select {
	case h.register <- v:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// Unregister removes v and closes its send channel.
func (h *Hub) Unregister(v *Viewer) {
	select {
	case h.unregister <- v:
	case <-h.ctx.Done():
	}
}

// Broadcast queues payload for every viewer. It returns false once the hub is
// shutting down.
func (h *Hub) Broadcast(payload []byte) bool {
	select {
	case h.broadcast <- payload:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// Count returns the number of registered viewers.
func (h *Hub) Count() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.viewers)
}

func (h *Hub) safeSend(v *Viewer, message []byte) bool {
	// Hold the lock during the entire send so the channel cannot be closed underneath us
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if _, exists := h.viewers[v]; !exists || v.closed {
		return false
	}

	select {
	case v.send <- message:
		return true
	default:
		return false
	}
}

// Run is the hub's event loop. It returns after Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownViewers()
			return

		case v := <-h.register:
			if v == nil {
				h.log.WarnWith("received nil viewer registration; skipping")
				continue
			}

			h.mutex.Lock()
			v.closed = false
			h.viewers[v] = true
			count := len(h.viewers)
			h.mutex.Unlock()
			h.log.InfoWith("viewer registered", "addr", v.addr, "viewers", count)

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				v.writePump()
			}()
			go func() {
				defer h.wg.Done()
				v.readPump()
			}()

		case v := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.viewers[v]; ok {
				delete(h.viewers, v)
				v.closed = true
				count := len(h.viewers)
				h.mutex.Unlock()
				close(v.send)
				h.log.InfoWith("viewer unregistered", "addr", v.addr, "viewers", count)
			} else {
				h.mutex.Unlock()
			}

		case payload := <-h.broadcast:
			h.handleBroadcast(payload)
		}
	}
}

func (h *Hub) handleBroadcast(payload []byte) {
	viewers := h.getViewerSnapshot()
	if len(viewers) == 0 {
		return
	}
	failed := h.broadcastToViewers(viewers, payload)
	h.removeFailedViewers(failed)
}

// getViewerSnapshot returns a thread-safe snapshot of all current viewers
func (h *Hub) getViewerSnapshot() []*Viewer {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	viewers := make([]*Viewer, 0, len(h.viewers))
	for v := range h.viewers {
		viewers = append(viewers, v)
	}
	return viewers
}

func (h *Hub) broadcastToViewers(viewers []*Viewer, payload []byte) []*Viewer {
	var failed []*Viewer
	for _, v := range viewers {
		if !h.safeSend(v, payload) {
			failed = append(failed, v)
		}
	}
	return failed
}

// removeFailedViewers drops viewers that could not keep up and closes their channels
func (h *Hub) removeFailedViewers(failed []*Viewer) {
	if len(failed) == 0 {
		return
	}

	h.mutex.Lock()
	var channelsToClose []chan []byte
	for _, v := range failed {
		if _, exists := h.viewers[v]; exists {
			delete(h.viewers, v)
			v.closed = true
			channelsToClose = append(channelsToClose, v.send)
			h.log.WarnWith("viewer removed due to full send buffer", "addr", v.addr)
		}
	}
	h.mutex.Unlock()

	for _, ch := range channelsToClose {
		close(ch)
	}
}

// shutdownViewers closes every viewer connection and send channel.
func (h *Hub) shutdownViewers() {
	h.mutex.Lock()
	viewers := make([]*Viewer, 0, len(h.viewers))
	for v := range h.viewers {
		viewers = append(viewers, v)
		v.closed = true
		delete(h.viewers, v)
	}
	h.mutex.Unlock()

	for _, v := range viewers {
		close(v.send)
		if v.conn != nil {
			if err := v.conn.Close(); err != nil && !isExpectedCloseError(err) {
				h.log.ErrorWithErr("closing viewer connection", err, "addr", v.addr)
			}
		}
	}

	h.log.InfoWith("closed viewer connections", "count", len(viewers))
}

// Shutdown stops the hub and waits for the viewer goroutines, giving up
// after timeout.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.DebugWith("hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.log.WarnWith("hub shutdown timeout reached, some goroutines may still be running", "timeout", timeout)
		return context.DeadlineExceeded
	}
}
