package console

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/linechat/internal/config"
	"github.com/Tyrowin/linechat/internal/logger"
	"github.com/Tyrowin/linechat/internal/server"
)

// Controller is the part of the chat server the console drives.
type Controller interface {
	Start(port int) error
	Stop()
	Broadcast(text string) int
	State() server.State
	Roster() []server.ClientInfo
}

var (
	errEmptyBroadcast = errors.New("broadcast text is empty")
	errNotRunning     = errors.New("server is not running")
)

// Console connects operator viewers to a Controller.
type Console struct {
	cfg         config.ConsoleConfig
	ctrl        Controller
	defaultPort int
	hub         *Hub
	origins     *originPolicy
	upgrader    websocket.Upgrader
	log         *logger.Logger
}

// New creates a console for ctrl. defaultPort is used by start commands that
// do not name a port.
func New(cfg config.ConsoleConfig, ctrl Controller, defaultPort int, log *logger.Logger) *Console {
	if log == nil {
		log = logger.Get()
	}
	log = log.With("component", "console")

	c := &Console{
		cfg:         cfg,
		ctrl:        ctrl,
		defaultPort: defaultPort,
		hub:         NewHub(log),
		origins:     newOriginPolicy(cfg.AllowedOrigins, log),
		log:         log,
	}
	c.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     c.origins.check,
	}
	return c
}

// StartHub starts the viewer hub. It must be called before serving requests.
func (c *Console) StartHub() {
	go c.hub.Run()
	c.log.DebugWith("hub started")
}

// Hub returns the viewer hub.
func (c *Console) Hub() *Hub {
	return c.hub
}

// Publish forwards a server event to every viewer.
func (c *Console) Publish(e server.Event) {
	c.publishFrame(eventFrame(e))
}

func (c *Console) publishFrame(f Frame) {
	payload, err := json.Marshal(f)
	if err != nil {
		c.log.ErrorWithErr("encoding frame", err, "type", f.Type)
		return
	}
	c.hub.Broadcast(payload)
}

// Shutdown disconnects every viewer and stops the hub.
func (c *Console) Shutdown(timeout time.Duration) error {
	return c.hub.Shutdown(timeout)
}

func (c *Console) rosterFrame() Frame {
	return Frame{
		Type:    FrameRoster,
		Time:    time.Now(),
		State:   c.ctrl.State().String(),
		Clients: c.ctrl.Roster(),
	}
}

func resultFrame(action string, err error) Frame {
	f := Frame{Type: FrameResult, Time: time.Now(), Action: action, OK: err == nil}
	if err != nil {
		f.Error = err.Error()
	}
	return f
}

// execute runs cmd against the controller and returns the reply frame and
// the HTTP status that matches it.
func (c *Console) execute(cmd Command) (Frame, int) {
	action := strings.ToLower(strings.TrimSpace(cmd.Action))

	switch action {
	case ActionStart:
		port := c.defaultPort
		if cmd.Port != nil {
			port = *cmd.Port
		}
		if port < 0 || port > 65535 {
			return resultFrame(action, fmt.Errorf("invalid port %d", port)), http.StatusBadRequest
		}
		if err := c.ctrl.Start(port); err != nil {
			f := resultFrame(action, err)
			f.State = c.ctrl.State().String()
			return f, http.StatusConflict
		}
		c.log.InfoWith("chat server started from console", "port", port)
		f := resultFrame(action, nil)
		f.State = c.ctrl.State().String()
		return f, http.StatusOK

	case ActionStop:
		c.ctrl.Stop()
		c.log.InfoWith("chat server stopped from console")
		f := resultFrame(action, nil)
		f.State = c.ctrl.State().String()
		return f, http.StatusOK

	case ActionBroadcast:
		text := strings.TrimSpace(cmd.Text)
		if text == "" {
			return resultFrame(action, errEmptyBroadcast), http.StatusBadRequest
		}
		if c.ctrl.State() != server.StateListening {
			return resultFrame(action, errNotRunning), http.StatusConflict
		}
		f := resultFrame(action, nil)
		f.Delivered = c.ctrl.Broadcast(text)
		return f, http.StatusOK

	case ActionRoster:
		return c.rosterFrame(), http.StatusOK

	default:
		return resultFrame(action, fmt.Errorf("unknown action %q", cmd.Action)), http.StatusBadRequest
	}
}

func (c *Console) executeFrame(cmd Command) Frame {
	f, _ := c.execute(cmd)
	return f
}
