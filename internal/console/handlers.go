package console

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
)

const maxRequestBody = 1 << 16

var (
	errOriginNotAllowed = errors.New("origin not allowed")
	errNotJSON          = errors.New("request body must be application/json")
)

type healthResponse struct {
	Status  string `json:"status"`
	State   string `json:"state"`
	Clients int    `json:"clients"`
	Viewers int    `json:"viewers"`
}

// WebSocketHandler upgrades the request, sends the current roster and
// registers the viewer with the hub.
func (c *Console) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.log.WarnWith("websocket upgrade failed", "error", err)
		return
	}

	v := NewViewer(conn, c.hub, r.RemoteAddr, c.cfg.MaxMessageSize, c.executeFrame)
	v.queue(c.rosterFrame())

	if !c.hub.Register(v) {
		_ = conn.Close()
	}
}

// HealthHandler reports the chat server state and client count.
func (c *Console) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		State:   c.ctrl.State().String(),
		Clients: len(c.ctrl.Roster()),
		Viewers: c.hub.Count(),
	})
}

// ClientsHandler returns the roster as JSON.
func (c *Console) ClientsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, c.rosterFrame())
}

// CommandHandler returns a handler that runs action with the JSON request body.
func (c *Console) CommandHandler(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if r.Header.Get("Origin") != "" && !c.origins.isAllowed(r) {
			c.log.WarnWith("blocked console command from disallowed origin",
				"action", action, "origin", r.Header.Get("Origin"))
			writeJSON(w, http.StatusForbidden, resultFrame(action, errOriginNotAllowed))
			return
		}
		if !isJSONRequest(r) {
			writeJSON(w, http.StatusUnsupportedMediaType, resultFrame(action, errNotJSON))
			return
		}

		var cmd Command
		body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, resultFrame(action, err))
			return
		}
		if len(body) > 0 {
			if err := json.Unmarshal(body, &cmd); err != nil {
				writeJSON(w, http.StatusBadRequest, resultFrame(action, fmt.Errorf("invalid request body: %w", err)))
				return
			}
		}
		cmd.Action = action

		frame, status := c.execute(cmd)
		writeJSON(w, status, frame)
	}
}

// PageHandler serves the browser console.
func (c *Console) PageHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := io.WriteString(w, consolePage); err != nil {
		c.log.DebugWith("writing console page", "error", err)
	}
}

// isJSONRequest reports whether the body is declared as application/json.
func isJSONRequest(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

const consolePage = `<!DOCTYPE html>
<html>
<head>
    <title>Chat Server Console</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #log {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
            font-family: monospace;
        }
        #clients { border: 1px solid #ccc; min-height: 60px; padding: 10px; }
        input[type="text"], input[type="number"] { padding: 5px; margin-right: 10px; }
        input[type="text"] { width: 300px; }
        button {
            padding: 5px 15px;
            background-color: #007cba;
            color: white;
            border: none;
            cursor: pointer;
        }
        button:hover { background-color: #005a87; }
        .status { margin: 10px 0; padding: 5px; border-radius: 3px; }
        .listening { background-color: #d4edda; color: #155724; }
        .stopped { background-color: #f8d7da; color: #721c24; }
    </style>
</head>
<body>
    <h1>Chat Server Console</h1>

    <div id="status" class="status stopped">stopped</div>

    <div>
        <input type="number" id="port" placeholder="port">
        <button onclick="send({action: 'start', port: portValue()})">Start</button>
        <button onclick="send({action: 'stop'})">Stop</button>
    </div>
    <div style="margin-top: 10px">
        <input type="text" id="broadcast" placeholder="Message to all clients...">
        <button onclick="broadcast()">Broadcast</button>
    </div>

    <h3>Clients</h3>
    <ul id="clients"></ul>

    <h3>Log</h3>
    <div id="log"></div>

    <script>
        const logDiv = document.getElementById('log');
        const clientList = document.getElementById('clients');
        const statusDiv = document.getElementById('status');
        const clients = new Map();
        const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');

        function portValue() {
            const v = document.getElementById('port').value;
            return v === '' ? undefined : parseInt(v, 10);
        }

        function addLog(text) {
            const line = document.createElement('div');
            line.textContent = text;
            logDiv.appendChild(line);
            logDiv.scrollTop = logDiv.scrollHeight;
        }

        function setState(state) {
            if (!state) return;
            statusDiv.textContent = state;
            statusDiv.className = 'status ' + (state === 'listening' ? 'listening' : 'stopped');
        }

        function renderClients() {
            clientList.innerHTML = '';
            clients.forEach(function(label) {
                const item = document.createElement('li');
                item.textContent = label;
                clientList.appendChild(item);
            });
        }

        function send(cmd) {
            if (ws.readyState === WebSocket.OPEN) {
                ws.send(JSON.stringify(cmd));
            }
        }

        function broadcast() {
            const input = document.getElementById('broadcast');
            const text = input.value.trim();
            if (text) {
                send({action: 'broadcast', text: text});
                input.value = '';
            }
        }

        ws.onmessage = function(event) {
            const f = JSON.parse(event.data);
            switch (f.type) {
            case 'log':
                addLog(new Date(f.time).toLocaleTimeString() + '  ' + f.text);
                if (f.text === 'server stopped') setState('stopped');
                if (f.text.indexOf('server started') === 0) setState('listening');
                break;
            case 'client_added':
                clients.set(f.client_id, f.label);
                renderClients();
                break;
            case 'client_removed':
                clients.delete(f.client_id);
                renderClients();
                break;
            case 'roster':
                clients.clear();
                (f.clients || []).forEach(function(c) { clients.set(c.id, c.nickname); });
                renderClients();
                setState(f.state);
                break;
            case 'result':
                setState(f.state);
                if (!f.ok) addLog('error: ' + f.error);
                break;
            }
        };

        ws.onclose = function() { addLog('console connection closed'); };
    </script>
</body>
</html>`
