package console

import "net/http"

// SetupRoutes returns a ServeMux with the console page, health check,
// WebSocket feed and HTTP API.
func (c *Console) SetupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", c.PageHandler)
	mux.HandleFunc("/healthz", c.HealthHandler)
	mux.HandleFunc("/ws", c.WebSocketHandler)
	mux.HandleFunc("/api/clients", c.ClientsHandler)
	mux.HandleFunc("/api/broadcast", c.CommandHandler(ActionBroadcast))
	mux.HandleFunc("/api/start", c.CommandHandler(ActionStart))
	mux.HandleFunc("/api/stop", c.CommandHandler(ActionStop))
	return mux
}
