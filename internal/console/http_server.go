package console

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Tyrowin/linechat/internal/logger"
)

// CreateServer creates the console HTTP server with conservative timeouts.
func CreateServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// StartServer serves until the server is shut down. A graceful shutdown is
// not reported as an error.
func StartServer(srv *http.Server) error {
	logger.Get().InfoWith("console listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ShutdownServer gracefully shuts down the HTTP server, waiting at most timeout.
func ShutdownServer(srv *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Get().ErrorWithErr("console shutdown", err)
		return err
	}
	logger.Get().InfoWith("console shutdown completed")
	return nil
}
