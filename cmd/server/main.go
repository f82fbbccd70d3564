package main

import (
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Tyrowin/linechat/internal/config"
	"github.com/Tyrowin/linechat/internal/console"
	"github.com/Tyrowin/linechat/internal/logger"
	"github.com/Tyrowin/linechat/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	port := flag.Int("port", -1, "chat port (overrides config)")
	help := flag.Bool("help", false, "show help")
	flag.Parse()

	if *help {
		printHelp()
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *port >= 0 {
		cfg.Server.Port = *port
	}

	log := logger.Init(logger.LogLevel(cfg.Logging.Level), cfg.Logging.Format)
	log.InfoWith("starting chat server", "config", cfg.String())

	sink := server.NewEventSink()
	srv, err := server.New(cfg.Server, sink, log)
	if err != nil {
		log.ErrorWithErr("failed to create server", err)
		os.Exit(1)
	}

	var (
		con        *console.Console
		httpServer *http.Server
	)
	if cfg.Console.Enabled {
		con = console.New(cfg.Console, srv, cfg.Server.Port, log)
		con.StartHub()
		httpServer = console.CreateServer(cfg.Console.Address, con.SetupRoutes())
		go func() {
			if err := console.StartServer(httpServer); err != nil {
				log.ErrorWithErr("console server failed", err, "addr", cfg.Console.Address)
			}
		}()
	}

	go consumeEvents(sink, con, log)

	if err := srv.Start(cfg.Server.Port); err != nil {
		var bindErr *server.BindError
		if errors.As(err, &bindErr) && con != nil {
			// Keep running so the operator can pick another port from the console.
			log.WarnWith("chat server not started", "error", err)
		} else {
			log.ErrorWithErr("failed to start chat server", err)
			os.Exit(1)
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.InfoWith("received shutdown signal", "signal", sig.String())

	gracefulShutdown(srv, con, httpServer, sink, cfg.Server.ShutdownTimeout, log)
}

// consumeEvents logs every server event and forwards it to the console.
func consumeEvents(sink *server.EventSink, con *console.Console, log *logger.Logger) {
	for e := range sink.Events() {
		switch e.Kind {
		case server.EventLog:
			log.InfoWith(e.Text)
		case server.EventClientAdded:
			log.DebugWith("roster upsert", "client_id", e.ClientID, "label", e.Label)
		case server.EventClientRemoved:
			log.DebugWith("roster removal", "client_id", e.ClientID)
		}
		if con != nil {
			con.Publish(e)
		}
	}
}

func gracefulShutdown(srv *server.Server, con *console.Console, httpServer *http.Server, sink *server.EventSink, timeout time.Duration, log *logger.Logger) {
	srv.Stop()

	sink.Close()
	select {
	case <-sink.Done():
	case <-time.After(timeout):
		log.WarnWith("event backlog not drained before timeout", "timeout", timeout)
	}

	if con != nil {
		if err := console.ShutdownServer(httpServer, timeout); err != nil {
			log.ErrorWithErr("console shutdown", err)
		}
		if err := con.Shutdown(timeout); err != nil {
			log.ErrorWithErr("console hub shutdown", err)
		}
	}

	log.InfoWith("shutdown complete")
}

func printHelp() {
	fmt.Println("Line chat server")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  server [flags]")
	fmt.Println()
	fmt.Println("Flags:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("Environment variables override the config file:")
	fmt.Println("  CHAT_HOST, CHAT_PORT, CHAT_MAX_LINE_LENGTH, CHAT_WRITE_TIMEOUT, CHAT_ENCODING")
	fmt.Println("  RATE_LIMIT_BURST, RATE_LIMIT_REFILL_INTERVAL")
	fmt.Println("  CONSOLE_ENABLED, CONSOLE_ADDR, ALLOWED_ORIGINS, MAX_MESSAGE_SIZE")
	fmt.Println("  LOG_LEVEL, LOG_FORMAT")
}
