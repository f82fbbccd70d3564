package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/Tyrowin/linechat/internal/client"
	"github.com/Tyrowin/linechat/internal/config"
	"github.com/Tyrowin/linechat/internal/logger"
	"github.com/Tyrowin/linechat/internal/protocol"
)

func main() {
	host := flag.String("host", "127.0.0.1", "server host")
	port := flag.Int("port", config.DefaultPort, "server port")
	nick := flag.String("nick", "", "nickname to announce on connect")
	encoding := flag.String("encoding", protocol.DefaultEncoding, "character encoding used on the wire")
	logLevel := flag.String("log-level", "warn", "log level (debug, info, warn, error)")
	flag.Parse()

	log := logger.Init(logger.LogLevel(*logLevel), "text")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := net.JoinHostPort(*host, strconv.Itoa(*port))
	c, err := client.Dial(ctx, addr, *nick, client.Options{Encoding: *encoding, Logger: log})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Could not connect to %s: %v\n", addr, err)
		os.Exit(1)
	}
	fmt.Printf("Connected to %s. Type messages and press Enter; /nick <name> renames you.\n", addr)

	go readInput(c)

	for {
		select {
		case <-ctx.Done():
			_ = c.Disconnect()
			return
		case e, ok := <-c.Events():
			if !ok {
				return
			}
			switch e.Kind {
			case client.EventLine:
				fmt.Println(e.Line)
			case client.EventConnectionLost:
				if e.Err != nil {
					fmt.Fprintf(os.Stderr, "Connection to server lost: %v\n", e.Err)
				} else {
					fmt.Fprintln(os.Stderr, "Connection to server lost.")
				}
				os.Exit(1)
			}
		}
	}
}

// readInput sends stdin lines until EOF, then disconnects.
func readInput(c *client.Client) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if err := c.Send(scanner.Text()); err != nil {
			fmt.Fprintf(os.Stderr, "Send failed: %v\n", err)
			return
		}
	}
	_ = c.Disconnect()
}
