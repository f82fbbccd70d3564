// Package server implements the chat server core: the acceptor loop, one
// receive loop per connection, nickname handling, the client registry and
// the broadcast engine with eviction of clients whose send fails.
//
// Operator-facing output (log lines and roster changes) leaves the package
// through an EventSink so presentation never blocks networking goroutines.
package server
