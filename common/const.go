// Package common holds the wire types and transport constants shared by
// the grab daemon and its clients.
package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Environment variable names for transport configuration.
const (
	// SocketPathEnv overrides the Unix socket path.
	SocketPathEnv = "GRAB_SOCKET_PATH"

	// PipeNameEnv overrides the Windows named pipe name.
	PipeNameEnv = "GRAB_PIPE_NAME"

	// TCPPortEnv overrides the TCP fallback port.
	TCPPortEnv = "GRAB_TCP_PORT"

	// ForceTCPEnv forces TCP even where a socket or pipe is available.
	ForceTCPEnv = "GRAB_FORCE_TCP"
)

// TCP fallback defaults. The daemon only ever binds the loopback
// interface.
const (
	TCPHost    = "127.0.0.1"
	DefTCPPort = 3849
)

// SocketPath returns the Unix socket path the daemon listens on.
func SocketPath() string {
	if path := os.Getenv(SocketPathEnv); path != "" {
		return path
	}
	return filepath.Join(os.TempDir(), "grab.sock")
}

// TCPPort returns the TCP fallback port.
func TCPPort() int {
	if v := os.Getenv(TCPPortEnv); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 && port < 65536 {
			return port
		}
	}
	return DefTCPPort
}

// TCPAddr returns the loopback address for the TCP fallback transport.
func TCPAddr() string {
	return fmt.Sprintf("%s:%d", TCPHost, TCPPort())
}

// ForceTCP reports whether socket and pipe transports should be skipped.
func ForceTCP() bool {
	v := os.Getenv(ForceTCPEnv)
	return v == "1" || v == "true" || v == "yes"
}
