//go:build !windows

package server

import (
	"fmt"
	"net"
	"os"

	"github.com/grabdl/grab/common"
)

// createListener binds the daemon's primary transport. It prefers a Unix
// domain socket and falls back to loopback TCP when the socket cannot be
// created or TCP is forced.
func (s *Server) createListener() (net.Listener, error) {
	if common.ForceTCP() {
		s.log.Println("force TCP mode enabled, using TCP listener")
		return net.Listen("tcp", common.TCPAddr())
	}
	socketPath := common.SocketPath()
	// A connectable socket means another daemon instance owns it.
	if conn, err := net.Dial("unix", socketPath); err == nil {
		conn.Close()
		return nil, fmt.Errorf("daemon already running on %s", socketPath)
	}
	_ = os.Remove(socketPath)
	l, err := net.ListenUnix("unix", &net.UnixAddr{
		Name: socketPath,
		Net:  "unix",
	})
	if err != nil {
		s.log.Println("unix socket unavailable:", err.Error())
		s.log.Println("falling back to tcp")
		tcpListener, tcpErr := net.Listen("tcp", common.TCPAddr())
		if tcpErr != nil {
			return nil, fmt.Errorf("error listening: %s", tcpErr.Error())
		}
		return tcpListener, nil
	}
	_ = os.Chmod(socketPath, 0700)
	return l, nil
}
