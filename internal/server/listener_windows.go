//go:build windows

package server

import (
	"fmt"
	"net"

	"github.com/Microsoft/go-winio"

	"github.com/grabdl/grab/common"
)

// pipeSecurityDescriptor restricts pipe access to SYSTEM, the built-in
// Administrators group and the creator owner, so other local users cannot
// drive the daemon.
const pipeSecurityDescriptor = "D:(A;;GA;;;SY)(A;;GA;;;BA)(A;;GA;;;CO)"

// createListener binds the daemon's primary transport. It prefers a named
// pipe and falls back to loopback TCP when the pipe cannot be created or
// TCP is forced.
func (s *Server) createListener() (net.Listener, error) {
	if common.ForceTCP() {
		s.log.Println("force TCP mode enabled, using TCP listener")
		return net.Listen("tcp", common.TCPAddr())
	}
	pipePath := common.PipePath()
	// A connectable pipe means another daemon instance owns it.
	if conn, err := winio.DialPipe(pipePath, nil); err == nil {
		conn.Close()
		return nil, fmt.Errorf("daemon already running on %s", pipePath)
	}
	cfg := &winio.PipeConfig{
		SecurityDescriptor: pipeSecurityDescriptor,
	}
	l, err := winio.ListenPipe(pipePath, cfg)
	if err != nil {
		s.log.Println("named pipe unavailable:", err.Error())
		s.log.Println("falling back to tcp (firewall prompts may occur)")
		tcpListener, tcpErr := net.Listen("tcp", common.TCPAddr())
		if tcpErr != nil {
			return nil, fmt.Errorf("error listening: %s", tcpErr.Error())
		}
		return tcpListener, nil
	}
	return l, nil
}
