//go:build !windows

package grabcli

import (
	"fmt"
	"net"

	"github.com/grabdl/grab/common"
)

// dialFunc points to net.Dial so tests can intercept dialing.
var dialFunc = net.Dial

// dial connects to the daemon over its Unix socket, falling back to
// loopback TCP when the socket is unavailable.
func dial() (net.Conn, error) {
	if common.ForceTCP() {
		return dialFunc("tcp", common.TCPAddr())
	}
	conn, unixErr := dialFunc("unix", common.SocketPath())
	if unixErr != nil {
		conn, err := dialFunc("tcp", common.TCPAddr())
		if err != nil {
			return nil, fmt.Errorf("failed to connect: unix socket error: %v; tcp error: %w", unixErr, err)
		}
		return conn, nil
	}
	return conn, nil
}
