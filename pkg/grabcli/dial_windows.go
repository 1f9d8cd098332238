//go:build windows

package grabcli

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/Microsoft/go-winio"
	"github.com/grabdl/grab/common"
)

// defDialTimeout bounds named pipe connection attempts.
const defDialTimeout = 10 * time.Second

// dialFunc points to net.Dial so tests can intercept dialing.
var dialFunc = net.Dial

// dialPipeFunc points to the named pipe dialer so tests can intercept it.
var dialPipeFunc = dialPipe

func dialPipe(path string) (net.Conn, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defDialTimeout)
	defer cancel()
	return winio.DialPipeContext(ctx, path)
}

// dial connects to the daemon over its named pipe, falling back to
// loopback TCP when the pipe is unavailable.
func dial() (net.Conn, error) {
	if common.ForceTCP() {
		return dialFunc("tcp", common.TCPAddr())
	}
	conn, pipeErr := dialPipeFunc(common.PipePath())
	if pipeErr != nil {
		conn, err := dialFunc("tcp", common.TCPAddr())
		if err != nil {
			return nil, fmt.Errorf("failed to connect: named pipe error: %v; tcp error: %w", pipeErr, err)
		}
		return conn, nil
	}
	return conn, nil
}
