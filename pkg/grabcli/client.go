// Package grabcli is the JSON-RPC client used by the command line tools to
// talk to the grab daemon.
package grabcli

import (
	"net"
	"sync"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"
	"github.com/grabdl/grab/common"
)

// Client is a connection to the daemon. It issues method calls and
// dispatches push notifications to registered callbacks.
type Client struct {
	conn net.Conn
	rpc  *jrpc2.Client

	mu            sync.RWMutex
	onProgress    func(*common.ProgressNotification)
	onStateChange func(*common.StateNotification)
}

// NewClient connects to the daemon over the platform transport, falling
// back to loopback TCP when the primary transport is unavailable.
func NewClient() (*Client, error) {
	conn, err := dial()
	if err != nil {
		return nil, err
	}
	return newClientConn(conn), nil
}

func newClientConn(conn net.Conn) *Client {
	c := &Client{conn: conn}
	c.rpc = jrpc2.NewClient(channel.Line(conn, conn), &jrpc2.ClientOptions{
		OnNotify: c.dispatch,
	})
	return c
}

func (c *Client) dispatch(req *jrpc2.Request) {
	c.mu.RLock()
	onProgress, onStateChange := c.onProgress, c.onStateChange
	c.mu.RUnlock()

	switch req.Method() {
	case common.NotifyProgress:
		if onProgress == nil {
			return
		}
		var p common.ProgressNotification
		if err := req.UnmarshalParams(&p); err != nil {
			return
		}
		onProgress(&p)
	case common.NotifyStateChanged:
		if onStateChange == nil {
			return
		}
		var s common.StateNotification
		if err := req.UnmarshalParams(&s); err != nil {
			return
		}
		onStateChange(&s)
	}
}

// OnProgress registers the callback invoked for download progress pushes.
func (c *Client) OnProgress(fn func(*common.ProgressNotification)) {
	c.mu.Lock()
	c.onProgress = fn
	c.mu.Unlock()
}

// OnStateChange registers the callback invoked when a download changes
// state.
func (c *Client) OnStateChange(fn func(*common.StateNotification)) {
	c.mu.Lock()
	c.onStateChange = fn
	c.mu.Unlock()
}

// Close tears down the connection.
func (c *Client) Close() error {
	c.rpc.Close()
	return c.conn.Close()
}
