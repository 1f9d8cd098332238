package server

import (
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"
	"github.com/creachadair/jrpc2/handler"
)

// newNotifyPair wires a jrpc2 server to an in-memory client over io.Pipe
// and returns the client channel for draining pushes.
func newNotifyPair(t *testing.T) (channel.Channel, *jrpc2.Server, func()) {
	t.Helper()
	cr, sw := io.Pipe()
	sr, cw := io.Pipe()
	cli := channel.Line(cr, cw)
	srvCh := channel.Line(sr, sw)

	srv := jrpc2.NewServer(handler.Map{}, &jrpc2.ServerOptions{AllowPush: true})
	srv.Start(srvCh)
	cleanup := func() {
		srv.Stop()
		cli.Close()
	}
	return cli, srv, cleanup
}

func TestNotifierBroadcast(t *testing.T) {
	cli, srv, cleanup := newNotifyPair(t)
	defer cleanup()

	n := NewRPCNotifier(nil)
	n.Register(srv)
	if n.Count() != 1 {
		t.Fatalf("Count = %d, want 1", n.Count())
	}

	type payload struct {
		ID string `json:"id"`
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		data, err := cli.Recv()
		if err != nil {
			t.Errorf("Recv: %v", err)
			return
		}
		var msg struct {
			Method string  `json:"method"`
			Params payload `json:"params"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Errorf("Unmarshal: %v", err)
			return
		}
		if msg.Method != "download.stateChanged" || msg.Params.ID != "dl-1" {
			t.Errorf("got notification %+v", msg)
		}
	}()

	n.Broadcast("download.stateChanged", &payload{ID: "dl-1"})
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("notification never arrived")
	}
}

func TestNotifierDropsDeadServers(t *testing.T) {
	_, srv, cleanup := newNotifyPair(t)
	n := NewRPCNotifier(nil)
	n.Register(srv)

	// Kill the transport, then broadcast: the failed server must be
	// removed from the set.
	cleanup()
	n.Broadcast("download.progress", struct{}{})
	if n.Count() != 0 {
		t.Errorf("Count after failed push = %d, want 0", n.Count())
	}
}

func TestNotifierUnregister(t *testing.T) {
	_, srv, cleanup := newNotifyPair(t)
	defer cleanup()

	n := NewRPCNotifier(nil)
	n.Register(srv)
	n.Unregister(srv)
	if n.Count() != 0 {
		t.Errorf("Count = %d, want 0", n.Count())
	}
}
