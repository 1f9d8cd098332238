package grabcli

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"
	"github.com/creachadair/jrpc2/handler"
	"github.com/grabdl/grab/common"
)

// newTestClient wires a Client to an in-process jrpc2 server over net.Pipe.
func newTestClient(t *testing.T, methods handler.Map) (*Client, *jrpc2.Server) {
	t.Helper()
	cliConn, srvConn := net.Pipe()
	srv := jrpc2.NewServer(methods, &jrpc2.ServerOptions{AllowPush: true})
	srv.Start(channel.Line(srvConn, srvConn))

	c := newClientConn(cliConn)
	t.Cleanup(func() {
		c.Close()
		srv.Stop()
	})
	return c, srv
}

func TestClientVersion(t *testing.T) {
	c, _ := newTestClient(t, handler.Map{
		common.MethodVersion: handler.New(func(context.Context) (*common.VersionResult, error) {
			return &common.VersionResult{Version: "9.9.9", Commit: "deadbeef"}, nil
		}),
	})

	v, err := c.Version(context.Background())
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if v.Version != "9.9.9" || v.Commit != "deadbeef" {
		t.Errorf("unexpected version: %+v", v)
	}
}

func TestClientAdd(t *testing.T) {
	var got common.AddParams
	c, _ := newTestClient(t, handler.Map{
		common.MethodAdd: handler.New(func(_ context.Context, p *common.AddParams) (*common.AddResult, error) {
			got = *p
			return &common.AddResult{ID: "dl-1", FileName: "file.bin", SavePath: "/tmp/file.bin"}, nil
		}),
	})

	res, err := c.Add(context.Background(), "http://example.com/file.bin", &AddOpts{
		FileName: "file.bin",
		Start:    true,
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if res.ID != "dl-1" {
		t.Errorf("ID = %q, want dl-1", res.ID)
	}
	if got.URL != "http://example.com/file.bin" || got.FileName != "file.bin" || !got.Start {
		t.Errorf("server saw params %+v", got)
	}
}

func TestClientIDMethods(t *testing.T) {
	seen := make(map[string]string)
	record := func(method string) handler.Func {
		return handler.New(func(_ context.Context, p *common.IDParam) (*common.EmptyResult, error) {
			seen[method] = p.ID
			return &common.EmptyResult{}, nil
		})
	}
	c, _ := newTestClient(t, handler.Map{
		common.MethodStart:  record(common.MethodStart),
		common.MethodPause:  record(common.MethodPause),
		common.MethodResume: record(common.MethodResume),
		common.MethodCancel: record(common.MethodCancel),
		common.MethodRemove: record(common.MethodRemove),
	})

	ctx := context.Background()
	calls := []struct {
		method string
		fn     func(context.Context, string) error
	}{
		{common.MethodStart, c.Start},
		{common.MethodPause, c.Pause},
		{common.MethodResume, c.Resume},
		{common.MethodCancel, c.Cancel},
		{common.MethodRemove, c.Remove},
	}
	for _, call := range calls {
		if err := call.fn(ctx, "dl-7"); err != nil {
			t.Fatalf("%s: %v", call.method, err)
		}
		if seen[call.method] != "dl-7" {
			t.Errorf("%s: server saw id %q", call.method, seen[call.method])
		}
	}
}

func TestClientCallError(t *testing.T) {
	c, _ := newTestClient(t, handler.Map{
		common.MethodStatus: handler.New(func(context.Context, *common.IDParam) (*common.StatusResult, error) {
			return nil, &jrpc2.Error{Code: jrpc2.Code(-32001), Message: "download not found"}
		}),
	})

	_, err := c.Status(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "download not found") {
		t.Errorf("error = %v", err)
	}
}

func TestClientNotifications(t *testing.T) {
	c, srv := newTestClient(t, handler.Map{})

	progress := make(chan *common.ProgressNotification, 1)
	state := make(chan *common.StateNotification, 1)
	c.OnProgress(func(p *common.ProgressNotification) { progress <- p })
	c.OnStateChange(func(s *common.StateNotification) { state <- s })

	ctx := context.Background()
	if err := srv.Notify(ctx, common.NotifyProgress, &common.ProgressNotification{
		ID: "dl-1", CompletedLength: 512, TotalLength: 1024,
	}); err != nil {
		t.Fatalf("Notify progress: %v", err)
	}
	if err := srv.Notify(ctx, common.NotifyStateChanged, &common.StateNotification{
		ID: "dl-1", OldStatus: "downloading", NewStatus: "paused",
	}); err != nil {
		t.Fatalf("Notify state: %v", err)
	}

	select {
	case p := <-progress:
		if p.ID != "dl-1" || p.CompletedLength != 512 || p.TotalLength != 1024 {
			t.Errorf("unexpected progress %+v", p)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("progress notification never arrived")
	}
	select {
	case s := <-state:
		if s.NewStatus != "paused" {
			t.Errorf("unexpected state %+v", s)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("state notification never arrived")
	}
}
