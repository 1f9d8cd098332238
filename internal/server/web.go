package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"

	cws "github.com/coder/websocket"
	"github.com/creachadair/jrpc2"

	"github.com/grabdl/grab/common"
)

// WebServer exposes the same JSON-RPC method set over WebSocket so
// browser-side clients can drive the daemon and receive push updates. It
// binds loopback only.
type WebServer struct {
	port     int
	l        *log.Logger
	rpc      *RPCServer
	notifier *RPCNotifier

	mu     sync.Mutex
	server *http.Server
}

// NewWebServer creates the WebSocket bridge on the given port.
func NewWebServer(l *log.Logger, rpc *RPCServer, notifier *RPCNotifier, port int) *WebServer {
	return &WebServer{port: port, l: l, rpc: rpc, notifier: notifier}
}

func (s *WebServer) handleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := cws.Accept(w, r, nil)
	if err != nil {
		s.l.Println("websocket accept:", err)
		return
	}
	ch := &wsChannel{conn: conn, ctx: r.Context()}
	srv := jrpc2.NewServer(s.rpc.Methods(), &jrpc2.ServerOptions{AllowPush: true})
	srv.Start(ch)
	s.notifier.Register(srv)
	defer s.notifier.Unregister(srv)
	if err := srv.Wait(); err != nil {
		s.l.Println("websocket connection closed:", err)
	}
	conn.Close(cws.StatusNormalClosure, "")
}

func (s *WebServer) addr() string {
	return fmt.Sprintf("%s:%d", common.TCPHost, s.port)
}

// Start runs the HTTP listener until Shutdown.
func (s *WebServer) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleConnection)
	s.mu.Lock()
	s.server = &http.Server{
		Addr:    s.addr(),
		Handler: mux,
	}
	s.mu.Unlock()

	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the WebSocket bridge.
func (s *WebServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
