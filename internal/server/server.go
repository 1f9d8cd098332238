package server

import (
	"context"
	"log"
	"net"
	"os"
	"sync"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"
	"github.com/creachadair/jrpc2/handler"

	"github.com/grabdl/grab/common"
	"github.com/grabdl/grab/pkg/grablib"
)

// Server accepts CLI connections on a Unix socket (or Windows named pipe)
// with a loopback TCP fallback, and serves the JSON-RPC method set on each
// connection. Every connection gets its own jrpc2 server, registered with
// the notifier for push updates while it lives.
type Server struct {
	log      *log.Logger
	rpc      *RPCServer
	notifier *RPCNotifier
	ws       *WebServer

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
}

// NewServer creates a server for the given manager. The notifier must be
// the one wired into the manager's handlers. wsPort selects the WebSocket
// bridge port; zero disables the bridge.
func NewServer(l *log.Logger, cfg RPCConfig, m *grablib.Manager, notifier *RPCNotifier, wsPort int) *Server {
	s := &Server{
		log:      l,
		rpc:      NewRPCServer(cfg, m),
		notifier: notifier,
	}
	if wsPort > 0 {
		s.ws = NewWebServer(l, s.rpc, notifier, wsPort)
	}
	return s
}

// Start begins accepting connections and blocks until the context is
// cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	if s.ws != nil {
		go func() {
			if err := s.ws.Start(); err != nil {
				s.log.Printf("websocket bridge: %v", err)
			}
		}()
	}

	l, err := s.createListener()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()
	s.log.Printf("listening on %s", l.Addr())

	go func() {
		<-ctx.Done()
		s.Shutdown()
	}()

	methods := s.rpc.Methods()
	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				s.wg.Wait()
				return nil
			default:
			}
			s.log.Printf("accept: %v", err)
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(methods, conn)
		}()
	}
}

// serveConn runs one jrpc2 server over the connection until the peer goes
// away.
func (s *Server) serveConn(methods handler.Map, conn net.Conn) {
	defer conn.Close()
	srv := jrpc2.NewServer(methods, &jrpc2.ServerOptions{AllowPush: true})
	srv.Start(channel.Line(conn, conn))
	s.notifier.Register(srv)
	defer s.notifier.Unregister(srv)
	if err := srv.Wait(); err != nil {
		s.log.Printf("connection closed: %v", err)
	}
}

// Shutdown closes the listener and removes a leftover socket file. Safe to
// call more than once.
func (s *Server) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return
	}
	if err := s.listener.Close(); err != nil {
		s.log.Printf("close listener: %v", err)
	}
	s.listener = nil
	if s.ws != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.ws.Shutdown(ctx); err != nil {
			s.log.Printf("shut down websocket bridge: %v", err)
		}
	}
	if path := common.SocketPath(); path != "" {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.log.Printf("remove socket file: %v", err)
		}
	}
}
