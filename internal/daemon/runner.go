// Package daemon manages the grab daemon lifecycle. It wires the download
// manager, the RPC server and the push notifier together, and handles start,
// stop and graceful shutdown.
package daemon

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/grabdl/grab/internal/server"
	"github.com/grabdl/grab/pkg/grablib"
	"github.com/grabdl/grab/pkg/logger"
)

// Sentinel errors for the daemon runner.
var (
	// ErrAlreadyRunning is returned when Start() is called on a running daemon.
	ErrAlreadyRunning = errors.New("daemon is already running")

	// ErrNotRunning is returned when Shutdown() is called on a stopped daemon.
	ErrNotRunning = errors.New("daemon is not running")

	// ErrShutdownTimeout is returned when shutdown exceeds the configured timeout.
	ErrShutdownTimeout = errors.New("shutdown timed out")
)

// DefShutdownTimeout is used when Config.ShutdownTimeout is zero.
const DefShutdownTimeout = 10 * time.Second

// Config holds the configuration for the daemon runner.
type Config struct {
	// ConfigDir overrides the default configuration directory.
	ConfigDir string

	// DownloadDir overrides the default directory for download data files.
	DownloadDir string

	// MaxConcurrent bounds the number of simultaneously active downloads.
	MaxConcurrent int

	// WSPort is the loopback port for the websocket bridge. Zero disables it.
	WSPort int

	// ProxyURL routes downloads through an HTTP or SOCKS5 proxy.
	ProxyURL string

	// UserAgent is sent with every download request.
	UserAgent string

	// Version, Commit and BuildType are reported by system.getVersion.
	Version   string
	Commit    string
	BuildType string

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration
}

// Runner manages the daemon lifecycle.
type Runner struct {
	cfg *Config
	l   logger.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	manager *grablib.Manager
	srv     *server.Server
	done    chan struct{}
}

// New creates a daemon runner. A nil config or logger is replaced with
// defaults.
func New(cfg *Config, l logger.Logger) *Runner {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefShutdownTimeout
	}
	if l == nil {
		l = logger.NewNopLogger()
	}
	return &Runner{cfg: cfg, l: l}
}

// Config returns the runner's configuration.
func (r *Runner) Config() *Config {
	return r.cfg
}

// Manager returns the download manager, or nil before Start.
func (r *Runner) Manager() *grablib.Manager {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.manager
}

// Start brings up the manager and the RPC server and blocks until the
// context is cancelled or Shutdown is called. Returns ErrAlreadyRunning if
// the daemon is already started.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return ErrAlreadyRunning
	}

	if r.cfg.ConfigDir != "" {
		if err := grablib.SetConfigDir(r.cfg.ConfigDir); err != nil {
			r.mu.Unlock()
			return err
		}
	}

	stdlog := log.New(logWriter{r.l}, "", 0)
	notifier := server.NewRPCNotifier(stdlog)

	// The status lookup closes over the manager variable so progress events
	// can resolve counters once the manager exists.
	var m *grablib.Manager
	handlers := notifier.ManagerHandlers(func(id string) (grablib.StatusSnapshot, error) {
		return m.Status(id)
	})

	var err error
	m, err = grablib.NewManager(&grablib.ManagerOpts{
		StateDir:      grablib.StateDir,
		DownloadDir:   r.cfg.DownloadDir,
		MaxConcurrent: r.cfg.MaxConcurrent,
		ProxyURL:      r.cfg.ProxyURL,
		UserAgent:     r.cfg.UserAgent,
		Handlers:      handlers,
		Logger:        stdlog,
	})
	if err != nil {
		r.mu.Unlock()
		return err
	}

	srv := server.NewServer(stdlog, server.RPCConfig{
		Version:   r.cfg.Version,
		Commit:    r.cfg.Commit,
		BuildType: r.cfg.BuildType,
	}, m, notifier, r.cfg.WSPort)

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.manager = m
	r.srv = srv
	r.done = make(chan struct{})
	r.running = true
	r.mu.Unlock()

	r.l.Info("daemon started")
	err = srv.Start(ctx)

	r.cleanupOnStop()
	if err != nil {
		return err
	}
	return ctx.Err()
}

// cleanupOnStop tears down the manager after the serve loop exits.
func (r *Runner) cleanupOnStop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return
	}
	r.running = false
	r.srv.Shutdown()
	if err := r.manager.Close(); err != nil {
		r.l.Error("close manager: %v", err)
	}
	r.srv = nil
	close(r.done)
	r.l.Info("daemon stopped")
}

// Shutdown gracefully stops the daemon, pausing active downloads and
// persisting their state. Returns ErrNotRunning if the daemon is not
// running and ErrShutdownTimeout if teardown exceeds the configured
// timeout.
func (r *Runner) Shutdown() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return ErrNotRunning
	}
	cancel, done := r.cancel, r.done
	r.mu.Unlock()

	cancel()
	select {
	case <-done:
		return nil
	case <-time.After(r.cfg.ShutdownTimeout):
		return ErrShutdownTimeout
	}
}

// IsRunning reports whether the daemon is currently serving.
func (r *Runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// logWriter adapts a logger.Logger to io.Writer for stdlib log consumers.
type logWriter struct {
	l logger.Logger
}

func (w logWriter) Write(p []byte) (int, error) {
	w.l.Info("%s", string(p))
	return len(p), nil
}
