package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/albertocavalcante/qsync/internal/log"
	"github.com/albertocavalcante/qsync/pkg/progress"
)

// shutdownTimeout bounds how long Shutdown waits for client goroutines.
const shutdownTimeout = 5 * time.Second

// Server listens on a Unix socket and serves one workspace.
type Server struct {
	paths     *Paths
	listener  net.Listener
	handler   *Handler
	startTime time.Time
	version   string

	// ctx is cancelled on shutdown and stops in-flight syncs and builds.
	ctx    context.Context
	cancel context.CancelFunc

	clients   map[*ClientConn]struct{}
	clientsMu sync.RWMutex

	shutdown    chan struct{}
	shutdownMu  sync.Mutex
	isShutdown  bool
	requested   bool
	wg          sync.WaitGroup
	shutdownErr error
}

// ClientConn is one connected client.
type ClientConn struct {
	conn       net.Conn
	encoder    *json.Encoder
	decoder    *json.Decoder
	encoderMu  sync.Mutex
	subscribed atomic.Bool
	closed     bool
	closeMu    sync.Mutex
}

// ServerConfig configures the server.
type ServerConfig struct {
	Paths   *Paths
	Version string
	Service Service
}

// NewServer creates a server for cfg.Service.
func NewServer(cfg ServerConfig) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		paths:     cfg.Paths,
		version:   cfg.Version,
		ctx:       ctx,
		cancel:    cancel,
		clients:   make(map[*ClientConn]struct{}),
		shutdown:  make(chan struct{}),
		startTime: time.Now(),
	}
	s.handler = NewHandler(s, cfg.Service)
	return s
}

// Start listens and serves until ctx is done, a signal arrives or a client
// requests shutdown.
func (s *Server) Start(ctx context.Context) error {
	logger := log.Component("daemon")

	if _, err := CleanupStale(s.paths); err != nil {
		logger.Warnw("failed to clean up stale files", "error", err)
	}
	if err := s.paths.EnsureDir(); err != nil {
		return fmt.Errorf("failed to create daemon directory: %w", err)
	}

	listener, err := net.Listen("unix", s.paths.Socket)
	if err != nil {
		return fmt.Errorf("failed to create socket: %w", err)
	}
	s.listener = listener

	if err := os.Chmod(s.paths.Socket, 0o600); err != nil {
		_ = listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}
	if err := s.paths.WritePID(); err != nil {
		_ = listener.Close()
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	logger.Infow("daemon started",
		"pid", os.Getpid(),
		"socket", s.paths.Socket,
		"root", s.handler.service.Root(),
		"version", s.version)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	s.wg.Add(1)
	go s.acceptLoop()

	select {
	case <-ctx.Done():
		logger.Infow("context cancelled, shutting down")
	case sig := <-sigCh:
		logger.Infow("received signal, shutting down", "signal", sig)
	case <-s.shutdown:
		logger.Infow("shutdown requested via RPC")
	}
	return s.Shutdown()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	logger := log.Component("daemon")

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.shutdownMu.Lock()
			done := s.isShutdown
			s.shutdownMu.Unlock()
			if done || errors.Is(err, net.ErrClosed) {
				return
			}
			logger.Warnw("accept error", "error", err)
			continue
		}

		client := &ClientConn{
			conn:    conn,
			encoder: json.NewEncoder(conn),
			decoder: json.NewDecoder(bufio.NewReader(conn)),
		}
		s.clientsMu.Lock()
		s.clients[client] = struct{}{}
		count := len(s.clients)
		s.clientsMu.Unlock()
		logger.Debugw("client connected", "client_count", count)

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleClient(client)
		}()
	}
}

// handleClient serves one client's requests in order.
func (s *Server) handleClient(client *ClientConn) {
	logger := log.Component("daemon")
	defer func() {
		client.Close()
		s.clientsMu.Lock()
		delete(s.clients, client)
		count := len(s.clients)
		s.clientsMu.Unlock()
		logger.Debugw("client disconnected", "client_count", count)
	}()

	for {
		var req Request
		if err := client.decoder.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return
			}
			// The decoder cannot resync after bad input; answer and hang up.
			logger.Debugw("failed to decode request", "error", err)
			var syntaxErr *json.SyntaxError
			if errors.As(err, &syntaxErr) {
				_ = client.Send(NewErrorResponse(nil, ErrCodeParseError, "Parse error", nil))
			}
			return
		}

		if req.JSONRPC != JSONRPCVersion {
			resp := NewErrorResponse(req.ID, ErrCodeInvalidRequest, "Invalid Request: unsupported JSON-RPC version", nil)
			if err := client.Send(resp); err != nil {
				return
			}
			continue
		}

		if resp := s.handler.HandleRequest(s.ctx, client, &req); resp != nil {
			if err := client.Send(resp); err != nil {
				logger.Debugw("failed to send response", "error", err)
				return
			}
		}
	}
}

// Shutdown stops the watcher, cancels in-flight work, disconnects clients
// and removes the daemon files. It is idempotent.
func (s *Server) Shutdown() error {
	s.shutdownMu.Lock()
	if s.isShutdown {
		s.shutdownMu.Unlock()
		return s.shutdownErr
	}
	s.isShutdown = true
	s.shutdownMu.Unlock()

	logger := log.Component("daemon")
	logger.Infow("shutting down daemon")

	if s.listener != nil {
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			logger.Warnw("failed to close listener", "error", err)
		}
	}
	s.Broadcast(progress.Message{Level: progress.LevelInfo, Text: "daemon is shutting down"})
	s.handler.Stop()
	s.cancel()

	s.clientsMu.Lock()
	for client := range s.clients {
		client.Close()
	}
	s.clientsMu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownTimeout):
		logger.Warnw("shutdown timed out waiting for clients")
	}

	if err := s.paths.Cleanup(); err != nil {
		logger.Warnw("failed to cleanup daemon files", "error", err)
		s.shutdownErr = err
	}
	logger.Infow("daemon stopped")
	return s.shutdownErr
}

// RequestShutdown makes Start return. It may be called more than once.
func (s *Server) RequestShutdown() {
	s.shutdownMu.Lock()
	defer s.shutdownMu.Unlock()
	if !s.isShutdown && !s.requested {
		s.requested = true
		close(s.shutdown)
	}
}

// Broadcast sends a progress message to every subscribed client.
func (s *Server) Broadcast(m progress.Message) {
	notif, err := NewNotification(MethodBuildEvent, BuildEventParams{
		Level:     m.Level.String(),
		Text:      m.Text,
		Timestamp: time.Now().Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	for client := range s.clients {
		if client.subscribed.Load() {
			_ = client.Send(notif)
		}
	}
}

// Info describes the running server.
func (s *Server) Info() *Info {
	s.clientsMu.RLock()
	count := len(s.clients)
	s.clientsMu.RUnlock()
	return &Info{
		PID:         os.Getpid(),
		Root:        s.handler.service.Root(),
		SocketPath:  s.paths.Socket,
		StartTime:   s.startTime,
		Version:     s.version,
		Watching:    s.handler.WatchStatus().Watching,
		ClientCount: count,
	}
}

// Uptime returns how long the server has been running.
func (s *Server) Uptime() time.Duration {
	return time.Since(s.startTime)
}

// Send writes a message to the client. It is safe for concurrent use.
func (c *ClientConn) Send(msg any) error {
	c.closeMu.Lock()
	closed := c.closed
	c.closeMu.Unlock()
	if closed {
		return net.ErrClosed
	}
	c.encoderMu.Lock()
	defer c.encoderMu.Unlock()
	return c.encoder.Encode(msg)
}

// Close closes the connection.
func (c *ClientConn) Close() {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// Subscribe enables build/event notifications for this client.
func (c *ClientConn) Subscribe() { c.subscribed.Store(true) }

// Subscribed reports whether the client receives notifications.
func (c *ClientConn) Subscribed() bool { return c.subscribed.Load() }

// broadcastSink forwards progress to subscribed clients.
type broadcastSink struct{ s *Server }

func (b broadcastSink) Output(m progress.Message) { b.s.Broadcast(m) }
func (broadcastSink) SetHasError()                {}
func (broadcastSink) SetHasWarnings()             {}
