package daemon

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/albertocavalcante/qsync/pkg/project"
)

// ErrNotConnected is returned when using a closed client.
var ErrNotConnected = errors.New("not connected to daemon")

// ErrDaemonNotRunning is returned when nothing listens on the socket.
var ErrDaemonNotRunning = errors.New("daemon not running")

// dialTimeout bounds connecting to the socket.
const dialTimeout = 5 * time.Second

// Client talks to a daemon. Calls are serialized; notifications that
// arrive while waiting for a response go to the events channel.
type Client struct {
	conn    net.Conn
	encoder *json.Encoder
	decoder *json.Decoder
	mu      sync.Mutex
	idGen   IDGenerator

	eventsMu sync.Mutex
	events   chan *Notification
}

// Connect dials the daemon socket.
func Connect(socketPath string) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, dialTimeout)
	if err != nil {
		if isNotListening(err) {
			return nil, ErrDaemonNotRunning
		}
		return nil, fmt.Errorf("failed to connect to daemon: %w", err)
	}
	return &Client{
		conn:    conn,
		encoder: json.NewEncoder(conn),
		decoder: json.NewDecoder(bufio.NewReader(conn)),
	}, nil
}

// isNotListening matches a missing socket file or a refused connection.
func isNotListening(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ENOENT)
}

// Close closes the connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// call sends a request and reads until its response arrives.
func (c *Client) call(method string, params, result any) error {
	if c.conn == nil {
		return ErrNotConnected
	}
	req, err := NewRequest(c.idGen.Next(), method, params)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.encoder.Encode(req); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	for {
		var msg incoming
		if err := c.decoder.Decode(&msg); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return ErrNotConnected
			}
			return fmt.Errorf("failed to read response: %w", err)
		}
		if msg.ID == nil && msg.Method != "" {
			c.deliver(&Notification{JSONRPC: JSONRPCVersion, Method: msg.Method, Params: msg.Params})
			continue
		}
		if msg.ID == nil || *msg.ID != *req.ID {
			if msg.Error != nil {
				return msg.Error
			}
			continue
		}
		if msg.Error != nil {
			return msg.Error
		}
		if result != nil && len(msg.Result) > 0 {
			if err := json.Unmarshal(msg.Result, result); err != nil {
				return fmt.Errorf("failed to unmarshal result: %w", err)
			}
		}
		return nil
	}
}

// deliver queues a notification, dropping it when nobody keeps up.
func (c *Client) deliver(n *Notification) {
	c.eventsMu.Lock()
	defer c.eventsMu.Unlock()
	if c.events == nil {
		return
	}
	select {
	case c.events <- n:
	default:
	}
}

// Events returns notifications received during calls, creating the
// channel on first use.
func (c *Client) Events() <-chan *Notification {
	c.eventsMu.Lock()
	defer c.eventsMu.Unlock()
	if c.events == nil {
		c.events = make(chan *Notification, 100)
	}
	return c.events
}

// Listen reads notifications until the connection closes, calling fn for
// each. It must not run alongside calls on the same client.
func (c *Client) Listen(fn func(*Notification)) error {
	if c.conn == nil {
		return ErrNotConnected
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for {
		var msg incoming
		if err := c.decoder.Decode(&msg); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		if msg.ID == nil && msg.Method != "" {
			fn(&Notification{JSONRPC: JSONRPCVersion, Method: msg.Method, Params: msg.Params})
		}
	}
}

// Ping checks the daemon is alive.
func (c *Client) Ping() (*PingResult, error) {
	var result PingResult
	if err := c.call(MethodPing, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Shutdown asks the daemon to exit.
func (c *Client) Shutdown() (*ShutdownResult, error) {
	var result ShutdownResult
	if err := c.call(MethodShutdown, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Sync runs a sync in the daemon.
func (c *Client) Sync() (*SyncRunResult, error) {
	var result SyncRunResult
	if err := c.call(MethodSyncRun, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Project returns the daemon's current project.
func (c *Client) Project() (*project.Project, error) {
	var result project.Project
	if err := c.call(MethodProjectGet, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Owner returns the target owning path.
func (c *Client) Owner(path string) (*OwnerResult, error) {
	var result OwnerResult
	if err := c.call(MethodOwnerGet, OwnerParams{Path: path}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// BuildFiles builds the targets owning paths.
func (c *Client) BuildFiles(paths []string) (*BuildFilesResult, error) {
	var result BuildFilesResult
	if err := c.call(MethodBuildFiles, BuildFilesParams{Paths: paths}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Artifacts lists the daemon's artifact cache.
func (c *Client) Artifacts() (*ArtifactListResult, error) {
	var result ArtifactListResult
	if err := c.call(MethodArtifactList, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// WatchStart starts the daemon's watcher and subscribes this client.
func (c *Client) WatchStart(params *WatchStartParams) (*WatchStartResult, error) {
	var result WatchStartResult
	if err := c.call(MethodWatchStart, params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// WatchStop stops the daemon's watcher.
func (c *Client) WatchStop() (*WatchStopResult, error) {
	var result WatchStopResult
	if err := c.call(MethodWatchStop, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// WatchStatus reports the daemon's watcher.
func (c *Client) WatchStatus() (*WatchStatusResult, error) {
	var result WatchStatusResult
	if err := c.call(MethodWatchStatus, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Subscribe asks for build/event notifications.
func (c *Client) Subscribe() error {
	return c.call(MethodSubscribe, nil, nil)
}

// IsRunningAt reports whether a daemon owns paths.
func IsRunningAt(paths *Paths) bool {
	return GetStatus(paths).Running
}
