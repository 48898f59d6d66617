// Package daemon serves one workspace's sync session over JSON-RPC 2.0 on
// a Unix socket, so several clients share one snapshot and artifact cache.
package daemon

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/albertocavalcante/qsync/pkg/progress"
)

// JSON-RPC 2.0 version string.
const JSONRPCVersion = "2.0"

// JSON-RPC 2.0 error codes.
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// Application error codes, in the range JSON-RPC reserves for servers.
const (
	ErrCodeNoSnapshot     = -32001
	ErrCodeUnresolvedFile = -32002
	ErrCodeNoArtifacts    = -32003
	ErrCodeBuildFailed    = -32004
	ErrCodeCancelled      = -32005
)

// Request is a JSON-RPC 2.0 request. ID is nil for notifications.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// Notification is a server-initiated message with no response.
type Notification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// incoming is any message a client may read: a response or a notification.
type incoming struct {
	ID     *int64          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *RPCError       `json:"error,omitempty"`
}

// RPCError is a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// NewRequest creates a request.
func NewRequest(id int64, method string, params any) (*Request, error) {
	req := &Request{JSONRPC: JSONRPCVersion, ID: &id, Method: method}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal params: %w", err)
		}
		req.Params = data
	}
	return req, nil
}

// NewNotification creates a notification.
func NewNotification(method string, params any) (*Notification, error) {
	n := &Notification{JSONRPC: JSONRPCVersion, Method: method}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal params: %w", err)
		}
		n.Params = data
	}
	return n, nil
}

// NewResponse creates a successful response. A nil result is sent as null.
func NewResponse(id int64, result any) (*Response, error) {
	resp := &Response{JSONRPC: JSONRPCVersion, ID: &id, Result: json.RawMessage("null")}
	if result != nil {
		data, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal result: %w", err)
		}
		resp.Result = data
	}
	return resp, nil
}

// NewErrorResponse creates an error response.
func NewErrorResponse(id *int64, code int, message string, data any) *Response {
	resp := &Response{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error:   &RPCError{Code: code, Message: message},
	}
	if data != nil {
		if d, err := json.Marshal(data); err == nil {
			resp.Error.Data = d
		}
	}
	return resp
}

// RPC methods.
const (
	MethodPing         = "ping"
	MethodShutdown     = "shutdown"
	MethodSyncRun      = "sync/run"
	MethodProjectGet   = "project/get"
	MethodOwnerGet     = "owner/get"
	MethodBuildFiles   = "build/files"
	MethodArtifactList = "artifacts/list"
	MethodWatchStart   = "watch/start"
	MethodWatchStop    = "watch/stop"
	MethodWatchStatus  = "watch/status"
	MethodSubscribe    = "events/subscribe"
	// MethodBuildEvent is a notification carrying progress messages.
	MethodBuildEvent = "build/event"
)

// PingResult is the response to ping.
type PingResult struct {
	Pong      bool   `json:"pong"`
	Version   string `json:"version"`
	Root      string `json:"root"`
	Uptime    string `json:"uptime"`
	StartTime string `json:"start_time"`
	Synced    bool   `json:"synced"`
}

// ShutdownResult is the response to shutdown.
type ShutdownResult struct {
	Message string `json:"message"`
}

// SyncRunResult is the response to sync/run.
type SyncRunResult struct {
	Targets      int                `json:"targets"`
	ContentRoots int                `json:"content_roots"`
	Libraries    int                `json:"libraries"`
	Duration     string             `json:"duration"`
	Messages     []progress.Message `json:"messages,omitempty"`
}

// OwnerParams are the parameters of owner/get.
type OwnerParams struct {
	Path string `json:"path"`
}

// OwnerResult is the response to owner/get.
type OwnerResult struct {
	Path   string `json:"path"`
	Target string `json:"target,omitempty"`
	Found  bool   `json:"found"`
}

// BuildFilesParams are the parameters of build/files.
type BuildFilesParams struct {
	Paths []string `json:"paths"`
}

// BuildFilesResult is the response to build/files. A build that ran but
// failed is still a result; Warning carries its failure.
type BuildFilesResult struct {
	Targets  []string           `json:"targets"`
	ExitCode int                `json:"exit_code"`
	Updated  int                `json:"updated"`
	Removed  int                `json:"removed"`
	Duration string             `json:"duration"`
	Warning  string             `json:"warning,omitempty"`
	Messages []progress.Message `json:"messages,omitempty"`
}

// ArtifactInfo is one cached artifact.
type ArtifactInfo struct {
	Target    string    `json:"target"`
	Role      string    `json:"role"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Digest    string    `json:"digest"`
	BuildTime time.Time `json:"build_time"`
}

// ArtifactListResult is the response to artifacts/list.
type ArtifactListResult struct {
	Artifacts []ArtifactInfo `json:"artifacts"`
}

// WatchStartParams are the parameters of watch/start.
type WatchStartParams struct {
	Languages []string `json:"languages,omitempty"`
	Debounce  int      `json:"debounce,omitempty"` // milliseconds
	AutoSync  bool     `json:"auto_sync,omitempty"`
}

// WatchStartResult is the response to watch/start.
type WatchStartResult struct {
	Status    string   `json:"status"`
	Root      string   `json:"root"`
	Languages []string `json:"languages,omitempty"`
}

// WatchStopResult is the response to watch/stop.
type WatchStopResult struct {
	Status string `json:"status"`
}

// WatchStatusResult is the response to watch/status.
type WatchStatusResult struct {
	Watching  bool     `json:"watching"`
	Languages []string `json:"languages,omitempty"`
	Builds    int      `json:"builds"`
	Syncs     int      `json:"syncs"`
	Errors    int      `json:"errors"`
	Since     string   `json:"since,omitempty"`
}

// BuildEventParams carry one progress message to subscribers.
type BuildEventParams struct {
	Level     string `json:"level"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// IDGenerator generates request IDs.
type IDGenerator struct {
	counter atomic.Int64
}

// Next returns the next ID.
func (g *IDGenerator) Next() int64 {
	return g.counter.Add(1)
}

// Info describes a running daemon.
type Info struct {
	PID         int       `json:"pid"`
	Root        string    `json:"root"`
	SocketPath  string    `json:"socket_path"`
	StartTime   time.Time `json:"start_time"`
	Version     string    `json:"version"`
	Watching    bool      `json:"watching"`
	ClientCount int       `json:"client_count"`
}
