package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/albertocavalcante/qsync/cmd/qsync/internal/watch"
	"github.com/albertocavalcante/qsync/internal/log"
	"github.com/albertocavalcante/qsync/pkg/artifact"
	"github.com/albertocavalcante/qsync/pkg/artifactbuild"
	"github.com/albertocavalcante/qsync/pkg/progress"
	"github.com/albertocavalcante/qsync/pkg/project"
)

// Service is the sync session the daemon serves.
type Service interface {
	watch.Session
	Root() string
	Project() (*project.Project, error)
	Artifacts() []artifact.Entry
}

// Handler dispatches RPC methods to the service.
type Handler struct {
	server  *Server
	service Service

	watchMu     sync.RWMutex
	watcher     *watch.Watcher
	watchCancel context.CancelFunc
	watchDone   chan struct{}
	watchLangs  []string
	watchSince  time.Time
}

// NewHandler creates a handler. server may be nil when events are not
// broadcast.
func NewHandler(server *Server, service Service) *Handler {
	return &Handler{server: server, service: service}
}

// HandleRequest runs one request. Notifications get no response.
func (h *Handler) HandleRequest(ctx context.Context, client *ClientConn, req *Request) *Response {
	log.Component("daemon").Debugw("handling request", "method", req.Method, "id", req.ID)

	var (
		result any
		err    error
	)
	switch req.Method {
	case MethodPing:
		result = h.ping()
	case MethodShutdown:
		result = h.shutdown()
	case MethodSyncRun:
		result, err = h.syncRun(ctx)
	case MethodProjectGet:
		result, err = h.service.Project()
	case MethodOwnerGet:
		var params OwnerParams
		if err = decodeParams(req, &params); err == nil {
			result, err = h.owner(params)
		}
	case MethodBuildFiles:
		var params BuildFilesParams
		if err = decodeParams(req, &params); err == nil {
			result, err = h.buildFiles(ctx, params)
		}
	case MethodArtifactList:
		result = h.artifacts()
	case MethodWatchStart:
		var params WatchStartParams
		if err = decodeParams(req, &params); err == nil {
			result, err = h.watchStart(params)
			if err == nil && client != nil {
				client.Subscribe()
			}
		}
	case MethodWatchStop:
		result = h.watchStop()
	case MethodWatchStatus:
		result = h.WatchStatus()
	case MethodSubscribe:
		if client != nil {
			client.Subscribe()
		}
	default:
		if req.ID == nil {
			return nil
		}
		return NewErrorResponse(req.ID, ErrCodeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method), nil)
	}

	if req.ID == nil {
		return nil
	}
	if err != nil {
		return errorResponse(req.ID, err)
	}
	resp, err := NewResponse(*req.ID, result)
	if err != nil {
		return NewErrorResponse(req.ID, ErrCodeInternalError, "Failed to create response", nil)
	}
	return resp
}

// invalidParams marks a params decoding failure.
type invalidParams struct{ err error }

func (e *invalidParams) Error() string { return e.err.Error() }

func decodeParams(req *Request, v any) error {
	if len(req.Params) == 0 {
		return nil
	}
	if err := json.Unmarshal(req.Params, v); err != nil {
		return &invalidParams{err}
	}
	return nil
}

// errorResponse maps service errors onto RPC error codes.
func errorResponse(id *int64, err error) *Response {
	var (
		params     *invalidParams
		unresolved *artifactbuild.UnresolvedFileError
		noArts     *artifact.NoArtifactsProducedError
		buildFail  *artifactbuild.BuildFailureError
	)
	switch {
	case errors.As(err, &params):
		return NewErrorResponse(id, ErrCodeInvalidParams, "Invalid params", params.Error())
	case errors.Is(err, artifactbuild.ErrNoSnapshot):
		return NewErrorResponse(id, ErrCodeNoSnapshot, err.Error(), nil)
	case errors.As(err, &unresolved):
		return NewErrorResponse(id, ErrCodeUnresolvedFile, err.Error(), unresolved.Paths)
	case errors.As(err, &noArts):
		targets := make([]string, len(noArts.Targets))
		for i, t := range noArts.Targets {
			targets[i] = t.String()
		}
		return NewErrorResponse(id, ErrCodeNoArtifacts, err.Error(), targets)
	case errors.As(err, &buildFail):
		return NewErrorResponse(id, ErrCodeBuildFailed, err.Error(), nil)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return NewErrorResponse(id, ErrCodeCancelled, err.Error(), nil)
	}
	return NewErrorResponse(id, ErrCodeInternalError, err.Error(), nil)
}

func (h *Handler) ping() PingResult {
	res := PingResult{Pong: true, Root: h.service.Root()}
	if h.server != nil {
		res.Version = h.server.version
		res.Uptime = h.server.Uptime().Round(time.Second).String()
		res.StartTime = h.server.startTime.Format(time.RFC3339)
	}
	_, err := h.service.Project()
	res.Synced = err == nil
	return res
}

func (h *Handler) shutdown() ShutdownResult {
	if h.server != nil {
		// Let the response reach the client first.
		go func() {
			time.Sleep(100 * time.Millisecond)
			h.server.RequestShutdown()
		}()
	}
	return ShutdownResult{Message: "daemon shutting down"}
}

// sink records messages for the response and mirrors them to the log and
// to subscribed clients.
func (h *Handler) sink() (*progress.Recorder, progress.Sink) {
	rec := &progress.Recorder{}
	sinks := progress.Multi{rec, progress.LogSink{Component: "daemon"}}
	if h.server != nil {
		sinks = append(sinks, broadcastSink{h.server})
	}
	return rec, sinks
}

func (h *Handler) syncRun(ctx context.Context) (*SyncRunResult, error) {
	rec, sink := h.sink()
	start := time.Now()
	snap, err := h.service.Sync(ctx, sink)
	if err != nil {
		return nil, err
	}
	p := snap.Project()
	return &SyncRunResult{
		Targets:      snap.Graph().Len(),
		ContentRoots: len(p.ContentRoots),
		Libraries:    len(p.Libraries),
		Duration:     time.Since(start).Round(time.Millisecond).String(),
		Messages:     rec.Messages(),
	}, nil
}

func (h *Handler) owner(params OwnerParams) (*OwnerResult, error) {
	if params.Path == "" {
		return nil, &invalidParams{errors.New("path is required")}
	}
	l, ok, err := h.service.Owner(params.Path)
	if err != nil {
		return nil, err
	}
	res := &OwnerResult{Path: params.Path, Found: ok}
	if ok {
		res.Target = l.String()
	}
	return res, nil
}

func (h *Handler) buildFiles(ctx context.Context, params BuildFilesParams) (*BuildFilesResult, error) {
	rec, sink := h.sink()
	start := time.Now()
	out, err := h.service.BuildFiles(ctx, sink, params.Paths)
	if out == nil {
		if err == nil {
			err = errors.New("build returned no outcome")
		}
		return nil, err
	}
	res := &BuildFilesResult{
		ExitCode: out.ExitCode,
		Duration: time.Since(start).Round(time.Millisecond).String(),
		Messages: rec.Messages(),
	}
	for _, t := range out.Targets {
		res.Targets = append(res.Targets, t.String())
	}
	if out.Update != nil {
		res.Updated = len(out.Update.Updated)
		res.Removed = len(out.Update.Removed)
	}
	if err != nil {
		var buildFail *artifactbuild.BuildFailureError
		if !errors.As(err, &buildFail) {
			return nil, err
		}
		res.Warning = err.Error()
	}
	return res, nil
}

func (h *Handler) artifacts() *ArtifactListResult {
	entries := h.service.Artifacts()
	res := &ArtifactListResult{Artifacts: make([]ArtifactInfo, 0, len(entries))}
	for _, e := range entries {
		res.Artifacts = append(res.Artifacts, ArtifactInfo{
			Target:    e.Key.Target.String(),
			Role:      string(e.Key.Role),
			Name:      e.Key.Name,
			Path:      e.Path,
			Digest:    e.Digest,
			BuildTime: e.BuildTime,
		})
	}
	return res
}

func (h *Handler) watchStart(params WatchStartParams) (*WatchStartResult, error) {
	h.watchMu.Lock()
	defer h.watchMu.Unlock()

	root := h.service.Root()
	if h.watcher != nil {
		return &WatchStartResult{Status: "already_watching", Root: root, Languages: h.watchLangs}, nil
	}

	sink := progress.Multi{progress.LogSink{Component: "watch"}}
	if h.server != nil {
		sink = append(sink, broadcastSink{h.server})
	}
	w, err := watch.New(watch.Config{
		Root:      root,
		Languages: params.Languages,
		Debounce:  params.Debounce,
		AutoSync:  params.AutoSync,
		NoColor:   true,
		JSON:      true,
		Writer:    io.Discard,
		Sink:      sink,
	}, h.service)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	h.watcher = w
	h.watchCancel = cancel
	h.watchDone = done
	h.watchLangs = params.Languages
	h.watchSince = time.Now()
	go h.runWatcher(ctx, w, done)

	return &WatchStartResult{Status: "watching", Root: root, Languages: params.Languages}, nil
}

func (h *Handler) runWatcher(ctx context.Context, w *watch.Watcher, done chan struct{}) {
	defer close(done)
	logger := log.Component("daemon")
	if err := w.Run(ctx); err != nil {
		logger.Warnw("watcher stopped with error", "error", err)
	}
	_ = w.Close()

	h.watchMu.Lock()
	if h.watcher == w {
		h.watcher = nil
		h.watchCancel = nil
	}
	h.watchMu.Unlock()
	logger.Infow("watcher stopped")
}

func (h *Handler) watchStop() WatchStopResult {
	if !h.stopWatcher() {
		return WatchStopResult{Status: "not_watching"}
	}
	return WatchStopResult{Status: "stopped"}
}

// stopWatcher cancels the watcher and waits for it to exit.
func (h *Handler) stopWatcher() bool {
	h.watchMu.Lock()
	cancel, done := h.watchCancel, h.watchDone
	running := h.watcher != nil
	h.watcher = nil
	h.watchCancel = nil
	h.watchMu.Unlock()

	if !running {
		return false
	}
	cancel()
	<-done
	return true
}

// WatchStatus reports the watcher state.
func (h *Handler) WatchStatus() *WatchStatusResult {
	h.watchMu.RLock()
	defer h.watchMu.RUnlock()
	res := &WatchStatusResult{Watching: h.watcher != nil}
	if h.watcher != nil {
		stats := h.watcher.Stats()
		res.Languages = h.watchLangs
		res.Builds = stats.Builds
		res.Syncs = stats.Syncs
		res.Errors = stats.Errors
		res.Since = h.watchSince.Format(time.RFC3339)
	}
	return res
}

// Stop stops any running watcher.
func (h *Handler) Stop() {
	h.stopWatcher()
}
