package watch

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

// ChangeType represents the type of file change.
type ChangeType string

const (
	ChangeAdded    ChangeType = "+"
	ChangeModified ChangeType = "~"
	ChangeDeleted  ChangeType = "-"
)

// Logger writes watch mode output, as text or one JSON object per line.
type Logger struct {
	writer  io.Writer
	isTTY   bool
	verbose bool
	noColor bool
	jsonOut bool

	statsMu sync.Mutex
	stats   Stats
}

// Stats counts what a watch session did.
type Stats struct {
	Builds    int       `json:"builds"`
	Syncs     int       `json:"syncs"`
	Errors    int       `json:"errors"`
	Updated   int       `json:"updated"`
	Removed   int       `json:"removed"`
	StartTime time.Time `json:"start_time"`
}

// LoggerConfig configures the logger.
type LoggerConfig struct {
	Writer  io.Writer
	Verbose bool
	NoColor bool
	JSON    bool
}

// NewLogger creates a logger. Color is only used on terminals.
func NewLogger(cfg LoggerConfig) *Logger {
	writer := cfg.Writer
	if writer == nil {
		writer = os.Stdout
	}
	isTTY := false
	if f, ok := writer.(*os.File); ok {
		isTTY = term.IsTerminal(int(f.Fd()))
	}
	return &Logger{
		writer:  writer,
		isTTY:   isTTY,
		verbose: cfg.Verbose,
		noColor: cfg.NoColor,
		jsonOut: cfg.JSON,
		stats:   Stats{StartTime: time.Now()},
	}
}

// Ready logs that watching started.
func (l *Logger) Ready(targets int, languages []string, path string) {
	if l.jsonOut {
		l.writeJSON(map[string]any{
			"event":     "ready",
			"targets":   targets,
			"languages": languages,
			"path":      path,
		})
		return
	}
	l.printf("qsync: watching %s (%d targets)\n", path, targets)
	if len(languages) > 0 {
		l.printf("qsync: languages: %s\n", strings.Join(languages, ", "))
	}
	l.println("qsync: ready")
	l.println()
}

// FileChanged logs a file event. Text output shows it only when verbose.
func (l *Logger) FileChanged(path string, change ChangeType) {
	if l.jsonOut {
		l.writeJSON(map[string]any{
			"event":  "file_changed",
			"path":   path,
			"change": string(change),
			"time":   time.Now().Format(time.RFC3339),
		})
		return
	}
	if l.verbose {
		l.printf("[%s] %s %s\n", l.timestamp(), l.colorize(string(change), change), path)
	}
}

// Skipped logs a changed file that no synced target owns.
func (l *Logger) Skipped(path string) {
	if l.jsonOut {
		l.writeJSON(map[string]any{"event": "skipped", "path": path})
		return
	}
	if l.verbose {
		l.printf("[%s] %s not in any synced target\n", l.timestamp(), path)
	}
}

// Building logs that a build is starting.
func (l *Logger) Building(paths []string) {
	if l.jsonOut {
		l.writeJSON(map[string]any{
			"event": "building",
			"files": paths,
			"time":  time.Now().Format(time.RFC3339),
		})
		return
	}
	if len(paths) == 1 {
		l.printf("[%s] building %s...\n", l.timestamp(), paths[0])
	} else {
		l.printf("[%s] building %d files...\n", l.timestamp(), len(paths))
	}
}

// Built logs a finished build and its cache update.
func (l *Logger) Built(targets []string, updated, removed int, took time.Duration) {
	l.statsMu.Lock()
	l.stats.Builds++
	l.stats.Updated += updated
	l.stats.Removed += removed
	l.statsMu.Unlock()

	if l.jsonOut {
		l.writeJSON(map[string]any{
			"event":       "built",
			"targets":     targets,
			"updated":     updated,
			"removed":     removed,
			"duration_ms": took.Milliseconds(),
		})
		return
	}
	check := l.colorize("✓", ChangeAdded)
	l.printf("[%s] %s %s (%d updated, %d removed, %s)\n",
		l.timestamp(), check, strings.Join(targets, " "), updated, removed, took.Round(time.Millisecond))
}

// Synced logs a re-sync after BUILD files changed.
func (l *Logger) Synced(targets int) {
	l.statsMu.Lock()
	l.stats.Syncs++
	l.statsMu.Unlock()

	if l.jsonOut {
		l.writeJSON(map[string]any{"event": "synced", "targets": targets})
		return
	}
	l.printf("[%s] %s re-synced (%d targets)\n", l.timestamp(), l.colorize("✓", ChangeAdded), targets)
}

// Error logs an error.
func (l *Logger) Error(err error) {
	l.statsMu.Lock()
	l.stats.Errors++
	l.statsMu.Unlock()

	if l.jsonOut {
		l.writeJSON(map[string]any{
			"event": "error",
			"error": err.Error(),
			"time":  time.Now().Format(time.RFC3339),
		})
		return
	}
	xmark := l.colorize("✗", ChangeDeleted)
	l.printf("[%s] %s error: %v\n", l.timestamp(), xmark, err)
}

// Shutdown logs the session statistics.
func (l *Logger) Shutdown() {
	stats := l.Stats()
	if l.jsonOut {
		l.writeJSON(map[string]any{
			"event":    "shutdown",
			"builds":   stats.Builds,
			"syncs":    stats.Syncs,
			"errors":   stats.Errors,
			"duration": time.Since(stats.StartTime).String(),
		})
		return
	}
	l.println()
	l.printf("qsync: shutting down (%d builds, %d syncs, %d errors)\n", stats.Builds, stats.Syncs, stats.Errors)
}

// Stats returns the current statistics.
func (l *Logger) Stats() Stats {
	l.statsMu.Lock()
	defer l.statsMu.Unlock()
	return l.stats
}

func (l *Logger) timestamp() string {
	return time.Now().Format("15:04:05")
}

func (l *Logger) colorize(s string, change ChangeType) string {
	if l.noColor || !l.isTTY {
		return s
	}
	var color string
	switch change {
	case ChangeAdded:
		color = "\033[32m"
	case ChangeModified:
		color = "\033[33m"
	case ChangeDeleted:
		color = "\033[31m"
	default:
		return s
	}
	return color + s + "\033[0m"
}

func (l *Logger) writeJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		l.println(`{"event":"internal_error","error":"json marshal failed"}`)
		return
	}
	l.println(string(data))
}

// Output errors are ignored; the log is informational.
func (l *Logger) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(l.writer, format, args...)
}

func (l *Logger) println(args ...any) {
	_, _ = fmt.Fprintln(l.writer, args...)
}
