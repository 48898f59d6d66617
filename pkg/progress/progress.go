// Package progress reports long-running operation status to a consumer.
package progress

import (
	"fmt"
	"slices"
	"sync"

	"github.com/albertocavalcante/qsync/internal/log"
)

// Level classifies a message.
type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
	// LevelLog is verbose output that consumers may hide.
	LevelLog
)

func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	case LevelLog:
		return "log"
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(b []byte) error {
	for _, c := range []Level{LevelInfo, LevelWarning, LevelError, LevelLog} {
		if c.String() == string(b) {
			*l = c
			return nil
		}
	}
	return fmt.Errorf("unknown progress level %q", b)
}

// Message is one line of progress output.
type Message struct {
	Level Level  `json:"level"`
	Text  string `json:"text"`
}

// Sink receives progress. Implementations must be safe for concurrent use.
// Cancellation is carried by the caller's context, not the sink.
type Sink interface {
	Output(Message)
	SetHasError()
	SetHasWarnings()
}

// Infof sends an info message.
func Infof(s Sink, format string, args ...any) {
	s.Output(Message{Level: LevelInfo, Text: fmt.Sprintf(format, args...)})
}

// Warnf sends a warning and marks the sink.
func Warnf(s Sink, format string, args ...any) {
	s.Output(Message{Level: LevelWarning, Text: fmt.Sprintf(format, args...)})
	s.SetHasWarnings()
}

// Errorf sends an error and marks the sink.
func Errorf(s Sink, format string, args ...any) {
	s.Output(Message{Level: LevelError, Text: fmt.Sprintf(format, args...)})
	s.SetHasError()
}

// Recorder keeps every message in memory.
type Recorder struct {
	mu          sync.Mutex
	messages    []Message
	hasError    bool
	hasWarnings bool
}

func (r *Recorder) Output(m Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, m)
}

func (r *Recorder) SetHasError() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hasError = true
}

func (r *Recorder) SetHasWarnings() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hasWarnings = true
}

// Messages returns a copy of what was recorded.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.messages)
}

// HasError reports whether SetHasError was called.
func (r *Recorder) HasError() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hasError
}

// HasWarnings reports whether SetHasWarnings was called.
func (r *Recorder) HasWarnings() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hasWarnings
}

// LogSink forwards messages to the component logger.
type LogSink struct {
	Component string
}

func (s LogSink) Output(m Message) {
	logger := log.Component(s.Component)
	switch m.Level {
	case LevelError:
		logger.Error(m.Text)
	case LevelWarning:
		logger.Warn(m.Text)
	case LevelLog:
		logger.Debug(m.Text)
	default:
		logger.Info(m.Text)
	}
}

func (LogSink) SetHasError()    {}
func (LogSink) SetHasWarnings() {}

// Multi fans out to several sinks.
type Multi []Sink

func (m Multi) Output(msg Message) {
	for _, s := range m {
		s.Output(msg)
	}
}

func (m Multi) SetHasError() {
	for _, s := range m {
		s.SetHasError()
	}
}

func (m Multi) SetHasWarnings() {
	for _, s := range m {
		s.SetHasWarnings()
	}
}

// Discard drops everything.
var Discard Sink = discard{}

type discard struct{}

func (discard) Output(Message)  {}
func (discard) SetHasError()    {}
func (discard) SetHasWarnings() {}
