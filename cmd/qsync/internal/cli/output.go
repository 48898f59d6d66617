package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/albertocavalcante/qsync/internal/log"
	"github.com/albertocavalcante/qsync/pkg/progress"
)

// Output formats accepted by --format.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

// writerSink prints progress messages as they arrive.
type writerSink struct {
	mu sync.Mutex
	w  io.Writer
}

func newWriterSink(w io.Writer) *writerSink { return &writerSink{w: w} }

func (s *writerSink) Output(m progress.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	printMessage(s.w, m)
}

func (*writerSink) SetHasError()    {}
func (*writerSink) SetHasWarnings() {}

func printMessage(w io.Writer, m progress.Message) {
	switch m.Level {
	case progress.LevelWarning:
		fmt.Fprintf(w, "warning: %s\n", m.Text)
	case progress.LevelError:
		fmt.Fprintf(w, "error: %s\n", m.Text)
	case progress.LevelLog:
		if log.Verbosity() >= log.VerbosityInfo {
			fmt.Fprintln(w, m.Text)
		}
	default:
		fmt.Fprintln(w, m.Text)
	}
}

// printMessages replays messages a daemon recorded for one request.
func printMessages(w io.Writer, msgs []progress.Message) {
	for _, m := range msgs {
		printMessage(w, m)
	}
}

// encode writes v as indented JSON or YAML.
func encode(w io.Writer, format string, v any) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown format %q (want text, json or yaml)", format)
}

// formatUptime formats the uptime string for display.
func formatUptime(uptime string) string {
	// Try to parse and format nicely
	d, err := time.ParseDuration(uptime)
	if err != nil {
		return uptime
	}

	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	return fmt.Sprintf("%dd %dh", days, hours)
}
