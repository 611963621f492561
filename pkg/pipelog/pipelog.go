// Package pipelog is the structured event sink shared by the pipeline
// components. It is passed in at construction rather than reached through a
// global, so tests can capture emitted events deterministically.
package pipelog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is one pipeline lifecycle event. The core only appends events; it
// never reads them back.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Project   string    `json:"project"`
	RunID     string    `json:"run_id"`
	Stage     string    `json:"stage"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail,omitempty"`
	Level     string    `json:"level,omitempty"`
}

// Logger records pipeline events for one project run.
type Logger struct {
	project string
	runID   string
	slog    *slog.Logger

	mu     sync.Mutex
	events []Event
	file   *os.File
}

// Option configures a Logger.
type Option func(*Logger)

// WithSlog replaces the default slog logger.
func WithSlog(l *slog.Logger) Option {
	return func(lg *Logger) { lg.slog = l }
}

// New creates a Logger for a project run with a fresh run ID.
func New(project string, opts ...Option) *Logger {
	l := &Logger{
		project: project,
		runID:   uuid.NewString(),
		slog:    slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LogToFile additionally appends events as JSON lines to a per-run file
// under dir, named <project>_<timestamp>.jsonl.
func (l *Logger) LogToFile(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	name := fmt.Sprintf("%s_%s.jsonl", l.project, time.Now().UTC().Format("20060102_150405"))
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	l.mu.Lock()
	l.file = f
	l.mu.Unlock()
	return nil
}

// RunID returns the unique ID of this run.
func (l *Logger) RunID() string {
	if l == nil {
		return ""
	}
	return l.runID
}

// Event records an info-level lifecycle event.
func (l *Logger) Event(stage, action, detail string) {
	l.record(stage, action, detail, slog.LevelInfo)
}

// Warn records a warning-level event.
func (l *Logger) Warn(stage, action, detail string) {
	l.record(stage, action, detail, slog.LevelWarn)
}

// Error records an error-level event.
func (l *Logger) Error(stage, action, detail string) {
	l.record(stage, action, detail, slog.LevelError)
}

func (l *Logger) record(stage, action, detail string, level slog.Level) {
	if l == nil {
		return
	}
	e := Event{
		Timestamp: time.Now().UTC(),
		Project:   l.project,
		RunID:     l.runID,
		Stage:     stage,
		Action:    action,
		Detail:    detail,
	}
	if level != slog.LevelInfo {
		e.Level = level.String()
	}

	l.mu.Lock()
	l.events = append(l.events, e)
	if l.file != nil {
		if line, err := json.Marshal(e); err == nil {
			l.file.Write(append(line, '\n'))
		}
	}
	l.mu.Unlock()

	l.slog.Log(context.Background(), level, detail,
		slog.String("project", l.project),
		slog.String("run_id", l.runID),
		slog.String("stage", stage),
		slog.String("action", action),
	)
}

// Events returns a copy of all events recorded so far.
func (l *Logger) Events() []Event {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// Close flushes and closes the JSONL file, if one was opened.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
