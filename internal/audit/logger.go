// Package audit archives approval history beyond the in-memory session log:
// a JSONL stream for operators tailing decisions in real time, and a SQLite
// archive that survives restarts and backs the history endpoint.
package audit

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/briefgate/briefgate/internal/redact"
	"github.com/briefgate/briefgate/internal/session"
)

// Event is a single JSONL audit record wrapping a history entry with the
// session it belongs to.
type Event struct {
	Timestamp time.Time            `json:"timestamp"`
	SessionID string               `json:"session_id"`
	Entry     session.HistoryEntry `json:"entry"`
}

// LoggerConfig configures the JSONL audit logger.
type LoggerConfig struct {
	// Writer is the destination for JSONL output. If nil, events are only
	// dispatched to OnEvent (useful for testing).
	Writer io.Writer

	// Redactor, if non-nil, is applied to argument and note fields before
	// writing.
	Redactor *redact.Redactor

	// OnEvent, if non-nil, is called for every event (used in tests).
	OnEvent func(Event)

	// Now overrides time.Now for testing.
	Now func() time.Time
}

// Logger writes history entries as JSONL with optional redaction. It
// implements session.Recorder.
type Logger struct {
	writer   io.Writer
	redactor *redact.Redactor
	onEvent  func(Event)
	now      func() time.Time
	mu       sync.Mutex
}

var _ session.Recorder = (*Logger)(nil)

// NewLogger creates an audit logger with the given configuration.
func NewLogger(cfg LoggerConfig) *Logger {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Logger{
		writer:   cfg.Writer,
		redactor: cfg.Redactor,
		onEvent:  cfg.OnEvent,
		now:      now,
	}
}

// Record writes one history entry. Free-form fields pass through the
// redactor when one is configured; tool arguments routinely carry whatever
// the agent was asked to do, secrets included.
func (l *Logger) Record(sessionID string, entry session.HistoryEntry) {
	if l.redactor != nil {
		entry.Args = l.redactor.Redact(entry.Args)
		entry.Note = l.redactor.Redact(entry.Note)
		entry.StatusInfo = l.redactor.Redact(entry.StatusInfo)
	}

	event := Event{
		Timestamp: l.now(),
		SessionID: sessionID,
		Entry:     entry,
	}

	// Dispatch and write under one lock so output ordering matches
	// callback ordering.
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.onEvent != nil {
		l.onEvent(event)
	}

	if l.writer != nil {
		_ = json.NewEncoder(l.writer).Encode(event)
	}
}

// Fanout returns a Recorder that forwards every entry to each of rs in order.
func Fanout(rs ...session.Recorder) session.Recorder {
	return fanout(rs)
}

type fanout []session.Recorder

func (f fanout) Record(sessionID string, entry session.HistoryEntry) {
	for _, r := range f {
		r.Record(sessionID, entry)
	}
}
