package logger

import (
	"strings"
	"sync"
	"time"
)

// Event is one entry of an invocation's ordered event log.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// EventLog collects human-readable progress messages for a single invocation.
// It is returned to the caller instead of being written to the console.
type EventLog struct {
	mu     sync.Mutex
	events []Event
	now    func() time.Time
}

func NewEventLog() *EventLog {
	return &EventLog{now: func() time.Time { return time.Now().UTC() }}
}

// NewEventLogWithClock is used by tests that need deterministic timestamps.
func NewEventLogWithClock(now func() time.Time) *EventLog {
	return &EventLog{now: now}
}

func (l *EventLog) Add(message string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := l.now()
	// keep timestamps non-decreasing even if the wall clock steps back
	if n := len(l.events); n > 0 && ts.Before(l.events[n-1].Timestamp) {
		ts = l.events[n-1].Timestamp
	}
	l.events = append(l.events, Event{Timestamp: ts, Message: message})
}

// Events returns a copy of the log in insertion order.
func (l *EventLog) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

func (l *EventLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// String joins the messages with newlines, the shape CRM workflows expect in a text field.
func (l *EventLog) String() string {
	events := l.Events()
	lines := make([]string, len(events))
	for i, e := range events {
		lines[i] = e.Message
	}
	return strings.Join(lines, "\n")
}

// teeLogger writes Info/Warn/Error messages to both the base logger and an EventLog.
type teeLogger struct {
	base   Logger
	events *EventLog
}

// WithEventLog returns a Logger whose Info, Warn and Error calls are also
// appended to events. Debug output stays out of the event log.
func WithEventLog(base Logger, events *EventLog) Logger {
	return &teeLogger{base: base, events: events}
}

func (t *teeLogger) Debug(msg string, fields map[string]interface{}) {
	t.base.Debug(msg, fields)
}

func (t *teeLogger) Info(msg string, fields map[string]interface{}) {
	t.events.Add(msg)
	t.base.Info(msg, fields)
}

func (t *teeLogger) Warn(msg string, fields map[string]interface{}) {
	t.events.Add(msg)
	t.base.Warn(msg, fields)
}

func (t *teeLogger) Error(msg string, fields map[string]interface{}) {
	t.events.Add("ERROR: " + msg)
	t.base.Error(msg, fields)
}

func (t *teeLogger) WithFields(fields map[string]interface{}) Logger {
	return &teeLogger{base: t.base.WithFields(fields), events: t.events}
}

func (t *teeLogger) WithError(err error) Logger {
	return &teeLogger{base: t.base.WithError(err), events: t.events}
}

func (t *teeLogger) With(fields map[string]interface{}) Logger {
	return t.WithFields(fields)
}
