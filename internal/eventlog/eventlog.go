// Package eventlog is the dispatch core's Logger implementation: a
// structured, queryable event log (for internal/diagnose) backed by
// zerolog for the actual emission.
package eventlog

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventKind classifies an entry in the log.
type EventKind string

const (
	EventDebug             EventKind = "debug"
	EventInfo              EventKind = "info"
	EventDispatchStarted   EventKind = "dispatch.started"
	EventDispatchCompleted EventKind = "dispatch.completed"
	EventDispatchFailed    EventKind = "dispatch.failed"
	EventSubscription      EventKind = "subscription.registered"
)

// Event is one entry in the log.
type Event struct {
	Seq       uint64    `json:"seq"`
	Kind      EventKind `json:"kind"`
	Story     string    `json:"story,omitempty"`
	Line      string    `json:"line,omitempty"`
	Message   string    `json:"message"`
	ErrorKind string    `json:"error_kind,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Logger is a per-story Logger (storymodel.Logger) that both emits to
// zerolog and records into a shared Log for later analysis.
type Logger struct {
	log   *Log
	zl    zerolog.Logger
	story string
}

// NewLogger returns a Logger scoped to one story, recording into log.
func NewLogger(log *Log, zl zerolog.Logger, story string) *Logger {
	return &Logger{log: log, zl: zl, story: story}
}

func (l *Logger) Debug(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	l.zl.Debug().Str("story", l.story).Msg(msg)
	if l.log != nil {
		l.log.append(Event{Kind: EventDebug, Story: l.story, Message: msg})
	}
}

func (l *Logger) Info(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	l.zl.Info().Str("story", l.story).Msg(msg)
	if l.log != nil {
		l.log.append(Event{Kind: EventInfo, Story: l.story, Message: msg})
	}
}

// Log is a process-wide, append-only, thread-safe event log. Unlike a bare
// zerolog sink, it can be queried after the fact — internal/diagnose reads
// it back to summarize dispatch error rates per kind.
type Log struct {
	mu     sync.RWMutex
	events []Event
	seq    uint64
}

// NewLog returns an empty Log.
func NewLog() *Log {
	return &Log{}
}

func (l *Log) append(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	e.Seq = l.seq
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	l.events = append(l.events, e)
}

// RecordDispatch appends a dispatch-lifecycle event directly, bypassing the
// Debug/Info formatting path — for recording
// dispatch.started/completed/failed without a per-story Logger handle.
func (l *Log) RecordDispatch(kind EventKind, story, line, message, errorKind string) {
	l.append(Event{Kind: kind, Story: story, Line: line, Message: message, ErrorKind: errorKind})
}

// Events returns a snapshot of every recorded event, oldest first.
func (l *Log) Events() []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// CountByKind returns the number of recorded events for each EventKind.
// The map has no order; SortedKinds gives its keys in a fixed order.
func (l *Log) CountByKind() map[EventKind]int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[EventKind]int)
	for _, e := range l.events {
		out[e.Kind]++
	}
	return out
}

// CountByErrorKind returns the number of dispatch.failed events recorded
// for each DispatchError kind, e.g. "ConfigError" -> 3.
func (l *Log) CountByErrorKind() map[string]int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]int)
	for _, e := range l.events {
		if e.Kind == EventDispatchFailed && e.ErrorKind != "" {
			out[e.ErrorKind]++
		}
	}
	return out
}

// SortedKinds returns CountByKind's keys sorted alphabetically, for
// deterministic report output.
func SortedKinds(counts map[EventKind]int) []EventKind {
	out := make([]EventKind, 0, len(counts))
	for k := range counts {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
