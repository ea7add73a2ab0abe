package storyrun

import (
	"encoding/json"
	"io"
	"sync"
	"time"
)

// ResultSink records a story's per-line outcomes as it runs — the
// reimplementation of asyncy/tasks/Story.py:save's narration/results
// persistence, against a pluggable interface instead of a MongoDB driver
// (SPEC_FULL.md §9.2).
type ResultSink interface {
	RecordResult(story, lineID string, result any)
	RecordError(story, lineID string, err error)
}

// resultEntry is one recorded line outcome.
type resultEntry struct {
	Story     string    `json:"story"`
	Line      string    `json:"line"`
	Result    any       `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// MemorySink is an in-memory ResultSink, keyed by story name — enough for
// tests and single-process runs.
type MemorySink struct {
	mu      sync.Mutex
	entries map[string][]resultEntry
}

// NewMemorySink returns an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{entries: make(map[string][]resultEntry)}
}

func (s *MemorySink) RecordResult(story, lineID string, result any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[story] = append(s.entries[story], resultEntry{
		Story: story, Line: lineID, Result: result, Timestamp: time.Now(),
	})
}

func (s *MemorySink) RecordError(story, lineID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[story] = append(s.entries[story], resultEntry{
		Story: story, Line: lineID, Error: err.Error(), Timestamp: time.Now(),
	})
}

// Results returns a snapshot of every entry recorded for story.
func (s *MemorySink) Results(story string) []resultEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]resultEntry, len(s.entries[story]))
	copy(out, s.entries[story])
	return out
}

// JSONLSink appends each recorded entry as one JSON line to an underlying
// writer — the durable-ish local persistence the corpus favors over a
// database driver (grounded on the teacher's JSONL event log).
type JSONLSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewJSONLSink wraps w (typically an os.File opened for append).
func NewJSONLSink(w io.Writer) *JSONLSink {
	return &JSONLSink{w: w}
}

func (s *JSONLSink) write(e resultEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	enc := json.NewEncoder(s.w)
	_ = enc.Encode(e)
}

func (s *JSONLSink) RecordResult(story, lineID string, result any) {
	s.write(resultEntry{Story: story, Line: lineID, Result: result, Timestamp: time.Now()})
}

func (s *JSONLSink) RecordError(story, lineID string, err error) {
	s.write(resultEntry{Story: story, Line: lineID, Error: err.Error(), Timestamp: time.Now()})
}
