// Package diagnose analyzes a dispatch event log and produces a concise
// failure summary — the JSONL-log-to-report shape the corpus uses for
// post-mortem analysis, repurposed from traffic/test diagnosis to dispatch
// error diagnosis. Zero external dependencies, matching the teacher's own
// choice for this concern.
package diagnose

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/nemaniarjun/storyengine/internal/eventlog"
)

// Report is the structured analysis of one dispatch event log.
type Report struct {
	TotalEvents   int            `json:"total_events"`
	ByKind        map[string]int `json:"by_kind"`
	ByErrorKind   map[string]int `json:"by_error_kind"`
	Failures      []Failure      `json:"failures,omitempty"`
	NoisiestStory string         `json:"noisiest_story,omitempty"`
}

// Failure is one dispatch.failed event, preserved verbatim for triage.
type Failure struct {
	Story     string `json:"story"`
	Line      string `json:"line"`
	ErrorKind string `json:"error_kind"`
	Message   string `json:"message"`
}

// Analyze summarizes a Log already held in memory — the common case when
// diagnose runs in-process against a live engine.
func Analyze(log *eventlog.Log) Report {
	events := log.Events()
	return summarize(events)
}

// AnalyzeJSONL reads one JSON-encoded eventlog.Event per line from r
// (blank lines are skipped) and summarizes it — the CLI entry point for
// `storyctl explain`.
func AnalyzeJSONL(r io.Reader) (Report, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var events []eventlog.Event
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var e eventlog.Event
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			return Report{}, fmt.Errorf("parsing event log line: %w", err)
		}
		events = append(events, e)
	}
	if err := scanner.Err(); err != nil {
		return Report{}, fmt.Errorf("reading event log: %w", err)
	}
	return summarize(events), nil
}

func summarize(events []eventlog.Event) Report {
	r := Report{
		ByKind:      make(map[string]int),
		ByErrorKind: make(map[string]int),
	}
	storyCounts := make(map[string]int)

	for _, e := range events {
		r.TotalEvents++
		r.ByKind[string(e.Kind)]++
		if e.Story != "" {
			storyCounts[e.Story]++
		}
		if e.Kind == eventlog.EventDispatchFailed {
			r.ByErrorKind[e.ErrorKind]++
			r.Failures = append(r.Failures, Failure{
				Story: e.Story, Line: e.Line, ErrorKind: e.ErrorKind, Message: e.Message,
			})
		}
	}

	var best string
	var bestCount int
	for story, count := range storyCounts {
		if count > bestCount || (count == bestCount && story < best) {
			best, bestCount = story, count
		}
	}
	r.NoisiestStory = best

	return r
}

// String renders a Report as a short human-readable summary, in the
// teacher's plain-text explain-output style.
func (r Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d events", r.TotalEvents)
	if r.NoisiestStory != "" {
		fmt.Fprintf(&b, " (noisiest story: %s)", r.NoisiestStory)
	}
	b.WriteByte('\n')

	kinds := make([]string, 0, len(r.ByErrorKind))
	for k := range r.ByErrorKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(&b, "  %s: %d\n", k, r.ByErrorKind[k])
	}
	return b.String()
}
