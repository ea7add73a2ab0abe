package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/nemaniarjun/storyengine/internal/storymodel"
)

// nopLogger discards everything — the tests assert on return values and
// errors, not log output.
type nopLogger struct{}

func (nopLogger) Debug(format string, args ...any) {}
func (nopLogger) Info(format string, args ...any)  {}

// fakeStory is a minimal storymodel.Story for dispatch tests: lines and
// argument values are supplied directly by the test rather than evaluated
// from an expression tree.
type fakeStory struct {
	name  string
	lines map[string]storymodel.Line
	args  map[string]map[string]any // lineID -> argName -> value
	app   *storymodel.Application
	ctx   *storymodel.StoryContext
}

func newFakeStory(name string, app *storymodel.Application) *fakeStory {
	return &fakeStory{
		name:  name,
		lines: make(map[string]storymodel.Line),
		args:  make(map[string]map[string]any),
		app:   app,
		ctx:   storymodel.NewStoryContext(),
	}
}

func (s *fakeStory) addLine(l storymodel.Line) *fakeStory {
	s.lines[l.ID] = l
	return s
}

func (s *fakeStory) setArg(lineID, name string, value any) *fakeStory {
	if s.args[lineID] == nil {
		s.args[lineID] = make(map[string]any)
	}
	s.args[lineID][name] = value
	return s
}

func (s *fakeStory) Line(id string) (storymodel.Line, bool) {
	l, ok := s.lines[id]
	return l, ok
}

func (s *fakeStory) ArgumentByName(line storymodel.Line, name string) (any, error) {
	vals, ok := s.args[line.ID]
	if !ok {
		return nil, fmt.Errorf("no arguments recorded for line %s", line.ID)
	}
	v, ok := vals[name]
	if !ok {
		return nil, fmt.Errorf("line %s has no argument %q", line.ID, name)
	}
	return v, nil
}

func (s *fakeStory) Logger() storymodel.Logger         { return nopLogger{} }
func (s *fakeStory) App() *storymodel.Application       { return s.app }
func (s *fakeStory) Context() *storymodel.StoryContext  { return s.ctx }
func (s *fakeStory) Name() string                       { return s.name }

func rawJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func actionsFrom(v map[string]any) storymodel.ServiceConfiguration {
	out := storymodel.ServiceConfiguration{Actions: make(map[string]json.RawMessage, len(v))}
	for k, val := range v {
		out.Actions[k] = rawJSON(val)
	}
	return out
}

// fakeContainers is a ContainerManager fake that records call order (to
// verify the start-before-transport ordering invariant) and returns a
// canned hostname.
type fakeContainers struct {
	hostname  string
	calls     []string
	startErr  error
	execOut   any
	execErr   error
}

func (f *fakeContainers) Start(ctx context.Context, story storymodel.Story, line storymodel.Line) (storymodel.StreamingServiceHandle, error) {
	f.calls = append(f.calls, "start:"+line.ID)
	if f.startErr != nil {
		return storymodel.StreamingServiceHandle{}, f.startErr
	}
	return storymodel.StreamingServiceHandle{Name: line.Service, ContainerName: "c-" + line.Service, Hostname: f.hostname}, nil
}

func (f *fakeContainers) GetHostname(ctx context.Context, story storymodel.Story, line storymodel.Line, service string) (string, error) {
	f.calls = append(f.calls, "hostname:"+line.ID)
	return f.hostname, nil
}

func (f *fakeContainers) Exec(ctx context.Context, logger storymodel.Logger, story storymodel.Story, line storymodel.Line, service, command string) (any, error) {
	f.calls = append(f.calls, "exec:"+line.ID)
	return f.execOut, f.execErr
}

// fakeHTTPClient forwards each request once through a plain http.Client,
// with no retries; tests that expect an HTTP call give it a roundTripFunc
// transport, so no real network call is made.
type fakeHTTPClient struct {
	client *http.Client
}

func newFakeHTTPClient() *fakeHTTPClient {
	return &fakeHTTPClient{client: &http.Client{}}
}

func (f *fakeHTTPClient) FetchWithRetry(ctx context.Context, logger storymodel.Logger, attempts int, req *http.Request) (*http.Response, error) {
	return f.client.Do(req)
}
