package container

import (
	"context"
	"testing"

	"github.com/nemaniarjun/storyengine/internal/storymodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContainerNameIsStableForSamePair(t *testing.T) {
	a := ContainerName("app1", "alpine")
	b := ContainerName("app1", "alpine")
	assert.Equal(t, a, b)
	assert.Contains(t, a, "app1")
	assert.Contains(t, a, "alpine")
}

func TestContainerKeyDistinguishesAppsAndServices(t *testing.T) {
	assert.NotEqual(t, containerKey("app1", "alpine"), containerKey("app2", "alpine"))
	assert.NotEqual(t, containerKey("app1", "alpine"), containerKey("app1", "other"))
}

func TestNetworkNameIsPerApp(t *testing.T) {
	assert.NotEqual(t, networkName("app1"), networkName("app2"))
}

func TestStartReturnsCachedHandleWithoutTouchingDocker(t *testing.T) {
	m := NewManager()
	handle := storymodel.StreamingServiceHandle{Name: "alpine", ContainerName: "storyengine-app1-alpine", Hostname: "storyengine-app1-alpine"}
	m.running[containerKey("app1", "alpine")] = handle

	app := storymodel.NewApplication("app1", "app1.example.com", map[string]storymodel.ServiceRecord{
		"alpine": {Name: "alpine", Image: "alpine:3"},
	}, storymodel.EngineConfig{})
	story := &fakeManagerStory{name: "s", app: app}
	line := storymodel.Line{ID: "1", Service: "alpine", Command: "echo"}

	got, err := m.Start(context.Background(), story, line)
	require.NoError(t, err)
	assert.Equal(t, handle, got)
}

func TestStartRejectsUnknownService(t *testing.T) {
	m := NewManager()
	app := storymodel.NewApplication("app1", "app1.example.com", nil, storymodel.EngineConfig{})
	story := &fakeManagerStory{name: "s", app: app}
	line := storymodel.Line{ID: "1", Service: "missing", Command: "echo"}

	_, err := m.Start(context.Background(), story, line)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown service")
}

func TestStartRejectsServiceWithoutImage(t *testing.T) {
	m := NewManager()
	app := storymodel.NewApplication("app1", "app1.example.com", map[string]storymodel.ServiceRecord{
		"alpine": {Name: "alpine"},
	}, storymodel.EngineConfig{})
	story := &fakeManagerStory{name: "s", app: app}
	line := storymodel.Line{ID: "1", Service: "alpine", Command: "echo"}

	_, err := m.Start(context.Background(), story, line)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no container image")
}

func TestGetHostnameRejectsUnknownServiceWithoutTouchingDocker(t *testing.T) {
	m := NewManager()
	app := storymodel.NewApplication("app1", "app1.example.com", nil, storymodel.EngineConfig{})
	story := &fakeManagerStory{name: "s", app: app}
	line := storymodel.Line{ID: "1", Service: "alpine", Command: "echo"}

	_, err := m.GetHostname(context.Background(), story, line, "missing")
	require.Error(t, err)
}

func TestShutdownCancelsAllRunningContexts(t *testing.T) {
	m := NewManager()
	cancelled := 0
	m.cancels["a"] = func() { cancelled++ }
	m.cancels["b"] = func() { cancelled++ }

	m.Shutdown()
	assert.Equal(t, 2, cancelled)
}

// fakeManagerStory is a minimal storymodel.Story stand-in sufficient for
// exercising Manager.Start's validation paths without a real container
// runtime backing it.
type fakeManagerStory struct {
	name string
	app  *storymodel.Application
}

func (s *fakeManagerStory) Line(id string) (storymodel.Line, bool)           { return storymodel.Line{}, false }
func (s *fakeManagerStory) ArgumentByName(storymodel.Line, string) (any, error) { return nil, nil }
func (s *fakeManagerStory) Logger() storymodel.Logger                        { return nopManagerLogger{} }
func (s *fakeManagerStory) App() *storymodel.Application                    { return s.app }
func (s *fakeManagerStory) Context() *storymodel.StoryContext               { return nil }
func (s *fakeManagerStory) Name() string                                    { return s.name }

type nopManagerLogger struct{}

func (nopManagerLogger) Debug(format string, args ...any) {}
func (nopManagerLogger) Info(format string, args ...any)  {}
