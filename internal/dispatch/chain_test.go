package dispatch

import (
	"testing"

	"github.com/nemaniarjun/storyengine/internal/storymodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestResolveChainAcrossEvent covers spec.md §8's chain-across-an-event
// scenario: `execute alpine echo` (outputs client) -> `when client foo`
// (outputs echo_helper) -> `execute echo_helper sonar`.
func TestResolveChainAcrossEvent(t *testing.T) {
	app := storymodel.NewApplication("app1", "app1.example.com",
		map[string]storymodel.ServiceRecord{
			"alpine": {Name: "alpine", Image: "alpine:3", Configuration: actionsFrom(map[string]any{})},
		}, storymodel.EngineConfig{})

	story := newFakeStory("chain-story", app)
	story.addLine(storymodel.Line{ID: "1", Service: "alpine", Command: "echo", Method: storymodel.MethodExecute, Output: []string{"client"}})
	story.addLine(storymodel.Line{ID: "2", Service: "client", Command: "foo", Method: storymodel.MethodWhen, Parent: "1", Output: []string{"echo_helper"}})
	story.addLine(storymodel.Line{ID: "5", Service: "echo_helper", Command: "sonar", Method: storymodel.MethodExecute, Parent: "2"})

	e := NewExecutor(NewRegistry(), &fakeContainers{}, newFakeHTTPClient())

	line5, ok := story.Line("5")
	require.True(t, ok)

	chain, err := e.resolveChain(story, line5)
	require.NoError(t, err)

	require.Len(t, chain, 4)
	assert.Equal(t, Service("alpine"), chain[0])
	assert.Equal(t, Command("echo"), chain[1])
	assert.Equal(t, Event("foo"), chain[2])
	assert.Equal(t, Command("sonar"), chain[3])
}

func TestResolveChainMissingOwnerIsProgrammingError(t *testing.T) {
	app := storymodel.NewApplication("app1", "app1.example.com", map[string]storymodel.ServiceRecord{}, storymodel.EngineConfig{})
	story := newFakeStory("broken-story", app)
	story.addLine(storymodel.Line{ID: "1", Service: "ghost_handle", Command: "do_thing", Method: storymodel.MethodExecute})

	e := NewExecutor(NewRegistry(), &fakeContainers{}, newFakeHTTPClient())

	line, _ := story.Line("1")
	_, err := e.resolveChain(story, line)
	require.Error(t, err)

	var dispatchErr *DispatchError
	require.ErrorAs(t, err, &dispatchErr)
	assert.Equal(t, ErrProgramming, dispatchErr.Kind)
}

func TestResolveChainInternalServiceTerminatesImmediately(t *testing.T) {
	registry := NewRegistry()
	registry.Register("log", "info", []string{"msg"}, "none", nil)

	app := storymodel.NewApplication("app1", "app1.example.com", map[string]storymodel.ServiceRecord{}, storymodel.EngineConfig{})
	story := newFakeStory("log-story", app)
	story.addLine(storymodel.Line{ID: "1", Service: "log", Command: "info", Method: storymodel.MethodExecute})

	e := NewExecutor(registry, &fakeContainers{}, newFakeHTTPClient())
	line, _ := story.Line("1")

	chain, err := e.resolveChain(story, line)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, Service("log"), chain[0])
	assert.Equal(t, Command("info"), chain[1])
}
