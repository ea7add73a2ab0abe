package storymodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetStoryReturnsFalseForUnknown(t *testing.T) {
	app := NewApplication("app1", "app1.example.com", nil, EngineConfig{})
	_, ok := app.GetStory("missing.story")
	assert.False(t, ok)
}

func TestGetStoryReturnsRegisteredTree(t *testing.T) {
	app := NewApplication("app1", "app1.example.com", nil, EngineConfig{})
	app.StoryTrees["order.story"] = StoryTree{EntryLine: "1", Lines: map[string]Line{"1": {ID: "1"}}}

	tree, ok := app.GetStory("order.story")
	require.True(t, ok)
	assert.Equal(t, "1", tree.EntryLine)
}

func TestIsConcreteServiceDistinguishesRegisteredNames(t *testing.T) {
	app := NewApplication("app1", "app1.example.com", map[string]ServiceRecord{
		"alpine": {Name: "alpine"},
	}, EngineConfig{})

	assert.True(t, app.IsConcreteService("alpine"))
	assert.False(t, app.IsConcreteService("instance1"))
}

func TestAddSubscriptionAndSubscriptionsRoundTrip(t *testing.T) {
	app := NewApplication("app1", "app1.example.com", nil, EngineConfig{})
	svc := StreamingServiceHandle{Name: "http", Command: "time-server", ContainerName: "asyncy--foo-1"}
	body := SubscriptionBody{
		SubID: "sub1", SubURL: "http://foo.com:2000/sub", SubMethod: "POST",
		SubBody: SubscriptionPayload{Endpoint: "http://engine/story/event", Event: "updates", ID: "sub1"},
	}

	app.AddSubscription("sub1", svc, "updates", body)

	subs := app.Subscriptions()
	require.Len(t, subs, 1)
	assert.Equal(t, "sub1", subs[0].SubID)
	assert.Equal(t, "asyncy--foo-1", subs[0].PodName)
	assert.Equal(t, "app1", subs[0].AppID)
}

func TestAddSubscriptionOverwritesSameID(t *testing.T) {
	app := NewApplication("app1", "app1.example.com", nil, EngineConfig{})
	svc := StreamingServiceHandle{Name: "http"}

	app.AddSubscription("sub1", svc, "updates", SubscriptionBody{SubURL: "http://first"})
	app.AddSubscription("sub1", svc, "updates", SubscriptionBody{SubURL: "http://second"})

	subs := app.Subscriptions()
	require.Len(t, subs, 1)
	assert.Equal(t, "http://second", subs[0].SubURL)
}
