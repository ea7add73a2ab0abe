package server

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nemaniarjun/storyengine/internal/storymodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAppFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "apps.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadApplicationsSingleObject(t *testing.T) {
	path := writeAppFile(t, `{
		"app_id": "app1",
		"app_dns": "app1.example.com",
		"services": {"alpine": {"Name": "alpine", "Image": "alpine:3"}},
		"stories": {"order.story": {"EntryLine": "1", "Lines": {"1": {"ID": "1", "Service": "alpine", "Command": "echo"}}}}
	}`)

	apps, err := LoadApplications(path, storymodel.EngineConfig{SynapseHost: "synapse"})
	require.NoError(t, err)
	require.Len(t, apps, 1)

	app := apps[0]
	assert.Equal(t, "app1", app.AppID)
	assert.Equal(t, "app1.example.com", app.AppDNS)
	assert.Equal(t, "synapse", app.Config.SynapseHost)
	require.Contains(t, app.Services, "alpine")
	assert.Equal(t, "alpine:3", app.Services["alpine"].Image)
	require.Contains(t, app.StoryTrees, "order.story")
	assert.Equal(t, "1", app.StoryTrees["order.story"].EntryLine)
}

func TestLoadApplicationsArray(t *testing.T) {
	path := writeAppFile(t, `[
		{"app_id": "app1", "app_dns": "a.example.com"},
		{"app_id": "app2", "app_dns": "b.example.com"}
	]`)

	apps, err := LoadApplications(path, storymodel.EngineConfig{})
	require.NoError(t, err)
	require.Len(t, apps, 2)
	assert.Equal(t, "app1", apps[0].AppID)
	assert.Equal(t, "app2", apps[1].AppID)
}

func TestLoadApplicationsMissingFileErrors(t *testing.T) {
	_, err := LoadApplications(filepath.Join(t.TempDir(), "missing.json"), storymodel.EngineConfig{})
	require.Error(t, err)
}

func TestLoadApplicationsMalformedJSONErrors(t *testing.T) {
	path := writeAppFile(t, `{not json`)
	_, err := LoadApplications(path, storymodel.EngineConfig{})
	require.Error(t, err)
}
