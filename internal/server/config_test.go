package server

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "gateway", cfg.HTTPGatewayHost)
	assert.Equal(t, "synapse", cfg.SynapseHost)
	assert.Equal(t, 9000, cfg.SynapsePort)
	assert.Equal(t, "engine", cfg.EngineHost)
	assert.Equal(t, 8082, cfg.EnginePort)
}

func TestLoadConfigFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("synapse_host: custom-synapse\nsynapse_port: 9100\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "custom-synapse", cfg.SynapseHost)
	assert.Equal(t, 9100, cfg.SynapsePort)
	assert.Equal(t, "gateway", cfg.HTTPGatewayHost)
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("synapse_host: custom-synapse\n"), 0o644))

	t.Setenv("STORYENGINE_SYNAPSE_HOST", "env-synapse")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "env-synapse", cfg.SynapseHost)
}

func TestLoadConfigMissingFileErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
