// Package server wires the dispatch core, story walker, and their
// collaborators into a runnable process: layered configuration, the
// inbound HTTP gateway, the subscription event endpoint, and metrics.
// Process shutdown is handled by cmd/storyengined.
package server

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/nemaniarjun/storyengine/internal/storymodel"
)

// LoadConfig layers defaults, an optional YAML file at path, and
// STORYENGINE_-prefixed environment variables (highest precedence) into an
// EngineConfig.
func LoadConfig(path string) (storymodel.EngineConfig, error) {
	k := koanf.New(".")

	defaults := map[string]any{
		"http_gw_host": "gateway",
		"synapse_host": "synapse",
		"synapse_port": 9000,
		"engine_host":  "engine",
		"engine_port":  8082,
	}
	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return storymodel.EngineConfig{}, fmt.Errorf("loading defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return storymodel.EngineConfig{}, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("STORYENGINE_", ".", envKeyTransform), nil); err != nil {
		return storymodel.EngineConfig{}, fmt.Errorf("loading environment: %w", err)
	}

	var cfg storymodel.EngineConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return storymodel.EngineConfig{}, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}

func envKeyTransform(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s[len("STORYENGINE_"):] {
		if r >= 'A' && r <= 'Z' {
			r = r - 'A' + 'a'
		}
		out = append(out, r)
	}
	return string(out)
}
