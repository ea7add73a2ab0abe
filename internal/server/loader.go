package server

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/nemaniarjun/storyengine/internal/storymodel"
)

// appDefinition is the on-disk shape one application's bootstrap file
// describes: its services (with container images and configuration) and
// its story trees. storymodel's own types are already JSON-friendly, so
// this is a thin wrapper rather than a parallel schema.
type appDefinition struct {
	AppID      string                                `json:"app_id"`
	AppDNS     string                                `json:"app_dns"`
	Services   map[string]storymodel.ServiceRecord   `json:"services"`
	StoryTrees map[string]storymodel.StoryTree       `json:"stories"`
}

// LoadApplications reads one or more application definitions from a JSON
// file (a single object or an array of objects) and builds the
// corresponding storymodel.Application values, sharing cfg as their
// engine-wide configuration.
func LoadApplications(path string, cfg storymodel.EngineConfig) ([]*storymodel.Application, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading applications file: %w", err)
	}

	var defs []appDefinition
	trimmed := firstNonSpace(raw)
	if trimmed == '[' {
		if err := json.Unmarshal(raw, &defs); err != nil {
			return nil, fmt.Errorf("parsing applications array: %w", err)
		}
	} else {
		var single appDefinition
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil, fmt.Errorf("parsing application: %w", err)
		}
		defs = []appDefinition{single}
	}

	apps := make([]*storymodel.Application, 0, len(defs))
	for _, def := range defs {
		app := storymodel.NewApplication(def.AppID, def.AppDNS, def.Services, cfg)
		for name, tree := range def.StoryTrees {
			app.StoryTrees[name] = tree
		}
		apps = append(apps, app)
	}
	return apps, nil
}

func firstNonSpace(b []byte) byte {
	for _, c := range b {
		switch c {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return c
		}
	}
	return 0
}
