package dispatch

import (
	"encoding/json"

	"github.com/mitchellh/mapstructure"
	"github.com/nemaniarjun/storyengine/internal/storymodel"
)

// getCommandConf traverses app.Services along chain to yield the raw
// config node for the command named by the chain's last element
// (spec.md §4.4). The traversal is a pure function of (app.Services, chain)
// — a required testable property (spec.md §8).
func getCommandConf(app *storymodel.Application, chain Chain) (map[string]any, error) {
	var next any = actionsOf(app.Services[chain[0].Name()].Configuration)

	for _, elem := range chain {
		m, ok := next.(map[string]any)
		if !ok {
			// The root traversal step (ServiceElem) is handled specially
			// above; every subsequent step must land on a map.
			if _, isService := elem.(ServiceElem); isService {
				continue
			}
			return nil, missingKeyError(elem.Name())
		}

		switch elem.(type) {
		case ServiceElem:
			// Already descended to this service's actions above.
			continue
		case CommandElem:
			v, ok := m[elem.Name()]
			if !ok {
				return nil, missingKeyError(elem.Name())
			}
			next = v
		case EventElem:
			eventsNode, ok := m["events"]
			if !ok {
				return nil, missingKeyError("events")
			}
			eventsMap, ok := eventsNode.(map[string]any)
			if !ok {
				return nil, missingKeyError("events")
			}
			eventNode, ok := eventsMap[elem.Name()]
			if !ok {
				return nil, missingKeyError(elem.Name())
			}
			var evt storymodel.EventConfig
			if err := decodeNode(eventNode, &evt); err != nil {
				return nil, err
			}
			next = evt.Output.Actions
		}
	}

	final, ok := next.(map[string]any)
	if !ok || final == nil {
		return map[string]any{}, nil
	}
	return final, nil
}

// actionsOf converts a service's Configuration.Actions (map of raw JSON
// nodes) into the map[string]any shape getCommandConf traverses.
func actionsOf(conf storymodel.ServiceConfiguration) map[string]any {
	out := make(map[string]any, len(conf.Actions))
	for k, raw := range conf.Actions {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			continue
		}
		out[k] = v
	}
	return out
}

// decodeNode decodes an arbitrary traversal node (already unmarshalled
// into map[string]any / []any / scalars by encoding/json) into a typed
// struct via mapstructure — the idiomatic Go replacement for the source's
// duck-typed dict traversal (spec.md §3's "arbitrary mapping" command
// config node).
func decodeNode(node any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(node)
}

// decodeCommandConfig decodes a raw command config node (a map[string]any
// produced by getCommandConf) into the typed CommandConfig shape the
// Transport Selector needs.
func decodeCommandConfig(node map[string]any) (storymodel.CommandConfig, error) {
	var cfg storymodel.CommandConfig
	if err := decodeNode(node, &cfg); err != nil {
		return storymodel.CommandConfig{}, err
	}
	return cfg, nil
}

type missingKeyErr struct{ key string }

func (e missingKeyErr) Error() string { return "missing config key: " + e.key }

func missingKeyError(key string) error { return missingKeyErr{key: key} }
