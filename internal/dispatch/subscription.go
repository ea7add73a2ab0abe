package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/nemaniarjun/storyengine/internal/storymodel"
)

// When is the Subscription Manager (spec.md §4.6): it reads the event's
// configuration directly off the streaming service that owns it, builds
// the subscription body the broker expects, POSTs it, and records the
// result on the Application once accepted. line is the `when` line itself
// — its declared arguments are the event's payload fields; svc is the
// already-started streaming service the event belongs to.
func (e *Executor) When(ctx context.Context, story storymodel.Story, line storymodel.Line, svc storymodel.StreamingServiceHandle) error {
	eventConf, err := e.lookupEventConf(story, line, svc)
	if err != nil {
		return err
	}

	port := eventConf.HTTP.Port
	if port == 0 {
		port = 80
	}
	subscribeMethod := eventConf.HTTP.Subscribe.Method
	if subscribeMethod == "" {
		subscribeMethod = "post"
	}
	subscribeMethod = strings.ToUpper(subscribeMethod)

	data := make(map[string]any, len(eventConf.Arguments))
	for name := range eventConf.Arguments {
		val, err := resolveArgument(story, line, name)
		if err != nil {
			return &DispatchError{
				Kind:      ErrProgramming,
				Message:   fmt.Sprintf("resolving event argument %q", name),
				StoryName: story.Name(),
				LineID:    line.ID,
				Cause:     err,
			}
		}
		data[name] = val
	}
	// HTTP hack: the http service has no real container, so it advertises
	// the application's own DNS name for its callback.
	if svc.Name == "http" {
		data["host"] = story.App().AppDNS
	}

	event := line.Command
	subID := uuid.NewString()

	subURL := fmt.Sprintf("http://%s:%d%s", svc.Hostname, port, eventConf.HTTP.Subscribe.Path)

	engine := fmt.Sprintf("%s:%d", story.App().Config.EngineHost, story.App().Config.EnginePort)
	query := url.Values{
		"story": {story.Name()},
		"block": {line.ID},
		"app":   {story.App().AppID},
	}
	endpoint := fmt.Sprintf("http://%s/story/event?%s", engine, query.Encode())

	body := storymodel.SubscriptionBody{
		SubID:     subID,
		SubURL:    subURL,
		SubMethod: subscribeMethod,
		SubBody: storymodel.SubscriptionPayload{
			Endpoint: endpoint,
			Data:     data,
			Event:    event,
			ID:       subID,
		},
		PodName: svc.ContainerName,
		AppID:   story.App().AppID,
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return &DispatchError{Kind: ErrConfig, Message: "encoding subscription body", StoryName: story.Name(), LineID: line.ID, Cause: err}
	}

	synapseURL := fmt.Sprintf("http://%s:%d/subscribe", story.App().Config.SynapseHost, story.App().Config.SynapsePort)
	req, err := http.NewRequestWithContext(ctx, subscribeMethod, synapseURL, bytes.NewReader(encoded))
	if err != nil {
		return &DispatchError{Kind: ErrConfig, Message: "building subscription request", StoryName: story.Name(), LineID: line.ID, Cause: err}
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	story.Logger().Debug("subscribing to %s from %s via Synapse...", line.Service, line.Command)

	resp, err := e.HTTP.FetchWithRetry(ctx, story.Logger(), 3, req)
	if err != nil {
		return &DispatchError{
			Kind:      ErrTransport,
			Message:   "subscription request failed after retries",
			StoryName: story.Name(),
			LineID:    line.ID,
			Cause:     err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &DispatchError{
			Kind:      ErrTransport,
			Message:   fmt.Sprintf("failed to subscribe to %s from %s in %s! code=%d", line.Service, line.Command, svc.ContainerName, resp.StatusCode),
			StoryName: story.Name(),
			LineID:    line.ID,
		}
	}

	story.Logger().Info("subscribed!")
	story.App().AddSubscription(subID, svc, event, body)
	return nil
}

// lookupEventConf implements spec.md §4.6 step 1 exactly:
// app.services[svc.name].configuration.actions[svc.command].events[line.command].
// This is a dedicated two-level traversal, distinct from the Chain
// Resolver's generic Command Config Lookup (§4.4) — svc is already
// resolved, so there is no ancestry to walk.
func (e *Executor) lookupEventConf(story storymodel.Story, line storymodel.Line, svc storymodel.StreamingServiceHandle) (storymodel.EventConfig, error) {
	record, ok := story.App().Services[svc.Name]
	if !ok {
		return storymodel.EventConfig{}, &DispatchError{
			Kind:      ErrProgramming,
			Message:   fmt.Sprintf("unknown service %q for subscription", svc.Name),
			StoryName: story.Name(),
			LineID:    line.ID,
		}
	}

	actions := actionsOf(record.Configuration)
	commandNode, ok := actions[svc.Command].(map[string]any)
	if !ok {
		return storymodel.EventConfig{}, newConfigError(story, line.ID, fmt.Sprintf(
			"service %s has no command %q configured", svc.Name, svc.Command))
	}

	eventsNode, ok := commandNode["events"].(map[string]any)
	if !ok {
		return storymodel.EventConfig{}, newConfigError(story, line.ID, fmt.Sprintf(
			"command %s/%s declares no events", svc.Name, svc.Command))
	}

	eventNode, ok := eventsNode[line.Command]
	if !ok {
		return storymodel.EventConfig{}, newConfigError(story, line.ID, fmt.Sprintf(
			"command %s/%s has no event %q configured", svc.Name, svc.Command, line.Command))
	}

	var eventConf storymodel.EventConfig
	if err := decodeNode(eventNode, &eventConf); err != nil {
		return storymodel.EventConfig{}, &DispatchError{
			Kind:      ErrConfig,
			Message:   "decoding event config for subscription",
			StoryName: story.Name(),
			LineID:    line.ID,
			Cause:     err,
		}
	}
	return eventConf, nil
}
