package storymodel

import (
	"encoding/json"
	"sync"
)

// EngineConfig carries the engine-wide configuration keys the dispatch core
// consumes (spec.md §6), loaded by internal/server/config.go via koanf.
type EngineConfig struct {
	HTTPGatewayHost string `koanf:"http_gw_host"`
	SynapseHost     string `koanf:"synapse_host"`
	SynapsePort     int    `koanf:"synapse_port"`
	EngineHost      string `koanf:"engine_host"`
	EnginePort      int    `koanf:"engine_port"`
}

// ServiceRecord is one entry in Application.Services: a service's
// configuration (the recursive actions/http/format/arguments/events schema
// from spec.md §6) plus the container image needed to actually start it.
// Image is a SPEC_FULL addition — the spec treats container start as an
// external collaborator's concern, but a concrete Container Manager still
// needs to know what to start.
type ServiceRecord struct {
	Name          string
	Image         string // docker image reference; empty for internal-only services
	Configuration ServiceConfiguration
}

// ServiceConfiguration holds the "configuration.actions" node of a service
// record. Actions is keyed by command name; each value is a raw JSON node
// decoded on demand (via mapstructure, see config.go) into the shape a
// given traversal step expects, since the schema is recursive and
// polymorphic (format | http | arguments | events).
type ServiceConfiguration struct {
	Actions map[string]json.RawMessage
}

// Application is the owning application of a running story: its service
// configuration, engine configuration, and the subscriptions it has
// registered with the broker.
type Application struct {
	AppID  string
	AppDNS string

	Services map[string]ServiceRecord
	Config   EngineConfig

	// StoryTrees holds every story tree owned by this application, keyed
	// by filename (e.g. "order.story"). Simplified stand-in for the
	// database-backed application/story persistence that is out of scope
	// — see SPEC_FULL.md §9.3.
	StoryTrees map[string]StoryTree

	mu            sync.Mutex
	subscriptions map[string]SubscriptionRecord
}

// StoryTree is the parsed, static shape of one story file: its lines
// keyed by line ID and the ID of the first line to execute.
type StoryTree struct {
	EntryLine string
	Lines     map[string]Line
}

// NewApplication returns an Application ready to accept subscriptions.
func NewApplication(appID, appDNS string, services map[string]ServiceRecord, cfg EngineConfig) *Application {
	return &Application{
		AppID:         appID,
		AppDNS:        appDNS,
		Services:      services,
		Config:        cfg,
		StoryTrees:    make(map[string]StoryTree),
		subscriptions: make(map[string]SubscriptionRecord),
	}
}

// GetStory returns the named story tree, or false if this application has
// no such story (asyncy/models/Applications.py:get_story).
func (a *Application) GetStory(name string) (StoryTree, bool) {
	tree, ok := a.StoryTrees[name]
	return tree, ok
}

// AddSubscription records a subscription the Subscription Manager
// registered with the broker. Writes are serialized — Application.Services
// is effectively read-only for a story's lifetime but subscriptions
// accumulate as `when` lines execute, possibly across concurrent stories.
func (a *Application) AddSubscription(id string, svc StreamingServiceHandle, event string, body SubscriptionBody) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.subscriptions[id] = SubscriptionRecord{
		SubID:         id,
		SubURL:        body.SubURL,
		SubMethod:     body.SubMethod,
		SubBody:       body.SubBody,
		PodName:       svc.ContainerName,
		AppID:         a.AppID,
	}
}

// Subscriptions returns a snapshot of all subscriptions currently recorded.
func (a *Application) Subscriptions() []SubscriptionRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]SubscriptionRecord, 0, len(a.subscriptions))
	for _, s := range a.subscriptions {
		out = append(out, s)
	}
	return out
}

// IsConcreteService reports whether name is a key in Application.Services —
// i.e. whether it names a real, container-backed (or internal) service
// rather than a handle bound by an ancestor's event output.
func (a *Application) IsConcreteService(name string) bool {
	_, ok := a.Services[name]
	return ok
}

// StreamingServiceHandle is a live binding from a service name to a running
// container (or the synthetic "gateway" for the http service), recorded in
// the story context once the service has been started.
type StreamingServiceHandle struct {
	Name          string
	Command       string
	ContainerName string
	Hostname      string
}

// SubscriptionBody is the payload POSTed to the subscription broker.
type SubscriptionBody struct {
	SubID     string         `json:"sub_id"`
	SubURL    string         `json:"sub_url"`
	SubMethod string         `json:"sub_method"`
	SubBody   SubscriptionPayload `json:"sub_body"`
	PodName   string         `json:"pod_name"`
	AppID     string         `json:"app_id"`
}

// SubscriptionPayload is the "sub_body" embedded in SubscriptionBody.
type SubscriptionPayload struct {
	Endpoint string         `json:"endpoint"`
	Data     map[string]any `json:"data"`
	Event    string         `json:"event"`
	ID       string         `json:"id"`
}

// SubscriptionRecord is a subscription that outlived the line that created
// it, owned by the Application.
type SubscriptionRecord struct {
	SubID     string
	SubURL    string
	SubMethod string
	SubBody   SubscriptionPayload
	PodName   string
	AppID     string
}
