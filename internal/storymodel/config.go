package storymodel

// ArgumentLocation is where a declared argument is placed on an outbound
// HTTP request.
type ArgumentLocation string

const (
	LocationRequestBody ArgumentLocation = "requestBody"
	LocationQuery       ArgumentLocation = "query"
	LocationPath        ArgumentLocation = "path"
)

// ArgumentConfig is one entry of a command's "arguments" map.
type ArgumentConfig struct {
	In       ArgumentLocation `mapstructure:"in"`
	Required bool             `mapstructure:"required"`
	Type     string           `mapstructure:"type"`
}

// HTTPConfig is the "http" node of a command's configuration.
type HTTPConfig struct {
	Method       string `mapstructure:"method"`
	Port         int    `mapstructure:"port"`
	Path         string `mapstructure:"path"`
	UseEventConn bool   `mapstructure:"use_event_conn"`
}

// EventSubscribeConfig is the "http.subscribe" node of an event's
// configuration.
type EventSubscribeConfig struct {
	Method string `mapstructure:"method"`
	Path   string `mapstructure:"path"`
}

// EventHTTPConfig is the "http" node of an event's configuration.
type EventHTTPConfig struct {
	Port      int                  `mapstructure:"port"`
	Subscribe EventSubscribeConfig `mapstructure:"subscribe"`
}

// CommandConfig is the decoded shape of one command's configuration node
// (spec.md §6). Format is an opaque marker: its mere presence means
// "dispatch via container exec", so it is decoded as an untyped value of
// any shape and only checked for nil.
type CommandConfig struct {
	Format    any                       `mapstructure:"format"`
	HTTP      *HTTPConfig               `mapstructure:"http"`
	Arguments map[string]ArgumentConfig `mapstructure:"arguments"`
	Events    map[string]EventConfig    `mapstructure:"events"`
}

// EventConfig is the decoded shape of one event's configuration node.
type EventConfig struct {
	HTTP      EventHTTPConfig           `mapstructure:"http"`
	Arguments map[string]ArgumentConfig `mapstructure:"arguments"`
	Output    struct {
		Actions map[string]any `mapstructure:"actions"`
	} `mapstructure:"output"`
}
