package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/nemaniarjun/storyengine/internal/storymodel"
)

// ServerRequest is the inbound connection handle for a story triggered
// through the HTTP gateway. Only the "http" service's inline transport
// (execute_inline, spec.md §4.5) ever touches it.
type ServerRequest interface {
	// Write sends a chunk of the response body immediately.
	Write(data []byte) error
	// Finish closes out the response. Must only ever be invoked from the
	// server's I/O loop, never directly from dispatch (Design Note 9).
	Finish()
}

// IOLoop schedules work on the server's single-threaded event loop, so a
// scheduled `finish` always runs after the write that precedes it in
// program order has actually flushed.
type IOLoop interface {
	Schedule(fn func())
}

// ContainerManager is the external collaborator that owns container
// lifecycle: starting a service's container, resolving its hostname, and
// running exec-transport commands inside it. internal/container implements
// this against the Docker API; tests substitute a fake.
type ContainerManager interface {
	Start(ctx context.Context, story storymodel.Story, line storymodel.Line) (storymodel.StreamingServiceHandle, error)
	GetHostname(ctx context.Context, story storymodel.Story, line storymodel.Line, service string) (string, error)
	Exec(ctx context.Context, logger storymodel.Logger, story storymodel.Story, line storymodel.Line, service, command string) (any, error)
}

// HTTPClient is the Retrying HTTP Client capability the Transport Selector
// uses for both service dispatch and subscription registration.
type HTTPClient interface {
	FetchWithRetry(ctx context.Context, logger storymodel.Logger, attempts int, req *http.Request) (*http.Response, error)
}

// Executor implements the Transport Selector & Executor, the Chain
// Resolver, and the Container Bootstrap Facade — the components that
// together answer "given (story, line), what happens?" (spec.md §4.5–4.7).
type Executor struct {
	Registry   *Registry
	Containers ContainerManager
	HTTP       HTTPClient
}

// NewExecutor wires an Executor from its collaborators.
func NewExecutor(registry *Registry, containers ContainerManager, httpClient HTTPClient) *Executor {
	return &Executor{Registry: registry, Containers: containers, HTTP: httpClient}
}

// Execute is the entry point `execute(story, line)` (spec.md §4.5).
func (e *Executor) Execute(ctx context.Context, story storymodel.Story, line storymodel.Line) (any, error) {
	chain, err := e.resolveChain(story, line)
	if err != nil {
		return nil, err
	}

	if e.Registry.IsInternal(chain[0].Name(), chain.Last().Name()) {
		return e.executeInternal(ctx, story, line)
	}
	return e.executeExternal(ctx, story, line, chain)
}

// executeInternal fetches the registered command, resolves each declared
// argument, and invokes the handler (spec.md §4.5).
func (e *Executor) executeInternal(ctx context.Context, story storymodel.Story, line storymodel.Line) (any, error) {
	cmd, ok := e.Registry.lookup(line.Service, line.Command)
	if !ok {
		return nil, &DispatchError{
			Kind:      ErrUnknownCommand,
			Message:   fmt.Sprintf("unknown internal command %s/%s", line.Service, line.Command),
			StoryName: story.Name(),
			LineID:    line.ID,
		}
	}

	resolvedArgs := make(map[string]any, len(cmd.Arguments))
	for _, arg := range cmd.Arguments {
		val, err := resolveArgument(story, line, arg)
		if err != nil {
			return nil, &DispatchError{
				Kind:      ErrProgramming,
				Message:   fmt.Sprintf("resolving argument %q", arg),
				StoryName: story.Name(),
				LineID:    line.ID,
				Cause:     err,
			}
		}
		resolvedArgs[arg] = val
	}

	out, err := cmd.Handler(ctx, story, line, resolvedArgs)
	if err != nil {
		return nil, &DispatchError{
			Kind:      ErrDownstream,
			Message:   fmt.Sprintf("internal handler %s/%s failed", line.Service, line.Command),
			StoryName: story.Name(),
			LineID:    line.ID,
			Cause:     err,
		}
	}
	return out, nil
}

// executeExternal dispatches via HTTP, container exec, or in-line streaming
// write, always ensuring the container is started first (spec.md §4.5,
// the ordering invariant tested in spec.md §8).
func (e *Executor) executeExternal(ctx context.Context, story storymodel.Story, line storymodel.Line, chain Chain) (any, error) {
	commandConfRaw, err := getCommandConf(story.App(), chain)
	if err != nil {
		return nil, &DispatchError{
			Kind:      ErrProgramming,
			Message:   "command config lookup failed",
			StoryName: story.Name(),
			LineID:    line.ID,
			Cause:     err,
		}
	}
	commandConf, err := decodeCommandConfig(commandConfRaw)
	if err != nil {
		return nil, &DispatchError{
			Kind:      ErrConfig,
			Message:   "decoding command config failed",
			StoryName: story.Name(),
			LineID:    line.ID,
			Cause:     err,
		}
	}

	// start_container MUST run before any transport decision — the
	// Container Manager observes every external dispatch before an
	// HTTP/exec call reaches a container (spec.md §8 ordering invariant).
	if _, err := e.startContainer(ctx, story, line); err != nil {
		return nil, &DispatchError{
			Kind:      ErrDownstream,
			Message:   "starting container failed",
			StoryName: story.Name(),
			LineID:    line.ID,
			Cause:     err,
		}
	}

	switch {
	case commandConf.Format != nil:
		out, err := e.Containers.Exec(ctx, story.Logger(), story, line, line.Service, line.Command)
		if err != nil {
			return nil, &DispatchError{
				Kind:      ErrDownstream,
				Message:   "container exec failed",
				StoryName: story.Name(),
				LineID:    line.ID,
				Cause:     err,
			}
		}
		return out, nil

	case commandConf.HTTP != nil:
		if commandConf.HTTP.UseEventConn {
			return e.executeInline(story, line, chain, commandConf)
		}
		return e.executeHTTP(ctx, story, line, chain, commandConf)

	default:
		return nil, newConfigError(story, line.ID, fmt.Sprintf(
			"service %s/%s has neither http nor format sections", line.Service, line.Command))
	}
}

// executeHTTP builds and sends the outbound request, partitioning
// arguments across body/query/path, exactly as spec.md §4.5 describes.
func (e *Executor) executeHTTP(ctx context.Context, story storymodel.Story, line storymodel.Line, chain Chain, commandConf storymodel.CommandConfig) (any, error) {
	hostname, err := e.Containers.GetHostname(ctx, story, line, chain[0].Name())
	if err != nil {
		return nil, &DispatchError{
			Kind:      ErrDownstream,
			Message:   "hostname resolution failed",
			StoryName: story.Name(),
			LineID:    line.ID,
			Cause:     err,
		}
	}

	body := make(map[string]any)
	query := make(map[string]any)
	path := make(map[string]any)

	for name, argConf := range commandConf.Arguments {
		value, err := resolveArgument(story, line, name)
		if err != nil {
			return nil, &DispatchError{
				Kind:      ErrProgramming,
				Message:   fmt.Sprintf("resolving argument %q", name),
				StoryName: story.Name(),
				LineID:    line.ID,
				Cause:     err,
			}
		}

		location := argConf.In
		if location == "" {
			location = storymodel.LocationRequestBody
		}
		switch location {
		case storymodel.LocationQuery:
			query[name] = value
		case storymodel.LocationPath:
			path[name] = value
		case storymodel.LocationRequestBody:
			body[name] = value
		default:
			return nil, newConfigError(story, line.ID, fmt.Sprintf(
				"invalid location for argument %q specified: %s", name, location))
		}
	}

	method := commandConf.HTTP.Method
	if method == "" {
		method = "post"
	}
	method = strings.ToUpper(method)

	if method != "POST" && len(body) > 0 {
		return nil, newConfigError(story, line.ID, fmt.Sprintf(
			"parameters found in the request body, but the method is %s", method))
	}

	port := commandConf.HTTP.Port
	if port == 0 {
		port = 5000
	}

	rawPath := expandPathTemplate(commandConf.HTTP.Path, path)
	rawPath = appendQuery(rawPath, query)
	url := fmt.Sprintf("http://%s:%d%s", hostname, port, rawPath)

	var bodyReader *strings.Reader
	var bodyBytes []byte
	if method == "POST" {
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return nil, &DispatchError{Kind: ErrConfig, Message: "encoding request body", StoryName: story.Name(), LineID: line.ID, Cause: err}
		}
		bodyReader = strings.NewReader(string(bodyBytes))
	} else {
		bodyReader = strings.NewReader("")
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, &DispatchError{Kind: ErrConfig, Message: "building request", StoryName: story.Name(), LineID: line.ID, Cause: err}
	}
	if method == "POST" {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}

	story.Logger().Debug("invoking service on %s", url)

	resp, err := e.HTTP.FetchWithRetry(ctx, story.Logger(), 3, req)
	if err != nil {
		return nil, &DispatchError{
			Kind:      ErrTransport,
			Message:   "HTTP request failed after retries",
			StoryName: story.Name(),
			LineID:    line.ID,
			Cause:     err,
		}
	}
	defer resp.Body.Close()

	story.Logger().Debug("HTTP response code is %d", resp.StatusCode)
	return parseHTTPResponse(resp, story, line)
}

// executeInline writes the command to the streaming service's connection —
// the "streaming" transport for long-lived gateway connections (spec.md
// §4.5, the "HTTP hack" in Design Note 9).
func (e *Executor) executeInline(story storymodel.Story, line storymodel.Line, chain Chain, commandConf storymodel.CommandConfig) (any, error) {
	command := chain.Last()

	data := make(map[string]any, len(commandConf.Arguments))
	for name := range commandConf.Arguments {
		val, err := resolveArgument(story, line, name)
		if err != nil {
			return nil, &DispatchError{
				Kind:      ErrProgramming,
				Message:   fmt.Sprintf("resolving argument %q", name),
				StoryName: story.Name(),
				LineID:    line.ID,
				Cause:     err,
			}
		}
		data[name] = val
	}

	payload := map[string]any{"command": command.Name(), "data": data}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, &DispatchError{Kind: ErrConfig, Message: "encoding inline payload", StoryName: story.Name(), LineID: line.ID, Cause: err}
	}

	reqVal, ok := story.Context().Get(storymodel.ServerRequestKey)
	if !ok {
		return nil, &DispatchError{
			Kind:      ErrProgramming,
			Message:   "no server_request in story context",
			StoryName: story.Name(),
			LineID:    line.ID,
		}
	}
	req, ok := reqVal.(ServerRequest)
	if !ok {
		return nil, &DispatchError{
			Kind:      ErrProgramming,
			Message:   "server_request has unexpected type",
			StoryName: story.Name(),
			LineID:    line.ID,
		}
	}

	if err := req.Write(append(encoded, '\n')); err != nil {
		return nil, &DispatchError{Kind: ErrDownstream, Message: "writing inline payload", StoryName: story.Name(), LineID: line.ID, Cause: err}
	}

	// The "HTTP hack": finish is scheduled on the server I/O loop, never
	// run inline, so the write above is guaranteed to complete first.
	if chain[0].Name() == "http" && command.Name() == "finish" {
		if loopVal, ok := story.Context().Get(storymodel.ServerIOLoopKey); ok {
			if loop, ok := loopVal.(IOLoop); ok {
				loop.Schedule(req.Finish)
			}
		}
	}

	return nil, nil
}

// startContainer is the Container Bootstrap Facade (spec.md §4.5): routes
// the in-process gateway for the synthetic "http" service without touching
// the Container Manager, otherwise delegates to it.
//
// line.Service may name a handle bound by an ancestor rather than a
// concrete service (the same indirection the Chain Resolver walks through,
// spec.md §4.3) — the Container Manager needs the resolved concrete
// service, so the chain's root replaces line.Service before delegating.
func (e *Executor) startContainer(ctx context.Context, story storymodel.Story, line storymodel.Line) (storymodel.StreamingServiceHandle, error) {
	chain, err := e.resolveChain(story, line)
	if err != nil {
		return storymodel.StreamingServiceHandle{}, err
	}
	owning := owningLine(chain, line)

	if owning.Service == "http" {
		return storymodel.StreamingServiceHandle{
			Name:          "http",
			Command:       owning.Command,
			ContainerName: "gateway",
			Hostname:      story.App().Config.HTTPGatewayHost,
		}, nil
	}

	return e.Containers.Start(ctx, story, owning)
}

// StartContainer is the exported form of startContainer. The Subscription
// Manager's caller (the story walker) resolves a streaming service's handle
// through this before calling When — spec.md §4.6 takes streaming_service
// as an already-resolved argument rather than re-deriving it.
func (e *Executor) StartContainer(ctx context.Context, story storymodel.Story, line storymodel.Line) (storymodel.StreamingServiceHandle, error) {
	return e.startContainer(ctx, story, line)
}

// owningLine returns a copy of line with Service/Command corrected to the
// chain's resolved root service and, where the chain shows one, the command
// that owns the chain's final Event or Command element. Needed because
// line.Service may name a handle (spec.md §4.3) that the Container Manager
// cannot look up directly.
func owningLine(chain Chain, line storymodel.Line) storymodel.Line {
	command := line.Command
	if len(chain) >= 2 {
		if cmdElem, ok := chain[len(chain)-2].(CommandElem); ok {
			command = cmdElem.Name()
		}
	}
	out := line
	out.Service = chain[0].Name()
	out.Command = command
	return out
}

func parseHTTPResponse(resp *http.Response, story storymodel.Story, line storymodel.Line) (any, error) {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &DispatchError{
			Kind:      ErrTransport,
			Message:   "failed to invoke service!",
			StoryName: story.Name(),
			LineID:    line.ID,
		}
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "application/json") {
		var v any
		if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
			return nil, &DispatchError{Kind: ErrTransport, Message: "decoding JSON response", StoryName: story.Name(), LineID: line.ID, Cause: err}
		}
		return v, nil
	}

	raw, err := readAll(resp)
	if err != nil {
		return nil, &DispatchError{Kind: ErrTransport, Message: "reading response body", StoryName: story.Name(), LineID: line.ID, Cause: err}
	}
	return raw, nil
}

func readAll(resp *http.Response) ([]byte, error) {
	return io.ReadAll(resp.Body)
}

func expandPathTemplate(template string, path map[string]any) string {
	out := template
	for name, val := range path {
		out = strings.ReplaceAll(out, "{"+name+"}", fmt.Sprintf("%v", val))
	}
	return out
}

func appendQuery(path string, query map[string]any) string {
	if len(query) == 0 {
		return path
	}
	parts := make([]string, 0, len(query))
	for name, val := range query {
		parts = append(parts, name+"="+fmt.Sprintf("%v", val))
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + strings.Join(parts, "&")
}
