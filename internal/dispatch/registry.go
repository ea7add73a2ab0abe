package dispatch

import (
	"context"
	"sort"

	"github.com/nemaniarjun/storyengine/internal/storymodel"
)

// Handler is a built-in command implementation. It receives the resolved
// arguments for the line and returns the normalized result.
type Handler func(ctx context.Context, story storymodel.Story, line storymodel.Line, resolvedArgs map[string]any) (any, error)

// InternalCommand is one registered (service, command) pair: its declared
// arguments, its output type tag, and the handler that implements it.
type InternalCommand struct {
	Arguments  []string
	OutputType string
	Handler    Handler
}

type internalService struct {
	commands map[string]InternalCommand
}

// Registry is the process-wide, append-or-overwrite mapping from
// (service, command) to a handler. It is populated once during bootstrap
// (cmd/storyengined's registerBuiltins) and is read-only for the lifetime of the
// engine — no locking is needed in the hot path (spec.md §5, Design Note 9).
type Registry struct {
	services map[string]*internalService
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{services: make(map[string]*internalService)}
}

// Register adds or overwrites the handler for (service, command). The last
// registration for a given pair wins (spec.md §8 round-trip property).
func (r *Registry) Register(service, command string, arguments []string, outputType string, handler Handler) {
	svc, ok := r.services[service]
	if !ok {
		svc = &internalService{commands: make(map[string]InternalCommand)}
		r.services[service] = svc
	}
	svc.commands[command] = InternalCommand{
		Arguments:  arguments,
		OutputType: outputType,
		Handler:    handler,
	}
}

// IsInternal reports whether both service and command are registered.
func (r *Registry) IsInternal(service, command string) bool {
	svc, ok := r.services[service]
	if !ok {
		return false
	}
	_, ok = svc.commands[command]
	return ok
}

// lookup returns the registered command, or false if (service, command) is
// not registered.
func (r *Registry) lookup(service, command string) (InternalCommand, bool) {
	svc, ok := r.services[service]
	if !ok {
		return InternalCommand{}, false
	}
	cmd, ok := svc.commands[command]
	return cmd, ok
}

// ServiceCommands describes one service's registered commands, for startup
// logging.
type ServiceCommands struct {
	Service  string
	Commands []string
}

// List returns every registered (service, [commands]) pair, sorted by
// service name, for startup logging (spec.md §4.2).
func (r *Registry) List() []ServiceCommands {
	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]ServiceCommands, 0, len(names))
	for _, name := range names {
		svc := r.services[name]
		cmds := make([]string, 0, len(svc.commands))
		for c := range svc.commands {
			cmds = append(cmds, c)
		}
		sort.Strings(cmds)
		out = append(out, ServiceCommands{Service: name, Commands: cmds})
	}
	return out
}
