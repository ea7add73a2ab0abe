// Package dispatch is the service-dispatch core: chain resolution, command
// config lookup, transport selection, and the subscription manager. It is
// a small state machine over a polymorphic call graph — see design notes
// in SPEC_FULL.md §4.
package dispatch

import "github.com/nemaniarjun/storyengine/internal/storymodel"

// ChainElem is a tagged union over the three kinds of chain entries: a
// concrete or handle-bound service, a command, and an event. Modeled as an
// interface with three concrete implementations (Design Note 9 in
// SPEC_FULL.md) rather than an index-based representation, because the
// Event vs Command distinction changes how Command Config Lookup descends.
type ChainElem interface {
	chainElem()
	Name() string
}

// ServiceElem names the service a chain starts from.
type ServiceElem struct{ name string }

func (ServiceElem) chainElem()      {}
func (e ServiceElem) Name() string  { return e.name }

// CommandElem names a command step in the chain.
type CommandElem struct{ name string }

func (CommandElem) chainElem()      {}
func (e CommandElem) Name() string  { return e.name }

// EventElem names an event step in the chain — only ever present where the
// corresponding ancestor line had method=when.
type EventElem struct{ name string }

func (EventElem) chainElem()       {}
func (e EventElem) Name() string   { return e.name }

func Service(name string) ChainElem { return ServiceElem{name: name} }
func Command(name string) ChainElem { return CommandElem{name: name} }
func Event(name string) ChainElem   { return EventElem{name: name} }

// Chain is the resolved path Service -> (Command|Event)* -> Command used to
// locate configuration and select transport (spec.md §3).
type Chain []ChainElem

// Last returns the chain's final element, always a CommandElem by
// construction.
func (c Chain) Last() ChainElem { return c[len(c)-1] }

// resolveChain walks line's ancestors to build the chain Service ->
// (Command|Event)* -> Command, exactly as spec.md §4.3 describes.
//
// A line's "service" field may name a handle produced by an ancestor
// event's single output (e.g. `when client foo as echo_helper` binds
// echo_helper within its body). Resolution walks upward until it hits
// either a concrete service (a key in app.Services) or an internal
// service.
func (e *Executor) resolveChain(story storymodel.Story, line storymodel.Line) (Chain, error) {
	var chain Chain
	cur := line

	for {
		if cur.Method == storymodel.MethodWhen {
			chain = append(Chain{Event(cur.Command)}, chain...)
		} else {
			chain = append(Chain{Command(cur.Command)}, chain...)
		}

		resolved := story.App().IsConcreteService(cur.Service) ||
			e.Registry.IsInternal(cur.Service, cur.Command)
		if resolved {
			chain = append(Chain{Service(cur.Service)}, chain...)
			story.Logger().Debug("chain resolved - %v", chainNames(chain))
			return chain, nil
		}

		owner, err := findOwner(story, cur)
		if err != nil {
			return nil, &DispatchError{
				Kind:      ErrProgramming,
				Message:   err.Error(),
				StoryName: story.Name(),
				LineID:    cur.ID,
			}
		}
		cur = owner
	}
}

// findOwner walks parent links upward from cur, returning the first
// ancestor line whose Output has exactly one name equal to cur's service —
// the line that "owns" (bound) that handle. It is a precondition that such
// an ancestor exists; spec.md §4.3 treats its absence as fatal.
func findOwner(story storymodel.Story, cur storymodel.Line) (storymodel.Line, error) {
	for {
		if !cur.HasParent() {
			return storymodel.Line{}, errNoOwner(cur)
		}
		parent, ok := story.Line(cur.Parent)
		if !ok {
			return storymodel.Line{}, errNoOwner(cur)
		}
		if name, single := parent.SingleOutput(); single && name == cur.Service {
			return parent, nil
		}
		cur = parent
	}
}

func errNoOwner(line storymodel.Line) error {
	return &ownerNotFoundError{lineID: line.ID, service: line.Service}
}

type ownerNotFoundError struct {
	lineID  string
	service string
}

func (e *ownerNotFoundError) Error() string {
	return "no ancestor line owns handle " + e.service + " (line " + e.lineID + ")"
}

func chainNames(c Chain) []string {
	out := make([]string, len(c))
	for i, e := range c {
		out[i] = e.Name()
	}
	return out
}
