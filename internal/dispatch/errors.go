package dispatch

import (
	"fmt"

	"github.com/nemaniarjun/storyengine/internal/storymodel"
)

// ErrorKind classifies a DispatchError (spec.md §7).
type ErrorKind int

const (
	// ErrProgramming covers a malformed story tree: missing parent links,
	// an impossible chain, no owner found for a bound handle.
	ErrProgramming ErrorKind = iota
	// ErrConfig covers a command declaring neither format nor http, an
	// unknown argument location, or a body-bearing non-POST request.
	ErrConfig
	// ErrTransport covers an HTTP non-2xx after retries, or a subscription
	// broker non-2xx response.
	ErrTransport
	// ErrDownstream wraps a Container Manager or DNS resolution failure
	// unchanged — the core never downgrades it to a default value.
	ErrDownstream
	// ErrUnknownCommand covers an internal dispatch naming an unregistered
	// command.
	ErrUnknownCommand
)

func (k ErrorKind) String() string {
	switch k {
	case ErrProgramming:
		return "ProgrammingError"
	case ErrConfig:
		return "ConfigError"
	case ErrTransport:
		return "TransportError"
	case ErrDownstream:
		return "DownstreamError"
	case ErrUnknownCommand:
		return "UnknownCommand"
	default:
		return "UnknownError"
	}
}

// DispatchError is the single sum-typed error the dispatch core returns.
// It always carries the story and line it failed on, so the caller can
// annotate the story's result set without re-parsing a generic string
// (Design Note 9 in SPEC_FULL.md).
type DispatchError struct {
	Kind      ErrorKind
	Message   string
	StoryName string
	LineID    string
	Cause     error
}

func (e *DispatchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (story=%s line=%s): %v",
			e.Kind, e.Message, e.StoryName, e.LineID, e.Cause)
	}
	return fmt.Sprintf("%s: %s (story=%s line=%s)",
		e.Kind, e.Message, e.StoryName, e.LineID)
}

func (e *DispatchError) Unwrap() error { return e.Cause }

func newConfigError(story storymodel.Story, lineID, message string) *DispatchError {
	return &DispatchError{
		Kind:      ErrConfig,
		Message:   message,
		StoryName: story.Name(),
		LineID:    lineID,
	}
}
