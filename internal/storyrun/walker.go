package storyrun

import (
	"context"
	"fmt"
	"strings"

	"github.com/nemaniarjun/storyengine/internal/dispatch"
	"github.com/nemaniarjun/storyengine/internal/storymodel"
)

// Dispatcher is the subset of *dispatch.Executor the walker depends on —
// named so the walker can be tested against a fake without importing the
// concrete Executor type.
type Dispatcher interface {
	Execute(ctx context.Context, story storymodel.Story, line storymodel.Line) (any, error)
	StartContainer(ctx context.Context, story storymodel.Story, line storymodel.Line) (storymodel.StreamingServiceHandle, error)
	When(ctx context.Context, story storymodel.Story, line storymodel.Line, svc storymodel.StreamingServiceHandle) error
}

var _ Dispatcher = (*dispatch.Executor)(nil)

// Walker drives a Story from its entry line to completion, following
// if/unless branches (asyncy/tasks/Story.py:execute,
// asyncy/processing/Lexicon.py). A nested story reference ends the walk
// with an error; nested stories are not run.
type Walker struct {
	Dispatcher Dispatcher
	Sink       ResultSink
}

// NewWalker returns a Walker over the given dispatcher, recording results
// to sink.
func NewWalker(d Dispatcher, sink ResultSink) *Walker {
	return &Walker{Dispatcher: d, Sink: sink}
}

// Run walks story from its tree's entry line to the end, dispatching each
// line and recording results. It stops at the first dispatch error or when
// no successor line remains.
func (w *Walker) Run(ctx context.Context, story *Story) error {
	return w.ContinueFrom(ctx, story, story.tree.EntryLine)
}

// ContinueFrom walks story starting at lineID rather than its tree's entry
// line — used to resume a story after a subscription callback delivers an
// event (internal/server's event endpoint).
func (w *Walker) ContinueFrom(ctx context.Context, story *Story, lineID string) error {
	for lineID != "" {
		if strings.HasSuffix(lineID, ".story") {
			return fmt.Errorf("nested story reference %q requires a multi-story application lookup, not supported by this walker", lineID)
		}

		next, err := w.runLine(ctx, story, lineID)
		if err != nil {
			return err
		}
		lineID = next
	}
	return nil
}

// runLine executes (or subscribes) one line and returns the id of the next
// line to run, or "" if the story has ended.
func (w *Walker) runLine(ctx context.Context, story *Story, lineID string) (string, error) {
	line, ok := story.Line(lineID)
	if !ok {
		return "", fmt.Errorf("no such line %q", lineID)
	}

	switch line.Method {
	case storymodel.MethodIf:
		truthy, err := story.EvaluateCondition(line)
		if err != nil {
			return "", err
		}
		if truthy {
			return line.Enter, nil
		}
		return line.Exit, nil

	case storymodel.MethodUnless:
		truthy, err := story.EvaluateCondition(line)
		if err != nil {
			return "", err
		}
		if truthy {
			return line.Exit, nil
		}
		return line.Enter, nil

	case storymodel.MethodWhen:
		svc, err := w.Dispatcher.StartContainer(ctx, story, line)
		if err != nil {
			if w.Sink != nil {
				w.Sink.RecordError(story.Name(), line.ID, err)
			}
			return "", err
		}
		if err := w.Dispatcher.When(ctx, story, line, svc); err != nil {
			if w.Sink != nil {
				w.Sink.RecordError(story.Name(), line.ID, err)
			}
			return "", err
		}
		return line.Next, nil

	default:
		result, err := w.Dispatcher.Execute(ctx, story, line)
		if err != nil {
			if w.Sink != nil {
				w.Sink.RecordError(story.Name(), line.ID, err)
			}
			return "", err
		}
		story.RecordResult(line.ID, result)
		if w.Sink != nil {
			w.Sink.RecordResult(story.Name(), line.ID, result)
		}
		return line.Next, nil
	}
}
