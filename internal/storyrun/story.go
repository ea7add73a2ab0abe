// Package storyrun is the thin driver that turns a static story tree into
// a running story: line-to-line control flow, argument expression
// evaluation, and result persistence. It consumes the dispatch core's
// Executor as an external collaborator and never reaches back into it
// beyond that interface (SPEC_FULL.md §9.1).
package storyrun

import (
	"encoding/json"
	"fmt"

	"github.com/nemaniarjun/storyengine/internal/storymodel"
)

// Story implements storymodel.Story against a static StoryTree: it
// resolves arguments by evaluating the small expression language lines
// carry (literals and references to earlier lines' results) and exposes
// the shared per-run context and logger.
type Story struct {
	name    string
	tree    storymodel.StoryTree
	app     *storymodel.Application
	logger  storymodel.Logger
	ctx     *storymodel.StoryContext
	results map[string]any
}

// NewStory returns a Story ready to be walked, with no results recorded
// yet.
func NewStory(name string, tree storymodel.StoryTree, app *storymodel.Application, logger storymodel.Logger) *Story {
	return &Story{
		name:    name,
		tree:    tree,
		app:     app,
		logger:  logger,
		ctx:     storymodel.NewStoryContext(),
		results: make(map[string]any),
	}
}

func (s *Story) Name() string                       { return s.name }
func (s *Story) App() *storymodel.Application        { return s.app }
func (s *Story) Logger() storymodel.Logger           { return s.logger }
func (s *Story) Context() *storymodel.StoryContext   { return s.ctx }

// Line returns the line with the given id.
func (s *Story) Line(id string) (storymodel.Line, bool) {
	l, ok := s.tree.Lines[id]
	return l, ok
}

// RecordResult stores a line's dispatch result, making it available to
// later lines' argument expressions (ref resolution below).
func (s *Story) RecordResult(lineID string, result any) {
	s.results[lineID] = result
}

// exprRef is the expression shape a line's argument can hold beyond a
// plain JSON literal: a reference to an earlier line's recorded result,
// optionally narrowed by a field path.
type exprRef struct {
	Ref  string   `json:"$ref"`
	Path []string `json:"$path,omitempty"`
}

// ArgumentByName evaluates the expression tree line declares for the
// named argument. Plain JSON literals decode and return as-is; a
// `{"$ref": "<lineID>", "$path": [...]}` object resolves against a prior
// line's recorded result.
func (s *Story) ArgumentByName(line storymodel.Line, name string) (any, error) {
	for _, arg := range line.Args {
		if arg.Name != name {
			continue
		}
		return s.evaluate(arg.Argument)
	}
	return nil, fmt.Errorf("line %s declares no argument %q", line.ID, name)
}

// EvaluateCondition evaluates a line's first declared argument and reports
// whether it is truthy, for if/unless branching. A missing argument is an
// error — if/unless lines must declare exactly one condition argument.
func (s *Story) EvaluateCondition(line storymodel.Line) (bool, error) {
	if len(line.Args) == 0 {
		return false, fmt.Errorf("line %s has method %q but declares no condition argument", line.ID, line.Method)
	}
	val, err := s.evaluate(line.Args[0].Argument)
	if err != nil {
		return false, err
	}
	return truthy(val), nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}

func (s *Story) evaluate(raw json.RawMessage) (any, error) {
	var ref exprRef
	if err := json.Unmarshal(raw, &ref); err == nil && ref.Ref != "" {
		val, ok := s.results[ref.Ref]
		if !ok {
			return nil, fmt.Errorf("no recorded result for line %q", ref.Ref)
		}
		for _, key := range ref.Path {
			m, ok := val.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("cannot index %T with key %q", val, key)
			}
			val, ok = m[key]
			if !ok {
				return nil, fmt.Errorf("missing key %q in referenced result", key)
			}
		}
		return val, nil
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decoding argument expression: %w", err)
	}
	return v, nil
}
