package dispatch

import "github.com/nemaniarjun/storyengine/internal/storymodel"

// resolveArgument is the Argument Resolver (spec.md §4.1): pure dispatch to
// the story's own argument evaluator. No caching, no side effects from the
// core's perspective.
func resolveArgument(story storymodel.Story, line storymodel.Line, name string) (any, error) {
	return story.ArgumentByName(line, name)
}
