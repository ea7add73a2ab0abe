package dispatch

import (
	"context"
	"testing"

	"github.com/nemaniarjun/storyengine/internal/storymodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryOverwriteLastWins(t *testing.T) {
	r := NewRegistry()
	r.Register("log", "info", []string{"msg"}, "none",
		func(ctx context.Context, story storymodel.Story, line storymodel.Line, args map[string]any) (any, error) {
			return "first", nil
		})
	r.Register("log", "info", []string{"msg"}, "none",
		func(ctx context.Context, story storymodel.Story, line storymodel.Line, args map[string]any) (any, error) {
			return "second", nil
		})

	cmd, ok := r.lookup("log", "info")
	require.True(t, ok)

	out, err := cmd.Handler(context.Background(), nil, storymodel.Line{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "second", out)
}

func TestRegistryIsInternal(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.IsInternal("log", "info"))

	r.Register("log", "info", nil, "none", nil)
	assert.True(t, r.IsInternal("log", "info"))
	assert.False(t, r.IsInternal("log", "debug"))
	assert.False(t, r.IsInternal("other", "info"))
}

func TestRegistryListIsSorted(t *testing.T) {
	r := NewRegistry()
	r.Register("zeta", "b", nil, "none", nil)
	r.Register("zeta", "a", nil, "none", nil)
	r.Register("alpha", "x", nil, "none", nil)

	got := r.List()
	require.Len(t, got, 2)
	assert.Equal(t, "alpha", got[0].Service)
	assert.Equal(t, "zeta", got[1].Service)
	assert.Equal(t, []string{"a", "b"}, got[1].Commands)
}
