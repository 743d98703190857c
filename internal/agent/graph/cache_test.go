package graph

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countingBuild(calls *int) BuildFunc {
	return func(ctx context.Context, modelID string, toolIDs []string) (Runnable, error) {
		*calls++
		return nil, nil
	}
}

func TestCacheKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "default-none", CacheKey("", nil))
	assert.Equal(t, "qwen:qwen3-max-none", CacheKey("qwen:qwen3-max", nil))
	assert.Equal(t, "default-calculator,weather", CacheKey("", []string{"weather", "calculator"}))

	// Key is independent of request-supplied tool order.
	assert.Equal(t,
		CacheKey("m", []string{"a", "b", "c"}),
		CacheKey("m", []string{"c", "a", "b"}),
	)
}

func TestCacheReusesSameCombination(t *testing.T) {
	t.Parallel()

	var calls int
	c := NewCache(DefaultCacheSize, countingBuild(&calls))
	ctx := context.Background()

	first, err := c.GetOrBuild(ctx, "m1", []string{"weather", "calculator"})
	require.NoError(t, err)
	second, err := c.GetOrBuild(ctx, "m1", []string{"calculator", "weather"})
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, calls)

	third, err := c.GetOrBuild(ctx, "m1", []string{"calculator"})
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Equal(t, 2, calls)
}

func TestCacheEvictsOldestInserted(t *testing.T) {
	t.Parallel()

	var calls int
	c := NewCache(2, countingBuild(&calls))
	ctx := context.Background()

	a, err := c.GetOrBuild(ctx, "a", nil)
	require.NoError(t, err)
	_, err = c.GetOrBuild(ctx, "b", nil)
	require.NoError(t, err)

	// A hit on the oldest entry does not protect it: eviction follows
	// insertion order, not recency of use.
	again, err := c.GetOrBuild(ctx, "a", nil)
	require.NoError(t, err)
	require.Same(t, a, again)

	_, err = c.GetOrBuild(ctx, "c", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())

	rebuilt, err := c.GetOrBuild(ctx, "a", nil)
	require.NoError(t, err)
	assert.NotSame(t, a, rebuilt)
	assert.Equal(t, 4, calls)
}

func TestCacheDoesNotCacheFailedBuilds(t *testing.T) {
	t.Parallel()

	fail := true
	var calls int
	c := NewCache(DefaultCacheSize, func(ctx context.Context, modelID string, toolIDs []string) (Runnable, error) {
		calls++
		if fail {
			return nil, fmt.Errorf("provider unavailable")
		}
		return nil, nil
	})
	ctx := context.Background()

	_, err := c.GetOrBuild(ctx, "m", nil)
	require.Error(t, err)
	assert.Equal(t, 0, c.Len())

	fail = false
	wf, err := c.GetOrBuild(ctx, "m", nil)
	require.NoError(t, err)
	assert.NotNil(t, wf)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, c.Len())
}
