package graph

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/webchat-agent/server/internal/agent/model"
	logx "github.com/webchat-agent/server/pkg/logger"
)

// DefaultCacheSize bounds the number of compiled workflow variants kept in
// memory at once.
const DefaultCacheSize = 20

// Runnable is the compiled, executable form of a workflow graph.
type Runnable = compose.Runnable[model.ChatInput, *schema.Message]

// Workflow is one compiled graph variant, identified by its cache key.
type Workflow struct {
	Key      string
	Runnable Runnable
}

// BuildFunc compiles a workflow for a model selector and a set of tool ids.
type BuildFunc func(ctx context.Context, modelID string, toolIDs []string) (Runnable, error)

// Cache memoizes compiled workflows per model/tool combination. When full,
// the entry inserted earliest is evicted regardless of how recently it was
// used.
type Cache struct {
	mu      sync.Mutex
	max     int
	build   BuildFunc
	entries map[string]*Workflow
	order   []string
}

func NewCache(max int, build BuildFunc) *Cache {
	if max <= 0 {
		max = DefaultCacheSize
	}
	return &Cache{
		max:     max,
		build:   build,
		entries: make(map[string]*Workflow, max),
	}
}

// CacheKey derives the cache key for a model selector and tool id set. Tool
// ids are sorted so the same set always maps to the same variant.
func CacheKey(modelID string, toolIDs []string) string {
	m := modelID
	if m == "" {
		m = "default"
	}

	t := "none"
	if len(toolIDs) > 0 {
		ids := make([]string, len(toolIDs))
		copy(ids, toolIDs)
		sort.Strings(ids)
		t = strings.Join(ids, ",")
	}
	return m + "-" + t
}

// GetOrBuild returns the cached workflow for the combination, compiling and
// caching it on first use. Failed builds are not cached.
func (c *Cache) GetOrBuild(ctx context.Context, modelID string, toolIDs []string) (*Workflow, error) {
	key := CacheKey(modelID, toolIDs)

	c.mu.Lock()
	defer c.mu.Unlock()

	if wf, ok := c.entries[key]; ok {
		return wf, nil
	}

	runnable, err := c.build(ctx, modelID, toolIDs)
	if err != nil {
		return nil, err
	}
	wf := &Workflow{Key: key, Runnable: runnable}

	if len(c.order) >= c.max {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
		logx.Debug().Str("evicted", oldest).Str("inserted", key).Msg("workflow cache full")
	}
	c.entries[key] = wf
	c.order = append(c.order, key)

	logx.Debug().Str("key", key).Int("cached", len(c.order)).Msg("workflow compiled and cached")
	return wf, nil
}

// Len reports how many workflows are currently cached.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}
