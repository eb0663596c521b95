// Package tags provides the tag-definition lookup collaborator used by the
// query generator, with a small process-wide read-through cache in front of
// the storage-backed source of truth.
package tags

import (
	"context"
	"sync"

	"github.com/doka-one/doka-document-core/internal/model"
)

// Source fetches tag definitions by name from durable storage.
type Source interface {
	TagDefinitions(ctx context.Context, names []string) ([]model.TagDefinition, error)
}

// CachedLookup wraps a Source with a read-through cache keyed by tag name.
// It is safe for concurrent use; invalidate entries with Forget when a tag
// definition is written.
type CachedLookup struct {
	source Source
	cache  sync.Map // name -> model.TagDefinition
}

func NewCachedLookup(source Source) *CachedLookup {
	return &CachedLookup{source: source}
}

// Lookup returns the definitions for names, fetching any cache miss from the
// source in one batch call.
func (c *CachedLookup) Lookup(ctx context.Context, names []string) (map[string]model.TagDefinition, error) {
	result := make(map[string]model.TagDefinition, len(names))
	var missing []string

	for _, name := range names {
		if v, ok := c.cache.Load(name); ok {
			result[name] = v.(model.TagDefinition)
		} else {
			missing = append(missing, name)
		}
	}

	if len(missing) == 0 {
		return result, nil
	}

	defs, err := c.source.TagDefinitions(ctx, missing)
	if err != nil {
		return nil, err
	}
	for _, d := range defs {
		c.cache.Store(d.Name, d)
		result[d.Name] = d
	}
	return result, nil
}

// Forget evicts a tag definition, e.g. after it is redefined.
func (c *CachedLookup) Forget(name string) {
	c.cache.Delete(name)
}
