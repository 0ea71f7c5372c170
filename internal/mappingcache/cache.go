// Package mappingcache stores the last successful field mapping per page
// identity so repeat visits skip re-matching. The page key is hostname plus
// pathname; query strings must not fragment the cache. Entries never expire
// on their own — invalidation is an explicit user action, and a page whose
// form changed under a cached mapping simply yields skipped fields until the
// user clears it.
package mappingcache

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/formscout/formscout/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Store is the persistence port behind the in-memory front. Go/no-go on a
// key is (data, found, error); a missing key is not an error.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// Cache is a write-through mapping cache: an LRU front absorbs repeat reads,
// every Put lands in the backing store.
type Cache struct {
	front  *lru.Cache[string, []schemas.FieldMapping]
	store  Store
	group  singleflight.Group
	logger *zap.Logger
}

// DefaultMaxEntries bounds the in-memory front; the backing store is not
// size-limited here.
const DefaultMaxEntries = 256

// New creates a Cache over the given store.
func New(store Store, maxEntries int, logger *zap.Logger) (*Cache, error) {
	if store == nil {
		return nil, fmt.Errorf("mappingcache: store is required")
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	front, err := lru.New[string, []schemas.FieldMapping](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("mappingcache: %w", err)
	}
	return &Cache{front: front, store: store, logger: logger.Named("mappingcache")}, nil
}

// PageKey derives the page identity key from a raw URL: hostname + pathname,
// query and fragment stripped. Unparsable input falls back to the raw string
// so the caller still gets a usable (if over-specific) key.
func PageKey(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Hostname() == "" {
		return strings.TrimSpace(rawURL)
	}
	return u.Hostname() + u.EscapedPath()
}

// Get returns the cached mappings for a page key, or nil on a miss. Corrupt
// persisted entries count as misses: a cache must never make recognition
// fail.
func (c *Cache) Get(ctx context.Context, pageKey string) []schemas.FieldMapping {
	if mappings, ok := c.front.Get(pageKey); ok {
		return cloneMappings(mappings)
	}

	// Coalesce concurrent loads of the same key from the backing store.
	v, err, _ := c.group.Do(pageKey, func() (any, error) {
		data, found, err := c.store.Get(ctx, pageKey)
		if err != nil || !found {
			return nil, err
		}

		var entry schemas.CachedMappingEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			c.logger.Warn("discarding corrupt cache entry",
				zap.String("pageKey", pageKey), zap.Error(err))
			return nil, nil
		}
		return entry.Mappings, nil
	})
	if err != nil {
		c.logger.Warn("cache store read failed", zap.String("pageKey", pageKey), zap.Error(err))
		return nil
	}

	mappings, _ := v.([]schemas.FieldMapping)
	if len(mappings) == 0 {
		return nil
	}
	c.front.Add(pageKey, mappings)
	return cloneMappings(mappings)
}

// Put records a page's mappings, overwriting any previous entry. The
// persisted form is always the timestamped envelope.
func (c *Cache) Put(ctx context.Context, pageKey string, mappings []schemas.FieldMapping) error {
	if pageKey == "" || len(mappings) == 0 {
		return nil
	}
	entry := schemas.CachedMappingEntry{Mappings: mappings, CachedAt: time.Now().UTC()}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("mappingcache: encode entry: %w", err)
	}
	if err := c.store.Put(ctx, pageKey, data); err != nil {
		return fmt.Errorf("mappingcache: persist entry: %w", err)
	}
	c.front.Add(pageKey, cloneMappings(mappings))
	return nil
}

// Clear drops the entry for one page key.
func (c *Cache) Clear(ctx context.Context, pageKey string) error {
	c.front.Remove(pageKey)
	if err := c.store.Delete(ctx, pageKey); err != nil {
		return fmt.Errorf("mappingcache: delete entry: %w", err)
	}
	return nil
}

// ClearAll drops every entry.
func (c *Cache) ClearAll(ctx context.Context) error {
	c.front.Purge()
	if err := c.store.Clear(ctx); err != nil {
		return fmt.Errorf("mappingcache: clear store: %w", err)
	}
	return nil
}

// cloneMappings keeps callers from mutating the cached slice in place.
func cloneMappings(in []schemas.FieldMapping) []schemas.FieldMapping {
	out := make([]schemas.FieldMapping, len(in))
	copy(out, in)
	return out
}
