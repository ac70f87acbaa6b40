package thumbcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/jo-hoe/gofilter/internal/backend/filters"
	"github.com/jo-hoe/gofilter/internal/backend/imaging"
	"golang.org/x/sync/singleflight"
)

// Renderer produces a filtered image from source bytes.
type Renderer interface {
	Render(src []byte, def filters.Definition, q imaging.Quality) ([]byte, error)
}

// Catalog resolves a filter index to its definition.
type Catalog interface {
	Count() int
	DefinitionAt(index int) (filters.Definition, error)
}

// Cache hands out per-record sessions that share storage, renderer and catalog.
type Cache struct {
	storage  Storage
	renderer Renderer
	catalog  Catalog
	quality  imaging.Quality

	// mu is held shared by every write and exclusively by Retire.
	mu      sync.RWMutex
	retired map[string]struct{}
}

// New creates a cache that renders misses at the given thumbnail quality.
func New(storage Storage, renderer Renderer, catalog Catalog, quality imaging.Quality) *Cache {
	return &Cache{
		storage:  storage,
		renderer: renderer,
		catalog:  catalog,
		quality:  quality,
		retired:  make(map[string]struct{}),
	}
}

// Namespace derives the session namespace of a record: its id plus a digest
// of the thumbnail source, so a changed source never reuses old entries.
func Namespace(recordID string, source []byte) string {
	sum := sha256.Sum256(source)
	return recordID + "-" + hex.EncodeToString(sum[:6])
}

// Session opens the cache view of one record's filter grid.
func (c *Cache) Session(recordID string, source []byte) *Session {
	return &Session{
		cache:     c,
		namespace: Namespace(recordID, source),
		source:    source,
	}
}

// Clear drops every entry of the namespace.
func (c *Cache) Clear(ctx context.Context, namespace string) error {
	return c.storage.Clear(ctx, namespace)
}

// Retire clears the namespace for good. It waits for writes in progress,
// and renders finishing afterwards are returned to their callers but never
// stored, so nothing reappears under a deleted or replaced thumbnail.
func (c *Cache) Retire(ctx context.Context, namespace string) error {
	c.mu.Lock()
	c.retired[namespace] = struct{}{}
	c.mu.Unlock()
	return c.storage.Clear(ctx, namespace)
}

func (c *Cache) write(ctx context.Context, key Key, data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, ok := c.retired[key.Namespace]; ok {
		slog.Debug("thumbcache: namespace retired, render not stored",
			"namespace", key.Namespace, "index", key.Index)
		return nil
	}
	return c.storage.Write(ctx, key, data)
}

// Session memoizes the renders of one record's thumbnail across the
// filter indices of the catalog.
type Session struct {
	cache     *Cache
	namespace string
	source    []byte
	inflight  singleflight.Group
}

// Namespace returns the storage namespace of the session.
func (s *Session) Namespace() string {
	return s.namespace
}

// Get returns the thumbnail for filter index, rendering and storing it on a
// miss. Concurrent misses for the same index share one render.
func (s *Session) Get(ctx context.Context, index int) ([]byte, error) {
	def, err := s.cache.catalog.DefinitionAt(index)
	if err != nil {
		return nil, err
	}
	key := Key{Namespace: s.namespace, Index: index}

	data, hit, err := s.cache.storage.Read(ctx, key)
	if err != nil {
		slog.Warn("thumbcache: read failed, rendering instead",
			"namespace", s.namespace, "index", index, "error", err)
	}
	if hit {
		slog.Debug("thumbcache: hit", "namespace", s.namespace, "index", index, "size_bytes", len(data))
		return data, nil
	}

	v, err, shared := s.inflight.Do(strconv.Itoa(index), func() (any, error) {
		return s.fill(ctx, key, def)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		slog.Debug("thumbcache: joined in-flight render", "namespace", s.namespace, "index", index)
	}
	return v.([]byte), nil
}

func (s *Session) fill(ctx context.Context, key Key, def filters.Definition) ([]byte, error) {
	// A render that finished between the caller's read and this call
	// has already stored the entry.
	if data, hit, err := s.cache.storage.Read(ctx, key); err == nil && hit {
		return data, nil
	}

	slog.Debug("thumbcache: miss, rendering", "namespace", s.namespace, "index", key.Index, "filter", def.Name)

	data, err := s.cache.renderer.Render(s.source, def, s.cache.quality)
	if err != nil {
		return nil, fmt.Errorf("rendering thumbnail %d (%s): %w", key.Index, def.Name, err)
	}

	if err := s.cache.write(ctx, key, data); err != nil {
		slog.Warn("thumbcache: write failed, entry stays cold",
			"namespace", s.namespace, "index", key.Index, "error", err)
	}
	return data, nil
}
