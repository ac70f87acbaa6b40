package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jo-hoe/gofilter/internal/backend/database"
	"github.com/jo-hoe/gofilter/internal/backend/filters"
	"github.com/jo-hoe/gofilter/internal/backend/imaging"
	"github.com/jo-hoe/gofilter/internal/backend/scheduler"
	"github.com/jo-hoe/gofilter/internal/backend/thumbcache"
	"github.com/jo-hoe/gofilter/internal/capture"
)

// DefaultCaption is stored when a photo is added without a caption.
const DefaultCaption = "test caption"

type CoreService struct {
	config      *ServiceConfig
	store       database.RecordStore
	storage     thumbcache.Storage
	catalog     *filters.Catalog
	engine      *imaging.Engine
	cache       *thumbcache.Cache
	loop        *scheduler.UILoop
	pool        *scheduler.Pool
	placeholder []byte

	mu       sync.Mutex
	sessions map[string]*FilterSession
}

// Option overrides a collaborator NewCoreService would otherwise build
// from the configuration.
type Option func(*CoreService)

// WithRecordStore injects the record store.
func WithRecordStore(store database.RecordStore) Option {
	return func(s *CoreService) { s.store = store }
}

// WithCacheStorage injects the thumbnail cache storage.
func WithCacheStorage(storage thumbcache.Storage) Option {
	return func(s *CoreService) { s.storage = storage }
}

func NewCoreService(ctx context.Context, config *ServiceConfig, opts ...Option) (*CoreService, error) {
	service := &CoreService{
		config:   config,
		engine:   imaging.NewEngine(),
		sessions: make(map[string]*FilterSession),
	}
	for _, opt := range opts {
		opt(service)
	}

	catalog, err := filters.BuildCatalog(filters.DefaultRegistry, config.Filters)
	if err != nil {
		return nil, fmt.Errorf("failed to build filter catalog: %w", err)
	}
	service.catalog = catalog

	placeholder, err := imaging.Placeholder(config.Thumbnail.MaxEdge)
	if err != nil {
		return nil, fmt.Errorf("failed to render placeholder: %w", err)
	}
	service.placeholder = placeholder

	if service.store == nil {
		if service.store, err = getDatabaseService(config); err != nil {
			return nil, err
		}
	}
	if service.storage == nil {
		if service.storage, err = getCacheStorage(ctx, config); err != nil {
			_ = service.store.Close()
			return nil, err
		}
	}

	service.cache = thumbcache.New(service.storage, service.engine, catalog, config.ThumbnailQuality())
	service.loop = scheduler.NewUILoop()
	service.pool = scheduler.NewPool(config.Workers)

	slog.Info("core service initialized",
		"filters", catalog.Count(),
		"cache_backend", config.Cache.Backend,
		"workers", config.Workers)
	return service, nil
}

func getDatabaseService(config *ServiceConfig) (database.RecordStore, error) {
	store, err := database.NewDatabase(config.Database.Type, config.Database.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	slog.Info("database initialized successfully", "type", config.Database.Type)
	return store, nil
}

func getCacheStorage(ctx context.Context, config *ServiceConfig) (thumbcache.Storage, error) {
	switch config.Cache.Backend {
	case CacheBackendRedis:
		storage, err := thumbcache.NewRedisStorage(ctx, config.Cache.RedisAddr, config.Cache.RedisPrefix, config.Cache.TTL())
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis cache: %w", err)
		}
		slog.Info("thumbnail cache initialized", "backend", CacheBackendRedis, "addr", config.Cache.RedisAddr)
		return storage, nil
	default:
		storage, err := thumbcache.NewFileStorage(config.Cache.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize cache directory: %w", err)
		}
		slog.Info("thumbnail cache initialized", "backend", CacheBackendFilesystem, "dir", storage.Dir())
		return storage, nil
	}
}

// AddPhoto prepares the picked image and saves it as a new record.
func (service *CoreService) AddPhoto(ctx context.Context, result capture.PickResult, caption string) (*database.PhotoRecord, error) {
	prepared, err := capture.Prepare(result, service.config.FullQuality(), service.config.ThumbnailQuality())
	if err != nil {
		return nil, err
	}
	if caption == "" {
		caption = DefaultCaption
	}

	record, err := service.store.Insert(ctx, prepared.Image, prepared.Thumbnail, caption)
	if err != nil {
		return nil, err
	}
	if err := service.store.Save(ctx); err != nil {
		return nil, err
	}
	slog.Info("photo added", "id", record.ID, "size_bytes", len(record.Image))
	return record, nil
}

// ListPhotos returns all records in feed order.
func (service *CoreService) ListPhotos(ctx context.Context) ([]*database.PhotoRecord, error) {
	return service.store.FetchAll(ctx)
}

func (service *CoreService) GetPhoto(ctx context.Context, id string) (*database.PhotoRecord, error) {
	return service.store.Get(ctx, id)
}

// DeletePhoto removes the record, its open filter session and its cached thumbnails.
func (service *CoreService) DeletePhoto(ctx context.Context, id string) error {
	record, err := service.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := service.store.Delete(ctx, id); err != nil {
		return err
	}
	if err := service.store.Save(ctx); err != nil {
		return err
	}

	service.endSession(id)
	service.clearNamespace(ctx, thumbcache.Namespace(record.ID, record.Thumbnail))
	slog.Info("photo deleted", "id", id)
	return nil
}

// Filters returns the catalog in index order.
func (service *CoreService) Filters() []filters.Definition {
	return service.catalog.Definitions()
}

// Placeholder returns the PNG shown by cells without a thumbnail.
func (service *CoreService) Placeholder() []byte {
	return service.placeholder
}

// OpenFilterSession shows the filter grid of a record. An open session is
// reused while the record's thumbnail is unchanged. Only one grid is on
// screen, so opening a record releases the sessions of all others; their
// renders still in flight finish into the cache.
func (service *CoreService) OpenFilterSession(ctx context.Context, id string) (*FilterSession, error) {
	record, err := service.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	namespace := thumbcache.Namespace(record.ID, record.Thumbnail)

	service.mu.Lock()
	defer service.mu.Unlock()
	if existing, ok := service.sessions[id]; ok && existing.Namespace() == namespace {
		return existing, nil
	}
	for other, session := range service.sessions {
		delete(service.sessions, other)
		slog.Debug("filter session released", "id", other, "namespace", session.Namespace())
	}

	session, err := newFilterSession(service, record)
	if err != nil {
		return nil, err
	}
	service.sessions[id] = session
	slog.Debug("filter session opened", "id", id, "namespace", session.Namespace())
	return session, nil
}

// Session returns the open filter session of a record.
func (service *CoreService) Session(id string) (*FilterSession, bool) {
	service.mu.Lock()
	defer service.mu.Unlock()
	session, ok := service.sessions[id]
	return session, ok
}

// FilterThumbnail returns the cached thumbnail of one filter for a record,
// rendering it on a miss. It blocks the caller instead of using the grid.
func (service *CoreService) FilterThumbnail(ctx context.Context, id string, index int) ([]byte, error) {
	session, err := service.OpenFilterSession(ctx, id)
	if err != nil {
		return nil, err
	}
	return session.cache.Get(ctx, index)
}

// CommitFilter replaces the record's image and thumbnail with the filter at
// index rendered at full and thumbnail quality, then saves once. A failed
// save leaves the record updated in memory and staged for a retry.
func (service *CoreService) CommitFilter(ctx context.Context, id string, index int) (*database.PhotoRecord, error) {
	def, err := service.catalog.DefinitionAt(index)
	if err != nil {
		return nil, err
	}
	record, err := service.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	oldNamespace := thumbcache.Namespace(record.ID, record.Thumbnail)

	full, err := service.engine.Render(record.Image, def, service.config.FullQuality())
	if err != nil {
		return nil, fmt.Errorf("rendering %s at full quality: %w", def.Name, err)
	}
	thumbnail, err := service.engine.Transcode(full, service.config.ThumbnailQuality())
	if err != nil {
		return nil, fmt.Errorf("rendering %s thumbnail: %w", def.Name, err)
	}

	if err := service.store.Update(ctx, record, full, thumbnail); err != nil {
		return nil, err
	}
	if err := service.store.Save(ctx); err != nil {
		slog.Error("commit filter: save failed", "id", id, "filter", def.Name, "error", err)
		return record, err
	}

	service.endSession(id)
	service.clearNamespace(ctx, oldNamespace)
	slog.Info("filter committed", "id", id, "filter", def.Name, "index", index)
	return record, nil
}

func (service *CoreService) endSession(id string) {
	service.mu.Lock()
	defer service.mu.Unlock()
	delete(service.sessions, id)
}

func (service *CoreService) clearNamespace(ctx context.Context, namespace string) {
	if err := service.cache.Retire(ctx, namespace); err != nil {
		slog.Warn("failed to clear thumbnail cache", "namespace", namespace, "error", err)
	}
}

func (service *CoreService) Close() error {
	service.mu.Lock()
	service.sessions = make(map[string]*FilterSession)
	service.mu.Unlock()

	service.pool.Close()
	service.loop.Stop()

	return errors.Join(service.storage.Close(), service.store.Close())
}
