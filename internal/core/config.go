package core

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jo-hoe/gofilter/internal/backend/filters"
	"github.com/jo-hoe/gofilter/internal/backend/imaging"
	"gopkg.in/yaml.v3"
)

const (
	CacheBackendFilesystem = "filesystem"
	CacheBackendRedis      = "redis"

	defaultPort             = 8080
	defaultThumbnailMaxEdge = 300
	defaultThumbnailQuality = 10
	defaultFullQuality      = 100
	defaultRedisPrefix      = "gofilter:thumbs:"
)

type Database struct {
	Type             string `yaml:"type"`
	ConnectionString string `yaml:"connectionString"`
}

type Cache struct {
	Backend     string `yaml:"backend"`
	Dir         string `yaml:"dir"`
	RedisAddr   string `yaml:"redisAddr"`
	RedisPrefix string `yaml:"redisPrefix"`
	TTLSeconds  int    `yaml:"ttlSeconds"`
}

// TTL returns the redis entry lifetime; zero keeps entries forever.
func (c Cache) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

type Quality struct {
	MaxEdge     int `yaml:"maxEdge"`
	JPEGQuality int `yaml:"jpegQuality"`
}

type ServiceConfig struct {
	Port      int              `yaml:"port"`
	LogLevel  string           `yaml:"logLevel"`
	Database  Database         `yaml:"database"`
	Cache     Cache            `yaml:"cache"`
	Thumbnail Quality          `yaml:"thumbnail"`
	Full      Quality          `yaml:"full"`
	Workers   int              `yaml:"workers"`
	Filters   []filters.Config `yaml:"filters"`
}

// DefaultConfig is the configuration used when no file is present.
func DefaultConfig() *ServiceConfig {
	config := &ServiceConfig{}
	config.applyDefaults()
	return config
}

// LoadConfig loads configuration from the specified YAML file
func LoadConfig(configPath string) (*ServiceConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	config, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
	}
	return config, nil
}

// ParseConfig parses YAML, fills in defaults and validates the result.
func ParseConfig(data []byte) (*ServiceConfig, error) {
	var config ServiceConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	config.applyDefaults()

	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *ServiceConfig) applyDefaults() {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	if c.Database.ConnectionString == "" {
		c.Database.ConnectionString = "gofilter.db"
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = CacheBackendFilesystem
	}
	if c.Cache.RedisPrefix == "" {
		c.Cache.RedisPrefix = defaultRedisPrefix
	}
	if c.Thumbnail.MaxEdge == 0 {
		c.Thumbnail.MaxEdge = defaultThumbnailMaxEdge
	}
	if c.Thumbnail.JPEGQuality == 0 {
		c.Thumbnail.JPEGQuality = defaultThumbnailQuality
	}
	if c.Full.JPEGQuality == 0 {
		c.Full.JPEGQuality = defaultFullQuality
	}
	if len(c.Filters) == 0 {
		c.Filters = filters.DefaultConfigs()
	}
}

func (c *ServiceConfig) validate() error {
	switch c.Cache.Backend {
	case CacheBackendFilesystem:
	case CacheBackendRedis:
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("cache backend %q requires redisAddr", CacheBackendRedis)
		}
	default:
		return fmt.Errorf("unsupported cache backend: %s", c.Cache.Backend)
	}

	for name, q := range map[string]Quality{"thumbnail": c.Thumbnail, "full": c.Full} {
		if q.JPEGQuality < 1 || q.JPEGQuality > 100 {
			return fmt.Errorf("%s jpegQuality must be within [1, 100], got %d", name, q.JPEGQuality)
		}
		if q.MaxEdge < 0 {
			return fmt.Errorf("%s maxEdge must not be negative, got %d", name, q.MaxEdge)
		}
	}

	if err := validateFilters(c.Filters); err != nil {
		return fmt.Errorf("invalid filter configuration: %w", err)
	}
	return nil
}

// validateFilters ensures all filter configurations have required fields
func validateFilters(configs []filters.Config) error {
	seenNames := make(map[string]bool)

	for i, f := range configs {
		if f.Name == "" {
			return fmt.Errorf("filter at index %d has empty name", i)
		}
		if seenNames[f.Name] {
			return fmt.Errorf("duplicate filter name: %s", f.Name)
		}
		seenNames[f.Name] = true

		if !filters.DefaultRegistry.IsRegistered(f.Kind) {
			return fmt.Errorf("filter %s has unknown kind %q", f.Name, f.Kind)
		}
	}

	// Parameter types and ranges are checked by building the catalog once.
	if _, err := filters.BuildCatalog(filters.DefaultRegistry, configs); err != nil {
		return err
	}
	return nil
}

// SlogLevel maps LogLevel onto a slog level, defaulting to info.
func (c *ServiceConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (c *ServiceConfig) ThumbnailQuality() imaging.Quality {
	return imaging.ThumbnailQuality(c.Thumbnail.MaxEdge, c.Thumbnail.JPEGQuality)
}

func (c *ServiceConfig) FullQuality() imaging.Quality {
	q := imaging.FullQuality()
	q.MaxEdge = c.Full.MaxEdge
	q.JPEGQuality = c.Full.JPEGQuality
	return q
}
