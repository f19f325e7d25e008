package sources

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/taljindergill78/FSE570/internal/circuitbreaker"
	"github.com/taljindergill78/FSE570/internal/metrics"
)

// PayloadCache stores raw source payloads keyed by "<source>/<name>".
// Writes are idempotent: the same key always carries the same payload.
type PayloadCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, data []byte) error
	// Location is the provenance pointer recorded on evidence.
	Location(key string) string
	Backend() string
}

// FileCache keeps payloads under <data_root>/raw/<source>/.
type FileCache struct {
	root string
}

// NewFileCache roots the cache at <dataRoot>/raw.
func NewFileCache(dataRoot string) *FileCache {
	return &FileCache{root: filepath.Join(dataRoot, "raw")}
}

func (c *FileCache) path(key string) string {
	return filepath.Join(c.root, filepath.FromSlash(key))
}

func (c *FileCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	data, err := os.ReadFile(c.path(key))
	if errors.Is(err, os.ErrNotExist) {
		metrics.PayloadCacheMisses.WithLabelValues(c.Backend()).Inc()
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached payload %s: %w", key, err)
	}
	metrics.PayloadCacheHits.WithLabelValues(c.Backend()).Inc()
	return data, true, nil
}

// Put writes through a temp file and rename so readers never see a partial payload.
func (c *FileCache) Put(_ context.Context, key string, data []byte) error {
	dst := c.path(key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write cached payload %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write cached payload %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to store cached payload %s: %w", key, err)
	}
	return nil
}

func (c *FileCache) Location(key string) string { return c.path(key) }

func (c *FileCache) Backend() string { return "file" }

// RedisCache shares payloads between service replicas.
type RedisCache struct {
	rw     *circuitbreaker.RedisWrapper
	prefix string
	ttl    time.Duration
}

// NewRedisCache stores payloads under prefix+key. A zero ttl keeps them forever.
func NewRedisCache(rw *circuitbreaker.RedisWrapper, prefix string, ttl time.Duration) *RedisCache {
	if prefix == "" {
		prefix = "osint:raw:"
	}
	return &RedisCache{rw: rw, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.rw.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.PayloadCacheMisses.WithLabelValues(c.Backend()).Inc()
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	metrics.PayloadCacheHits.WithLabelValues(c.Backend()).Inc()
	return data, true, nil
}

func (c *RedisCache) Put(ctx context.Context, key string, data []byte) error {
	if err := c.rw.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (c *RedisCache) Location(key string) string {
	return "redis://" + strings.TrimSuffix(c.prefix, ":") + ":" + key
}

func (c *RedisCache) Backend() string { return "redis" }
