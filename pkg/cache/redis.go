// Package cache provides the Redis backed graph view cache.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/serialization"
	redis "github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "nodeflow:graph:"
	DefaultTTL = 10 * time.Minute
)

// Entry is a cached graph view together with the owner it was read for.
type Entry struct {
	OwnerID string           `msgpack:"owner_id"`
	Version int64            `msgpack:"version"`
	View    models.GraphView `msgpack:"view"`
}

// GraphCache stores graph views in Redis, msgpack and zstd encoded unless
// another serializer is given.
type GraphCache struct {
	client     redis.UniversalClient
	serializer *serialization.Serializer
	ttl        time.Duration
	logger     *slog.Logger
}

// NewGraphCache connects to the Redis server at url (redis://host:port/db).
// A nil serializer uses serialization.DefaultSerializer.
func NewGraphCache(
	ctx context.Context,
	logger *slog.Logger,
	url string,
	ttl time.Duration,
	serializer *serialization.Serializer,
) (*GraphCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse cache url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = client.Ping(pingCtx).Err()
	if err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	graphCache, err := NewGraphCacheWithClient(logger, client, ttl, serializer)
	if err != nil {
		_ = client.Close()

		return nil, err
	}

	graphCache.logger.InfoContext(ctx, "Connected to Redis", "addr", opts.Addr, "db", opts.DB)

	return graphCache, nil
}

// NewGraphCacheWithClient wraps an existing client. A non-positive ttl uses DefaultTTL.
func NewGraphCacheWithClient(
	logger *slog.Logger,
	client redis.UniversalClient,
	ttl time.Duration,
	serializer *serialization.Serializer,
) (*GraphCache, error) {
	if serializer == nil {
		var err error

		serializer, err = serialization.DefaultSerializer()
		if err != nil {
			return nil, err
		}
	}

	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &GraphCache{
		client:     client,
		serializer: serializer,
		ttl:        ttl,
		logger:     logger.With("module", "graph_cache"),
	}, nil
}

func key(workflowID string) string {
	return keyPrefix + workflowID
}

// Get returns the cached entry, or ok=false on a miss.
func (c *GraphCache) Get(ctx context.Context, workflowID string) (*Entry, bool, error) {
	data, err := c.client.Get(ctx, key(workflowID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached graph: %w", err)
	}

	var entry Entry

	err = c.serializer.Deserialize(data, &entry)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode cached graph: %w", err)
	}

	return &entry, true, nil
}

// Set stores an entry with the configured ttl.
func (c *GraphCache) Set(ctx context.Context, entry *Entry) error {
	data, err := c.serializer.Serialize(entry)
	if err != nil {
		return fmt.Errorf("failed to encode graph: %w", err)
	}

	err = c.client.Set(ctx, key(entry.View.ID), data, c.ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to cache graph: %w", err)
	}

	return nil
}

// Delete drops the cached entry of a workflow. Missing keys are not an error.
func (c *GraphCache) Delete(ctx context.Context, workflowID string) error {
	err := c.client.Del(ctx, key(workflowID)).Err()
	if err != nil {
		return fmt.Errorf("failed to invalidate cached graph: %w", err)
	}

	return nil
}

// Ping reports whether Redis is reachable.
func (c *GraphCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *GraphCache) Close() error {
	c.serializer.Close()

	return c.client.Close()
}
