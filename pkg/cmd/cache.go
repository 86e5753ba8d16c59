package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/nodeflow/pkg/cache"
	"github.com/dukex/nodeflow/pkg/serialization"
)

// NewGraphCache connects the graph view cache. An empty url disables caching
// and returns nil. codec and compression pick how entries are encoded.
func NewGraphCache(
	ctx context.Context,
	logger *slog.Logger,
	url string,
	ttl time.Duration,
	codec, compression string,
) (*cache.GraphCache, error) {
	if url == "" {
		logger.InfoContext(ctx, "Graph cache disabled")

		return nil, nil
	}

	serializer, err := NewSerializer(codec, compression)
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "Graph cache encoding", "codec", codec, "compression", compression)

	return cache.NewGraphCache(ctx, logger, url, ttl, serializer)
}

// NewSerializer builds the cache serializer from its configured names.
func NewSerializer(codec, compression string) (*serialization.Serializer, error) {
	c, err := serialization.CodecByName(codec)
	if err != nil {
		return nil, fmt.Errorf("failed to configure cache encoding: %w", err)
	}

	serializer, err := serialization.NewSerializer(serialization.Config{
		Codec:       c,
		Compression: serialization.CompressionType(compression),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to configure cache encoding: %w", err)
	}

	return serializer, nil
}
