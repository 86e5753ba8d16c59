package cache_test

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/dukex/nodeflow/pkg/cache"
	"github.com/dukex/nodeflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) string {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping Redis integration test in short mode")
	}

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	return fmt.Sprintf("redis://%s:%s/0", host, port.Port())
}

func TestGraphCache(t *testing.T) {
	ctx := context.Background()
	url := setupRedis(t)

	graphCache, err := cache.NewGraphCache(ctx, slog.Default(), url, time.Minute, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = graphCache.Close()
	})

	require.NoError(t, graphCache.Ping(ctx))

	_, ok, err := graphCache.Get(ctx, "wf-1")
	require.NoError(t, err)
	assert.False(t, ok)

	entry := &cache.Entry{
		OwnerID: "user-1",
		Version: 3,
		View: models.GraphView{
			ID:      "wf-1",
			Name:    "calm-green-heron",
			Version: 3,
			Nodes: []models.ViewNode{
				{ID: "n-1", Type: models.NodeTypeInitial, Position: models.Position{X: 1.5, Y: 2}, Data: map[string]any{"label": "start"}},
			},
			Edges: []models.ViewEdge{
				{ID: "e-1", Source: "n-1", Target: "n-1", SourceHandle: "main", TargetHandle: "main"},
			},
		},
	}
	require.NoError(t, graphCache.Set(ctx, entry))

	got, ok, err := graphCache.Get(ctx, "wf-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "user-1", got.OwnerID)
	assert.Equal(t, int64(3), got.Version)
	assert.Equal(t, entry.View.Nodes[0].Position, got.View.Nodes[0].Position)
	assert.Equal(t, "start", got.View.Nodes[0].Data["label"])
	assert.Equal(t, entry.View.Edges, got.View.Edges)

	require.NoError(t, graphCache.Delete(ctx, "wf-1"))
	require.NoError(t, graphCache.Delete(ctx, "wf-1"))

	_, ok, err = graphCache.Get(ctx, "wf-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewGraphCache_BadURL(t *testing.T) {
	_, err := cache.NewGraphCache(context.Background(), slog.Default(), "http://nope", time.Minute, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse cache url")
}
