package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cropfit/internal/config"
	"cropfit/internal/domain/geometry"
	"cropfit/internal/domain/sizes"
	"cropfit/internal/domain/thumbs"
	"cropfit/internal/observability"
	"cropfit/internal/testutils"
)

func testConfig(sizesFile string) *config.Config {
	return &config.Config{
		Environment: "test",
		SizesFile:   sizesFile,
		Workers:     2,
		Upload:      config.UploadConfig{MaxSize: 1 << 20, AllowedTypes: []string{"png", "jpeg"}},
		Logging:     &config.LoggingConfig{Level: "error", Format: "json"},
	}
}

func testTelemetry() observability.Config {
	return observability.Config{ServiceName: "cropfit-test", ServiceVersion: "test"}
}

func TestNewContainer(t *testing.T) {
	ctx := context.Background()
	c, err := NewContainer(ctx, testConfig(testutils.WriteSizesFile(t)), testTelemetry())
	require.NoError(t, err)
	defer func() { assert.NoError(t, c.Close(ctx)) }()

	assert.Equal(t, []string{"gallery"}, c.Registry().Names())
	assert.Nil(t, c.FitCache())
	assert.NotNil(t, c.Fitter())
	assert.NotNil(t, c.Inspector())

	result, err := c.ThumbnailService().Reconcile(ctx, "gallery", thumbs.Request{Bounds: geometry.Bounds(1200, 800)})
	require.NoError(t, err)
	assert.Len(t, result.Thumbs, 4)

	health := c.Health(ctx)
	assert.True(t, health.Healthy())
	assert.Equal(t, "disabled", health.Checks["cache"])
	assert.Equal(t, "healthy (1 groups)", health.Checks["sizes"])
}

func TestNewContainer_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing sizes file", func(t *testing.T) {
		_, err := NewContainer(ctx, testConfig(filepath.Join(t.TempDir(), "nope.json")), testTelemetry())
		require.Error(t, err)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("invalid sizes document", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sizes.json")
		doc := `{"groups": [{"name": "g", "sizes": [{"__type__": "Size", "name": "bad", "w": -1}]}]}`
		require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

		_, err := NewContainer(ctx, testConfig(path), testTelemetry())
		assert.ErrorIs(t, err, sizes.ErrConfiguration)
	})

	t.Run("invalid telemetry", func(t *testing.T) {
		_, err := NewContainer(ctx, testConfig(testutils.WriteSizesFile(t)), observability.Config{})
		assert.Error(t, err)
	})
}

func TestNewContainer_UnreachableCache(t *testing.T) {
	cfg := testConfig(testutils.WriteSizesFile(t))
	cfg.Cache = config.CacheConfig{
		Enabled:     true,
		Address:     "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		PoolSize:    1,
		DefaultTTL:  time.Minute,
	}

	ctx := context.Background()
	c, err := NewContainer(ctx, cfg, testTelemetry())
	require.NoError(t, err, "an unreachable cache must not prevent startup")
	defer c.Close(ctx)

	assert.Nil(t, c.FitCache())
	health := c.Health(ctx)
	assert.False(t, health.Healthy())
	assert.Contains(t, health.Checks["cache"], "unhealthy")

	_, err = c.ThumbnailService().Reconcile(ctx, "gallery", thumbs.Request{Bounds: geometry.Bounds(1200, 800)})
	assert.NoError(t, err)
}
