package testutils

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	redisModule "github.com/testcontainers/testcontainers-go/modules/redis"

	"cropfit/internal/config"
)

// RedisContainer is a throwaway Valkey instance (Redis-compatible)
type RedisContainer struct {
	Container testcontainers.Container
	Address   string
}

// StartRedis starts a Valkey container and returns its host:port address
func StartRedis(ctx context.Context) (*RedisContainer, error) {
	container, err := redisModule.Run(ctx,
		"valkey/valkey:7-alpine",
		redisModule.WithLogLevel(redisModule.LogLevelVerbose),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start valkey container: %w", err)
	}

	address, err := container.Endpoint(ctx, "")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get valkey endpoint: %w", err)
	}

	return &RedisContainer{Container: container, Address: address}, nil
}

// CacheConfig returns a cache configuration pointing at the container
func (rc *RedisContainer) CacheConfig() config.CacheConfig {
	return config.CacheConfig{
		Enabled:      true,
		Address:      rc.Address,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     4,
		DefaultTTL:   time.Hour,
	}
}

// Terminate stops and removes the container
func (rc *RedisContainer) Terminate(ctx context.Context) error {
	if err := rc.Container.Terminate(ctx); err != nil {
		return fmt.Errorf("failed to terminate valkey container: %w", err)
	}
	return nil
}

// RequireRedis starts a container for the test, skipping it under -short or
// when Docker is unavailable
func RequireRedis(t *testing.T) *RedisContainer {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	rc, err := StartRedis(ctx)
	if err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}
	t.Cleanup(func() {
		if err := rc.Terminate(context.Background()); err != nil {
			t.Logf("cleanup: %v", err)
		}
	})
	return rc
}
