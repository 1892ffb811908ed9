package cache

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"cropfit/internal/domain/geometry"
	"cropfit/internal/domain/sizes"
)

// Bump the version when the fitting rules change
const fitKeyPrefix = "fit:v1:"

// FitCache stores fitted boxes keyed by everything BestFit depends on
type FitCache struct {
	redis *RedisClient
}

func NewFitCache(client *RedisClient) *FitCache {
	return &FitCache{redis: client}
}

// FitKey identifies the fit of target within region and bounds. Sizes with
// the same target share entries.
func FitKey(target geometry.Target, region, bounds geometry.Box) string {
	buf := make([]byte, 0, 160)
	for _, v := range []float64{
		target.Width, target.Height, target.MinWidth, target.MinHeight,
		region.X1, region.Y1, region.X2, region.Y2,
		bounds.X1, bounds.Y1, bounds.X2, bounds.Y2,
	} {
		buf = strconv.AppendFloat(buf, v, 'g', -1, 64)
		buf = append(buf, '|')
	}
	return fitKeyPrefix + strconv.FormatUint(xxhash.Sum64(buf), 16)
}

// Get returns the cached fit of size, or ErrCacheMiss
func (c *FitCache) Get(ctx context.Context, size sizes.Size, region, bounds geometry.Box) (geometry.Box, error) {
	var box geometry.Box
	if err := c.redis.Get(ctx, FitKey(size.Target(), region, bounds), &box); err != nil {
		return geometry.Box{}, err
	}
	if err := box.Validate(); err != nil {
		return geometry.Box{}, fmt.Errorf("corrupt cached fit: %w", err)
	}
	return box, nil
}

// Set stores a fitted box with the default TTL
func (c *FitCache) Set(ctx context.Context, size sizes.Size, region, bounds, box geometry.Box) error {
	return c.redis.Set(ctx, FitKey(size.Target(), region, bounds), box, 0)
}

// Invalidate drops every cached fit
func (c *FitCache) Invalidate(ctx context.Context) (int, error) {
	return c.redis.DeletePattern(ctx, fitKeyPrefix+"*")
}

func (c *FitCache) Health(ctx context.Context) error {
	return c.redis.Health(ctx)
}

func (c *FitCache) Close() error {
	return c.redis.Close()
}
