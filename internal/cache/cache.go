// internal/cache/cache.go
package cache

import (
	"context"
	"time"
)

// Cache holds serialized list responses between writes.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Generation changes on every Purge.
	Generation(ctx context.Context) (uint64, error)
	// SetIfGeneration stores value only while the cache is still at gen, so a
	// list loaded before a purge is never written back after it.
	SetIfGeneration(ctx context.Context, gen uint64, key string, value []byte, ttl time.Duration) (bool, error)
	// Purge drops every entry and advances the generation.
	Purge(ctx context.Context) error
}

// Keys for the cached list endpoints.
const (
	KeyFoods   = "foods"
	KeyRecipes = "recipes"
	KeyMeals   = "meals"
)
