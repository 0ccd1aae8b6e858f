package internal

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rm-hull/fuel-prices-aggregator/internal/models"
	"go.uber.org/zap"
)

const redisCacheKey = "fuel-prices:cache"

type redisCacheStore struct {
	client *redis.Client
	now    Clock
	logger *zap.Logger
}

func NewRedisCacheStore(ctx context.Context, addr, password string, db int, now Clock) (CacheStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisCacheStoreWithClient(client, now), nil
}

func NewRedisCacheStoreWithClient(client *redis.Client, now Clock) CacheStore {
	if now == nil {
		now = time.Now
	}
	return &redisCacheStore{
		client: client,
		now:    now,
		logger: zap.L(),
	}
}

func (store *redisCacheStore) Read(ctx context.Context) (*models.CacheEntry, error) {
	data, err := store.client.Get(ctx, redisCacheKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cache entry from redis: %w", err)
	}

	entry, err := models.UnmarshalCachePayload(data)
	if err != nil {
		store.logger.Warn("discarding unreadable cache entry", zap.Error(err))
		return nil, ErrCacheMiss
	}
	return entry, nil
}

// Write stores the entry without a redis expiry. Stale entries must stay
// readable so callers can fall back to last-known-good data.
func (store *redisCacheStore) Write(ctx context.Context, stations []models.FuelStation, sourceLastUpdated *string) (*models.CacheEntry, error) {
	entry := &models.CacheEntry{
		Data:              stations,
		FetchedAt:         time.UnixMilli(store.now().UnixMilli()).UTC(),
		SourceLastUpdated: sourceLastUpdated,
	}

	payload, err := models.MarshalCachePayload(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	if err := store.client.Set(ctx, redisCacheKey, payload, 0).Err(); err != nil {
		return nil, fmt.Errorf("failed to set cache entry in redis: %w", err)
	}
	return entry, nil
}

func (store *redisCacheStore) Close() error {
	return store.client.Close()
}
