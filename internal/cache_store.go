package internal

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rm-hull/fuel-prices-aggregator/internal/models"
	"go.uber.org/zap"
)

//go:embed sql/read_cache.sql
var readCacheSQL string

//go:embed sql/write_cache.sql
var writeCacheSQL string

const cacheKey = "fuel_prices_cache"

// ErrCacheMiss is returned by CacheStore.Read when nothing usable is stored,
// either because nothing was ever written or because the stored record could
// not be decoded.
var ErrCacheMiss = errors.New("cache miss")

// CacheStore persists the latest aggregation result across restarts. Validity
// against the TTL is the caller's decision, stores return stale entries.
type CacheStore interface {
	Read(ctx context.Context) (*models.CacheEntry, error)
	Write(ctx context.Context, stations []models.FuelStation, sourceLastUpdated *string) (*models.CacheEntry, error)
	Close() error
}

type Clock func() time.Time

type sqliteCacheStore struct {
	db     *sql.DB
	now    Clock
	logger *zap.Logger
}

func NewSqliteCacheStore(db *sql.DB, now Clock) CacheStore {
	if now == nil {
		now = time.Now
	}
	return &sqliteCacheStore{
		db:     db,
		now:    now,
		logger: zap.L(),
	}
}

func (store *sqliteCacheStore) Read(ctx context.Context) (*models.CacheEntry, error) {
	var payload string
	var fetchedAt int64
	err := store.db.QueryRowContext(ctx, readCacheSQL, cacheKey).Scan(&payload, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}

	entry, err := models.UnmarshalCachePayload([]byte(payload))
	if err != nil {
		store.logger.Warn("discarding unreadable cache entry", zap.Error(err))
		return nil, ErrCacheMiss
	}
	entry.FetchedAt = time.UnixMilli(fetchedAt).UTC()
	return entry, nil
}

func (store *sqliteCacheStore) Write(ctx context.Context, stations []models.FuelStation, sourceLastUpdated *string) (*models.CacheEntry, error) {
	entry := &models.CacheEntry{
		Data:              stations,
		FetchedAt:         time.UnixMilli(store.now().UnixMilli()).UTC(),
		SourceLastUpdated: sourceLastUpdated,
	}

	payload, err := models.MarshalCachePayload(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	if _, err := store.db.ExecContext(ctx, writeCacheSQL, cacheKey, string(payload), entry.FetchedAt.UnixMilli()); err != nil {
		return nil, fmt.Errorf("failed to write cache entry: %w", err)
	}
	return entry, nil
}

// Close is a no-op, the database handle is shared with the history
// repository which closes it.
func (store *sqliteCacheStore) Close() error {
	return nil
}
