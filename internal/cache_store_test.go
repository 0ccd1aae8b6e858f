package internal

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rm-hull/fuel-prices-aggregator/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStations() []models.FuelStation {
	lastUpdated := "2024-01-02T09:00:00Z"
	return []models.FuelStation{
		{
			SiteId:      "asda-1",
			Brand:       "Asda",
			Address:     "1 High Street",
			Postcode:    "SW1A 1AA",
			Location:    models.Location{Latitude: 51.501, Longitude: -0.141},
			Prices:      models.Prices{models.E10: 135.9, models.B7: 142.9},
			LastUpdated: &lastUpdated,
		},
		{
			SiteId:   "bp-2",
			Brand:    "BP",
			Postcode: "M1 1AE",
			Location: models.Location{Latitude: 53.48, Longitude: -2.24},
			Prices:   models.Prices{models.E5: 155.0},
		},
	}
}

type fixedClock struct {
	now time.Time
}

func (fc *fixedClock) Now() time.Time { return fc.now }

func (fc *fixedClock) Advance(d time.Duration) { fc.now = fc.now.Add(d) }

func testCacheStoreContract(t *testing.T, newStore func(clock Clock) CacheStore, corrupt func()) {
	ctx := context.Background()
	clock := &fixedClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	store := newStore(clock.Now)

	t.Run("Miss before first write", func(t *testing.T) {
		_, err := store.Read(ctx)
		assert.ErrorIs(t, err, ErrCacheMiss)
	})

	t.Run("Write then read", func(t *testing.T) {
		lastUpdated := "2024-01-02T09:00:00Z"
		written, err := store.Write(ctx, testStations(), &lastUpdated)
		require.NoError(t, err)
		assert.True(t, clock.now.Equal(written.FetchedAt))

		entry, err := store.Read(ctx)
		require.NoError(t, err)
		assert.Equal(t, testStations(), entry.Data)
		assert.True(t, clock.now.Equal(entry.FetchedAt))
		require.NotNil(t, entry.SourceLastUpdated)
		assert.Equal(t, lastUpdated, *entry.SourceLastUpdated)
	})

	t.Run("Overwrite replaces the whole entry", func(t *testing.T) {
		clock.Advance(time.Minute)
		_, err := store.Write(ctx, testStations()[:1], nil)
		require.NoError(t, err)

		entry, err := store.Read(ctx)
		require.NoError(t, err)
		assert.Len(t, entry.Data, 1)
		assert.Nil(t, entry.SourceLastUpdated)
		assert.True(t, clock.now.Equal(entry.FetchedAt))
	})

	t.Run("Corrupt entry is a miss", func(t *testing.T) {
		corrupt()
		_, err := store.Read(ctx)
		assert.ErrorIs(t, err, ErrCacheMiss)
	})
}

func TestSqliteCacheStore(t *testing.T) {
	db := setupTestDB(t)
	testCacheStoreContract(t,
		func(clock Clock) CacheStore { return NewSqliteCacheStore(db, clock) },
		func() {
			_, err := db.Exec("UPDATE cache_entries SET payload = ?", "{not json")
			require.NoError(t, err)
		})
}

func TestRedisCacheStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	dbNum, _ := strconv.Atoi(os.Getenv("REDIS_TEST_DB"))
	client := redis.NewClient(&redis.Options{Addr: addr, DB: dbNum})
	require.NoError(t, client.Del(context.Background(), redisCacheKey).Err())
	t.Cleanup(func() {
		_ = client.Del(context.Background(), redisCacheKey).Err()
		_ = client.Close()
	})

	testCacheStoreContract(t,
		func(clock Clock) CacheStore { return NewRedisCacheStoreWithClient(client, clock) },
		func() {
			require.NoError(t, client.Set(context.Background(), redisCacheKey, "{not json", 0).Err())
		})
}

func TestCacheEntryValidity(t *testing.T) {
	written := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	entry := &models.CacheEntry{FetchedAt: written}

	assert.True(t, entry.IsValid(written, models.DefaultTTL))
	assert.True(t, entry.IsValid(written.Add(14*time.Minute+59*time.Second), models.DefaultTTL))
	assert.False(t, entry.IsValid(written.Add(15*time.Minute), models.DefaultTTL))
	assert.False(t, entry.IsValid(written.Add(15*time.Minute+time.Second), models.DefaultTTL))

	var missing *models.CacheEntry
	assert.False(t, missing.IsValid(written, models.DefaultTTL))
}
