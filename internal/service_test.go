package internal

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rm-hull/fuel-prices-aggregator/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tavsec/gin-healthcheck/checks"
	"go.uber.org/zap/zaptest"
)

type fakeAggregator struct {
	calls     atomic.Int32
	aggregate func(ctx context.Context, onProgress ProgressFunc) (*AggregationResult, error)
}

func (fa *fakeAggregator) Aggregate(ctx context.Context, onProgress ProgressFunc) (*AggregationResult, error) {
	fa.calls.Add(1)
	return fa.aggregate(ctx, onProgress)
}

func returning(lastUpdated time.Time, stations ...models.FuelStation) func(context.Context, ProgressFunc) (*AggregationResult, error) {
	return func(ctx context.Context, onProgress ProgressFunc) (*AggregationResult, error) {
		if onProgress != nil {
			onProgress(1.0)
		}
		return &AggregationResult{Stations: stations, LastUpdated: lastUpdated, SourcesOK: 1}, nil
	}
}

type failingCache struct {
	CacheStore
	writeErr error
	readErr  error
}

func (fc *failingCache) Read(ctx context.Context) (*models.CacheEntry, error) {
	if fc.readErr != nil {
		return nil, fc.readErr
	}
	return fc.CacheStore.Read(ctx)
}

func (fc *failingCache) Write(ctx context.Context, stations []models.FuelStation, sourceLastUpdated *string) (*models.CacheEntry, error) {
	if fc.writeErr != nil {
		return nil, fc.writeErr
	}
	return fc.CacheStore.Write(ctx, stations, sourceLastUpdated)
}

type failingHistory struct{}

func (failingHistory) RecordPrices(ctx context.Context, stations []models.FuelStation, recordedAt time.Time) (int, error) {
	return 0, errors.New("disk full")
}

func (failingHistory) History(ctx context.Context, siteId string, fuelType models.FuelType, since time.Time) ([]models.HistoricalPricePoint, error) {
	return nil, errors.New("database is locked")
}

func (failingHistory) Check() checks.Check { return nil }

func (failingHistory) Close() error { return nil }

var feedTime = time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, agg Aggregator, opts ...ServiceOption) (*PriceService, *fixedClock, CacheStore) {
	clock := &fixedClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	db := setupTestDB(t)
	cache := NewSqliteCacheStore(db, clock.Now)
	opts = append([]ServiceOption{
		WithClock(clock.Now),
		WithLogger(zaptest.NewLogger(t)),
		WithHistory(NewPriceHistoryRepository(db)),
	}, opts...)
	return NewPriceService(agg, cache, opts...), clock, cache
}

func TestFetchFuelPricesIsIdempotentWithinTTL(t *testing.T) {
	agg := &fakeAggregator{aggregate: returning(feedTime, testStations()...)}
	svc, clock, _ := newTestService(t, agg)
	ctx := context.Background()

	first, err := svc.FetchFuelPrices(ctx, nil, false)
	require.NoError(t, err)

	clock.Advance(5 * time.Minute)
	second, err := svc.FetchFuelPrices(ctx, nil, false)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), agg.calls.Load())
}

func TestFetchFuelPricesTTLBoundary(t *testing.T) {
	agg := &fakeAggregator{aggregate: returning(feedTime, testStations()...)}
	svc, clock, _ := newTestService(t, agg)
	ctx := context.Background()
	written := clock.now

	_, err := svc.FetchFuelPrices(ctx, nil, false)
	require.NoError(t, err)

	clock.now = written.Add(14*time.Minute + 59*time.Second)
	_, err = svc.FetchFuelPrices(ctx, nil, false)
	require.NoError(t, err)
	assert.Equal(t, int32(1), agg.calls.Load(), "still valid just before the TTL")

	clock.now = written.Add(15*time.Minute + time.Second)
	_, err = svc.FetchFuelPrices(ctx, nil, false)
	require.NoError(t, err)
	assert.Equal(t, int32(2), agg.calls.Load(), "refetched just after the TTL")
}

func TestFetchFuelPricesForceRefresh(t *testing.T) {
	agg := &fakeAggregator{aggregate: returning(feedTime, testStations()...)}
	svc, _, _ := newTestService(t, agg)
	ctx := context.Background()

	_, err := svc.FetchFuelPrices(ctx, nil, false)
	require.NoError(t, err)

	agg.aggregate = returning(feedTime, testStations()[:1]...)
	stations, err := svc.FetchFuelPrices(ctx, nil, true)
	require.NoError(t, err)
	assert.Len(t, stations, 1)
	assert.Equal(t, int32(2), agg.calls.Load())
}

func TestFetchFuelPricesPassesProgress(t *testing.T) {
	agg := &fakeAggregator{aggregate: returning(feedTime, testStations()...)}
	svc, _, _ := newTestService(t, agg)

	var reported []float64
	_, err := svc.FetchFuelPrices(context.Background(), func(p float64) { reported = append(reported, p) }, true)
	require.NoError(t, err)
	assert.Equal(t, []float64{1.0}, reported)
}

func TestConcurrentCallerGetsCachedData(t *testing.T) {
	agg := &fakeAggregator{aggregate: returning(feedTime, testStations()...)}
	svc, clock, _ := newTestService(t, agg)
	ctx := context.Background()

	before, err := svc.FetchFuelPrices(ctx, nil, false)
	require.NoError(t, err)
	require.Len(t, before, 2)

	started := make(chan struct{})
	release := make(chan struct{})
	agg.aggregate = func(ctx context.Context, onProgress ProgressFunc) (*AggregationResult, error) {
		close(started)
		<-release
		return &AggregationResult{Stations: testStations()[:1], LastUpdated: feedTime, SourcesOK: 1}, nil
	}

	// Expire the cache so the second caller would otherwise trigger a pass.
	clock.Advance(time.Hour)

	var wg sync.WaitGroup
	var forced []models.FuelStation
	var forcedErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		forced, forcedErr = svc.FetchFuelPrices(ctx, nil, true)
	}()
	<-started

	concurrent, err := svc.FetchFuelPrices(ctx, nil, false)
	require.NoError(t, err)
	assert.Equal(t, before, concurrent, "pre-refresh data, not blocked")

	close(release)
	wg.Wait()
	require.NoError(t, forcedErr)
	assert.Len(t, forced, 1)
	assert.Equal(t, int32(2), agg.calls.Load(), "no second concurrent pass")
}

func TestConcurrentCallerWithEmptyCache(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	agg := &fakeAggregator{aggregate: func(ctx context.Context, onProgress ProgressFunc) (*AggregationResult, error) {
		close(started)
		<-release
		return &AggregationResult{Stations: testStations(), LastUpdated: feedTime, SourcesOK: 1}, nil
	}}
	svc, _, _ := newTestService(t, agg)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = svc.FetchFuelPrices(ctx, nil, false)
	}()
	<-started

	stations, err := svc.FetchFuelPrices(ctx, nil, false)
	require.NoError(t, err)
	assert.NotNil(t, stations)
	assert.Empty(t, stations)

	close(release)
	<-done
}

func TestFailedRefreshKeepsPreviousCache(t *testing.T) {
	agg := &fakeAggregator{aggregate: returning(feedTime, testStations()...)}
	svc, _, _ := newTestService(t, agg)
	ctx := context.Background()

	before, err := svc.FetchFuelPrices(ctx, nil, false)
	require.NoError(t, err)

	agg.aggregate = func(ctx context.Context, onProgress ProgressFunc) (*AggregationResult, error) {
		return nil, ErrAllSourcesFailed
	}
	_, err = svc.FetchFuelPrices(ctx, nil, true)
	assert.ErrorIs(t, err, ErrAllSourcesFailed)

	after, err := svc.FetchFuelPrices(ctx, nil, false)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	// Gate is released after a failure.
	agg.aggregate = returning(feedTime, testStations()[:1]...)
	stations, err := svc.FetchFuelPrices(ctx, nil, true)
	require.NoError(t, err)
	assert.Len(t, stations, 1)
}

func TestCacheWriteFailureIsSurfaced(t *testing.T) {
	agg := &fakeAggregator{aggregate: returning(feedTime, testStations()...)}
	clock := &fixedClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	cache := &failingCache{CacheStore: NewSqliteCacheStore(setupTestDB(t), clock.Now), writeErr: errors.New("database is locked")}
	svc := NewPriceService(agg, cache, WithClock(clock.Now), WithLogger(zaptest.NewLogger(t)))

	_, err := svc.FetchFuelPrices(context.Background(), nil, false)
	assert.ErrorContains(t, err, "failed to update cache")
	assert.Nil(t, svc.GetLastUpdated())
}

func TestCacheReadFailureIsSurfaced(t *testing.T) {
	agg := &fakeAggregator{aggregate: returning(feedTime, testStations()...)}
	cache := &failingCache{readErr: errors.New("connection refused")}
	svc := NewPriceService(agg, cache, WithLogger(zaptest.NewLogger(t)))

	_, err := svc.FetchFuelPrices(context.Background(), nil, false)
	assert.ErrorContains(t, err, "connection refused")
	assert.Equal(t, int32(0), agg.calls.Load())
}

func TestCorruptCacheTriggersRefetch(t *testing.T) {
	agg := &fakeAggregator{aggregate: returning(feedTime, testStations()...)}
	clock := &fixedClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	db := setupTestDB(t)
	svc := NewPriceService(agg, NewSqliteCacheStore(db, clock.Now), WithClock(clock.Now), WithLogger(zaptest.NewLogger(t)))
	ctx := context.Background()

	_, err := svc.FetchFuelPrices(ctx, nil, false)
	require.NoError(t, err)

	_, err = db.Exec("UPDATE cache_entries SET payload = ?", "][")
	require.NoError(t, err)

	stations, err := svc.FetchFuelPrices(ctx, nil, false)
	require.NoError(t, err)
	assert.Len(t, stations, 2)
	assert.Equal(t, int32(2), agg.calls.Load())
}

func TestGetLastUpdated(t *testing.T) {
	agg := &fakeAggregator{aggregate: returning(feedTime, testStations()...)}
	svc, clock, cache := newTestService(t, agg)
	ctx := context.Background()

	assert.Nil(t, svc.GetLastUpdated())

	_, err := svc.FetchFuelPrices(ctx, nil, false)
	require.NoError(t, err)
	require.NotNil(t, svc.GetLastUpdated())
	assert.Equal(t, "2024-01-02T09:00:00Z", *svc.GetLastUpdated())

	// A fresh instance over the same store learns the timestamp from the cache.
	restarted := NewPriceService(agg, cache, WithClock(clock.Now), WithLogger(zaptest.NewLogger(t)))
	_, err = restarted.FetchFuelPrices(ctx, nil, false)
	require.NoError(t, err)
	require.NotNil(t, restarted.GetLastUpdated())
	assert.Equal(t, "2024-01-02T09:00:00Z", *restarted.GetLastUpdated())
	assert.Equal(t, int32(1), agg.calls.Load())
}

func TestGetHistoricalPrices(t *testing.T) {
	agg := &fakeAggregator{aggregate: returning(feedTime, testStations()...)}
	svc, clock, _ := newTestService(t, agg)
	ctx := context.Background()

	_, err := svc.FetchFuelPrices(ctx, nil, false)
	require.NoError(t, err)

	changed := testStations()
	changed[0].Prices = models.Prices{models.E10: 133.9, models.B7: 142.9}
	agg.aggregate = returning(feedTime, changed...)
	clock.Advance(2 * 24 * time.Hour)
	_, err = svc.FetchFuelPrices(ctx, nil, true)
	require.NoError(t, err)

	t.Run("Single fuel type", func(t *testing.T) {
		history := svc.GetHistoricalPrices(ctx, "asda-1", models.E10, 30)
		require.Len(t, history.E10, 2)
		assert.Equal(t, 135.9, history.E10[0].Price)
		assert.Equal(t, 133.9, history.E10[1].Price)
		assert.NotNil(t, history.B7)
		assert.Empty(t, history.B7)
		assert.NotNil(t, history.E5)
		assert.NotNil(t, history.SDV)
	})

	t.Run("All fuel types", func(t *testing.T) {
		history := svc.GetHistoricalPrices(ctx, "asda-1", "", 0)
		assert.Len(t, history.E10, 2)
		assert.Len(t, history.B7, 1)
	})

	t.Run("Window", func(t *testing.T) {
		history := svc.GetHistoricalPrices(ctx, "asda-1", models.E10, 1)
		require.Len(t, history.E10, 1)
		assert.Equal(t, 133.9, history.E10[0].Price)
	})

	t.Run("Unsupported fuel type", func(t *testing.T) {
		history := svc.GetHistoricalPrices(ctx, "asda-1", "LPG", 30)
		assert.Equal(t, models.EmptyHistoricalPrices(), history)
	})
}

func TestGetHistoricalPricesRecoversFromFailure(t *testing.T) {
	agg := &fakeAggregator{aggregate: returning(feedTime, testStations()...)}
	svc, _, _ := newTestService(t, agg, WithHistory(failingHistory{}))

	// Recording failures do not fail the fetch.
	_, err := svc.FetchFuelPrices(context.Background(), nil, false)
	require.NoError(t, err)

	history := svc.GetHistoricalPrices(context.Background(), "asda-1", models.E10, 30)
	assert.Equal(t, models.EmptyHistoricalPrices(), history)
}

func TestStartWarmsCacheAndStop(t *testing.T) {
	agg := &fakeAggregator{aggregate: returning(feedTime, testStations()...)}
	svc, _, _ := newTestService(t, agg, WithSchedule("@every 1h"))

	require.NoError(t, svc.Start(context.Background()))
	assert.Error(t, svc.Start(context.Background()), "second start is rejected")

	assert.Eventually(t, func() bool {
		return svc.GetLastUpdated() != nil
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), agg.calls.Load())

	svc.Stop()
	svc.Stop()
}

func TestGetFetchedAtAdvancesOnEveryRefresh(t *testing.T) {
	agg := &fakeAggregator{aggregate: returning(feedTime, testStations()...)}
	svc, clock, cache := newTestService(t, agg)
	ctx := context.Background()

	assert.True(t, svc.GetFetchedAt().IsZero())

	_, err := svc.FetchFuelPrices(ctx, nil, false)
	require.NoError(t, err)
	first := svc.GetFetchedAt()
	assert.Equal(t, clock.Now(), first)

	clock.Advance(time.Minute)
	_, err = svc.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.Add(time.Minute), svc.GetFetchedAt())
	assert.Equal(t, "2024-01-02T09:00:00Z", *svc.GetLastUpdated(), "source freshness unchanged")

	// A restarted instance learns the fetch time from the stored entry.
	restarted := NewPriceService(agg, cache, WithClock(clock.Now), WithLogger(zaptest.NewLogger(t)))
	_, err = restarted.FetchFuelPrices(ctx, nil, false)
	require.NoError(t, err)
	assert.Equal(t, svc.GetFetchedAt(), restarted.GetFetchedAt())
}
