package internal

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rm-hull/fuel-prices-aggregator/internal/models"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const DefaultHistoryDays = 30

// PriceService is the entry point for current and historical prices. At most
// one aggregation pass runs at a time: a caller arriving while a pass is in
// flight is served whatever is currently cached instead of waiting.
type PriceService struct {
	aggregator  Aggregator
	cache       CacheStore
	history     PriceHistoryRepository
	ttl         time.Duration
	historyDays int
	schedule    string
	now         Clock
	logger      *zap.Logger

	fetching atomic.Bool

	mu          sync.RWMutex
	lastUpdated *string
	fetchedAt   time.Time
	cron        *cron.Cron
	warmup      sync.WaitGroup
}

type ServiceOption func(*PriceService)

func WithTTL(ttl time.Duration) ServiceOption {
	return func(s *PriceService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithClock(now Clock) ServiceOption {
	return func(s *PriceService) { s.now = now }
}

func WithHistory(history PriceHistoryRepository) ServiceOption {
	return func(s *PriceService) { s.history = history }
}

// WithHistoryDays sets the window used when a history request gives none.
func WithHistoryDays(days int) ServiceOption {
	return func(s *PriceService) {
		if days > 0 {
			s.historyDays = days
		}
	}
}

func WithSchedule(schedule string) ServiceOption {
	return func(s *PriceService) {
		if schedule != "" {
			s.schedule = schedule
		}
	}
}

func WithLogger(logger *zap.Logger) ServiceOption {
	return func(s *PriceService) { s.logger = logger }
}

func NewPriceService(aggregator Aggregator, cache CacheStore, opts ...ServiceOption) *PriceService {
	s := &PriceService{
		aggregator:  aggregator,
		cache:       cache,
		ttl:         models.DefaultTTL,
		historyDays: DefaultHistoryDays,
		schedule:    CRON_SCHEDULE_REFRESH,
		now:         time.Now,
		logger:      zap.L(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchFuelPrices returns the current station list. A valid cache entry is
// returned as-is unless forceRefresh is set, otherwise an aggregation pass
// runs and its result replaces the cache. Errors from a pass are returned to
// this caller only and leave the previous cache entry in place.
func (s *PriceService) FetchFuelPrices(ctx context.Context, onProgress ProgressFunc, forceRefresh bool) ([]models.FuelStation, error) {
	if s.fetching.Load() {
		return s.servePending(ctx)
	}

	if !forceRefresh {
		entry, err := s.readCache(ctx)
		if err != nil {
			return nil, err
		}
		if entry.IsValid(s.now(), s.ttl) {
			cacheRequests.WithLabelValues("hit").Inc()
			return entry.Data, nil
		}
	}

	if !s.fetching.CompareAndSwap(false, true) {
		return s.servePending(ctx)
	}
	defer s.fetching.Store(false)

	if forceRefresh {
		cacheRequests.WithLabelValues("forced").Inc()
	} else {
		cacheRequests.WithLabelValues("miss").Inc()
	}

	return s.refresh(context.WithoutCancel(ctx), onProgress)
}

func (s *PriceService) refresh(ctx context.Context, onProgress ProgressFunc) ([]models.FuelStation, error) {
	result, err := s.aggregator.Aggregate(ctx, onProgress)
	if err != nil {
		return nil, errors.Wrap(err, "aggregation failed")
	}

	lastUpdated := FormatTimestamp(result.LastUpdated)
	entry, err := s.cache.Write(ctx, result.Stations, &lastUpdated)
	if err != nil {
		return nil, errors.Wrap(err, "failed to update cache")
	}
	s.setLastUpdated(entry.SourceLastUpdated)
	s.observeFetchedAt(entry.FetchedAt)

	if s.history != nil {
		count, err := s.history.RecordPrices(ctx, entry.Data, entry.FetchedAt)
		if err != nil {
			s.logger.Error("failed to record price history", zap.Error(err))
		} else {
			s.logger.Info("recorded price changes", zap.Int("count", count))
		}
	}

	return entry.Data, nil
}

// servePending answers a caller that arrived while a pass is in flight.
func (s *PriceService) servePending(ctx context.Context) ([]models.FuelStation, error) {
	cacheRequests.WithLabelValues("in_flight").Inc()
	entry, err := s.readCache(ctx)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return []models.FuelStation{}, nil
	}
	return entry.Data, nil
}

// readCache treats a miss as a nil entry. Only storage failures are errors.
func (s *PriceService) readCache(ctx context.Context) (*models.CacheEntry, error) {
	entry, err := s.cache.Read(ctx)
	if errors.Is(err, ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read cache")
	}
	if s.GetLastUpdated() == nil {
		s.setLastUpdated(entry.SourceLastUpdated)
	}
	s.observeFetchedAt(entry.FetchedAt)
	return entry, nil
}

// Refresh forces an aggregation pass and reports how many stations it produced.
func (s *PriceService) Refresh(ctx context.Context) (int, error) {
	stations, err := s.FetchFuelPrices(ctx, nil, true)
	if err != nil {
		return 0, err
	}
	return len(stations), nil
}

// GetHistoricalPrices reads the time series for a site over the last days
// days. An empty fuelType selects all fuel types. Failures are logged and an
// empty result returned, history is never critical.
func (s *PriceService) GetHistoricalPrices(ctx context.Context, siteId string, fuelType models.FuelType, days int) models.HistoricalPrices {
	result := models.EmptyHistoricalPrices()
	if s.history == nil {
		return result
	}
	if fuelType != "" && !fuelType.IsValid() {
		s.logger.Warn("unsupported fuel type requested", zap.String("fuel_type", string(fuelType)))
		return result
	}
	if days <= 0 {
		days = s.historyDays
	}

	since := s.now().Add(-time.Duration(days) * 24 * time.Hour)
	points, err := s.history.History(ctx, siteId, fuelType, since)
	if err != nil {
		s.logger.Error("failed to fetch historical prices",
			zap.String("site_id", siteId),
			zap.String("fuel_type", string(fuelType)),
			zap.Error(err))
		return result
	}

	for _, point := range points {
		result.Append(point.FuelType, models.PricePoint{
			Price:      point.Price,
			RecordedAt: point.RecordedAt,
		})
	}
	return result
}

func (s *PriceService) GetLastUpdated() *string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastUpdated == nil {
		return nil
	}
	value := *s.lastUpdated
	return &value
}

// GetFetchedAt is when the station list currently served was aggregated, the
// zero time before anything has been read or fetched. It changes on every
// successful refresh, even when the source timestamps do not.
func (s *PriceService) GetFetchedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fetchedAt
}

func (s *PriceService) observeFetchedAt(fetchedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fetchedAt.After(s.fetchedAt) {
		s.fetchedAt = fetchedAt
	}
}

func (s *PriceService) setLastUpdated(lastUpdated *string) {
	if lastUpdated == nil {
		return
	}
	value := *lastUpdated
	s.mu.Lock()
	s.lastUpdated = &value
	s.mu.Unlock()
}

// Start warms the cache in the background and schedules forced refreshes.
func (s *PriceService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return errors.New("price service already started")
	}

	c, err := StartCron(s.schedule, s, s.logger)
	if err != nil {
		return err
	}
	s.cron = c

	s.warmup.Add(1)
	go func() {
		defer s.warmup.Done()
		if _, err := s.FetchFuelPrices(ctx, nil, false); err != nil {
			s.logger.Error("initial price fetch failed", zap.Error(err))
		}
	}()
	return nil
}

// Stop halts the schedule and waits for a running refresh to finish.
func (s *PriceService) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
		s.warmup.Wait()
		s.logger.Info("price service stopped")
	}
}
