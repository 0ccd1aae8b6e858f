package internal

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/rm-hull/fuel-prices-aggregator/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrAllSourcesFailed = errors.New("all retailer feeds failed")

// ProgressFunc receives the fraction of sources that have settled. It is
// called synchronously from the fetch goroutines and must not block.
type ProgressFunc func(progress float64)

type AggregationResult struct {
	Stations      []models.FuelStation
	LastUpdated   time.Time
	SourcesOK     int
	SourcesFailed int
}

type Aggregator interface {
	Aggregate(ctx context.Context, onProgress ProgressFunc) (*AggregationResult, error)
}

type aggregator struct {
	retailers []*models.Retailer
	client    FeedClient
	logger    *zap.Logger
	now       func() time.Time
}

func NewAggregator(retailers []*models.Retailer, client FeedClient, logger *zap.Logger) Aggregator {
	if logger == nil {
		logger = zap.L()
	}
	return &aggregator{
		retailers: retailers,
		client:    client,
		logger:    logger,
		now:       time.Now,
	}
}

// Aggregate fetches every retailer concurrently and waits for all of them to
// settle. A failing retailer is logged and contributes no stations. Stations
// appear in the order their retailer completed.
func (agg *aggregator) Aggregate(ctx context.Context, onProgress ProgressFunc) (*AggregationResult, error) {
	startTime := agg.now()
	passId := uuid.NewString()
	logger := agg.logger.With(zap.String("pass_id", passId))
	logger.Info("starting aggregation pass", zap.Int("sources", len(agg.retailers)))

	var (
		mu         sync.Mutex
		completed  int
		result     = &AggregationResult{Stations: make([]models.FuelStation, 0, 1024)}
		seen       = make(map[string]struct{}, 1024)
		timestamps []string
		total      = len(agg.retailers)
	)

	var g errgroup.Group
	for _, retailer := range agg.retailers {
		g.Go(func() error {
			feed, err := agg.fetchOne(ctx, retailer)

			mu.Lock()
			defer mu.Unlock()

			completed++
			if err != nil {
				result.SourcesFailed++
				sourceFetches.WithLabelValues(retailer.Name, "failure").Inc()
				logger.Warn("failed to fetch retailer feed",
					zap.String("retailer", retailer.Name),
					zap.String("url", retailer.Url),
					zap.Error(err))
			} else {
				result.SourcesOK++
				sourceFetches.WithLabelValues(retailer.Name, "success").Inc()
				sourceStations.WithLabelValues(retailer.Name).Set(float64(len(feed.Stations)))

				for _, station := range feed.Stations {
					if _, dup := seen[station.SiteId]; dup {
						continue
					}
					seen[station.SiteId] = struct{}{}
					result.Stations = append(result.Stations, station)
				}

				if feed.LastUpdated != nil {
					timestamps = append(timestamps, *feed.LastUpdated)
				}
			}

			if onProgress != nil && total > 0 {
				onProgress(float64(completed) / float64(total))
			}
			return nil
		})
	}
	_ = g.Wait()

	finishTime := agg.now()
	aggregationDuration.Observe(finishTime.Sub(startTime).Seconds())

	if total > 0 && result.SourcesOK == 0 {
		return nil, errors.Wrapf(ErrAllSourcesFailed, "%d of %d sources failed", result.SourcesFailed, total)
	}

	result.LastUpdated = FreshestTimestamp(timestamps, finishTime.UTC())

	logger.Info("aggregation pass completed",
		zap.Int("stations", len(result.Stations)),
		zap.Int("sources_ok", result.SourcesOK),
		zap.Int("sources_failed", result.SourcesFailed),
		zap.Duration("elapsed", finishTime.Sub(startTime)),
		zap.Time("last_updated", result.LastUpdated))

	return result, nil
}

func (agg *aggregator) fetchOne(ctx context.Context, retailer *models.Retailer) (*models.FeedResult, error) {
	body, err := agg.client.Fetch(ctx, retailer)
	if err != nil {
		return nil, err
	}
	return Normalize(retailer, body)
}

// FreshestTimestamp returns the latest parseable timestamp, or fallback when
// none of the values can be parsed.
func FreshestTimestamp(values []string, fallback time.Time) time.Time {
	var freshest time.Time
	for _, value := range values {
		if ts, ok := ParseFeedTimestamp(value); ok && ts.After(freshest) {
			freshest = ts
		}
	}
	if freshest.IsZero() {
		return fallback
	}
	return freshest
}
