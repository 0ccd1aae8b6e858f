package internal

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sourceFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fuel_prices",
		Name:      "source_fetches_total",
		Help:      "Retailer feed fetches by outcome.",
	}, []string{"retailer", "outcome"})

	sourceStations = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "fuel_prices",
		Name:      "source_stations",
		Help:      "Stations returned by each retailer feed in the last successful fetch.",
	}, []string{"retailer"})

	aggregationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fuel_prices",
		Name:      "aggregation_duration_seconds",
		Help:      "Wall-clock duration of a complete aggregation pass.",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 15, 30},
	})

	cacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fuel_prices",
		Name:      "cache_requests_total",
		Help:      "Price requests by how they were served.",
	}, []string{"result"})
)
