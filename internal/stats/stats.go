package stats

import (
	"fmt"
	"math"
	"slices"

	"github.com/rm-hull/fuel-prices-aggregator/internal/models"
	"github.com/samber/lo"
)

// Derive summarises the prices in results per fuel type. The distribution
// groups whole-pence prices into bands of bucketSize.
func Derive(results []models.FuelStation, bucketSize int) *models.SearchStatistics {
	if bucketSize <= 0 {
		bucketSize = 3
	}
	stats := &models.SearchStatistics{
		CheapestPfs:       make(map[models.FuelType][]string),
		LowestPrice:       make(map[models.FuelType]float64),
		AveragePrice:      make(map[models.FuelType]float64),
		HighestPrice:      make(map[models.FuelType]float64),
		PriceDistribution: make(map[models.FuelType]map[string]int),
		StandardDeviation: make(map[models.FuelType]float64),
	}

	for _, fuelType := range fuelTypesIn(results) {
		prices := reportedPrices(results, fuelType)
		if len(prices) == 0 {
			continue
		}

		lowest := slices.Min(prices)
		mean := lo.Sum(prices) / float64(len(prices))

		stats.LowestPrice[fuelType] = lowest
		stats.HighestPrice[fuelType] = slices.Max(prices)
		stats.AveragePrice[fuelType] = math.Round(mean*10) / 10
		stats.CheapestPfs[fuelType] = lo.FilterMap(results, func(station models.FuelStation, _ int) (string, bool) {
			price, ok := station.Price(fuelType)
			return station.SiteId, ok && price == lowest
		})
		if len(prices) > 1 {
			stats.StandardDeviation[fuelType] = populationStdDev(prices, mean)
		}
		stats.PriceDistribution[fuelType] = lo.CountValuesBy(prices, func(price float64) string {
			start := (int(price) / bucketSize) * bucketSize
			return fmt.Sprintf("%d-%d", start, start+bucketSize-1)
		})
	}

	branded := lo.Filter(results, func(station models.FuelStation, _ int) bool {
		return station.Brand != ""
	})
	stats.BrandDistribution = lo.CountValuesBy(branded, func(station models.FuelStation) string {
		return station.Brand
	})

	return stats
}

// fuelTypesIn lists the fuel types reported by any station, the standard
// types first.
func fuelTypesIn(stations []models.FuelStation) []models.FuelType {
	extra := make([]models.FuelType, 0)
	for _, station := range stations {
		for fuelType := range station.Prices {
			if !fuelType.IsValid() && !slices.Contains(extra, fuelType) {
				extra = append(extra, fuelType)
			}
		}
	}
	slices.Sort(extra)
	return append(slices.Clone(models.FuelTypes), extra...)
}

func populationStdDev(values []float64, mean float64) float64 {
	variance := lo.SumBy(values, func(v float64) float64 {
		return (v - mean) * (v - mean)
	}) / float64(len(values))
	return math.Sqrt(variance)
}
