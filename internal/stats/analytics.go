package stats

import (
	"cmp"
	"math"
	"slices"

	"github.com/rm-hull/fuel-prices-aggregator/internal/models"
	"github.com/rm-hull/fuel-prices-aggregator/internal/regions"
	"github.com/samber/lo"
)

const earthRadiusKm = 6371.0088

// CheapestByRegion returns the minimum price per region and fuel type,
// ordered by region then fuel type. Regions without any reporting station,
// and the Other bucket, are left out.
func CheapestByRegion(stations []models.FuelStation) []models.RegionalCheapest {
	type key struct {
		region   string
		fuelType models.FuelType
	}
	cheapest := make(map[key]*models.RegionalCheapest)

	for _, station := range stations {
		region := regions.Lookup(station.Postcode)
		if region == regions.Other {
			continue
		}
		for _, fuelType := range models.FuelTypes {
			price, ok := station.Price(fuelType)
			if !ok {
				continue
			}
			k := key{region, fuelType}
			current, found := cheapest[k]
			switch {
			case !found || price < current.Price:
				cheapest[k] = &models.RegionalCheapest{
					Region:   region,
					FuelType: fuelType,
					Price:    price,
					SiteIds:  []string{station.SiteId},
				}
			case price == current.Price:
				current.SiteIds = append(current.SiteIds, station.SiteId)
			}
		}
	}

	results := make([]models.RegionalCheapest, 0, len(cheapest))
	for _, rc := range cheapest {
		results = append(results, *rc)
	}
	slices.SortFunc(results, func(a, b models.RegionalCheapest) int {
		return cmp.Or(
			cmp.Compare(a.Region, b.Region),
			cmp.Compare(slices.Index(models.FuelTypes, a.FuelType), slices.Index(models.FuelTypes, b.FuelType)),
		)
	})
	return results
}

// NationalAverages returns the mean price per fuel type rounded to the
// nearest penny. Every fuel type is present, with zero samples when no
// station reports it.
func NationalAverages(stations []models.FuelStation) map[models.FuelType]models.Average {
	averages := make(map[models.FuelType]models.Average, len(models.FuelTypes))
	for _, fuelType := range models.FuelTypes {
		prices := reportedPrices(stations, fuelType)
		if len(prices) == 0 {
			averages[fuelType] = models.Average{}
			continue
		}
		averages[fuelType] = models.Average{
			Pence:   int(math.Round(lo.Sum(prices) / float64(len(prices)))),
			Samples: len(prices),
		}
	}
	return averages
}

// TopCheapest ranks stations selling fuelType by ascending price, ties keep
// their input order. A non-positive n returns every reporting station.
func TopCheapest(stations []models.FuelStation, fuelType models.FuelType, n int) []models.RankedStation {
	ranked := lo.FilterMap(stations, func(station models.FuelStation, _ int) (models.RankedStation, bool) {
		price, ok := station.Price(fuelType)
		return models.RankedStation{FuelStation: station, Price: price}, ok
	})

	slices.SortStableFunc(ranked, func(a, b models.RankedStation) int {
		return cmp.Compare(a.Price, b.Price)
	})
	return truncate(ranked, n)
}

// Nearby finds stations selling fuelType within radiusKm of origin, cheapest
// first with distance as the tie-break. Stations outside the UK bounding box
// are ignored.
func Nearby(stations []models.FuelStation, origin models.Location, radiusKm float64, fuelType models.FuelType, limit int) []models.RankedStation {
	ranked := lo.FilterMap(stations, func(station models.FuelStation, _ int) (models.RankedStation, bool) {
		if !station.Location.IsValid() {
			return models.RankedStation{}, false
		}
		price, ok := station.Price(fuelType)
		if !ok {
			return models.RankedStation{}, false
		}
		distance := Haversine(origin, station.Location)
		if distance > radiusKm {
			return models.RankedStation{}, false
		}
		return models.RankedStation{FuelStation: station, Price: price, DistanceKm: &distance}, true
	})

	slices.SortStableFunc(ranked, func(a, b models.RankedStation) int {
		return cmp.Or(
			cmp.Compare(a.Price, b.Price),
			cmp.Compare(*a.DistanceKm, *b.DistanceKm),
		)
	})
	return truncate(ranked, limit)
}

// Haversine is the great-circle distance between two points in kilometres.
func Haversine(from, to models.Location) float64 {
	lat1 := from.Latitude * math.Pi / 180
	lat2 := to.Latitude * math.Pi / 180
	dLat := lat2 - lat1
	dLon := (to.Longitude - from.Longitude) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(a)))
}

func reportedPrices(stations []models.FuelStation, fuelType models.FuelType) []float64 {
	return lo.FilterMap(stations, func(station models.FuelStation, _ int) (float64, bool) {
		return station.Price(fuelType)
	})
}

func truncate[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}
