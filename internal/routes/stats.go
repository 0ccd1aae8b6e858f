package routes

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kofalt/go-memoize"
	"github.com/rm-hull/fuel-prices-aggregator/internal/models"
	"github.com/rm-hull/fuel-prices-aggregator/internal/stats"
	"go.uber.org/zap"
)

const (
	defaultRadiusKm = 5.0
	maxRadiusKm     = 50.0
)

type StatsResponse struct {
	RegionalCheapest []models.RegionalCheapest          `json:"regional_cheapest"`
	NationalAverages map[models.FuelType]models.Average `json:"national_averages"`
	Statistics       *models.SearchStatistics           `json:"statistics"`
	LastUpdated      *string                            `json:"last_updated,omitempty"`
}

type RankingResponse struct {
	Results     []models.RankedStation `json:"results"`
	LastUpdated *string                `json:"last_updated,omitempty"`
}

// Statistics derives the national and regional summaries. Results are
// memoized per aggregation pass, identified by its fetch time.
func Statistics(svc PriceService) func(c *gin.Context) {
	memoizer := memoize.NewMemoizer(time.Minute, 5*time.Minute)

	return func(c *gin.Context) {
		stations, err := svc.FetchFuelPrices(c.Request.Context(), nil, false)
		if err != nil {
			zap.L().Error("error while fetching fuel prices", zap.Error(err))
			internalError(c)
			return
		}

		lastUpdated := svc.GetLastUpdated()
		key := fmt.Sprintf("stats:%d", svc.GetFetchedAt().UnixNano())

		result, err, _ := memoizer.Memoize(key, func() (interface{}, error) {
			return &StatsResponse{
				RegionalCheapest: stats.CheapestByRegion(stations),
				NationalAverages: stats.NationalAverages(stations),
				Statistics:       stats.Derive(stations, 3),
				LastUpdated:      lastUpdated,
			}, nil
		})
		if err != nil {
			zap.L().Error("error while deriving statistics", zap.Error(err))
			internalError(c)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func Cheapest(svc PriceService) func(c *gin.Context) {
	return func(c *gin.Context) {
		fuelType, err := parseFuelType(c.DefaultQuery("fuel_type", string(models.E10)), true)
		if err != nil {
			badRequest(c, err)
			return
		}
		limit, err := parseIntParam(c, "limit", 10, 100)
		if err != nil {
			badRequest(c, err)
			return
		}

		stations, err := svc.FetchFuelPrices(c.Request.Context(), nil, false)
		if err != nil {
			zap.L().Error("error while fetching fuel prices", zap.Error(err))
			internalError(c)
			return
		}

		c.JSON(http.StatusOK, RankingResponse{
			Results:     stats.TopCheapest(stations, fuelType, limit),
			LastUpdated: svc.GetLastUpdated(),
		})
	}
}

func Nearby(svc PriceService) func(c *gin.Context) {
	return func(c *gin.Context) {
		lat, err := parseFloatParam(c, "lat")
		if err != nil {
			badRequest(c, err)
			return
		}
		lon, err := parseFloatParam(c, "lon")
		if err != nil {
			badRequest(c, err)
			return
		}
		origin := models.Location{Latitude: lat, Longitude: lon}
		if !origin.IsValid() {
			badRequest(c, fmt.Errorf("lat/lon must be within the UK"))
			return
		}

		radiusKm := defaultRadiusKm
		if c.Query("radius_km") != "" {
			radiusKm, err = parseFloatParam(c, "radius_km")
			if err != nil || radiusKm <= 0 {
				badRequest(c, fmt.Errorf("invalid radius_km parameter"))
				return
			}
			radiusKm = min(radiusKm, maxRadiusKm)
		}

		fuelType, err := parseFuelType(c.DefaultQuery("fuel_type", string(models.E10)), true)
		if err != nil {
			badRequest(c, err)
			return
		}
		limit, err := parseIntParam(c, "limit", 20, 100)
		if err != nil {
			badRequest(c, err)
			return
		}

		stations, err := svc.FetchFuelPrices(c.Request.Context(), nil, false)
		if err != nil {
			zap.L().Error("error while fetching fuel prices", zap.Error(err))
			internalError(c)
			return
		}

		c.JSON(http.StatusOK, RankingResponse{
			Results:     stats.Nearby(stations, origin, radiusKm, fuelType, limit),
			LastUpdated: svc.GetLastUpdated(),
		})
	}
}
