package routes

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rm-hull/fuel-prices-aggregator/internal/brands"
	"github.com/rm-hull/fuel-prices-aggregator/internal/models"
	"github.com/rm-hull/fuel-prices-aggregator/internal/stats"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const MAX_BOUNDS = 50_000 // Maximum bounds in meters (50 KM)

// BoundingBox is a lon/lat rectangle given as minLon,minLat,maxLon,maxLat.
type BoundingBox struct {
	MinLon, MinLat, MaxLon, MaxLat float64
}

func (bbox BoundingBox) Contains(loc models.Location) bool {
	return loc.Longitude >= bbox.MinLon && loc.Longitude <= bbox.MaxLon &&
		loc.Latitude >= bbox.MinLat && loc.Latitude <= bbox.MaxLat
}

func Search(svc PriceService) func(c *gin.Context) {
	return func(c *gin.Context) {
		bbox, err := parseBBox(c.Query("bbox"))
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

		results := lo.Filter(stations, func(station models.FuelStation, _ int) bool {
			return station.Location.IsValid() && bbox.Contains(station.Location)
		})

		c.JSON(http.StatusOK, models.SearchResponse{
			Results:     results,
			Attribution: brands.ATTRIBUTION,
			Statistics:  stats.Derive(results, 3),
			LastUpdated: lastUpdatedTime(svc),
		})
	}
}

func parseBBox(value string) (*BoundingBox, error) {
	parts := strings.Split(value, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("bbox must have 4 comma-separated values")
	}

	coords := make([]float64, 4)
	for i, part := range parts {
		coord, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid bbox value '%s': not a valid float", part)
		}
		coords[i] = coord
	}

	bbox := &BoundingBox{MinLon: coords[0], MinLat: coords[1], MaxLon: coords[2], MaxLat: coords[3]}
	if bbox.MinLon > bbox.MaxLon || bbox.MinLat > bbox.MaxLat {
		return nil, fmt.Errorf("bbox must be ordered as minLon,minLat,maxLon,maxLat")
	}

	// Approximate metres per degree, longitude shrinks with latitude.
	midLatRad := (bbox.MinLat + bbox.MaxLat) / 2 * math.Pi / 180.0
	height := (bbox.MaxLat - bbox.MinLat) * 111132
	width := (bbox.MaxLon - bbox.MinLon) * 111132 * math.Cos(midLatRad)
	if height > MAX_BOUNDS || width > MAX_BOUNDS {
		return nil, fmt.Errorf("bbox must define a valid area (no more than %d KM in either dimension)", MAX_BOUNDS/1000)
	}

	return bbox, nil
}
