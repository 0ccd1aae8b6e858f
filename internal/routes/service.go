package routes

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rm-hull/fuel-prices-aggregator/internal"
	"github.com/rm-hull/fuel-prices-aggregator/internal/models"
)

// PriceService is the part of internal.PriceService the handlers use.
type PriceService interface {
	FetchFuelPrices(ctx context.Context, onProgress internal.ProgressFunc, forceRefresh bool) ([]models.FuelStation, error)
	GetHistoricalPrices(ctx context.Context, siteId string, fuelType models.FuelType, days int) models.HistoricalPrices
	GetLastUpdated() *string
	GetFetchedAt() time.Time
}

func lastUpdatedTime(svc PriceService) *time.Time {
	value := svc.GetLastUpdated()
	if value == nil {
		return nil
	}
	ts, ok := internal.ParseFeedTimestamp(*value)
	if !ok {
		return nil
	}
	return &ts
}

func parseFuelType(value string, required bool) (models.FuelType, error) {
	if value == "" && !required {
		return "", nil
	}
	fuelType := models.FuelType(strings.ToUpper(strings.TrimSpace(value)))
	if !fuelType.IsValid() {
		return "", fmt.Errorf("fuel_type must be one of %v", models.FuelTypes)
	}
	return fuelType, nil
}

func parseIntParam(c *gin.Context, name string, defaultValue, max int) (int, error) {
	value := c.Query(name)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s parameter", name)
	}
	if max > 0 && n > max {
		n = max
	}
	return n, nil
}

func parseFloatParam(c *gin.Context, name string) (float64, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(c.Query(name)), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s parameter: not a valid float", name)
	}
	return value, nil
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func internalError(c *gin.Context) {
	c.JSON(http.StatusInternalServerError, gin.H{"error": "An internal server error occurred"})
}
