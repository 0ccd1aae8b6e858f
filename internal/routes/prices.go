package routes

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rm-hull/fuel-prices-aggregator/internal/brands"
	"github.com/rm-hull/fuel-prices-aggregator/internal/models"
	"go.uber.org/zap"
)

func Prices(svc PriceService) func(c *gin.Context) {
	return func(c *gin.Context) {
		forceRefresh := false
		if value := c.Query("refresh"); value != "" {
			parsed, err := strconv.ParseBool(value)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid refresh parameter"})
				return
			}
			forceRefresh = parsed
		}

		stations, err := svc.FetchFuelPrices(c.Request.Context(), nil, forceRefresh)
		if err != nil {
			zap.L().Error("error while fetching fuel prices", zap.Bool("force_refresh", forceRefresh), zap.Error(err))
			internalError(c)
			return
		}

		c.JSON(http.StatusOK, models.SearchResponse{
			Results:     stations,
			Attribution: brands.ATTRIBUTION,
			LastUpdated: lastUpdatedTime(svc),
		})
	}
}

func LastUpdated(svc PriceService) func(c *gin.Context) {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"last_updated": svc.GetLastUpdated()})
	}
}

func History(svc PriceService) func(c *gin.Context) {
	return func(c *gin.Context) {
		fuelType, err := parseFuelType(c.Query("fuel_type"), false)
		if err != nil {
			badRequest(c, err)
			return
		}

		days, err := parseIntParam(c, "days", 0, 365)
		if err != nil {
			badRequest(c, err)
			return
		}

		c.JSON(http.StatusOK, svc.GetHistoricalPrices(c.Request.Context(), c.Param("siteId"), fuelType, days))
	}
}
