package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rm-hull/fuel-prices-aggregator/internal/brands"
	"go.uber.org/zap"
)

func Register(r gin.IRouter, svc PriceService) {
	v1 := r.Group("/v1/fuel-prices")
	v1.GET("", Prices(svc))
	v1.GET("/search", Search(svc))
	v1.GET("/last-updated", LastUpdated(svc))
	v1.GET("/history/:siteId", History(svc))
	v1.GET("/stats", Statistics(svc))
	v1.GET("/cheapest", Cheapest(svc))
	v1.GET("/nearby", Nearby(svc))
	v1.GET("/retailers", Retailers())
}

// Retailers lists the configured feeds.
func Retailers() func(c *gin.Context) {
	return func(c *gin.Context) {
		retailers, err := brands.GetRetailersList()
		if err != nil {
			zap.L().Error("error while loading retailers", zap.Error(err))
			internalError(c)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"retailers":   retailers,
			"attribution": brands.ATTRIBUTION,
		})
	}
}
