package api

import (
	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine, handler *Handler) {
	router.GET("/health", handler.Health)

	api := router.Group("/api")
	{
		api.GET("/catalog", handler.GetCatalog)
		api.GET("/catalog/stats", handler.GetCatalogStats)
		api.GET("/catalog/geojson", handler.GetCatalogGeoJSON)
		api.GET("/properties", handler.GetProperties)
		api.GET("/runs", handler.GetRuns)
		api.POST("/integrate", handler.Integrate)
		api.GET("/cache/status", handler.GetCacheStatus)
		api.DELETE("/cache", handler.ClearCache)
	}
}
