package server

import (
	"github.com/gin-gonic/gin"
)

// setupCoreRoutes wires the routes that belong to no single module:
// health, system status, configuration, and the event stream.
func setupCoreRoutes(r *gin.Engine) {
	api := r.Group("/api")
	{
		api.GET("/health", handleHealthCheck)
		api.GET("/system/status", handleSystemStatus)
		api.GET("/modules", handleListModules)

		eventsGroup := api.Group("/events")
		{
			eventsGroup.GET("", handleRecentEvents)
			eventsGroup.GET("/ws", handleEventStream)
		}

		configGroup := api.Group("/config")
		{
			configGroup.GET("", handleGetConfig)
		}
	}
}
