package routes

import (
	"rescuelink/internal/handlers/shared"
	"rescuelink/internal/middleware"

	"github.com/gin-gonic/gin"
)

// SetupDashboardRoutes wires the authority console API.
func SetupDashboardRoutes(router *gin.RouterGroup, handler *shared.DashboardHandler, jwtSecret string) {
	dispatch := router.Group("/dispatch")
	dispatch.Use(middleware.AuthRequired(jwtSecret), middleware.AuthorityRequired())
	{
		dispatch.GET("/alerts", handler.ListAlerts)
		dispatch.GET("/alerts/:id", handler.GetAlert)
		dispatch.PUT("/alerts/:id/ack", handler.AckAlert)
		dispatch.PUT("/alerts/:id/resolve", handler.ResolveAlert)
		dispatch.GET("/stream", handler.Stream)
	}
}
