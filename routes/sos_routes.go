package routes

import (
	"rescuelink/internal/handlers/shared"
	"rescuelink/internal/middleware"

	"github.com/gin-gonic/gin"
)

// SetupSOSRoutes wires the device-facing capture API.
func SetupSOSRoutes(router *gin.RouterGroup, handler *shared.SOSHandler, jwtSecret string) {
	sos := router.Group("/sos")
	sos.Use(middleware.AuthRequired(jwtSecret))
	{
		sos.POST("", handler.RaiseSOS)
		sos.GET("/active", handler.GetActive)
		sos.GET("/:id", handler.GetEvent)
		sos.PUT("/:id/resolve", handler.Resolve)
		sos.POST("/:id/media", handler.AttachMedia)
	}
}
