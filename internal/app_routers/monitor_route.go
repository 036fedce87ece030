package approuters

import (
	"Memoria/internal/auth"
	"Memoria/internal/configuration"

	"github.com/gin-gonic/gin"
)

func MonitorRouters(router *gin.Engine, container *configuration.Container) {
	monitor := router.Group("/api/monitor")
	monitor.Use(auth.Middleware(container.Config.Auth.JwtSecret))
	{
		monitor.GET("/stats", container.MonitorHandler.GetHubStats)
		monitor.GET("/presence/:userId", container.MonitorHandler.GetPresence)
	}
}
