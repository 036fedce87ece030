package approuters

import (
	"Memoria/internal/auth"
	"Memoria/internal/configuration"

	"github.com/gin-gonic/gin"
)

func HistoryRouters(router *gin.Engine, container *configuration.Container) {
	history := router.Group("/api/messages")
	history.Use(auth.Middleware(container.Config.Auth.JwtSecret))
	{
		history.GET("/private/:userId", container.HistoryHandler.GetPrivateHistory)
		history.GET("/group/:groupId", container.HistoryHandler.GetGroupHistory)
	}
}
