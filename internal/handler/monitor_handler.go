package handler

import (
	"Memoria/internal/hub"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// MonitorHandler handles monitoring API endpoints
type MonitorHandler interface {
	GetHubStats(c *gin.Context)
	GetPresence(c *gin.Context)
}

type monitorHandler struct {
	monitorService *hub.MonitorService
	hub            *hub.Hub
}

// NewMonitorHandler creates a new monitor handler
func NewMonitorHandler(monitorService *hub.MonitorService, h *hub.Hub) MonitorHandler {
	return &monitorHandler{
		monitorService: monitorService,
		hub:            h,
	}
}

// GetHubStats returns current hub statistics
func (h *monitorHandler) GetHubStats(c *gin.Context) {
	stats := h.monitorService.GetStats()

	c.JSON(http.StatusOK, gin.H{
		"HttpStatusCode": http.StatusOK,
		"ResponseBody":   stats,
		"IsSuccess":      true,
		"Message":        "Hub statistics retrieved successfully",
	})
}

// GetPresence returns the aggregate online state of one user
func (h *monitorHandler) GetPresence(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("userId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"userId": userID,
		"online": h.hub.IsOnline(userID),
	})
}
