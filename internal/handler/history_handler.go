package handler

import (
	"Memoria/internal/auth"
	"Memoria/internal/service"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type HistoryHandler interface {
	GetPrivateHistory(c *gin.Context)
	GetGroupHistory(c *gin.Context)
}

type historyHandler struct {
	service service.HistoryService
}

func NewHistoryHandler(service service.HistoryService) HistoryHandler {
	return &historyHandler{
		service: service,
	}
}

func (h *historyHandler) GetPrivateHistory(c *gin.Context) {
	otherID, err := strconv.ParseInt(c.Param("userId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
		return
	}

	page, ok := parsePage(c)
	if !ok {
		return
	}

	msgs, err := h.service.PrivateHistory(c.Request.Context(), auth.UserID(c), otherID, page)
	if err != nil {
		if errors.Is(err, service.ErrNotAllowed) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Not allowed"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (h *historyHandler) GetGroupHistory(c *gin.Context) {
	groupID := c.Param("groupId")
	if groupID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid group id"})
		return
	}

	page, ok := parsePage(c)
	if !ok {
		return
	}

	msgs, err := h.service.GroupHistory(c.Request.Context(), auth.UserID(c), groupID, page)
	if err != nil {
		if errors.Is(err, service.ErrNotAllowed) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Not allowed"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func parsePage(c *gin.Context) (int64, bool) {
	page := c.DefaultQuery("page", "1")
	pageNumber, err := strconv.ParseInt(page, 10, 64)
	if err != nil || pageNumber < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid page number"})
		return 0, false
	}
	return pageNumber, true
}
