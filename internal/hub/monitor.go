package hub

import (
	"Memoria/internal/model"
)

// MonitorService provides methods to gather hub statistics
type MonitorService struct {
	hub *Hub
}

// NewMonitorService creates a new monitor service
func NewMonitorService(hub *Hub) *MonitorService {
	return &MonitorService{hub: hub}
}

// GetStats gathers and returns all hub statistics
func (ms *MonitorService) GetStats() model.MonitorResponse {
	registry := ms.hub.Registry()
	channels := ms.hub.Channels()

	connectionStats := model.ConnectionStats{
		TotalConnected: registry.TotalConnections(),
		TotalOnline:    registry.OnlineUsers(),
	}

	channelDetails := channels.Snapshot()
	channelStats := model.ChannelStats{
		TotalChannels:  len(channelDetails),
		ChannelDetails: channelDetails,
	}

	// Determine overall health status
	status := "healthy"
	if connectionStats.TotalConnected == 0 {
		status = "idle"
	}

	return model.MonitorResponse{
		Status:      status,
		Connections: connectionStats,
		Channels:    channelStats,
		Clients:     registry.Snapshot(),
	}
}
