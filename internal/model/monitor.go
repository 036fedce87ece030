package model

// -----------------------------------------------------------------
// Monitor API Response Models
// -----------------------------------------------------------------

// MonitorResponse is the main response for the monitor API
type MonitorResponse struct {
	Status      string          `json:"status"` // "healthy", "idle"
	Connections ConnectionStats `json:"connections"`
	Channels    ChannelStats    `json:"channels"`
	Clients     []ClientInfo    `json:"clients"`
}

// ConnectionStats holds connection-related statistics
type ConnectionStats struct {
	TotalConnected int `json:"totalConnected"` // Live transport connections
	TotalOnline    int `json:"totalOnline"`    // Distinct users with >= 1 connection
}

// ChannelStats holds broadcast channel statistics
type ChannelStats struct {
	TotalChannels  int           `json:"totalChannels"`
	ChannelDetails []ChannelInfo `json:"channelDetails"`
}

// ChannelInfo contains information about a single live channel
type ChannelInfo struct {
	GroupID     string `json:"groupId"`
	Subscribers int    `json:"subscribers"`
}

// ClientInfo contains information about a connected client
type ClientInfo struct {
	ConnectionID string `json:"connectionId"`
	UserID       int64  `json:"userId"`
}
