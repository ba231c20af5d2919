package model

import "time"

// HubStats is a point-in-time view of the presence registry.
type HubStats struct {
	OnlineUsers int
	Uptime      time.Duration
}
