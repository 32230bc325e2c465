package analytics

import "time"

// Event is a tracked front-end interaction such as a visit or feedback click.
type Event struct {
	ID        string         `json:"id"`
	EventType string         `json:"eventType"`
	Metadata  map[string]any `json:"metadata"`
	Timestamp time.Time      `json:"timestamp"`
}

// Stats is the dashboard summary served by the analytics API.
type Stats struct {
	InteractionsToday int     `json:"interactionsToday"`
	ActiveSessions    int     `json:"activeSessions"`
	AIResponseTime    int64   `json:"aiResponseTime"`
	AIConfidence      float64 `json:"aiConfidence"`
	AIInteractions    int     `json:"aiInteractions"`
}
