package ws

import (
	"time"

	"github.com/farmhand/marketplace/internal/job"
)

type BaseMessage struct {
	Type string `json:"type"`
}

// Client → Server: "heartbeat" and "quit".

type HeartbeatMessage struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Server → Client

type AckMessage struct {
	Type         string `json:"type"`
	SubscriberID string `json:"subscriber_id"`
	UserID       string `json:"user_id"`
	Message      string `json:"message"`
}

type EventMessage struct {
	Type  string    `json:"type"`
	Event job.Event `json:"event"`
}
