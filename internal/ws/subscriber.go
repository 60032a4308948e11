package ws

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/farmhand/marketplace/internal/job"
)

// sendBuffer is how many undelivered events a subscriber may lag behind
// before new ones are dropped.
const sendBuffer = 16

// Subscriber is one open notification socket. A user may hold several.
type Subscriber struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	ConnectedAt time.Time `json:"connected_at"`
	UserAgent   string    `json:"user_agent,omitempty"`

	mu            sync.Mutex
	lastHeartbeat time.Time
	delivered     int
	dropped       int

	send chan job.Event
}

func NewSubscriber(userID string) *Subscriber {
	now := time.Now().UTC()
	return &Subscriber{
		ID:            uuid.NewString(),
		UserID:        userID,
		ConnectedAt:   now,
		lastHeartbeat: now,
		send:          make(chan job.Event, sendBuffer),
	}
}

// offer queues ev without blocking and reports whether it was queued.
func (s *Subscriber) offer(ev job.Event) bool {
	select {
	case s.send <- ev:
		return true
	default:
		s.mu.Lock()
		s.dropped++
		s.mu.Unlock()
		return false
	}
}

func (s *Subscriber) UpdateHeartbeat() {
	s.mu.Lock()
	s.lastHeartbeat = time.Now().UTC()
	s.mu.Unlock()
}

func (s *Subscriber) markDelivered() {
	s.mu.Lock()
	s.delivered++
	s.mu.Unlock()
}

func (s *Subscriber) LastHeartbeat() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastHeartbeat
}

// Counts returns delivered and dropped event totals.
func (s *Subscriber) Counts() (delivered, dropped int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delivered, s.dropped
}
