package ws

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// staleAfter is how long a subscriber may go without a heartbeat before
// it is reported as stale.
const staleAfter = 90 * time.Second

type Stats struct {
	Connections int `json:"connections"`
	Users       int `json:"users"`
	Stale       int `json:"stale"`
	Delivered   int `json:"delivered_events"`
	Dropped     int `json:"dropped_events"`
}

// Registry tracks open subscribers by id and by user.
type Registry struct {
	mu     sync.RWMutex
	subs   map[string]*Subscriber
	byUser map[string]map[string]*Subscriber
	log    logrus.FieldLogger
}

func NewRegistry(log logrus.FieldLogger) *Registry {
	return &Registry{
		subs:   make(map[string]*Subscriber),
		byUser: make(map[string]map[string]*Subscriber),
		log:    log,
	}
}

func (r *Registry) Add(s *Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[s.ID] = s
	if r.byUser[s.UserID] == nil {
		r.byUser[s.UserID] = make(map[string]*Subscriber)
	}
	r.byUser[s.UserID][s.ID] = s
	r.log.WithFields(logrus.Fields{"subscriber_id": s.ID, "user_id": s.UserID, "total": len(r.subs)}).Debug("subscriber connected")
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[id]
	if !ok {
		return
	}
	delete(r.subs, id)
	if conns := r.byUser[s.UserID]; conns != nil {
		delete(conns, id)
		if len(conns) == 0 {
			delete(r.byUser, s.UserID)
		}
	}
	r.log.WithFields(logrus.Fields{"subscriber_id": id, "total": len(r.subs)}).Debug("subscriber disconnected")
}

// ForUser returns every open subscriber of userID.
func (r *Registry) ForUser(userID string) []*Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns := r.byUser[userID]
	out := make([]*Subscriber, 0, len(conns))
	for _, s := range conns {
		out = append(out, s)
	}
	return out
}

// Stats sums event counts over the open subscribers.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st := Stats{Connections: len(r.subs), Users: len(r.byUser)}
	cutoff := time.Now().Add(-staleAfter)
	for _, s := range r.subs {
		delivered, dropped := s.Counts()
		st.Delivered += delivered
		st.Dropped += dropped
		if s.LastHeartbeat().Before(cutoff) {
			st.Stale++
		}
	}
	return st
}
