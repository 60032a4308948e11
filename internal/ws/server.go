// Package ws pushes marketplace events to signed-in users over websocket.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/farmhand/marketplace/internal/job"
	"github.com/farmhand/marketplace/internal/metrics"
)

const writeTimeout = 5 * time.Second

// Hub implements job.Notifier on top of the open sockets.
type Hub struct {
	registry *Registry
	log      logrus.FieldLogger

	// sendJSON writes one message; replaced in tests.
	sendJSON func(ctx context.Context, conn *websocket.Conn, v any) error
}

func NewHub(log logrus.FieldLogger) *Hub {
	log = log.WithField("component", "ws")
	return &Hub{registry: NewRegistry(log), log: log, sendJSON: wsjson.Write}
}

func (h *Hub) Registry() *Registry {
	return h.registry
}

// Notify queues ev for every socket userID has open. Users that are not
// connected miss the event.
func (h *Hub) Notify(userID string, ev job.Event) {
	for _, s := range h.registry.ForUser(userID) {
		if !s.offer(ev) {
			metrics.WSDropped()
			h.log.WithFields(logrus.Fields{"subscriber_id": s.ID, "event": ev.Type}).Warn("subscriber too slow, event dropped")
		}
	}
}

// Serve upgrades the request and streams userID's events until either side
// closes.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.WithError(err).Warn("websocket accept")
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "goodbye")

	sub := NewSubscriber(userID)
	sub.UserAgent = r.UserAgent()
	h.registry.Add(sub)
	metrics.WSConnected()
	defer func() {
		h.registry.Remove(sub.ID)
		metrics.WSDisconnected()
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ack := AckMessage{Type: "ack", SubscriberID: sub.ID, UserID: userID, Message: "Welcome!"}
	if err := h.write(ctx, conn, ack); err != nil {
		h.log.WithError(err).Warn("send ack")
		return
	}

	go func() {
		defer cancel()
		h.readLoop(ctx, conn, sub)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-sub.send:
			if err := h.write(ctx, conn, EventMessage{Type: "event", Event: ev}); err != nil {
				h.log.WithError(err).WithField("subscriber_id", sub.ID).Warn("push event")
				return
			}
			sub.markDelivered()
		}
	}
}

func (h *Hub) write(ctx context.Context, conn *websocket.Conn, v any) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return h.sendJSON(ctx, conn, v)
}

func (h *Hub) readLoop(ctx context.Context, conn *websocket.Conn, sub *Subscriber) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if s := websocket.CloseStatus(err); s != websocket.StatusNormalClosure && s != websocket.StatusGoingAway && ctx.Err() == nil {
				h.log.WithError(err).WithField("subscriber_id", sub.ID).Debug("websocket read")
			}
			return
		}

		var msg BaseMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.log.WithError(err).Debug("invalid message format")
			continue
		}

		switch msg.Type {
		case "heartbeat":
			sub.UpdateHeartbeat()
			if err := h.write(ctx, conn, HeartbeatMessage{Type: "heartbeat", Timestamp: time.Now().UTC()}); err != nil {
				h.log.WithError(err).WithField("subscriber_id", sub.ID).Debug("heartbeat reply")
				return
			}
		case "quit":
			return
		default:
			h.log.WithField("type", msg.Type).Debug("unknown message type")
		}
	}
}
