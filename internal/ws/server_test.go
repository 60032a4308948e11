package ws

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/farmhand/marketplace/internal/job"
	"github.com/farmhand/marketplace/internal/logging"
)

func TestRegistry_AddRemove(t *testing.T) {
	r := NewRegistry(logging.Discard())
	a := NewSubscriber("user-1")
	b := NewSubscriber("user-1")
	c := NewSubscriber("user-2")

	r.Add(a)
	r.Add(b)
	r.Add(c)
	assert.Equal(t, Stats{Connections: 3, Users: 2}, r.Stats())
	assert.Len(t, r.ForUser("user-1"), 2)
	require.Len(t, r.ForUser("user-2"), 1)
	assert.Equal(t, c.ID, r.ForUser("user-2")[0].ID)

	r.Remove(a.ID)
	r.Remove(c.ID)
	r.Remove("nonexistent")
	assert.Equal(t, Stats{Connections: 1, Users: 1}, r.Stats())
	assert.Empty(t, r.ForUser("user-2"))
}

func TestHub_NotifyDropsWhenFull(t *testing.T) {
	h := NewHub(logging.Discard())
	s := NewSubscriber("user-1")
	h.Registry().Add(s)

	for i := 0; i < sendBuffer+3; i++ {
		h.Notify("user-1", job.Event{Type: job.EventJobUpdated})
	}
	h.Notify("someone-else", job.Event{Type: job.EventJobUpdated})

	assert.Len(t, s.send, sendBuffer)
	_, dropped := s.Counts()
	assert.Equal(t, 3, dropped)
	assert.Equal(t, 3, h.Registry().Stats().Dropped)
}

func TestRegistry_StatsCountsStaleAndDelivered(t *testing.T) {
	r := NewRegistry(logging.Discard())
	fresh := NewSubscriber("user-1")
	quiet := NewSubscriber("user-2")
	quiet.lastHeartbeat = time.Now().Add(-2 * staleAfter)
	fresh.markDelivered()
	fresh.markDelivered()
	r.Add(fresh)
	r.Add(quiet)

	st := r.Stats()
	assert.Equal(t, 1, st.Stale)
	assert.Equal(t, 2, st.Delivered)

	fresh.UpdateHeartbeat()
	quiet.UpdateHeartbeat()
	assert.Zero(t, r.Stats().Stale)
}

func TestHub_ServeStreamsEvents(t *testing.T) {
	h := NewHub(logging.Discard())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.Serve(w, r, r.URL.Query().Get("user"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?user=labourer-1"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	var ack AckMessage
	require.NoError(t, wsjson.Read(ctx, conn, &ack))
	assert.Equal(t, "ack", ack.Type)
	assert.Equal(t, "labourer-1", ack.UserID)

	require.NoError(t, wsjson.Write(ctx, conn, BaseMessage{Type: "heartbeat"}))
	var hb HeartbeatMessage
	require.NoError(t, wsjson.Read(ctx, conn, &hb))
	assert.Equal(t, "heartbeat", hb.Type)

	h.Notify("labourer-1", job.Event{
		Type:   job.EventApplicationUpdated,
		JobID:  "job-1",
		Status: "accepted",
	})

	var msg EventMessage
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, "event", msg.Type)
	assert.Equal(t, job.EventApplicationUpdated, msg.Event.Type)
	assert.Equal(t, "accepted", msg.Event.Status)
}

func TestHub_FailedHeartbeatReplyClosesSocket(t *testing.T) {
	h := NewHub(logging.Discard())
	h.sendJSON = func(ctx context.Context, conn *websocket.Conn, v any) error {
		if _, ok := v.(HeartbeatMessage); ok {
			return errors.New("write failed")
		}
		return wsjson.Write(ctx, conn, v)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.Serve(w, r, "labourer-1")
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	var ack AckMessage
	require.NoError(t, wsjson.Read(ctx, conn, &ack))
	require.Equal(t, 1, h.Registry().Stats().Connections)

	require.NoError(t, wsjson.Write(ctx, conn, BaseMessage{Type: "heartbeat"}))

	var next BaseMessage
	assert.Error(t, wsjson.Read(ctx, conn, &next))
	assert.Eventually(t, func() bool {
		return h.Registry().Stats().Connections == 0
	}, 2*time.Second, 10*time.Millisecond)
}
