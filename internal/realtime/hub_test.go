package realtime

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"marketplace_backend/platform/httpkit"
	"marketplace_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitCountersUpdateStampsAndDedupes(t *testing.T) {
	hub := NewHub(logger.Discard())
	hub.now = func() time.Time { return time.UnixMilli(1700000000000) }
	user := uuid.New()
	cl := hub.register(user)

	hub.EmitCountersUpdate([]uuid.UUID{user, user, uuid.New()}, map[string]any{"newRequests": 1})

	require.Len(t, cl.events, 1)
	event := <-cl.events
	assert.Equal(t, EventCountersUpdate, event.Type)
	data := event.Data.(map[string]any)
	assert.Equal(t, int64(1700000000000), data["ts"])
	assert.Equal(t, 1, data["newRequests"])
}

func TestPublishDropsWhenBufferIsFull(t *testing.T) {
	hub := NewHub(logger.Discard())
	user := uuid.New()
	cl := hub.register(user)

	for i := 0; i < clientBuffer+5; i++ {
		hub.Publish(user, Event{Type: EventNotification})
	}
	assert.Len(t, cl.events, clientBuffer)
}

func TestUnregisterAfterCloseIsSafe(t *testing.T) {
	hub := NewHub(logger.Discard())
	user := uuid.New()
	cl := hub.register(user)
	assert.Equal(t, 1, hub.Connected(user))

	hub.Close()
	assert.NotPanics(t, func() { hub.unregister(cl) })
	assert.Zero(t, hub.Connected(user))

	_, open := <-cl.events
	assert.False(t, open)
}

func TestWebSocketReceivesCountersUpdate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub(logger.Discard())
	user := uuid.New()

	engine := gin.New()
	group := engine.Group("/", func(c *gin.Context) {
		c.Set(httpkit.ContextUserIDKey, user)
		c.Next()
	})
	NewHandler(hub, nil).RegisterRoutes(group)

	srv := httptest.NewServer(engine)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/realtime/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var connected Event
	require.NoError(t, conn.ReadJSON(&connected))
	assert.Equal(t, EventConnected, connected.Type)

	hub.EmitCountersUpdate([]uuid.UUID{user}, map[string]any{"newRequests": 2})

	var update struct {
		Type EventType      `json:"type"`
		Data map[string]any `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&update))
	assert.Equal(t, EventCountersUpdate, update.Type)
	assert.Equal(t, float64(2), update.Data["newRequests"])
	assert.Contains(t, update.Data, "ts")
}

func TestStreamRequiresIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	NewHandler(NewHub(logger.Discard()), nil).RegisterRoutes(engine.Group("/"))

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest("GET", "/realtime/stream", nil))
	assert.Equal(t, 401, rec.Code)
}
