package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchops/meilivault/internal/common"
	"github.com/searchops/meilivault/internal/interfaces"
	"github.com/searchops/meilivault/internal/services/events"
)

func dialWebSocket(t *testing.T, h *WebSocketHandler) *websocket.Conn {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	// First frame is the hello message carrying the server instance ID.
	var hello wsMessage
	require.NoError(t, conn.ReadJSON(&hello))
	require.Equal(t, "hello", hello.Type)

	return conn
}

func TestWebSocketReceivesProgressEvents(t *testing.T) {
	logger := common.GetLogger()
	eventService := events.NewService(logger)
	h := NewWebSocketHandler(eventService, logger, &common.WebSocketConfig{ProgressPerSec: 1000})
	defer h.Close()

	conn := dialWebSocket(t, h)

	require.NoError(t, eventService.PublishSync(context.Background(), interfaces.Event{
		Type: interfaces.EventRestoreProgress,
		Payload: interfaces.ProgressPayload{
			OperationID: "op_ws",
			Message:     "Restoring index: movies",
		},
	}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg wsMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "restore_progress", msg.Type)

	payload, ok := msg.Payload.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "op_ws", payload["operation_id"])
}

func TestWebSocketThrottleDropsExcessProgress(t *testing.T) {
	logger := common.GetLogger()
	eventService := events.NewService(logger)
	h := NewWebSocketHandler(eventService, logger, &common.WebSocketConfig{ProgressPerSec: 1})
	defer h.Close()

	conn := dialWebSocket(t, h)

	// Burst well past the 1/sec budget. Done events bypass the throttle, so
	// the final frame always arrives.
	for i := 0; i < 20; i++ {
		eventService.PublishSync(context.Background(), interfaces.Event{
			Type:    interfaces.EventBackupProgress,
			Payload: interfaces.ProgressPayload{OperationID: "op_burst", Message: "batch"},
		})
	}
	eventService.PublishSync(context.Background(), interfaces.Event{
		Type:    interfaces.EventOperationDone,
		Payload: interfaces.ProgressPayload{OperationID: "op_burst", Message: "completed"},
	})

	received := map[string]int{}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		received[msg.Type]++
		if msg.Type == "operation_done" {
			break
		}
	}

	assert.Equal(t, 1, received["operation_done"])
	assert.LessOrEqual(t, received["backup_progress"], 2)
}

func TestBroadcastWithNoClientsIsSafe(t *testing.T) {
	h := NewWebSocketHandler(nil, common.GetLogger(), nil)
	h.Broadcast("backup_progress", interfaces.ProgressPayload{OperationID: "op_none"})
	h.Close()
}
