package events_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conductorhq/conductor/pkg/database"
	"github.com/conductorhq/conductor/pkg/events"
	"github.com/conductorhq/conductor/test/testutil"
)

// streamingTestEnv holds all wired-up components for an integration test.
type streamingTestEnv struct {
	dbClient    *database.Client
	publisher   *events.EventPublisher
	manager     *events.ConnectionManager
	listener    *events.NotifyListener
	server      *httptest.Server
	executionID string
	channel     string
}

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// setupStreamingTest wires all real components together against a real
// PostgreSQL database (testcontainers locally, service container in CI).
func setupStreamingTest(t *testing.T) *streamingTestEnv {
	t.Helper()

	dbClient, connStr := testutil.NewTestClientAndConnString(t)
	ctx := context.Background()

	executionID := uuid.New().String()
	channel := events.ExecutionChannel(executionID)

	publisher := events.NewEventPublisher(dbClient.DB())
	catchupQuerier := dbClient.Events
	manager := events.NewConnectionManager(catchupQuerier, 5*time.Second)

	// NotifyListener needs its own dedicated connection — NOTIFY/LISTEN is
	// connection-scoped and can't share the pool.
	listener := events.NewNotifyListener(connStr, manager)
	require.NoError(t, listener.Start(ctx))
	manager.SetListener(listener)
	t.Cleanup(func() { listener.Stop(context.Background()) })

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("WebSocket upgrade error: %v", err)
			return
		}
		manager.HandleConnection(r.Context(), conn)
	}))
	t.Cleanup(func() { server.Close() })

	return &streamingTestEnv{
		dbClient:    dbClient,
		publisher:   publisher,
		manager:     manager,
		listener:    listener,
		server:      server,
		executionID: executionID,
		channel:     channel,
	}
}

func (env *streamingTestEnv) connectWS(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + env.server.URL[len("http"):]

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readJSONTimeout(t *testing.T, conn *websocket.Conn, timeout time.Duration) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

// subscribeAndWait connects a WebSocket, reads connection.established,
// subscribes to the env's channel, and reads subscription.confirmed.
func (env *streamingTestEnv) subscribeAndWait(t *testing.T) *websocket.Conn {
	t.Helper()
	conn := env.connectWS(t)

	msg := readJSONTimeout(t, conn, 5*time.Second)
	require.Equal(t, "connection.established", msg["type"])

	subMsg, _ := json.Marshal(events.ClientMessage{Action: "subscribe", Channel: env.channel})
	require.NoError(t, conn.SetWriteDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, subMsg))

	msg = readJSONTimeout(t, conn, 5*time.Second)
	require.Equal(t, "subscription.confirmed", msg["type"])

	return conn
}

// --- Tests ---

func TestIntegration_PublisherPersistsAndNotifies(t *testing.T) {
	env := setupStreamingTest(t)
	ctx := context.Background()

	err := env.publisher.PublishExecutionStatus(ctx, env.executionID, events.ExecutionStatusPayload{
		Type:        events.EventTypeExecutionStatus,
		ExecutionID: env.executionID,
		WorkflowID:  "wf-1",
		Status:      "running",
		Timestamp:   time.Now().Format(time.RFC3339Nano),
	})
	require.NoError(t, err)

	err = env.publisher.PublishNodeResult(ctx, env.executionID, events.NodeResultPayload{
		Type:        events.EventTypeNodeResult,
		ExecutionID: env.executionID,
		NodeID:      "node-1",
		NodeType:    "agent",
		Status:      "completed",
		Timestamp:   time.Now().Format(time.RFC3339Nano),
	})
	require.NoError(t, err)

	rows, err := env.dbClient.Events.GetCatchupEvents(ctx, env.channel, 0, 100)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, events.EventTypeExecutionStatus, rows[0].Payload["type"])
	assert.Equal(t, env.executionID, rows[0].Payload["execution_id"])

	assert.Equal(t, events.EventTypeNodeResult, rows[1].Payload["type"])
	assert.Equal(t, "node-1", rows[1].Payload["node_id"])

	assert.Greater(t, rows[1].ID, rows[0].ID)
}

func TestIntegration_TransientEventsNotPersisted(t *testing.T) {
	env := setupStreamingTest(t)
	ctx := context.Background()

	err := env.publisher.PublishExecutionProgress(ctx, env.executionID, events.ExecutionProgressPayload{
		Type:           events.EventTypeExecutionProgress,
		ExecutionID:    env.executionID,
		NodesCompleted: 1,
		NodesTotal:     3,
		Timestamp:      time.Now().Format(time.RFC3339Nano),
	})
	require.NoError(t, err)

	rows, err := env.dbClient.Events.GetCatchupEvents(ctx, env.channel, 0, 100)
	require.NoError(t, err)
	assert.Empty(t, rows, "transient events should not be persisted in DB")
}

func TestIntegration_EndToEnd_PublishToWebSocket(t *testing.T) {
	env := setupStreamingTest(t)
	ctx := context.Background()

	conn := env.subscribeAndWait(t)

	err := env.publisher.PublishExecutionStatus(ctx, env.executionID, events.ExecutionStatusPayload{
		Type:        events.EventTypeExecutionStatus,
		ExecutionID: env.executionID,
		WorkflowID:  "wf-1",
		Status:      "running",
		Timestamp:   time.Now().Format(time.RFC3339Nano),
	})
	require.NoError(t, err)

	msg := readJSONTimeout(t, conn, 5*time.Second)
	assert.Equal(t, events.EventTypeExecutionStatus, msg["type"])
	assert.Equal(t, env.executionID, msg["execution_id"])
	assert.Equal(t, "running", msg["status"])
	assert.NotNil(t, msg["db_event_id"])
}

func TestIntegration_TransientEventDelivery(t *testing.T) {
	env := setupStreamingTest(t)
	ctx := context.Background()

	conn := env.subscribeAndWait(t)

	err := env.publisher.PublishExecutionProgress(ctx, env.executionID, events.ExecutionProgressPayload{
		Type:           events.EventTypeExecutionProgress,
		ExecutionID:    env.executionID,
		NodesCompleted: 2,
		NodesTotal:     4,
		Timestamp:      time.Now().Format(time.RFC3339Nano),
	})
	require.NoError(t, err)

	msg := readJSONTimeout(t, conn, 5*time.Second)
	assert.Equal(t, events.EventTypeExecutionProgress, msg["type"])
	assert.EqualValues(t, 2, msg["nodes_completed"])

	rows, err := env.dbClient.Events.GetCatchupEvents(ctx, env.channel, 0, 100)
	require.NoError(t, err)
	assert.Empty(t, rows, "transient events should not be persisted")
}

func TestIntegration_CatchupFromRealDB(t *testing.T) {
	env := setupStreamingTest(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := env.publisher.PublishNodeResult(ctx, env.executionID, events.NodeResultPayload{
			Type:        events.EventTypeNodeResult,
			ExecutionID: env.executionID,
			NodeID:      uuid.New().String(),
			NodeType:    "agent",
			Status:      "completed",
			Timestamp:   time.Now().Format(time.RFC3339Nano),
		})
		require.NoError(t, err)
	}

	all, err := env.dbClient.Events.GetCatchupEvents(ctx, env.channel, 0, 100)
	require.NoError(t, err)
	require.Len(t, all, 3)

	firstEventID := all[0].ID

	conn := env.connectWS(t)
	msg := readJSONTimeout(t, conn, 5*time.Second)
	require.Equal(t, "connection.established", msg["type"])

	catchupMsg, _ := json.Marshal(events.ClientMessage{
		Action:      "catchup",
		Channel:     env.channel,
		LastEventID: &firstEventID,
	})
	require.NoError(t, conn.SetWriteDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, catchupMsg))

	// Only the 2 events after firstEventID should arrive.
	msg1 := readJSONTimeout(t, conn, 5*time.Second)
	msg2 := readJSONTimeout(t, conn, 5*time.Second)
	assert.Equal(t, events.EventTypeNodeResult, msg1["type"])
	assert.Equal(t, events.EventTypeNodeResult, msg2["type"])
}
