package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, server *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "?user=" + query
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestHubPushToUserDeliversOnlyToThatUser(t *testing.T) {
	hub := NewHub()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("user")
		require.NoError(t, hub.Upgrade(w, r, userID))
	}))
	defer server.Close()

	connA := dial(t, server, "user-a")
	connB := dial(t, server, "user-b")

	require.Eventually(t, func() bool { return hub.ConnectionCount("user-a") == 1 }, time.Second, 10*time.Millisecond)

	hub.PushToUser("user-a", []byte(`{"type":"new_message"}`))

	connA.SetReadDeadline(time.Now().Add(time.Second))
	_, payload, err := connA.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, `{"type":"new_message"}`, string(payload))

	connB.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err = connB.ReadMessage()
	require.Error(t, err) // user-b never received anything
}

func TestHubDisconnectRemovesClient(t *testing.T) {
	hub := NewHub()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, hub.Upgrade(w, r, "user-a"))
	}))
	defer server.Close()

	conn := dial(t, server, "user-a")
	require.Eventually(t, func() bool { return hub.ConnectionCount("user-a") == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool { return hub.ConnectionCount("user-a") == 0 }, time.Second, 10*time.Millisecond)
}

func TestHubBroadcastReachesAllUsers(t *testing.T) {
	hub := NewHub()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("user")
		require.NoError(t, hub.Upgrade(w, r, userID))
	}))
	defer server.Close()

	connA := dial(t, server, "user-a")
	connB := dial(t, server, "user-b")

	require.Eventually(t, func() bool {
		return hub.ConnectionCount("user-a") == 1 && hub.ConnectionCount("user-b") == 1
	}, time.Second, 10*time.Millisecond)

	hub.Broadcast([]byte(`{"type":"maintenance"}`))

	for _, conn := range []*websocket.Conn{connA, connB} {
		conn.SetReadDeadline(time.Now().Add(time.Second))
		_, payload, err := conn.ReadMessage()
		require.NoError(t, err)
		require.Equal(t, `{"type":"maintenance"}`, string(payload))
	}
}
