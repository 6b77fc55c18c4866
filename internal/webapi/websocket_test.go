package webapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestWSFeedUpgradesWithQueryToken(t *testing.T) {
	ts := newTestServer(t)
	server := httptest.NewServer(ts.mux)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/feed?token=" + ts.token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return ts.Server.hub.ConnectionCount(ts.userID) == 1 }, time.Second, 10*time.Millisecond)
}

func TestWSFeedRejectsMissingToken(t *testing.T) {
	ts := newTestServer(t)
	server := httptest.NewServer(ts.mux)
	defer server.Close()

	resp, err := http.Get(server.URL + "/ws/feed")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
