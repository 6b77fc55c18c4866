package webapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var errWebhookOwnerNotFound = errors.New("no connected account")

func TestWebhookRejectsWrongSecret(t *testing.T) {
	ts := newTestServer(t)
	body, _ := json.Marshal(map[string]string{"platform_user_id": "gmail-user-1", "thread_id": "t1"})
	req := httptest.NewRequest(http.MethodPost, "/webhooks/gmail", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer wrong-secret")
	rec := httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhookRejectsUnconfiguredPlatform(t *testing.T) {
	ts := newTestServer(t)
	body, _ := json.Marshal(map[string]string{"user_id": ts.userID})
	req := httptest.NewRequest(http.MethodPost, "/webhooks/slack", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer whsecret")
	rec := httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestWebhookIngestsWithDirectUserID(t *testing.T) {
	ts := newTestServer(t)
	body, _ := json.Marshal(map[string]string{"user_id": ts.userID, "thread_id": "t1", "message_id": "m1"})
	req := httptest.NewRequest(http.MethodPost, "/webhooks/gmail", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer whsecret")
	rec := httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Eventually(t, func() bool { return ts.syncEng.IngestCalls() == 1 }, time.Second, 5*time.Millisecond)
}

func TestWebhookResolvesOwnerByPlatformUserID(t *testing.T) {
	ts := newTestServer(t)
	body, _ := json.Marshal(map[string]string{"platform_user_id": "gmail-user-1", "thread_id": "t1"})
	req := httptest.NewRequest(http.MethodPost, "/webhooks/gmail", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer whsecret")
	rec := httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Eventually(t, func() bool { return ts.syncEng.IngestCalls() == 1 }, time.Second, 5*time.Millisecond)
}

func TestWebhookAcceptsEvenWhenOwnerUnresolvable(t *testing.T) {
	ts := newTestServer(t)
	ts.syncEng.ownerErr = errWebhookOwnerNotFound

	body, _ := json.Marshal(map[string]string{"platform_user_id": "no-such-user", "thread_id": "t1"})
	req := httptest.NewRequest(http.MethodPost, "/webhooks/gmail", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer whsecret")
	rec := httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 0, ts.syncEng.IngestCalls())
}

func TestWebhookRejectsEmptyBody(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/gmail", bytes.NewReader(nil))
	req.Header.Set("Authorization", "Bearer whsecret")
	rec := httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
