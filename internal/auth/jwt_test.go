package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIssueAndVerifyAccessToken(t *testing.T) {
	m := NewManager("test-secret", time.Hour)

	token, err := m.IssueAccessToken("user-1", "user@example.com")
	require.NoError(t, err)

	claims, err := m.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)
	require.Equal(t, "user@example.com", claims.Email)
	require.Empty(t, claims.Type)
}

func TestRefreshTokenRejectedByMiddleware(t *testing.T) {
	m := NewManager("test-secret", time.Hour)
	refresh, err := m.IssueRefreshToken("user-1", "user@example.com")
	require.NoError(t, err)

	handlerCalled := false
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/feed", nil)
	req.Header.Set("Authorization", "Bearer "+refresh)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.False(t, handlerCalled)
}

func TestMiddlewareAcceptsQueryToken(t *testing.T) {
	m := NewManager("test-secret", time.Hour)
	token, err := m.IssueAccessToken("user-1", "user@example.com")
	require.NoError(t, err)

	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "user-1", UserID(r.Context()))
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestVerifyRejectsBadSignature(t *testing.T) {
	a := NewManager("secret-a", time.Hour)
	b := NewManager("secret-b", time.Hour)

	token, err := a.IssueAccessToken("user-1", "user@example.com")
	require.NoError(t, err)

	_, err = b.Verify(token)
	require.Error(t, err)
}
