package webapi

import "net/http"

// handleWSFeed serves GET /ws/feed, upgrading the connection to a
// WebSocket once the caller has presented a valid access token. Browsers
// cannot set an Authorization header on the upgrade request, so the
// token is accepted via the query string as well.
func (s *Server) handleWSFeed(w http.ResponseWriter, r *http.Request) {
	claims, err := s.authManager.FromRequest(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid or missing token")
		return
	}
	if claims.Type == "refresh" {
		writeError(w, http.StatusUnauthorized, "refresh token cannot be used for the feed socket")
		return
	}

	if err := s.hub.Upgrade(w, r, claims.Subject); err != nil {
		writeError(w, http.StatusBadRequest, "websocket upgrade failed")
		return
	}
}
