package webapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/inboxd/inboxd/internal/adapter"
	"github.com/inboxd/inboxd/internal/model"
)

// handleWebhook accepts inbound message deliveries pushed by a connected
// platform (as opposed to the polling fleet-sync path). Authentication is
// a per-platform shared secret compared in constant time, since each
// platform signs or bearer-authenticates its webhooks differently but
// inboxd only needs to know the call came from a configured source.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	platform := model.Platform(r.PathValue("platform"))

	secret, ok := s.webhookSecrets[platform]
	if !ok || secret == "" {
		writeError(w, http.StatusServiceUnavailable, "webhook not configured for this platform")
		return
	}

	authHeader := r.Header.Get("Authorization")
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if authHeader == "" || token == authHeader || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	bodyBytes, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if len(strings.TrimSpace(string(bodyBytes))) == 0 {
		writeError(w, http.StatusBadRequest, "request body must not be empty")
		return
	}

	var payload map[string]any
	if err := json.Unmarshal(bodyBytes, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "request body must be JSON")
		return
	}

	platformUserID, _ := payload["platform_user_id"].(string)
	userID, _ := payload["user_id"].(string)
	if userID == "" && platformUserID == "" {
		writeError(w, http.StatusBadRequest, "payload must carry user_id or platform_user_id")
		return
	}

	threadID, _ := payload["thread_id"].(string)
	messageID, _ := payload["message_id"].(string)

	raw := adapter.RawMessage{
		Platform:  platform,
		Payload:   payload,
		ThreadID:  threadID,
		MessageID: messageID,
	}

	// Webhook processing runs in a background goroutine: the platform gets
	// a 2xx the moment the payload is accepted, so a slow pipeline or an
	// unresolvable owner never triggers a retry storm. Unresolvable or
	// failed deliveries are logged and dropped rather than surfaced here.
	go s.ingestWebhookAsync(platform, userID, platformUserID, raw)

	writeJSON(w, http.StatusAccepted, APISuccessResponse{Success: true})
}

func (s *Server) ingestWebhookAsync(platform model.Platform, userID, platformUserID string, raw adapter.RawMessage) {
	ctx := context.Background()

	if userID == "" {
		resolved, err := s.syncEngine.ResolveWebhookOwner(platform, platformUserID)
		if err != nil {
			slog.Warn("webhook: dropping event, no connected account", "platform", platform, "platform_user_id", platformUserID, "err", err)
			return
		}
		userID = resolved
	}

	if err := s.syncEngine.IngestOne(ctx, userID, platform, raw); err != nil {
		slog.Warn("webhook: dropping event, ingest failed", "platform", platform, "user_id", userID, "err", err)
	}
}
