package webapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/inboxd/inboxd/api"
	"github.com/inboxd/inboxd/internal/adapter"
	"github.com/inboxd/inboxd/internal/apperr"
	"github.com/inboxd/inboxd/internal/auth"
	"github.com/inboxd/inboxd/internal/cache"
	"github.com/inboxd/inboxd/internal/model"
	"github.com/inboxd/inboxd/internal/store"
)

// errNotFound is the sentinel store.UpdateMessageState returns when the
// (id, userID) pair matches no row.
var errNotFound = sql.ErrNoRows

func strPtr(s string) *string { return &s }

// handleOpenAPISpec serves the embedded OpenAPI document describing this
// server's routes.
func (s *Server) handleOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.Write(api.OpenAPISpec)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := APIHealthResponse{Status: "ok", Store: "ok", Cache: "ok"}

	if err := s.store.Conn().PingContext(r.Context()); err != nil {
		resp.Store = "unreachable"
		resp.Status = "degraded"
	}
	if err := s.cache.Ping(r.Context()); err != nil {
		resp.Cache = "unreachable"
		resp.Status = "degraded"
	}
	if s.vectorstore != nil {
		resp.VectorStore = "configured"
	} else {
		resp.VectorStore = "disabled"
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleGetFeed serves GET /api/v1/feed?limit&offset&platform. The feed can
// be narrowed by platform only; a priority query parameter is not read.
func (s *Server) handleGetFeed(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	limit, offset, err := parseLimitOffset(r, 50)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var filter store.FeedFilter
	if v := r.URL.Query().Get("platform"); v != "" {
		p := model.Platform(v)
		filter.Platform = &p
	}

	key := s.cache.FeedKey(userID)
	var cached APIFeedResponse
	if hit, _ := s.cache.GetJSON(r.Context(), key, &cached); hit && filter.Platform == nil {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	messages, err := s.store.FetchFeed(userID, filter, offset, limit)
	if err != nil {
		writeAppError(w, apperr.Internal("fetch feed", err))
		return
	}

	resp := APIFeedResponse{
		Messages: toAPIMessages(messages),
		Total:    len(messages),
		HasMore:  len(messages) == limit,
	}

	if filter.Platform == nil {
		s.cache.SetJSON(r.Context(), key, resp, cache.FeedTTL)
	}

	if resp.Messages == nil {
		resp.Messages = []APIMessage{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGetThread serves GET /api/v1/thread/{platform}/{thread_id}. A
// thread of more than five messages gets a lazily generated summary,
// never part of the per-message enrichment pipeline.
func (s *Server) handleGetThread(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	platform := model.Platform(r.PathValue("platform"))
	threadID := r.PathValue("thread_id")

	messages, err := s.store.FetchThread(userID, platform, threadID)
	if err != nil {
		writeAppError(w, apperr.Internal("fetch thread", err))
		return
	}

	resp := APIThreadResponse{
		Messages:     toAPIMessages(messages),
		MessageCount: len(messages),
	}
	if resp.Messages == nil {
		resp.Messages = []APIMessage{}
	}

	if len(messages) > 5 && s.summarizer != nil {
		bodies := make([]string, len(messages))
		for i, m := range messages {
			bodies[i] = m.ContentText
		}
		resp.Summary = s.summarizer.Summarize(r.Context(), bodies)
	}

	writeJSON(w, http.StatusOK, resp)
}

// handlePatchMessage serves PATCH /api/v1/message/{id}.
func (s *Server) handlePatchMessage(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	id := r.PathValue("id")

	var req APIMessagePatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	patch := store.MessageStatePatch{
		IsRead:       req.IsRead,
		IsDone:       req.IsDone,
		SnoozedUntil: req.SnoozedUntil,
	}

	if err := s.store.UpdateMessageState(id, userID, patch); err != nil {
		if errors.Is(err, errNotFound) {
			writeError(w, http.StatusNotFound, "message not found")
			return
		}
		writeAppError(w, apperr.Internal("update message state", err))
		return
	}

	s.cache.Invalidate(r.Context(), s.cache.FeedKey(userID))
	writeJSON(w, http.StatusOK, APISuccessResponse{Success: true})
}

// handlePostDraft serves POST /api/v1/draft/{id}, rate-limited 10/min
// since each call proxies to the Anthropic API.
func (s *Server) handlePostDraft(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	id := r.PathValue("id")

	allowed, err := s.rateLimiter.Allow(r.Context(), userID, "draft", cache.AIActionLimit)
	if err != nil {
		writeAppError(w, apperr.Internal("rate limit check", err))
		return
	}
	if !allowed {
		writeError(w, http.StatusTooManyRequests, "draft generation rate limit exceeded")
		return
	}

	msg, err := s.store.GetMessage(id, userID)
	if err != nil {
		writeAppError(w, apperr.Internal("get message", err))
		return
	}
	if msg == nil {
		writeError(w, http.StatusNotFound, "message not found")
		return
	}

	thread, err := s.store.FetchThread(userID, msg.Platform, msg.ThreadID)
	if err != nil {
		writeAppError(w, apperr.Internal("fetch thread", err))
		return
	}
	bodies := recentThreadBodies(thread, msg.ID, 5)

	draft := s.pipeline.GenerateDraft(r.Context(), *msg, bodies)

	draftPtr := strPtr(draft)
	if err := s.store.UpdateMessageState(id, userID, store.MessageStatePatch{DraftReply: &draftPtr}); err != nil {
		writeAppError(w, apperr.Internal("persist draft", err))
		return
	}

	writeJSON(w, http.StatusOK, APIDraftResponse{Draft: draft, ToneUsed: string(msg.Platform)})
}

// handlePutDraft serves PUT /api/v1/draft/{id}, persisting a user edit.
func (s *Server) handlePutDraft(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	id := r.PathValue("id")

	var req APIDraftUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	editedPtr := strPtr(req.EditedDraft)
	if err := s.store.UpdateMessageState(id, userID, store.MessageStatePatch{DraftReply: &editedPtr}); err != nil {
		if errors.Is(err, errNotFound) {
			writeError(w, http.StatusNotFound, "message not found")
			return
		}
		writeAppError(w, apperr.Internal("update draft", err))
		return
	}

	writeJSON(w, http.StatusOK, APISuccessResponse{Success: true})
}

// handlePostSend serves POST /api/v1/send/{id}.
func (s *Server) handlePostSend(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	id := r.PathValue("id")

	var req APISendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	msg, err := s.store.GetMessage(id, userID)
	if err != nil {
		writeAppError(w, apperr.Internal("get message", err))
		return
	}
	if msg == nil {
		writeError(w, http.StatusNotFound, "message not found")
		return
	}

	cred, err := s.store.GetCredential(userID, msg.Platform)
	if err != nil || cred == nil {
		writeError(w, http.StatusConflict, "platform not connected")
		return
	}

	a, err := s.registry.Resolve(msg.Platform)
	if err != nil {
		writeAppError(w, apperr.PermanentRemote("resolve adapter", err))
		return
	}

	creds, err := s.decryptCredential(cred)
	if err != nil {
		writeAppError(w, apperr.AuthFailure("decrypt credential", err))
		return
	}

	result := a.SendMessage(r.Context(), msg.ThreadID, req.Text, *creds, adapter.SendOpts{ReplyInThread: true})
	if !result.OK {
		errMsg := "send failed"
		if result.Err != nil {
			errMsg = result.Err.Error()
		}
		writeJSON(w, http.StatusOK, APISendResponse{Success: false, Error: errMsg})
		return
	}

	s.cache.Invalidate(r.Context(), s.cache.FeedKey(userID))
	writeJSON(w, http.StatusOK, APISendResponse{Success: true, PlatformMessageID: result.PlatformMessageID})
}

// handleReclassify serves POST /api/v1/message/{id}/reclassify.
func (s *Server) handleReclassify(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	id := r.PathValue("id")

	var req APIReclassifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	label := model.PriorityLabel(req.CorrectLabel)
	score, ok := model.ReclassifyScores[label]
	if !ok {
		writeError(w, http.StatusBadRequest, "correct_label must be one of urgent, action, fyi, social, spam")
		return
	}

	if err := s.store.UpdateMessageState(id, userID, store.MessageStatePatch{
		PriorityLabel: &label,
		PriorityScore: &score,
	}); err != nil {
		if errors.Is(err, errNotFound) {
			writeError(w, http.StatusNotFound, "message not found")
			return
		}
		writeAppError(w, apperr.Internal("reclassify message", err))
		return
	}

	s.cache.Invalidate(r.Context(), s.cache.FeedKey(userID))
	writeJSON(w, http.StatusOK, APISuccessResponse{Success: true})
}

// handleListPlatforms serves GET /api/v1/platforms.
func (s *Server) handleListPlatforms(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	creds, err := s.store.ListCredentials()
	if err != nil {
		writeAppError(w, apperr.Internal("list credentials", err))
		return
	}

	connected := map[model.Platform]model.Credential{}
	for _, c := range creds {
		if c.UserID == userID {
			connected[c.Platform] = c
		}
	}

	var out []APIPlatformStatus
	for _, platform := range s.registry.Platforms() {
		status := APIPlatformStatus{Platform: string(platform)}
		if c, ok := connected[platform]; ok {
			status.Connected = true
			status.PlatformUserID = c.PlatformUserID
			if state, err := s.store.GetSyncState(userID, platform); err == nil && state != nil {
				status.LastSync = state.LastSyncAt
			}
		}
		out = append(out, status)
	}

	writeJSON(w, http.StatusOK, out)
}

// handleConnectPlatform serves POST /api/v1/platforms/{platform}/connect.
func (s *Server) handleConnectPlatform(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	platform := model.Platform(r.PathValue("platform"))

	var req APIConnectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.AccessToken == "" {
		writeError(w, http.StatusBadRequest, "access_token is required")
		return
	}

	accessCipher, err := s.cipher.Encrypt(req.AccessToken)
	if err != nil {
		writeAppError(w, apperr.Internal("encrypt access token", err))
		return
	}
	var refreshCipher string
	if req.RefreshToken != "" {
		refreshCipher, err = s.cipher.Encrypt(req.RefreshToken)
		if err != nil {
			writeAppError(w, apperr.Internal("encrypt refresh token", err))
			return
		}
	}

	cred := &model.Credential{
		UserID:             userID,
		Platform:           platform,
		AccessTokenCipher:  accessCipher,
		RefreshTokenCipher: refreshCipher,
		PlatformUserID:     req.PlatformUserID,
	}
	if err := s.store.UpsertCredential(cred); err != nil {
		writeAppError(w, apperr.Internal("store credential", err))
		return
	}

	go func() {
		if err := s.syncEngine.TriggerSync(context.Background(), userID, platform); err != nil {
			slog.Warn("webapi: initial sync after connect failed", "user_id", userID, "platform", platform, "error", err)
		}
	}()

	writeJSON(w, http.StatusCreated, APISuccessResponse{Success: true})
}

// handleDisconnectPlatform serves DELETE /api/v1/platforms/{platform}.
func (s *Server) handleDisconnectPlatform(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	platform := model.Platform(r.PathValue("platform"))

	if err := s.store.DeleteCredential(userID, platform); err != nil {
		writeAppError(w, apperr.Internal("delete credential", err))
		return
	}

	writeJSON(w, http.StatusOK, APISuccessResponse{Success: true})
}

// handleGetConfig serves GET /api/v1/config.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	s.runtimeConfigMu.Lock()
	cfg := s.runtimeConfig
	s.runtimeConfigMu.Unlock()
	writeJSON(w, http.StatusOK, cfg)
}

// handleUpdateConfig serves PUT /api/v1/config with a partial update.
func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req APIUpdateConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	s.runtimeConfigMu.Lock()
	if req.SyncIntervalSeconds != nil {
		s.runtimeConfig.SyncIntervalSeconds = *req.SyncIntervalSeconds
	}
	if req.SnoozeReapIntervalSeconds != nil {
		s.runtimeConfig.SnoozeReapIntervalSeconds = *req.SnoozeReapIntervalSeconds
	}
	if req.ScoreDecayIntervalSeconds != nil {
		s.runtimeConfig.ScoreDecayIntervalSeconds = *req.ScoreDecayIntervalSeconds
	}
	if req.PlatformRateLimits != nil {
		s.runtimeConfig.PlatformRateLimits = req.PlatformRateLimits
	}
	cfg := s.runtimeConfig
	s.runtimeConfigMu.Unlock()

	writeJSON(w, http.StatusOK, cfg)
}

// recentThreadBodies returns up to n content bodies preceding (and
// excluding) excludeID, oldest-relative order preserved.
func recentThreadBodies(thread []model.Message, excludeID string, n int) []string {
	var bodies []string
	for _, m := range thread {
		if m.ID == excludeID {
			continue
		}
		bodies = append(bodies, m.ContentText)
	}
	if len(bodies) > n {
		bodies = bodies[len(bodies)-n:]
	}
	return bodies
}
