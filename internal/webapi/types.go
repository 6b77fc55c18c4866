package webapi

import (
	"time"

	"github.com/inboxd/inboxd/internal/model"
)

// APIMessage is the JSON projection of model.Message served by the feed
// and thread endpoints.
type APIMessage struct {
	ID                string    `json:"id"`
	Platform          string    `json:"platform"`
	PlatformMessageID string    `json:"platform_message_id"`
	ThreadID          string    `json:"thread_id"`
	Sender            APISender `json:"sender"`
	ContentText       string    `json:"content_text"`
	Timestamp         time.Time `json:"timestamp"`
	IsRead            bool      `json:"is_read"`
	IsDone            bool      `json:"is_done"`
	SnoozedUntil      *time.Time `json:"snoozed_until,omitempty"`
	PriorityScore     float64   `json:"priority_score"`
	PriorityLabel     string    `json:"priority_label"`
	Sentiment         string    `json:"sentiment"`
	ContextNote       string    `json:"context_note,omitempty"`
	Summary           string    `json:"summary,omitempty"`
	IsComplaint       bool      `json:"is_complaint"`
	NeedsCarefulResponse bool   `json:"needs_careful_response"`
	SuggestedActions  []string  `json:"suggested_actions,omitempty"`
	TimeSensitive     bool      `json:"time_sensitive"`
	DraftReply        *string   `json:"draft_reply,omitempty"`
}

type APISender struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
}

func toAPIMessage(m model.Message) APIMessage {
	return APIMessage{
		ID:                   m.ID,
		Platform:             string(m.Platform),
		PlatformMessageID:    m.PlatformMessageID,
		ThreadID:             m.ThreadID,
		Sender:               APISender{ID: m.Sender.ID, Name: m.Sender.Name, Email: m.Sender.Email, Username: m.Sender.Username},
		ContentText:          m.ContentText,
		Timestamp:            m.Timestamp,
		IsRead:               m.IsRead,
		IsDone:               m.IsDone,
		SnoozedUntil:         m.SnoozedUntil,
		PriorityScore:        m.Enrichment.PriorityScore,
		PriorityLabel:        string(m.Enrichment.PriorityLabel),
		Sentiment:            string(m.Enrichment.Sentiment),
		ContextNote:          m.Enrichment.ContextNote,
		Summary:              m.Enrichment.Summary,
		IsComplaint:          m.Enrichment.IsComplaint,
		NeedsCarefulResponse: m.Enrichment.NeedsCarefulResponse,
		SuggestedActions:     m.Enrichment.SuggestedActions,
		TimeSensitive:        m.Enrichment.TimeSensitive,
		DraftReply:           m.DraftReply,
	}
}

func toAPIMessages(messages []model.Message) []APIMessage {
	out := make([]APIMessage, len(messages))
	for i, m := range messages {
		out[i] = toAPIMessage(m)
	}
	return out
}

// APIFeedResponse is GET /api/v1/feed's body.
type APIFeedResponse struct {
	Messages []APIMessage `json:"messages"`
	Total    int          `json:"total"`
	HasMore  bool         `json:"has_more"`
}

// APIThreadResponse is GET /api/v1/thread/{platform}/{thread_id}'s body.
type APIThreadResponse struct {
	Messages     []APIMessage `json:"messages"`
	Summary      string       `json:"summary,omitempty"`
	MessageCount int          `json:"message_count"`
}

// APIMessagePatchRequest is PATCH /api/v1/message/{id}'s body.
type APIMessagePatchRequest struct {
	IsRead       *bool      `json:"is_read,omitempty"`
	IsDone       *bool      `json:"is_done,omitempty"`
	SnoozedUntil **time.Time `json:"snoozed_until,omitempty"`
}

// APISuccessResponse is the common {success} envelope for mutation endpoints.
type APISuccessResponse struct {
	Success bool `json:"success"`
}

// APIDraftResponse is POST /api/v1/draft/{id}'s body.
type APIDraftResponse struct {
	Draft    string `json:"draft"`
	ToneUsed string `json:"tone_used"`
}

// APIDraftUpdateRequest is PUT /api/v1/draft/{id}'s body.
type APIDraftUpdateRequest struct {
	EditedDraft string `json:"edited_draft"`
}

// APISendRequest is POST /api/v1/send/{id}'s body.
type APISendRequest struct {
	Text string `json:"text"`
}

// APISendResponse is POST /api/v1/send/{id}'s body.
type APISendResponse struct {
	Success           bool   `json:"success"`
	PlatformMessageID string `json:"platform_message_id,omitempty"`
	Error             string `json:"error,omitempty"`
}

// APIReclassifyRequest is POST /api/v1/message/{id}/reclassify's body.
type APIReclassifyRequest struct {
	CorrectLabel string `json:"correct_label"`
}

// APIPlatformStatus is one entry of GET /api/v1/platforms's body.
type APIPlatformStatus struct {
	Platform       string     `json:"platform"`
	Connected      bool       `json:"connected"`
	LastSync       *time.Time `json:"last_sync,omitempty"`
	PlatformUserID string     `json:"platform_user_id,omitempty"`
}

// APIConnectRequest is POST /api/v1/platforms/{platform}/connect's body.
type APIConnectRequest struct {
	AccessToken    string `json:"access_token"`
	RefreshToken   string `json:"refresh_token,omitempty"`
	PlatformUserID string `json:"platform_user_id,omitempty"`
}

// APIHealthResponse is GET /api/v1/health's body.
type APIHealthResponse struct {
	Status      string `json:"status"`
	Store       string `json:"store"`
	Cache       string `json:"cache"`
	VectorStore string `json:"vector_store,omitempty"`
}

// APIConfig is GET/PUT /api/v1/config's body, the supplemented
// operational-tunables surface mirroring the teacher's own config endpoint.
type APIConfig struct {
	SyncIntervalSeconds       int            `json:"sync_interval_seconds"`
	SnoozeReapIntervalSeconds int            `json:"snooze_reap_interval_seconds"`
	ScoreDecayIntervalSeconds int            `json:"score_decay_interval_seconds"`
	PlatformRateLimits        map[string]int `json:"platform_rate_limits"`
}

// APIUpdateConfigRequest is PUT /api/v1/config's partial-update body.
type APIUpdateConfigRequest struct {
	SyncIntervalSeconds       *int           `json:"sync_interval_seconds,omitempty"`
	SnoozeReapIntervalSeconds *int           `json:"snooze_reap_interval_seconds,omitempty"`
	ScoreDecayIntervalSeconds *int           `json:"score_decay_interval_seconds,omitempty"`
	PlatformRateLimits        map[string]int `json:"platform_rate_limits,omitempty"`
}
