package adapter

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGmailNormalizeExtractsPlainTextPart(t *testing.T) {
	g := NewGmailAdapter(GmailConfig{})

	encoded := base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString([]byte("hello from a thread"))
	payload := map[string]any{
		"id":       "msg-1",
		"threadId": "thread-1",
		"snippet":  "fallback snippet",
		"payload": map[string]any{
			"mimeType": "multipart/alternative",
			"headers": []map[string]any{
				{"name": "From", "value": "Jane Doe <jane@example.com>"},
				{"name": "Date", "value": "Thu, 1 Jan 2026 10:00:00 +0000"},
			},
			"parts": []map[string]any{
				{"mimeType": "text/html", "body": map[string]any{"data": "ignored"}},
				{"mimeType": "text/plain", "body": map[string]any{"data": encoded}},
			},
		},
	}

	var generic map[string]any
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, &generic))

	raw := RawMessage{Payload: generic}
	msg, err := g.Normalize(raw, "user-1")
	require.NoError(t, err)

	require.Equal(t, "hello from a thread", msg.ContentText)
	require.Equal(t, "jane@example.com", msg.Sender.Email)
	require.Equal(t, "Jane Doe", msg.Sender.Name)
	require.Equal(t, "msg-1", msg.PlatformMessageID)
	require.Equal(t, "thread-1", msg.ThreadID)
	require.False(t, msg.Timestamp.IsZero())
}

func TestGmailNormalizeFallsBackToSnippet(t *testing.T) {
	g := NewGmailAdapter(GmailConfig{})

	payload := map[string]any{
		"id":       "msg-2",
		"threadId": "thread-2",
		"snippet":  "fallback snippet",
		"payload": map[string]any{
			"mimeType": "text/html",
			"headers":  []map[string]any{{"name": "From", "value": "noreply@service.com"}},
		},
	}

	var generic map[string]any
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, &generic))

	msg, err := g.Normalize(RawMessage{Payload: generic}, "user-1")
	require.NoError(t, err)
	require.Equal(t, "fallback snippet", msg.ContentText)
	require.Equal(t, "noreply@service.com", msg.Sender.Email)
}

func TestParseFromNameAndEmail(t *testing.T) {
	require.Equal(t, "Jane Doe", parseFromName(`"Jane Doe" <jane@example.com>`))
	require.Equal(t, "jane@example.com", parseFromEmail(`"Jane Doe" <jane@example.com>`))

	require.Equal(t, "jane", parseFromName("jane@example.com"))
	require.Equal(t, "jane@example.com", parseFromEmail("jane@example.com"))
}
