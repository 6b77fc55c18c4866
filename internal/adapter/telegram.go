package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/inboxd/inboxd/internal/model"
)

// TelegramAdapter integrates via the Telegram Bot API. FetchNewMessages
// uses getUpdates long-polling as the dev/fallback path; production
// deployments drive the same Normalize/pipeline path through the
// /webhooks/telegram/{userID} receiver registered by SetupWebhook.
type TelegramAdapter struct {
	client *http.Client
}

func NewTelegramAdapter() *TelegramAdapter {
	return &TelegramAdapter{client: &http.Client{Timeout: 35 * time.Second}}
}

func (t *TelegramAdapter) Name() model.Platform { return model.PlatformTelegram }

func (t *TelegramAdapter) apiURL(botToken, method string) string {
	return fmt.Sprintf("https://api.telegram.org/bot%s/%s", botToken, method)
}

type telegramUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
}

type telegramChat struct {
	ID int64 `json:"id"`
}

type telegramMessage struct {
	MessageID int64        `json:"message_id"`
	From      telegramUser `json:"from"`
	Chat      telegramChat `json:"chat"`
	Text      string       `json:"text"`
	Date      int64        `json:"date"`
}

type telegramUpdate struct {
	UpdateID      int64            `json:"update_id"`
	Message       *telegramMessage `json:"message"`
	EditedMessage *telegramMessage `json:"edited_message"`
}

type telegramGetUpdatesResp struct {
	OK          bool             `json:"ok"`
	Description string           `json:"description"`
	Result      []telegramUpdate `json:"result"`
}

// FetchNewMessages long-polls getUpdates, filtering by since. The bot
// token and last offset are threaded through creds.Extra since Telegram
// has no per-message-window fetch parameter other than offset.
func (t *TelegramAdapter) FetchNewMessages(ctx context.Context, userID string, since time.Time, creds Credentials) ([]RawMessage, error) {
	botToken := creds.Extra["bot_token"]
	offset, _ := strconv.ParseInt(creds.Extra["last_update_id"], 10, 64)
	if offset > 0 {
		offset++
	}

	reqURL := fmt.Sprintf("%s?offset=%d&timeout=30&allowed_updates=%s",
		t.apiURL(botToken, "getUpdates"), offset, url.QueryEscape(`["message","edited_message"]`))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("telegram: build getUpdates request: %w", err)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram: getUpdates: %w", err)
	}
	defer resp.Body.Close()

	var data telegramGetUpdatesResp
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("telegram: decode getUpdates: %w", err)
	}
	if !data.OK {
		return nil, fmt.Errorf("telegram: getUpdates: %s", data.Description)
	}

	raws := make([]RawMessage, 0, len(data.Result))
	for _, update := range data.Result {
		msg := update.Message
		if msg == nil {
			msg = update.EditedMessage
		}
		if msg == nil || msg.Date < since.Unix() {
			continue
		}
		payload := telegramMessageToPayload(msg)
		payload["_update_id"] = update.UpdateID
		raws = append(raws, RawMessage{
			Platform:  model.PlatformTelegram,
			Payload:   payload,
			ThreadID:  strconv.FormatInt(msg.Chat.ID, 10),
			MessageID: strconv.FormatInt(msg.MessageID, 10),
		})
	}
	return raws, nil
}

// Normalize joins first/last name (or falls back to username) for the
// sender's display name, per Telegram's lack of a single "display name"
// field on the update.
func (t *TelegramAdapter) Normalize(raw RawMessage, userID string) (model.Message, error) {
	body, err := json.Marshal(raw.Payload)
	if err != nil {
		return model.Message{}, fmt.Errorf("telegram: normalize: re-marshal: %w", err)
	}
	var msg telegramMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return model.Message{}, fmt.Errorf("telegram: normalize: decode: %w", err)
	}

	senderName := strings.TrimSpace(strings.Join([]string{msg.From.FirstName, msg.From.LastName}, " "))
	if senderName == "" {
		senderName = msg.From.Username
	}
	if senderName == "" {
		senderName = "Unknown"
	}

	return model.Message{
		ID:                uuid.NewString(),
		UserID:            userID,
		Platform:          model.PlatformTelegram,
		PlatformMessageID: strconv.FormatInt(msg.MessageID, 10),
		ThreadID:          strconv.FormatInt(msg.Chat.ID, 10),
		Sender: model.Sender{
			ID:       strconv.FormatInt(msg.From.ID, 10),
			Name:     senderName,
			Username: msg.From.Username,
		},
		ContentText: msg.Text,
		Timestamp:   time.Unix(msg.Date, 0),
	}, nil
}

// SendMessage posts to sendMessage, optionally threading via
// reply_to_message_id when opts.ReplyInThread is set.
func (t *TelegramAdapter) SendMessage(ctx context.Context, threadID, text string, creds Credentials, opts SendOpts) SendResult {
	botToken := creds.Extra["bot_token"]
	chatID := creds.Extra["chat_id"]
	if chatID == "" {
		chatID = threadID
	}

	payload := map[string]any{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
	}
	if opts.ReplyInThread {
		if replyTo := creds.Extra["reply_to_message_id"]; replyTo != "" {
			payload["reply_to_message_id"] = replyTo
		}
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return SendResult{OK: false, Err: fmt.Errorf("telegram: marshal send payload: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.apiURL(botToken, "sendMessage"), bytes.NewReader(b))
	if err != nil {
		return SendResult{OK: false, Err: fmt.Errorf("telegram: build send request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return SendResult{OK: false, Err: fmt.Errorf("telegram: send: %w", err)}
	}
	defer resp.Body.Close()

	var data struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
		Result      struct {
			MessageID int64 `json:"message_id"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return SendResult{OK: false, Err: fmt.Errorf("telegram: decode send response: %w", err)}
	}
	if !data.OK {
		return SendResult{OK: false, Err: fmt.Errorf("telegram: send: %s", data.Description)}
	}
	return SendResult{OK: true, PlatformMessageID: strconv.FormatInt(data.Result.MessageID, 10)}
}

// SetupWebhook registers webhookURL/webhooks/telegram/{userID} as the
// bot's callback URL via setWebhook.
func (t *TelegramAdapter) SetupWebhook(ctx context.Context, userID, webhookURL string, creds Credentials) (string, error) {
	botToken := creds.Extra["bot_token"]
	fullURL := fmt.Sprintf("%s/webhooks/telegram/%s", webhookURL, userID)

	body := map[string]any{
		"url":                  fullURL,
		"allowed_updates":      []string{"message", "edited_message"},
		"drop_pending_updates": true,
	}
	b, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("telegram: marshal setWebhook payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.apiURL(botToken, "setWebhook"), bytes.NewReader(b))
	if err != nil {
		return "", fmt.Errorf("telegram: build setWebhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("telegram: setWebhook: %w", err)
	}
	defer resp.Body.Close()

	var data struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", fmt.Errorf("telegram: decode setWebhook response: %w", err)
	}
	if !data.OK {
		return "", fmt.Errorf("telegram: setWebhook: %s", data.Description)
	}
	return fmt.Sprintf("telegram-webhook-%s", userID), nil
}

// RefreshCredentials is a no-op: Telegram bot tokens are long-lived and
// issued once by BotFather, never rotated via an OAuth-style refresh flow.
func (t *TelegramAdapter) RefreshCredentials(ctx context.Context, creds Credentials) (*Credentials, error) {
	return &creds, nil
}

func telegramMessageToPayload(msg *telegramMessage) map[string]any {
	return map[string]any{
		"message_id": msg.MessageID,
		"from": map[string]any{
			"id":         msg.From.ID,
			"first_name": msg.From.FirstName,
			"last_name":  msg.From.LastName,
			"username":   msg.From.Username,
		},
		"chat": map[string]any{"id": msg.Chat.ID},
		"text": msg.Text,
		"date": msg.Date,
	}
}
