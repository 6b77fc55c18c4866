package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/inboxd/inboxd/internal/model"
)

const discordAPIBase = "https://discord.com/api/v10"

// DiscordConfig carries the OAuth client credentials used for token
// rotation. The bot token used for REST calls is not part of it; each call
// reads it from creds.Extra["bot_token"].
type DiscordConfig struct {
	ClientID     string
	ClientSecret string
}

// DiscordAdapter integrates with Discord's REST API for DM history and
// sends; realtime ingestion runs through DiscordGateway, a separate
// long-lived task per bot connection (see discord_gateway.go), feeding the same
// pipeline path as a webhook would.
type DiscordAdapter struct {
	cfg    DiscordConfig
	client *http.Client
}

func NewDiscordAdapter(cfg DiscordConfig) *DiscordAdapter {
	return &DiscordAdapter{cfg: cfg, client: &http.Client{Timeout: 30 * time.Second}}
}

func (d *DiscordAdapter) Name() model.Platform { return model.PlatformDiscord }

type discordChannel struct {
	ID   string `json:"id"`
	Type int    `json:"type"`
}

type discordAuthor struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name"`
}

type discordMessage struct {
	ID        string         `json:"id"`
	ChannelID string         `json:"channel_id"`
	Author    discordAuthor  `json:"author"`
	Content   string         `json:"content"`
	Timestamp string         `json:"timestamp"`
}

// FetchNewMessages enumerates the bot's DM channels, then fetches recent
// messages per channel, filtering by the ISO8601 timestamp field.
func (d *DiscordAdapter) FetchNewMessages(ctx context.Context, userID string, since time.Time, creds Credentials) ([]RawMessage, error) {
	botToken := creds.Extra["bot_token"]

	var channels []discordChannel
	if err := d.get(ctx, discordAPIBase+"/users/@me/channels", botToken, &channels); err != nil {
		return nil, fmt.Errorf("discord: list DM channels: %w", err)
	}

	var raws []RawMessage
	for _, channel := range channels {
		var messages []discordMessage
		msgURL := fmt.Sprintf("%s/channels/%s/messages?limit=50", discordAPIBase, channel.ID)
		if err := d.get(ctx, msgURL, botToken, &messages); err != nil {
			continue // per-channel failure tolerated
		}
		for _, msg := range messages {
			ts, err := time.Parse(time.RFC3339, msg.Timestamp)
			if err != nil || ts.Before(since) {
				continue
			}
			payload := map[string]any{
				"id":         msg.ID,
				"channel_id": channel.ID,
				"author": map[string]any{
					"id":          msg.Author.ID,
					"username":    msg.Author.Username,
					"global_name": msg.Author.GlobalName,
				},
				"content":   msg.Content,
				"timestamp": msg.Timestamp,
			}
			raws = append(raws, RawMessage{
				Platform:  model.PlatformDiscord,
				Payload:   payload,
				ThreadID:  channel.ID,
				MessageID: msg.ID,
			})
		}
	}
	return raws, nil
}

// Normalize prefers the author's global display name, falling back to
// their username when unset.
func (d *DiscordAdapter) Normalize(raw RawMessage, userID string) (model.Message, error) {
	body, err := json.Marshal(raw.Payload)
	if err != nil {
		return model.Message{}, fmt.Errorf("discord: normalize: re-marshal: %w", err)
	}
	var msg discordMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return model.Message{}, fmt.Errorf("discord: normalize: decode: %w", err)
	}

	senderName := msg.Author.GlobalName
	if senderName == "" {
		senderName = msg.Author.Username
	}
	if senderName == "" {
		senderName = "Unknown"
	}

	timestamp, err := time.Parse(time.RFC3339, msg.Timestamp)
	if err != nil {
		timestamp = time.Now()
	}

	return model.Message{
		ID:                uuid.NewString(),
		UserID:            userID,
		Platform:          model.PlatformDiscord,
		PlatformMessageID: msg.ID,
		ThreadID:          msg.ChannelID,
		Sender: model.Sender{
			ID:       msg.Author.ID,
			Name:     senderName,
			Username: msg.Author.Username,
		},
		ContentText: msg.Content,
		Timestamp:   timestamp,
	}, nil
}

// SendMessage posts to a channel. threadID is the Discord channel id.
func (d *DiscordAdapter) SendMessage(ctx context.Context, threadID, text string, creds Credentials, opts SendOpts) SendResult {
	botToken := creds.Extra["bot_token"]
	channelID := threadID
	if override := creds.Extra["channel_id"]; override != "" {
		channelID = override
	}

	body := map[string]string{"content": text}
	b, err := json.Marshal(body)
	if err != nil {
		return SendResult{OK: false, Err: fmt.Errorf("discord: marshal send body: %w", err)}
	}
	sendURL := fmt.Sprintf("%s/channels/%s/messages", discordAPIBase, channelID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sendURL, bytes.NewReader(b))
	if err != nil {
		return SendResult{OK: false, Err: fmt.Errorf("discord: build send request: %w", err)}
	}
	req.Header.Set("Authorization", "Bot "+botToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return SendResult{OK: false, Err: fmt.Errorf("discord: send: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errBody struct {
			Message string `json:"message"`
		}
		json.NewDecoder(resp.Body).Decode(&errBody)
		return SendResult{OK: false, Err: fmt.Errorf("discord: send: %s", errBody.Message)}
	}
	var data struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return SendResult{OK: false, Err: fmt.Errorf("discord: decode send response: %w", err)}
	}
	return SendResult{OK: true, PlatformMessageID: data.ID}
}

// SetupWebhook returns a synthetic identifier: Discord ingests realtime
// events through the Gateway WebSocket (see DiscordGateway), not a
// per-user HTTP callback.
func (d *DiscordAdapter) SetupWebhook(ctx context.Context, userID, webhookURL string, creds Credentials) (string, error) {
	return fmt.Sprintf("discord-gateway-%s", userID), nil
}

// RefreshCredentials rotates a Discord OAuth token.
func (d *DiscordAdapter) RefreshCredentials(ctx context.Context, creds Credentials) (*Credentials, error) {
	form := url.Values{}
	form.Set("client_id", d.cfg.ClientID)
	form.Set("client_secret", d.cfg.ClientSecret)
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", creds.RefreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, discordAPIBase+"/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("discord: refresh: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("discord: refresh: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}

	var data struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("discord: refresh: decode: %w", err)
	}
	refreshToken := data.RefreshToken
	if refreshToken == "" {
		refreshToken = creds.RefreshToken
	}
	return &Credentials{AccessToken: data.AccessToken, RefreshToken: refreshToken}, nil
}

func (d *DiscordAdapter) get(ctx context.Context, reqURL, botToken string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bot "+botToken)
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("discord api returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
