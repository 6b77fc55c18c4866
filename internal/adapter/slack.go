package adapter

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	goslack "github.com/slack-go/slack"

	"github.com/inboxd/inboxd/internal/model"
)

// SlackConfig carries the OAuth client credentials used for token rotation.
type SlackConfig struct {
	ClientID     string
	ClientSecret string
}

// SlackAdapter integrates with Slack's Web API via the slack-go SDK: direct
// and multi-person DM messages via conversations.list/conversations.history,
// chat.postMessage for replies. Webhooks are app-level (Events API), so
// SetupWebhook returns a synthetic per-user identifier rather than
// registering anything.
type SlackAdapter struct {
	cfg        SlackConfig
	httpClient *http.Client
}

func NewSlackAdapter(cfg SlackConfig) *SlackAdapter {
	return &SlackAdapter{cfg: cfg, httpClient: &http.Client{Timeout: 30 * time.Second}}
}

func (s *SlackAdapter) Name() model.Platform { return model.PlatformSlack }

func (s *SlackAdapter) client(bearer string) *goslack.Client {
	return goslack.New(bearer, goslack.OptionHTTPClient(s.httpClient))
}

type slackRaw struct {
	channelID   string
	channelName string
	msg         goslack.Message
}

// FetchNewMessages enumerates DM/multi-person-DM conversations, then pulls
// each one's history since the given timestamp. A channel history failure
// is skipped, not fatal to the whole fetch.
func (s *SlackAdapter) FetchNewMessages(ctx context.Context, userID string, since time.Time, creds Credentials) ([]RawMessage, error) {
	api := s.client(creds.AccessToken)

	channels, _, err := api.GetConversationsContext(ctx, &goslack.GetConversationsParameters{
		Types: []string{"im", "mpim"},
		Limit: 100,
	})
	if err != nil {
		return nil, fmt.Errorf("slack: conversations.list: %w", err)
	}

	oldest := fmt.Sprintf("%d", since.Unix())

	var raws []RawMessage
	for _, channel := range channels {
		history, err := api.GetConversationHistoryContext(ctx, &goslack.GetConversationHistoryParameters{
			ChannelID: channel.ID,
			Oldest:    oldest,
			Limit:     50,
		})
		if err != nil {
			continue
		}
		for _, msg := range history.Messages {
			raw := slackRaw{channelID: channel.ID, channelName: channel.Name, msg: msg}
			raws = append(raws, RawMessage{
				Platform:  model.PlatformSlack,
				Payload:   slackRawToPayload(raw),
				ThreadID:  firstNonEmpty(msg.ThreadTimestamp, msg.Timestamp),
				MessageID: msg.Timestamp,
			})
		}
	}
	return raws, nil
}

func slackRawToPayload(r slackRaw) map[string]any {
	return map[string]any{
		"user":         r.msg.User,
		"username":     r.msg.Username,
		"text":         r.msg.Text,
		"ts":           r.msg.Timestamp,
		"thread_ts":    r.msg.ThreadTimestamp,
		"channel_id":   r.channelID,
		"channel_name": r.channelName,
	}
}

// Normalize maps the Slack epoch.sequence timestamp to time.Time and uses
// the Slack user id as sender identity. The display name is the payload's
// username, or the user id when that is empty; no user profile lookup is
// made.
func (s *SlackAdapter) Normalize(raw RawMessage, userID string) (model.Message, error) {
	senderID, _ := raw.Payload["user"].(string)
	username, _ := raw.Payload["username"].(string)
	text, _ := raw.Payload["text"].(string)
	ts, _ := raw.Payload["ts"].(string)
	senderName := username
	if senderName == "" {
		senderName = senderID
	}

	return model.Message{
		ID:                uuid.NewString(),
		UserID:            userID,
		Platform:          model.PlatformSlack,
		PlatformMessageID: ts,
		ThreadID:          raw.ThreadID,
		Sender: model.Sender{
			ID:       senderID,
			Name:     senderName,
			Username: username,
		},
		ContentText: text,
		Timestamp:   slackTSToTime(ts),
	}, nil
}

// SendMessage posts to chat.postMessage. The target channel comes from
// creds.Extra["channel_id"]; the webapi send handler does not populate
// Extra. A non-empty threadID is sent as the thread timestamp.
func (s *SlackAdapter) SendMessage(ctx context.Context, threadID, text string, creds Credentials, opts SendOpts) SendResult {
	channel := creds.Extra["channel_id"]
	api := s.client(creds.AccessToken)

	msgOpts := []goslack.MsgOption{goslack.MsgOptionText(text, false)}
	if threadID != "" {
		msgOpts = append(msgOpts, goslack.MsgOptionTS(threadID))
	}

	_, ts, err := api.PostMessageContext(ctx, channel, msgOpts...)
	if err != nil {
		return SendResult{OK: false, Err: fmt.Errorf("slack: send: %w", err)}
	}
	return SendResult{OK: true, PlatformMessageID: ts}
}

// SetupWebhook is a no-op in terms of API calls: Slack's Events API
// subscription is configured at the app level via the Slack dashboard, so
// this just returns a synthetic per-user identifier recording the connect.
func (s *SlackAdapter) SetupWebhook(ctx context.Context, userID, webhookURL string, creds Credentials) (string, error) {
	return fmt.Sprintf("slack-events-%s", userID), nil
}

// RefreshCredentials rotates a Slack v2 OAuth token via oauth.v2.access.
// Slack tokens don't expire by default, but rotation-enabled apps can
// refresh them through this same endpoint.
func (s *SlackAdapter) RefreshCredentials(ctx context.Context, creds Credentials) (*Credentials, error) {
	resp, err := goslack.RefreshOAuthV2Token(ctx, s.httpClient, s.cfg.ClientID, s.cfg.ClientSecret, creds.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("slack: refresh: %w", err)
	}
	if !resp.Ok {
		return nil, nil
	}
	refreshToken := resp.RefreshToken
	if refreshToken == "" {
		refreshToken = creds.RefreshToken
	}
	return &Credentials{AccessToken: resp.AccessToken, RefreshToken: refreshToken}, nil
}

// slackTSToTime parses Slack's "epoch.sequence" timestamp format.
func slackTSToTime(ts string) time.Time {
	var epoch int64
	if _, err := fmt.Sscanf(ts, "%d.", &epoch); err != nil {
		return time.Now()
	}
	return time.Unix(epoch, 0)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
