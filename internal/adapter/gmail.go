package adapter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/inboxd/inboxd/internal/model"
)

const gmailBaseURL = "https://gmail.googleapis.com/gmail/v1"

var (
	fromNameRe  = regexp.MustCompile(`^"?([^"<]*)"?\s*<`)
	fromEmailRe = regexp.MustCompile(`<([^>]+)>`)
)

// GmailConfig carries the OAuth client credentials needed to refresh
// tokens and the Pub/Sub topic used for push watch setup.
type GmailConfig struct {
	ClientID     string
	ClientSecret string
	PubSubTopic  string // e.g. "projects/inboxd/topics/gmail-%s", formatted with userID
}

// GmailAdapter integrates with the Gmail REST API directly over HTTP —
// there is no Go client library for the Gmail API in the dependency
// surface this project draws from, so this is a thin net/http client in
// the same doJSON shape the corpus already uses for other REST
// collaborators (a provider's HTTP client talking JSON over a base URL).
type GmailAdapter struct {
	cfg    GmailConfig
	client *http.Client
}

// NewGmailAdapter builds a GmailAdapter with a 20s-timeout HTTP client.
func NewGmailAdapter(cfg GmailConfig) *GmailAdapter {
	return &GmailAdapter{cfg: cfg, client: &http.Client{Timeout: 20 * time.Second}}
}

func (g *GmailAdapter) Name() model.Platform { return model.PlatformGmail }

type gmailMessageList struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

type gmailHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type gmailPart struct {
	MimeType string `json:"mimeType"`
	Body     struct {
		Data string `json:"data"`
	} `json:"body"`
	Parts []gmailPart `json:"parts"`
}

type gmailMessage struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
	Snippet  string `json:"snippet"`
	Payload  struct {
		MimeType string        `json:"mimeType"`
		Headers  []gmailHeader `json:"headers"`
		Body     struct {
			Data string `json:"data"`
		} `json:"body"`
		Parts []gmailPart `json:"parts"`
	} `json:"payload"`
}

// FetchNewMessages lists inbox messages newer than since and fetches each
// one in full. A message whose fetch fails is skipped without logging and
// the rest are returned; list failure fails the whole call.
func (g *GmailAdapter) FetchNewMessages(ctx context.Context, userID string, since time.Time, creds Credentials) ([]RawMessage, error) {
	query := url.Values{}
	query.Set("q", fmt.Sprintf("after:%d in:inbox", since.Unix()))
	query.Set("maxResults", "50")

	var list gmailMessageList
	listURL := gmailBaseURL + "/users/me/messages?" + query.Encode()
	if err := g.doJSON(ctx, http.MethodGet, listURL, creds.AccessToken, nil, &list); err != nil {
		return nil, fmt.Errorf("gmail: list messages: %w", err)
	}

	raws := make([]RawMessage, 0, len(list.Messages))
	for _, ref := range list.Messages {
		var msg gmailMessage
		msgURL := fmt.Sprintf("%s/users/me/messages/%s?format=full", gmailBaseURL, ref.ID)
		if err := g.doJSON(ctx, http.MethodGet, msgURL, creds.AccessToken, nil, &msg); err != nil {
			continue // partial per-message failure tolerated
		}
		payload, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		var generic map[string]any
		if err := json.Unmarshal(payload, &generic); err != nil {
			continue
		}
		raws = append(raws, RawMessage{
			Platform:  model.PlatformGmail,
			Payload:   generic,
			ThreadID:  msg.ThreadID,
			MessageID: msg.ID,
		})
	}
	return raws, nil
}

// Normalize walks a Gmail message payload: decodes headers for sender
// name/email, walks MIME parts preferring text/plain, and parses the
// Date header (falling back to now if missing or unparseable).
func (g *GmailAdapter) Normalize(raw RawMessage, userID string) (model.Message, error) {
	body, err := json.Marshal(raw.Payload)
	if err != nil {
		return model.Message{}, fmt.Errorf("gmail: normalize: re-marshal payload: %w", err)
	}
	var msg gmailMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return model.Message{}, fmt.Errorf("gmail: normalize: decode payload: %w", err)
	}

	headers := make(map[string]string, len(msg.Payload.Headers))
	for _, h := range msg.Payload.Headers {
		headers[strings.ToLower(h.Name)] = h.Value
	}

	fromHeader := headers["from"]
	senderName := parseFromName(fromHeader)
	senderEmail := parseFromEmail(fromHeader)
	senderID := senderEmail
	if senderID == "" {
		senderID = fromHeader
	}

	content := extractGmailBody(msg.Payload.MimeType, msg.Payload.Body.Data, msg.Payload.Parts, msg.Snippet)

	timestamp := parseGmailDate(headers["date"])

	return model.Message{
		ID:                uuid.NewString(),
		UserID:            userID,
		Platform:          model.PlatformGmail,
		PlatformMessageID: msg.ID,
		ThreadID:          msg.ThreadID,
		Sender: model.Sender{
			ID:    senderID,
			Name:  senderName,
			Email: senderEmail,
		},
		ContentText: content,
		Timestamp:   timestamp,
	}, nil
}

// SendMessage sends a MIME reply through Gmail's messages.send endpoint.
// The recipient and subject are read from creds.Extra["to_email"] and
// creds.Extra["subject"] (the subject defaults to "Re: " when unset). The
// webapi send handler does not populate Extra.
func (g *GmailAdapter) SendMessage(ctx context.Context, threadID, text string, creds Credentials, opts SendOpts) SendResult {
	toEmail := creds.Extra["to_email"]
	subject := creds.Extra["subject"]
	if subject == "" {
		subject = "Re: "
	}

	mime := buildMIMEMessage(toEmail, subject, text)
	rawB64 := base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString([]byte(mime))

	reqBody := map[string]string{"raw": rawB64, "threadId": threadID}
	var resp struct {
		ID string `json:"id"`
	}
	sendURL := gmailBaseURL + "/users/me/messages/send"
	if err := g.doJSON(ctx, http.MethodPost, sendURL, creds.AccessToken, reqBody, &resp); err != nil {
		return SendResult{OK: false, Err: fmt.Errorf("gmail: send: %w", err)}
	}
	return SendResult{OK: true, PlatformMessageID: resp.ID}
}

// SetupWebhook registers Gmail push notifications against the project's
// Pub/Sub topic and returns the resulting historyId as the webhook
// identifier (Gmail has no per-user HTTP webhook URL of its own).
func (g *GmailAdapter) SetupWebhook(ctx context.Context, userID, webhookURL string, creds Credentials) (string, error) {
	topic := fmt.Sprintf(g.cfg.PubSubTopic, userID)
	body := map[string]any{
		"labelIds":  []string{"INBOX"},
		"topicName": topic,
	}
	var resp struct {
		HistoryID string `json:"historyId"`
	}
	watchURL := gmailBaseURL + "/users/me/watch"
	if err := g.doJSON(ctx, http.MethodPost, watchURL, creds.AccessToken, body, &resp); err != nil {
		return "", fmt.Errorf("gmail: setup webhook: %w", err)
	}
	return resp.HistoryID, nil
}

// RefreshCredentials exchanges the refresh token for a new access token
// against Google's OAuth2 token endpoint.
func (g *GmailAdapter) RefreshCredentials(ctx context.Context, creds Credentials) (*Credentials, error) {
	form := url.Values{}
	form.Set("client_id", g.cfg.ClientID)
	form.Set("client_secret", g.cfg.ClientSecret)
	form.Set("refresh_token", creds.RefreshToken)
	form.Set("grant_type", "refresh_token")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://oauth2.googleapis.com/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("gmail: refresh: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gmail: refresh: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil // refusal, not an error — caller falls back to AuthFailure
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("gmail: refresh: decode response: %w", err)
	}
	expiry := time.Now().Add(time.Duration(body.ExpiresIn) * time.Second)
	return &Credentials{
		AccessToken:  body.AccessToken,
		RefreshToken: creds.RefreshToken,
		TokenExpiry:  &expiry,
	}, nil
}

func (g *GmailAdapter) doJSON(ctx context.Context, method, reqURL, bearer string, body any, out any) error {
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("gmail api returned status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func parseFromName(header string) string {
	if m := fromNameRe.FindStringSubmatch(header); len(m) == 2 {
		return strings.TrimSpace(m[1])
	}
	if idx := strings.Index(header, "@"); idx >= 0 {
		return header[:idx]
	}
	return header
}

func parseFromEmail(header string) string {
	if m := fromEmailRe.FindStringSubmatch(header); len(m) == 2 {
		return m[1]
	}
	if strings.Contains(header, "@") {
		return strings.TrimSpace(header)
	}
	return ""
}

// extractGmailBody walks the MIME part tree (including one level of
// nested multipart) preferring text/plain, falling back to the snippet.
func extractGmailBody(mimeType, data string, parts []gmailPart, snippet string) string {
	if mimeType == "text/plain" && data != "" {
		if decoded, err := decodeGmailBase64(data); err == nil {
			return decoded
		}
	}
	for _, part := range parts {
		if part.MimeType == "text/plain" && part.Body.Data != "" {
			if decoded, err := decodeGmailBase64(part.Body.Data); err == nil {
				return decoded
			}
		}
		for _, sub := range part.Parts {
			if sub.MimeType == "text/plain" && sub.Body.Data != "" {
				if decoded, err := decodeGmailBase64(sub.Body.Data); err == nil {
					return decoded
				}
			}
		}
	}
	if snippet != "" {
		return snippet
	}
	return "(no content)"
}

func decodeGmailBase64(data string) (string, error) {
	decoded, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(data)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

func parseGmailDate(date string) time.Time {
	if date == "" {
		return time.Now()
	}
	layouts := []string{time.RFC1123Z, time.RFC1123, time.RFC822Z, time.RFC822}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, date); err == nil {
			return t
		}
	}
	if unix, err := strconv.ParseInt(date, 10, 64); err == nil {
		return time.Unix(unix, 0)
	}
	return time.Now()
}

func buildMIMEMessage(to, subject, text string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(text)
	return b.String()
}
