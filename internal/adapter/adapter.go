// Package adapter defines the per-platform capability contract — fetch,
// normalize, send, webhook setup, credential refresh — and a registry
// keyed by lowercase platform name. The registry is the only point in
// the system that knows the concrete set of supported platforms.
package adapter

import (
	"context"
	"time"

	"github.com/inboxd/inboxd/internal/model"
)

// RawMessage is an unnormalized message as returned by a platform's API,
// carried opaquely until Normalize produces a model.Message.
type RawMessage struct {
	Platform  model.Platform
	Payload   map[string]any
	ThreadID  string
	MessageID string
}

// SendOpts carries optional per-send parameters (currently just whether
// to reply in-thread; platforms that don't support threading ignore it).
type SendOpts struct {
	ReplyInThread bool
}

// SendResult is the outcome of SendMessage.
type SendResult struct {
	OK                bool
	PlatformMessageID string
	Err               error
}

// Credentials is the decrypted, in-memory view of a model.Credential for
// the duration of a single adapter call. It never touches disk.
type Credentials struct {
	AccessToken    string
	RefreshToken   string
	TokenExpiry    *time.Time
	PlatformUserID string
	Extra          map[string]string
}

// Adapter is the capability contract every platform integration
// implements. Adapters are stateless singletons: all per-user state
// (credentials, sync checkpoints) is threaded through as arguments.
type Adapter interface {
	// Name returns the lowercase platform identifier.
	Name() model.Platform

	// FetchNewMessages returns raw messages with timestamp >= since,
	// bounded to a recent window (<=50 per thread/channel). Tolerates
	// partial per-channel failures, returning the subset it could fetch.
	FetchNewMessages(ctx context.Context, userID string, since time.Time, creds Credentials) ([]RawMessage, error)

	// Normalize produces a model.Message from a RawMessage: internal
	// UUID, platform tag, platform message id, best-effort sender
	// snapshot, plain-text body, and a timestamp (missing defaults to now).
	Normalize(raw RawMessage, userID string) (model.Message, error)

	// SendMessage posts a reply into threadID.
	SendMessage(ctx context.Context, threadID, text string, creds Credentials, opts SendOpts) SendResult

	// SetupWebhook registers (or synthesizes, for socket-based platforms)
	// a webhook identifier for userID.
	SetupWebhook(ctx context.Context, userID, webhookURL string, creds Credentials) (string, error)

	// RefreshCredentials returns rotated tokens, or nil if the platform
	// refuses to refresh (caller should fall back to AuthFailure).
	RefreshCredentials(ctx context.Context, creds Credentials) (*Credentials, error)
}
