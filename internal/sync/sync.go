// Package sync pulls new messages from every connected platform on a
// fixed fleet cadence, decrypting stored credentials, normalizing raw
// platform payloads, and handing them to the enrichment pipeline.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/inboxd/inboxd/internal/adapter"
	"github.com/inboxd/inboxd/internal/crypto"
	"github.com/inboxd/inboxd/internal/model"
	"github.com/inboxd/inboxd/internal/store"
)

const (
	maxFetchAttempts = 5
	fetchBackoffBase = 30 * time.Second
	defaultBackfill  = 24 * time.Hour
)

// Pipeline is the narrow slice of *pipeline.Pipeline the sync engine
// needs, so tests can substitute a fake rather than running real agents.
type Pipeline interface {
	Process(ctx context.Context, msg model.Message) error
	ProcessBatch(ctx context.Context, messages []model.Message, syncTriggered bool) error
}

// Engine runs fleet sync across every connected (user, platform) pair.
type Engine struct {
	store        *store.FeedStore
	cipher       *crypto.TokenCipher
	registry     *adapter.Registry
	pipeline     Pipeline
	backoffBase  time.Duration
	maxAttempts  uint64
}

func New(feedStore *store.FeedStore, cipher *crypto.TokenCipher, registry *adapter.Registry, p Pipeline) *Engine {
	return &Engine{
		store:       feedStore,
		cipher:      cipher,
		registry:    registry,
		pipeline:    p,
		backoffBase: fetchBackoffBase,
		maxAttempts: maxFetchAttempts,
	}
}

// WithRetryPolicy overrides the fetch retry backoff, used by tests to
// avoid real multi-second sleeps.
func (e *Engine) WithRetryPolicy(base time.Duration, maxAttempts uint64) *Engine {
	e.backoffBase = base
	e.maxAttempts = maxAttempts
	return e
}

// RunFleetSync enumerates every connected credential and syncs it. A
// failure syncing one pair is logged and does not stop the others.
func (e *Engine) RunFleetSync(ctx context.Context) error {
	targets, err := e.store.ListSyncTargets()
	if err != nil {
		return fmt.Errorf("sync: list targets: %w", err)
	}

	for _, target := range targets {
		if err := e.SyncOne(ctx, target.UserID, target.Platform, false); err != nil {
			slog.Error("sync: fleet sync failed", "user_id", target.UserID, "platform", target.Platform, "error", err)
		}
	}
	return nil
}

// TriggerSync runs an immediate, user-initiated sync for one platform
// (e.g. a "refresh now" button), using the narrower sync-triggered
// pipeline concurrency so it doesn't starve the fleet-sync batch.
func (e *Engine) TriggerSync(ctx context.Context, userID string, platform model.Platform) error {
	return e.SyncOne(ctx, userID, platform, true)
}

// SyncOne fetches and ingests new messages for one (user, platform) pair.
// It is a no-op, not an error, if another tick already holds the lease.
func (e *Engine) SyncOne(ctx context.Context, userID string, platform model.Platform, userTriggered bool) error {
	acquired, err := e.store.AcquireSyncLease(userID, platform)
	if err != nil {
		return fmt.Errorf("sync: acquire lease: %w", err)
	}
	if !acquired {
		return nil
	}

	historyID, syncErr := e.sync(ctx, userID, platform, userTriggered)
	if releaseErr := e.store.ReleaseSyncLease(userID, platform, historyID, syncErr); releaseErr != nil {
		slog.Error("sync: release lease failed", "user_id", userID, "platform", platform, "error", releaseErr)
	}
	return syncErr
}

func (e *Engine) sync(ctx context.Context, userID string, platform model.Platform, userTriggered bool) (string, error) {
	cred, err := e.store.GetCredential(userID, platform)
	if err != nil {
		return "", fmt.Errorf("sync: load credential: %w", err)
	}
	if cred == nil {
		return "", fmt.Errorf("sync: no credential for %s/%s", userID, platform)
	}

	plaintext, err := e.decryptCredential(cred)
	if err != nil {
		return "", fmt.Errorf("sync: decrypt credential: %w", err)
	}

	a, err := e.registry.Resolve(platform)
	if err != nil {
		return "", fmt.Errorf("sync: resolve adapter: %w", err)
	}

	state, err := e.store.GetSyncState(userID, platform)
	if err != nil {
		return "", fmt.Errorf("sync: load sync state: %w", err)
	}
	since := time.Now().UTC().Add(-defaultBackfill)
	if state != nil && state.LastSyncAt != nil {
		since = *state.LastSyncAt
	}

	var raw []adapter.RawMessage
	operation := func() error {
		fetched, fetchErr := a.FetchNewMessages(ctx, userID, since, *plaintext)
		if fetchErr != nil {
			return fetchErr
		}
		raw = fetched
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.backoffBase
	b.Multiplier = 2.0
	b.MaxElapsedTime = 0 // bounded by WithMaxRetries instead of elapsed time

	// WithMaxRetries counts retries after the first call, so maxAttempts
	// total calls means maxAttempts-1 retries.
	var retries uint64
	if e.maxAttempts > 1 {
		retries = uint64(e.maxAttempts - 1)
	}
	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, retries), ctx)); err != nil {
		return "", fmt.Errorf("sync: fetch after retries: %w", err)
	}

	messages := make([]model.Message, 0, len(raw))
	var lastHistoryID string
	for _, r := range raw {
		msg, err := a.Normalize(r, userID)
		if err != nil {
			slog.Warn("sync: normalize failed, skipping message", "platform", platform, "error", err)
			continue
		}
		messages = append(messages, msg)
		if r.MessageID != "" {
			lastHistoryID = r.MessageID
		}
	}

	if len(messages) > 0 {
		if err := e.pipeline.ProcessBatch(ctx, messages, userTriggered); err != nil {
			return lastHistoryID, fmt.Errorf("sync: process batch: %w", err)
		}
	}

	return lastHistoryID, nil
}

func (e *Engine) decryptCredential(cred *model.Credential) (*adapter.Credentials, error) {
	accessToken, err := e.cipher.Decrypt(cred.AccessTokenCipher)
	if err != nil {
		return nil, fmt.Errorf("decrypt access token: %w", err)
	}

	var refreshToken string
	if cred.RefreshTokenCipher != "" {
		refreshToken, err = e.cipher.Decrypt(cred.RefreshTokenCipher)
		if err != nil {
			return nil, fmt.Errorf("decrypt refresh token: %w", err)
		}
	}

	return &adapter.Credentials{
		AccessToken:    accessToken,
		RefreshToken:   refreshToken,
		TokenExpiry:    cred.TokenExpiry,
		PlatformUserID: cred.PlatformUserID,
	}, nil
}

// ResolveWebhookOwner finds the user ID owning a webhook payload by mapping
// the platform's own user/workspace identifier back to a stored credential.
// Payloads that carry an inboxd user ID directly are resolved by the caller
// without this lookup.
func (e *Engine) ResolveWebhookOwner(platform model.Platform, platformUserID string) (string, error) {
	cred, err := e.store.CredentialByPlatformUserID(platform, platformUserID)
	if err != nil {
		return "", fmt.Errorf("sync: resolve webhook owner: %w", err)
	}
	if cred == nil {
		return "", fmt.Errorf("sync: no credential for platform user %s", platformUserID)
	}
	return cred.UserID, nil
}

// IngestOne normalizes and processes a single raw message, the webhook
// delivery path (as opposed to the batch fleet-sync path).
func (e *Engine) IngestOne(ctx context.Context, userID string, platform model.Platform, raw adapter.RawMessage) error {
	a, err := e.registry.Resolve(platform)
	if err != nil {
		return fmt.Errorf("sync: resolve adapter: %w", err)
	}

	msg, err := a.Normalize(raw, userID)
	if err != nil {
		return fmt.Errorf("sync: normalize webhook message: %w", err)
	}

	if err := e.pipeline.Process(ctx, msg); err != nil {
		return fmt.Errorf("sync: process webhook message: %w", err)
	}
	return nil
}
