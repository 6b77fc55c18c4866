package sync

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/inboxd/inboxd/internal/adapter"
	"github.com/inboxd/inboxd/internal/crypto"
	"github.com/inboxd/inboxd/internal/model"
	"github.com/inboxd/inboxd/internal/store"
)

// fakeAdapter returns a fixed set of raw messages and records fetch calls,
// the same fake-over-mock shape used throughout this codebase's adapter
// and agent tests.
type fakeAdapter struct {
	platform    model.Platform
	messages    []adapter.RawMessage
	fetchErr    error
	fetchCalls  int
}

func (f *fakeAdapter) Name() model.Platform { return f.platform }

func (f *fakeAdapter) FetchNewMessages(ctx context.Context, userID string, since time.Time, creds adapter.Credentials) ([]adapter.RawMessage, error) {
	f.fetchCalls++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.messages, nil
}

func (f *fakeAdapter) Normalize(raw adapter.RawMessage, userID string) (model.Message, error) {
	return model.Message{
		ID:                raw.MessageID,
		UserID:            userID,
		Platform:          f.platform,
		PlatformMessageID: raw.MessageID,
		ThreadID:          raw.ThreadID,
		ContentText:       "hi",
		Timestamp:         time.Now().UTC(),
	}, nil
}

func (f *fakeAdapter) SendMessage(ctx context.Context, threadID, text string, creds adapter.Credentials, opts adapter.SendOpts) adapter.SendResult {
	return adapter.SendResult{OK: true}
}

func (f *fakeAdapter) SetupWebhook(ctx context.Context, userID, webhookURL string, creds adapter.Credentials) (string, error) {
	return "webhook-id", nil
}

func (f *fakeAdapter) RefreshCredentials(ctx context.Context, creds adapter.Credentials) (*adapter.Credentials, error) {
	return &creds, nil
}

type fakePipeline struct {
	processed []model.Message
}

func (f *fakePipeline) Process(ctx context.Context, msg model.Message) error {
	f.processed = append(f.processed, msg)
	return nil
}

func (f *fakePipeline) ProcessBatch(ctx context.Context, messages []model.Message, syncTriggered bool) error {
	f.processed = append(f.processed, messages...)
	return nil
}

func setupEngine(t *testing.T, a *fakeAdapter, p *fakePipeline) (*Engine, *store.FeedStore) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inboxd.db")
	s, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	registry := adapter.NewRegistry()
	registry.Register(a)

	cipher := crypto.NewTokenCipher("test-secret")

	accessCipher, err := cipher.Encrypt("access-token")
	require.NoError(t, err)

	require.NoError(t, s.UpsertCredential(&model.Credential{
		UserID:            "user-1",
		Platform:          a.platform,
		AccessTokenCipher: accessCipher,
	}))

	return New(s, cipher, registry, p), s
}

func TestSyncOneProcessesFetchedMessages(t *testing.T) {
	a := &fakeAdapter{
		platform: model.PlatformGmail,
		messages: []adapter.RawMessage{
			{MessageID: "m1", ThreadID: "t1"},
			{MessageID: "m2", ThreadID: "t1"},
		},
	}
	p := &fakePipeline{}
	engine, _ := setupEngine(t, a, p)

	require.NoError(t, engine.SyncOne(context.Background(), "user-1", model.PlatformGmail, false))
	require.Equal(t, 1, a.fetchCalls)
	require.Len(t, p.processed, 2)
}

func TestSyncOneSkipsWhenLeaseAlreadyHeld(t *testing.T) {
	a := &fakeAdapter{platform: model.PlatformGmail}
	p := &fakePipeline{}
	engine, s := setupEngine(t, a, p)

	ok, err := s.AcquireSyncLease("user-1", model.PlatformGmail)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, engine.SyncOne(context.Background(), "user-1", model.PlatformGmail, false))
	require.Equal(t, 0, a.fetchCalls)
}

func TestSyncOneReleasesLeaseOnError(t *testing.T) {
	a := &fakeAdapter{platform: model.PlatformGmail, fetchErr: assertError("boom")}
	p := &fakePipeline{}
	engine, s := setupEngine(t, a, p)
	engine.WithRetryPolicy(time.Millisecond, 1)

	err := engine.SyncOne(context.Background(), "user-1", model.PlatformGmail, false)
	require.Error(t, err)

	state, err := s.GetSyncState("user-1", model.PlatformGmail)
	require.NoError(t, err)
	require.Equal(t, model.SyncError, state.Status)

	// Lease was released, so a subsequent sync can be attempted.
	ok, err := s.AcquireSyncLease("user-1", model.PlatformGmail)
	require.NoError(t, err)
	require.True(t, ok)
}

type assertError string

func (e assertError) Error() string { return string(e) }
