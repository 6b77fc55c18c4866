package pipeline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/inboxd/inboxd/internal/cache"
	"github.com/inboxd/inboxd/internal/model"
	"github.com/inboxd/inboxd/internal/store"
)

// fakeRunner always fails, forcing every agent onto its deterministic
// fallback path — the same fake-over-mock shape used in internal/agent's
// tests, here exercising the pipeline's wiring rather than any one agent.
type fakeRunner struct{}

func (fakeRunner) InvokeJSON(ctx context.Context, model, systemPrompt, userMessage string, maxTokens int64, out any) error {
	return context.DeadlineExceeded
}

func (fakeRunner) Invoke(ctx context.Context, model, systemPrompt, userMessage string, maxTokens int64) (string, error) {
	return "", context.DeadlineExceeded
}

func openTestPipeline(t *testing.T) (*Pipeline, *store.FeedStore) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inboxd.db")
	s, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	p := New(s, cache.New(nil), fakeRunner{}, nil, nil)
	return p, s
}

func TestProcessPersistsEnrichedMessageAndContact(t *testing.T) {
	p, s := openTestPipeline(t)

	msg := model.Message{
		ID:                uuid.NewString(),
		UserID:            "user-1",
		Platform:          model.PlatformSlack,
		PlatformMessageID: "slack-1",
		ThreadID:          "thread-1",
		Sender:            model.Sender{ID: "U1", Name: "Jordan"},
		ContentText:       "need this asap, can you call me",
		Timestamp:         time.Now().UTC(),
	}

	require.NoError(t, p.Process(context.Background(), msg))

	feed, err := s.FetchFeed("user-1", store.FeedFilter{}, 0, 10)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	require.Greater(t, feed[0].Enrichment.PriorityScore, 0.0)
	require.Contains(t, feed[0].Enrichment.ClassificationReasoning, "fallback")

	contact, err := s.GetContact("user-1", model.PlatformSlack, "U1")
	require.NoError(t, err)
	require.NotNil(t, contact)
	require.Equal(t, 1, contact.MessageCount)
}

func TestProcessPreservesClassifierSpamLabelAtLowScore(t *testing.T) {
	p, s := openTestPipeline(t)

	msg := model.Message{
		ID:                uuid.NewString(),
		UserID:            "user-1",
		Platform:          model.PlatformGmail,
		PlatformMessageID: "gmail-1",
		ThreadID:          "thread-spam",
		Sender:            model.Sender{ID: "spammer@example.com", Name: "Deals"},
		ContentText:       "Special offer inside, unsubscribe anytime if you want.",
		Timestamp:         time.Now().UTC(),
	}

	require.NoError(t, p.Process(context.Background(), msg))

	feed, err := s.FetchFeed("user-1", store.FeedFilter{}, 0, 10)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	require.Less(t, feed[0].Enrichment.PriorityScore, 0.30)
	require.Equal(t, model.PrioritySpam, feed[0].Enrichment.PriorityLabel)
}

func TestProcessIncrementsMessageCountOnRepeatSender(t *testing.T) {
	p, s := openTestPipeline(t)

	for i := 0; i < 3; i++ {
		msg := model.Message{
			ID:                uuid.NewString(),
			UserID:            "user-1",
			Platform:          model.PlatformSlack,
			PlatformMessageID: uuid.NewString(),
			ThreadID:          "thread-1",
			Sender:            model.Sender{ID: "U1", Name: "Jordan"},
			ContentText:       "hello again",
			Timestamp:         time.Now().UTC(),
		}
		require.NoError(t, p.Process(context.Background(), msg))
	}

	contact, err := s.GetContact("user-1", model.PlatformSlack, "U1")
	require.NoError(t, err)
	require.Equal(t, 3, contact.MessageCount)
}

func TestProcessBatchProcessesAllMessagesConcurrently(t *testing.T) {
	p, s := openTestPipeline(t)

	var messages []model.Message
	for i := 0; i < 8; i++ {
		messages = append(messages, model.Message{
			ID:                uuid.NewString(),
			UserID:            "user-1",
			Platform:          model.PlatformGmail,
			PlatformMessageID: uuid.NewString(),
			ThreadID:          "thread-batch",
			Sender:            model.Sender{ID: "sender", Name: "Sender"},
			ContentText:       "batch message",
			Timestamp:         time.Now().UTC(),
		})
	}

	require.NoError(t, p.ProcessBatch(context.Background(), messages, false))

	feed, err := s.FetchFeed("user-1", store.FeedFilter{}, 0, 20)
	require.NoError(t, err)
	require.Len(t, feed, 8)
}
