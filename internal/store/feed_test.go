package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/inboxd/inboxd/internal/model"
)

func openTestStore(t *testing.T) *FeedStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inboxd.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestMessage(userID string, score float64, ts time.Time) model.Message {
	return model.Message{
		ID:                uuid.NewString(),
		UserID:            userID,
		Platform:          model.PlatformGmail,
		PlatformMessageID: "gmail-" + uuid.NewString(),
		ThreadID:          "thread-1",
		Sender:            model.Sender{ID: "s1", Name: "Alex", Email: "alex@example.com"},
		ContentText:       "hello",
		Timestamp:         ts,
		Enrichment: model.Enrichment{
			PriorityScore:    score,
			PriorityLabel:    model.PriorityAction,
			Sentiment:        model.SentimentNeutral,
			SuggestedActions: []string{"reply"},
		},
		ProcessedAt: ts,
		CreatedAt:   ts,
	}
}

func TestUpsertMessageIsIdempotentByNaturalKey(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	msg := newTestMessage("user-1", 0.5, now)
	require.NoError(t, s.UpsertMessage(&msg))

	// Re-ingest with the same natural key but a different score: the row
	// count must stay at one, and the enrichment field must update.
	msg.Enrichment.PriorityScore = 0.9
	msg.ID = uuid.NewString() // a fresh internal id must not create a second row
	require.NoError(t, s.UpsertMessage(&msg))

	feed, err := s.FetchFeed("user-1", FeedFilter{}, 0, 10)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	require.InDelta(t, 0.9, feed[0].Enrichment.PriorityScore, 0.0001)
}

func TestFetchFeedOrdersByScoreThenRecency(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	low := newTestMessage("user-1", 0.2, now.Add(-time.Hour))
	high := newTestMessage("user-1", 0.9, now.Add(-2*time.Hour))
	mid := newTestMessage("user-1", 0.5, now)

	require.NoError(t, s.UpsertMessage(&low))
	require.NoError(t, s.UpsertMessage(&high))
	require.NoError(t, s.UpsertMessage(&mid))

	feed, err := s.FetchFeed("user-1", FeedFilter{}, 0, 10)
	require.NoError(t, err)
	require.Len(t, feed, 3)
	require.Equal(t, high.ID, feed[0].ID)
	require.Equal(t, mid.ID, feed[1].ID)
	require.Equal(t, low.ID, feed[2].ID)
}

func TestFetchFeedExcludesDoneAndFutureSnoozed(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	done := newTestMessage("user-1", 0.8, now)
	done.IsDone = true

	future := now.Add(time.Hour)
	snoozed := newTestMessage("user-1", 0.8, now)
	snoozed.SnoozedUntil = &future

	visible := newTestMessage("user-1", 0.4, now)

	require.NoError(t, s.UpsertMessage(&done))
	require.NoError(t, s.UpsertMessage(&snoozed))
	require.NoError(t, s.UpsertMessage(&visible))

	feed, err := s.FetchFeed("user-1", FeedFilter{}, 0, 10)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	require.Equal(t, visible.ID, feed[0].ID)
}

func TestUpdateMessageStateScopesToOwningUser(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	msg := newTestMessage("user-1", 0.5, now)
	require.NoError(t, s.UpsertMessage(&msg))

	isDone := true
	err := s.UpdateMessageState(msg.ID, "user-2", MessageStatePatch{IsDone: &isDone})
	require.Error(t, err)

	require.NoError(t, s.UpdateMessageState(msg.ID, "user-1", MessageStatePatch{IsDone: &isDone}))

	got, err := s.GetMessage(msg.ID, "user-1")
	require.NoError(t, err)
	require.True(t, got.IsDone)
}

func TestDueSnoozesReturnsElapsedOnly(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	past := now.Add(-time.Hour)
	elapsed := newTestMessage("user-1", 0.3, now)
	elapsed.SnoozedUntil = &past

	future := now.Add(time.Hour)
	pending := newTestMessage("user-1", 0.3, now)
	pending.SnoozedUntil = &future

	require.NoError(t, s.UpsertMessage(&elapsed))
	require.NoError(t, s.UpsertMessage(&pending))

	due, err := s.DueSnoozes(now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, elapsed.ID, due[0].ID)
}

func TestUpsertContactIsIdempotentByNaturalKey(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	c := model.Contact{
		UserID: "user-1", Platform: model.PlatformSlack, ContactIdentifier: "U123",
		DisplayName: "Sam", Relationship: model.RelationshipWorkContact, MessageCount: 1, LastInteraction: now,
	}
	require.NoError(t, s.UpsertContact(&c))

	c.MessageCount = 5
	c.Relationship = model.RelationshipVIP
	require.NoError(t, s.UpsertContact(&c))

	got, err := s.GetContact("user-1", model.PlatformSlack, "U123")
	require.NoError(t, err)
	require.Equal(t, 5, got.MessageCount)
	require.Equal(t, model.RelationshipVIP, got.Relationship)
}

func TestAcquireSyncLeaseRejectsConcurrentClaim(t *testing.T) {
	s := openTestStore(t)

	ok, err := s.AcquireSyncLease("user-1", model.PlatformGmail)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.AcquireSyncLease("user-1", model.PlatformGmail)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.ReleaseSyncLease("user-1", model.PlatformGmail, "h1", nil))

	ok, err = s.AcquireSyncLease("user-1", model.PlatformGmail)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestAcquireLeaseExpiresAndIsReentrantForHolder(t *testing.T) {
	s := openTestStore(t)

	ok, err := s.AcquireLease("scheduler", "node-a", time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.AcquireLease("scheduler", "node-b", time.Hour)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = s.AcquireLease("scheduler", "node-a", time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, s.ReleaseLease("scheduler", "node-a"))

	ok, err = s.AcquireLease("scheduler", "node-b", time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	// A lease whose TTL has already lapsed can be taken by another holder.
	ok, err = s.AcquireLease("expiring", "node-a", -time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.AcquireLease("expiring", "node-b", time.Hour)
	require.NoError(t, err)
	require.True(t, ok)
}
