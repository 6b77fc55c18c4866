package scheduler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/inboxd/inboxd/internal/model"
	"github.com/inboxd/inboxd/internal/store"
)

type fakeSyncRunner struct {
	calls int
}

func (f *fakeSyncRunner) RunFleetSync(ctx context.Context) error {
	f.calls++
	return nil
}

func openTestStore(t *testing.T) *store.FeedStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inboxd.db")
	s, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestTickSkipsWhenLeaseHeldByAnotherHolder(t *testing.T) {
	s := openTestStore(t)
	runner := &fakeSyncRunner{}
	sched := New(s, runner, "node-a")

	ok, err := s.AcquireLease(leaseName, "node-b", time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	sched.tick("fleet_sync", runner.RunFleetSync)
	require.Equal(t, 0, runner.calls)
}

func TestTickRunsWhenLeaseAcquired(t *testing.T) {
	s := openTestStore(t)
	runner := &fakeSyncRunner{}
	sched := New(s, runner, "node-a")

	sched.tick("fleet_sync", runner.RunFleetSync)
	require.Equal(t, 1, runner.calls)
}

func TestDecayScoresAppliesDecayFormula(t *testing.T) {
	s := openTestStore(t)
	sched := New(s, &fakeSyncRunner{}, "node-a")

	old := time.Now().UTC().Add(-72 * time.Hour)
	msg := model.Message{
		ID: "m1", UserID: "user-1", Platform: model.PlatformGmail, PlatformMessageID: "p1",
		ThreadID: "t1", ContentText: "x", Timestamp: old,
		Enrichment: model.Enrichment{PriorityScore: 0.8},
		ProcessedAt: old, CreatedAt: old,
	}
	require.NoError(t, s.UpsertMessage(&msg))

	require.NoError(t, sched.decayScores(context.Background()))

	got, err := s.GetMessage("m1", "user-1")
	require.NoError(t, err)
	require.Less(t, got.Enrichment.PriorityScore, 0.8)
}

func TestReapSnoozesDoesNotErrorWithNoneDue(t *testing.T) {
	s := openTestStore(t)
	sched := New(s, &fakeSyncRunner{}, "node-a")
	require.NoError(t, sched.reapSnoozes(context.Background()))
}
