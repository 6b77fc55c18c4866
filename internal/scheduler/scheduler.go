// Package scheduler runs the three background ticks inboxd needs — fleet
// sync, snooze reaping, and score decay — coordinated by a SQLite leader
// lease so only one process in a horizontally scaled deployment drives
// them at a time.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/inboxd/inboxd/internal/store"
)

const (
	fleetSyncInterval  = 120 * time.Second
	snoozeReapInterval = 60 * time.Second
	scoreDecayInterval = time.Hour

	leaseName = "scheduler"
	leaseTTL  = 3 * fleetSyncInterval
)

// SyncRunner is the fleet-sync capability the scheduler drives.
type SyncRunner interface {
	RunFleetSync(ctx context.Context) error
}

// Scheduler owns the three background tickers.
type Scheduler struct {
	store    *store.FeedStore
	sync     SyncRunner
	holderID string
}

func New(feedStore *store.FeedStore, syncRunner SyncRunner, holderID string) *Scheduler {
	return &Scheduler{store: feedStore, sync: syncRunner, holderID: holderID}
}

// Run blocks, driving all three tickers until ctx is cancelled. Each tick
// first renews the leader lease; a node that fails to renew simply skips
// that tick rather than erroring, since another node may be holding it.
func (s *Scheduler) Run(ctx context.Context) error {
	fleetSync := time.NewTicker(fleetSyncInterval)
	defer fleetSync.Stop()

	snoozeReap := time.NewTicker(snoozeReapInterval)
	defer snoozeReap.Stop()

	scoreDecay := time.NewTicker(scoreDecayInterval)
	defer scoreDecay.Stop()

	slog.Info("scheduler: started", "holder", s.holderID)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-fleetSync.C:
			s.tick("fleet_sync", s.sync.RunFleetSync)
		case <-snoozeReap.C:
			s.tick("snooze_reap", s.reapSnoozes)
		case <-scoreDecay.C:
			s.tick("score_decay", s.decayScores)
		}
	}
}

func (s *Scheduler) tick(name string, fn func(ctx context.Context) error) {
	ok, err := s.store.AcquireLease(leaseName, s.holderID, leaseTTL)
	if err != nil {
		slog.Error("scheduler: lease acquisition failed", "tick", name, "error", err)
		return
	}
	if !ok {
		slog.Debug("scheduler: lease held elsewhere, skipping tick", "tick", name)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), fleetSyncInterval)
	defer cancel()

	if err := fn(ctx); err != nil {
		slog.Error("scheduler: tick failed", "tick", name, "error", err)
	}
}

// reapSnoozes finds every message whose snooze has elapsed; FetchFeed's
// WHERE clause already treats an elapsed snooze as visible, so the reaper
// only needs to log what came due for observability — no state mutation
// is required to make the message reappear in the feed.
func (s *Scheduler) reapSnoozes(ctx context.Context) error {
	due, err := s.store.DueSnoozes(time.Now().UTC())
	if err != nil {
		return fmt.Errorf("scheduler: due snoozes: %w", err)
	}
	if len(due) > 0 {
		slog.Info("scheduler: snoozes came due", "count", len(due))
	}
	return nil
}

func (s *Scheduler) decayScores(ctx context.Context) error {
	n, err := s.store.DecayStaleScores(time.Now().UTC())
	if err != nil {
		return fmt.Errorf("scheduler: decay scores: %w", err)
	}
	if n > 0 {
		slog.Info("scheduler: decayed stale scores", "rows", n)
	}
	return nil
}
