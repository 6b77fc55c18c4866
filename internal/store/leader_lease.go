package store

import (
	"fmt"
	"time"
)

// AcquireLease attempts to claim or renew a named leader lease for holder,
// the single-writer coordination primitive the scheduler uses so only one
// process runs the fleet-sync/snooze-reaper/score-decay tickers at a time.
// It succeeds if the lease is unclaimed, already expired, or already held
// by this holder.
func (s *FeedStore) AcquireLease(name, holder string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(ttl)

	res, err := s.conn.Exec(`
		INSERT INTO leader_lease (name, holder, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET holder = excluded.holder, expires_at = excluded.expires_at
		WHERE leader_lease.expires_at <= ? OR leader_lease.holder = ?`,
		name, holder, expiresAt, now, holder,
	)
	if err != nil {
		return false, fmt.Errorf("store: acquire lease %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: acquire lease %s: %w", name, err)
	}
	return n > 0, nil
}

// ReleaseLease gives up a lease this holder currently owns, letting
// another process claim it on its next attempt rather than waiting for
// the TTL to lapse.
func (s *FeedStore) ReleaseLease(name, holder string) error {
	_, err := s.conn.Exec(`DELETE FROM leader_lease WHERE name = ? AND holder = ?`, name, holder)
	if err != nil {
		return fmt.Errorf("store: release lease %s: %w", name, err)
	}
	return nil
}
