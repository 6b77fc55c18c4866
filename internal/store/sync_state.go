package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/inboxd/inboxd/internal/model"
)

const syncStateColumns = `user_id, platform, last_sync_at, last_history_id, status, error_message`

func scanSyncState(row scanner, st *model.SyncState) error {
	return row.Scan(&st.UserID, &st.Platform, &st.LastSyncAt, &st.LastHistoryID, &st.Status, &st.ErrorMessage)
}

// GetSyncState retrieves the sync lease/checkpoint for a (user, platform)
// pair, or nil if the pair has never synced.
func (s *FeedStore) GetSyncState(userID string, platform model.Platform) (*model.SyncState, error) {
	row := s.conn.QueryRow(`SELECT `+syncStateColumns+` FROM sync_state WHERE user_id = ? AND platform = ?`, userID, platform)
	var st model.SyncState
	if err := scanSyncState(row, &st); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("store: get sync state: %w", err)
	}
	return &st, nil
}

// AcquireSyncLease atomically claims a (user, platform) pair for one sync
// cycle: it only flips status to syncing when the row is missing or not
// already syncing, so two scheduler ticks can never sync the same pair
// concurrently.
func (s *FeedStore) AcquireSyncLease(userID string, platform model.Platform) (bool, error) {
	res, err := s.conn.Exec(`
		INSERT INTO sync_state (user_id, platform, status)
		VALUES (?, ?, 'syncing')
		ON CONFLICT(user_id, platform) DO UPDATE SET status = 'syncing'
		WHERE sync_state.status != 'syncing'`,
		userID, platform,
	)
	if err != nil {
		return false, fmt.Errorf("store: acquire sync lease: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: acquire sync lease: %w", err)
	}
	return n > 0, nil
}

// ReleaseSyncLease records the outcome of a sync cycle and returns the
// pair to idle (or error, with a message) so the next cycle can claim it.
// last_sync_at only advances on success: advancing it on failure would move
// the next tick's fetch-since checkpoint past a window that was never
// actually fetched, silently dropping those messages.
func (s *FeedStore) ReleaseSyncLease(userID string, platform model.Platform, historyID string, syncErr error) error {
	if syncErr != nil {
		_, err := s.conn.Exec(`
			UPDATE sync_state SET status = ?, error_message = ?
			WHERE user_id = ? AND platform = ?`,
			model.SyncError, syncErr.Error(), userID, platform,
		)
		if err != nil {
			return fmt.Errorf("store: release sync lease: %w", err)
		}
		return nil
	}

	_, err := s.conn.Exec(`
		UPDATE sync_state SET status = ?, error_message = '', last_sync_at = ?, last_history_id = COALESCE(NULLIF(?, ''), last_history_id)
		WHERE user_id = ? AND platform = ?`,
		model.SyncIdle, time.Now().UTC(), historyID, userID, platform,
	)
	if err != nil {
		return fmt.Errorf("store: release sync lease: %w", err)
	}
	return nil
}

// ListSyncTargets returns every (user, platform) pair with a stored
// credential, the enumeration AcquireSyncLease is attempted against each
// fleet sync tick.
func (s *FeedStore) ListSyncTargets() ([]model.SyncState, error) {
	rows, err := s.conn.Query(`
		SELECT pc.user_id, pc.platform,
			COALESCE(ss.last_sync_at, NULL), COALESCE(ss.last_history_id, ''), COALESCE(ss.status, 'idle'), COALESCE(ss.error_message, '')
		FROM platform_credentials pc
		LEFT JOIN sync_state ss ON ss.user_id = pc.user_id AND ss.platform = pc.platform`)
	if err != nil {
		return nil, fmt.Errorf("store: list sync targets: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var targets []model.SyncState
	for rows.Next() {
		var st model.SyncState
		if err := scanSyncState(rows, &st); err != nil {
			return nil, fmt.Errorf("store: scan sync target: %w", err)
		}
		targets = append(targets, st)
	}
	return targets, rows.Err()
}
