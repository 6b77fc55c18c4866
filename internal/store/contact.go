package store

import (
	"database/sql"
	"fmt"

	"github.com/inboxd/inboxd/internal/model"
)

const contactColumns = `user_id, platform, contact_identifier, display_name, relationship, is_vip, reply_rate, message_count, last_interaction`

func scanContact(row scanner, c *model.Contact) error {
	return row.Scan(
		&c.UserID, &c.Platform, &c.ContactIdentifier, &c.DisplayName, &c.Relationship, &c.IsVIP, &c.ReplyRate, &c.MessageCount, &c.LastInteraction,
	)
}

// UpsertContact inserts or refreshes the durable relationship record for
// a (user, platform, contact_identifier) triple, called once per ingested
// message alongside UpsertMessage.
func (s *FeedStore) UpsertContact(c *model.Contact) error {
	_, err := s.conn.Exec(`
		INSERT INTO contacts (user_id, platform, contact_identifier, display_name, relationship, is_vip, reply_rate, message_count, last_interaction)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, platform, contact_identifier) DO UPDATE SET
			display_name = excluded.display_name,
			relationship = excluded.relationship,
			is_vip = excluded.is_vip,
			reply_rate = excluded.reply_rate,
			message_count = excluded.message_count,
			last_interaction = excluded.last_interaction`,
		c.UserID, c.Platform, c.ContactIdentifier, c.DisplayName, c.Relationship, c.IsVIP, c.ReplyRate, c.MessageCount, c.LastInteraction,
	)
	if err != nil {
		return fmt.Errorf("store: upsert contact: %w", err)
	}
	return nil
}

// GetContact retrieves one contact record, or nil if it has never been seen.
func (s *FeedStore) GetContact(userID string, platform model.Platform, identifier string) (*model.Contact, error) {
	row := s.conn.QueryRow(
		`SELECT `+contactColumns+` FROM contacts WHERE user_id = ? AND platform = ? AND contact_identifier = ?`,
		userID, platform, identifier,
	)
	var c model.Contact
	if err := scanContact(row, &c); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("store: get contact: %w", err)
	}
	return &c, nil
}

// ThreadStats reports the message volume and recent reply count for a
// thread, used by the pipeline and ranker as sender-activity signal.
type ThreadStats struct {
	MessageCount  int
	RecentReplies int
}

// ThreadStats returns the message count and the count of messages sent in
// the last 48h for a thread, the raw input to the ranker's thread-activity
// signal.
func (s *FeedStore) ThreadStats(userID string, platform model.Platform, threadID string) (ThreadStats, error) {
	var stats ThreadStats
	err := s.conn.QueryRow(
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE timestamp >= datetime('now', '-48 hours'))
		 FROM messages WHERE user_id = ? AND platform = ? AND thread_id = ?`,
		userID, platform, threadID,
	).Scan(&stats.MessageCount, &stats.RecentReplies)
	if err != nil {
		return ThreadStats{}, fmt.Errorf("store: thread stats: %w", err)
	}
	return stats, nil
}
