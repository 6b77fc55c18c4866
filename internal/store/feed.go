package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/inboxd/inboxd/internal/model"
)

const messageColumns = `id, user_id, platform, platform_message_id, thread_id,
	sender_id, sender_name, sender_email, sender_username, content_text, timestamp,
	is_read, is_done, snoozed_until, priority_score, priority_label, sentiment,
	context_note, summary, classification_reasoning, is_complaint, needs_careful_response,
	suggested_approach, suggested_actions, time_sensitive, draft_reply, processed_at, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(row scanner, m *model.Message) error {
	var suggestedActions string
	err := row.Scan(
		&m.ID, &m.UserID, &m.Platform, &m.PlatformMessageID, &m.ThreadID,
		&m.Sender.ID, &m.Sender.Name, &m.Sender.Email, &m.Sender.Username, &m.ContentText, &m.Timestamp,
		&m.IsRead, &m.IsDone, &m.SnoozedUntil, &m.Enrichment.PriorityScore, &m.Enrichment.PriorityLabel, &m.Enrichment.Sentiment,
		&m.Enrichment.ContextNote, &m.Enrichment.Summary, &m.Enrichment.ClassificationReasoning, &m.Enrichment.IsComplaint, &m.Enrichment.NeedsCarefulResponse,
		&m.Enrichment.SuggestedApproach, &suggestedActions, &m.Enrichment.TimeSensitive, &m.DraftReply, &m.ProcessedAt, &m.CreatedAt,
	)
	if err != nil {
		return err
	}
	if suggestedActions != "" {
		if err := json.Unmarshal([]byte(suggestedActions), &m.Enrichment.SuggestedActions); err != nil {
			return fmt.Errorf("decode suggested_actions: %w", err)
		}
	}
	return nil
}

// UpsertMessage inserts a new message or, if (user_id, platform,
// platform_message_id) already exists, updates only its enrichment and
// timestamp-derived fields — the row's identity and read/done/snooze state
// are never overwritten by re-ingest.
func (s *FeedStore) UpsertMessage(m *model.Message) error {
	suggestedActions, err := json.Marshal(m.Enrichment.SuggestedActions)
	if err != nil {
		return fmt.Errorf("store: encode suggested_actions: %w", err)
	}

	_, err = s.conn.Exec(`
		INSERT INTO messages (
			id, user_id, platform, platform_message_id, thread_id,
			sender_id, sender_name, sender_email, sender_username, content_text, timestamp,
			is_read, is_done, snoozed_until, priority_score, priority_label, sentiment,
			context_note, summary, classification_reasoning, is_complaint, needs_careful_response,
			suggested_approach, suggested_actions, time_sensitive, draft_reply, processed_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, platform, platform_message_id) DO UPDATE SET
			priority_score = excluded.priority_score,
			priority_label = excluded.priority_label,
			sentiment = excluded.sentiment,
			context_note = excluded.context_note,
			summary = excluded.summary,
			classification_reasoning = excluded.classification_reasoning,
			is_complaint = excluded.is_complaint,
			needs_careful_response = excluded.needs_careful_response,
			suggested_approach = excluded.suggested_approach,
			suggested_actions = excluded.suggested_actions,
			time_sensitive = excluded.time_sensitive,
			processed_at = excluded.processed_at`,
		m.ID, m.UserID, m.Platform, m.PlatformMessageID, m.ThreadID,
		m.Sender.ID, m.Sender.Name, m.Sender.Email, m.Sender.Username, m.ContentText, m.Timestamp,
		m.IsRead, m.IsDone, m.SnoozedUntil, m.Enrichment.PriorityScore, m.Enrichment.PriorityLabel, m.Enrichment.Sentiment,
		m.Enrichment.ContextNote, m.Enrichment.Summary, m.Enrichment.ClassificationReasoning, m.Enrichment.IsComplaint, m.Enrichment.NeedsCarefulResponse,
		m.Enrichment.SuggestedApproach, string(suggestedActions), m.Enrichment.TimeSensitive, m.DraftReply, m.ProcessedAt, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("store: upsert message: %w", err)
	}
	return nil
}

// FeedFilter narrows FetchFeed to a single platform when set.
type FeedFilter struct {
	Platform *model.Platform
}

// FetchFeed returns visible messages (not done, not currently snoozed)
// ordered by priority score descending, then recency, capped at 100 rows.
func (s *FeedStore) FetchFeed(userID string, filter FeedFilter, offset, limit int) ([]model.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	query := `SELECT ` + messageColumns + ` FROM messages
		WHERE user_id = ? AND is_done = 0 AND (snoozed_until IS NULL OR snoozed_until <= ?)`
	args := []any{userID, time.Now().UTC()}

	if filter.Platform != nil {
		query += ` AND platform = ?`
		args = append(args, *filter.Platform)
	}

	query += ` ORDER BY priority_score DESC, timestamp DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: fetch feed: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var messages []model.Message
	for rows.Next() {
		var m model.Message
		if err := scanMessage(rows, &m); err != nil {
			return nil, fmt.Errorf("store: scan feed message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// FetchThread returns every message in a thread, oldest first.
func (s *FeedStore) FetchThread(userID string, platform model.Platform, threadID string) ([]model.Message, error) {
	rows, err := s.conn.Query(
		`SELECT `+messageColumns+` FROM messages
		 WHERE user_id = ? AND platform = ? AND thread_id = ?
		 ORDER BY timestamp ASC`,
		userID, platform, threadID,
	)
	if err != nil {
		return nil, fmt.Errorf("store: fetch thread: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var messages []model.Message
	for rows.Next() {
		var m model.Message
		if err := scanMessage(rows, &m); err != nil {
			return nil, fmt.Errorf("store: scan thread message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// MessageStatePatch is a partial update to a message's mutable state.
// Nil fields are left unchanged.
type MessageStatePatch struct {
	IsRead       *bool
	IsDone       *bool
	SnoozedUntil **time.Time
	DraftReply   **string
	PriorityScore *float64
	PriorityLabel *model.PriorityLabel
}

// UpdateMessageState applies a partial update to one message, scoped to
// its owning user so one user can never mutate another's row.
func (s *FeedStore) UpdateMessageState(id, userID string, patch MessageStatePatch) error {
	set := []string{}
	args := []any{}

	if patch.IsRead != nil {
		set = append(set, "is_read = ?")
		args = append(args, *patch.IsRead)
	}
	if patch.IsDone != nil {
		set = append(set, "is_done = ?")
		args = append(args, *patch.IsDone)
	}
	if patch.SnoozedUntil != nil {
		set = append(set, "snoozed_until = ?")
		args = append(args, *patch.SnoozedUntil)
	}
	if patch.DraftReply != nil {
		set = append(set, "draft_reply = ?")
		args = append(args, *patch.DraftReply)
	}
	if patch.PriorityScore != nil {
		set = append(set, "priority_score = ?")
		args = append(args, *patch.PriorityScore)
	}
	if patch.PriorityLabel != nil {
		set = append(set, "priority_label = ?")
		args = append(args, *patch.PriorityLabel)
	}

	if len(set) == 0 {
		return nil
	}

	query := "UPDATE messages SET "
	for i, clause := range set {
		if i > 0 {
			query += ", "
		}
		query += clause
	}
	query += " WHERE id = ? AND user_id = ?"
	args = append(args, id, userID)

	res, err := s.conn.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("store: update message state %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: update message state %s: %w", id, err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// GetMessage retrieves a single message by ID, scoped to its owning user.
func (s *FeedStore) GetMessage(id, userID string) (*model.Message, error) {
	row := s.conn.QueryRow(`SELECT `+messageColumns+` FROM messages WHERE id = ? AND user_id = ?`, id, userID)
	var m model.Message
	if err := scanMessage(row, &m); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("store: get message %s: %w", id, err)
	}
	return &m, nil
}

// DueSnoozes returns every message across all users whose snooze has
// elapsed and is still marked done=false, for the snooze reaper.
func (s *FeedStore) DueSnoozes(now time.Time) ([]model.Message, error) {
	rows, err := s.conn.Query(
		`SELECT `+messageColumns+` FROM messages WHERE is_done = 0 AND snoozed_until IS NOT NULL AND snoozed_until <= ?`,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("store: due snoozes: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var messages []model.Message
	for rows.Next() {
		var m model.Message
		if err := scanMessage(rows, &m); err != nil {
			return nil, fmt.Errorf("store: scan due snooze: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// DecayStaleScores applies the priority-score decay formula to every
// undone message older than 24h, per the scheduler's hourly decay pass.
func (s *FeedStore) DecayStaleScores(now time.Time) (int64, error) {
	res, err := s.conn.Exec(`
		UPDATE messages
		SET priority_score = MAX(0.05, priority_score * MAX(0.3, 1 - 0.05 * ((CAST((julianday(?) - julianday(timestamp)) * 24 AS REAL)) - 24) / 12))
		WHERE is_done = 0
		  AND priority_score > 0.1
		  AND (julianday(?) - julianday(timestamp)) * 24 > 24`,
		now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("store: decay stale scores: %w", err)
	}
	return res.RowsAffected()
}
