// Package model defines the unified schema that flows through the
// ingestion pipeline: messages, contacts, platform credentials, and
// per-(user, platform) sync state.
package model

import "time"

// Platform is a lowercase platform identifier used as the registry key
// throughout adapter, store, and cache lookups.
type Platform string

const (
	PlatformGmail    Platform = "gmail"
	PlatformSlack    Platform = "slack"
	PlatformTelegram Platform = "telegram"
	PlatformDiscord  Platform = "discord"
)

// Relationship classifies a contact's standing with the user.
type Relationship string

const (
	RelationshipVIP          Relationship = "vip"
	RelationshipCloseContact Relationship = "close_contact"
	RelationshipWorkContact  Relationship = "work_contact"
	RelationshipAcquaintance Relationship = "acquaintance"
	RelationshipStranger     Relationship = "stranger"
	RelationshipBot          Relationship = "bot"
	RelationshipNewsletter   Relationship = "newsletter"
)

// PriorityLabel is the final, ranker-assigned urgency bucket for a message.
type PriorityLabel string

const (
	PriorityUrgent PriorityLabel = "urgent"
	PriorityAction PriorityLabel = "action"
	PriorityFYI    PriorityLabel = "fyi"
	PrioritySocial PriorityLabel = "social"
	PrioritySpam   PriorityLabel = "spam"
)

// Sentiment is the classifier/sentiment-agent assigned emotional tone.
type Sentiment string

const (
	SentimentPositive   Sentiment = "positive"
	SentimentNeutral    Sentiment = "neutral"
	SentimentTense      Sentiment = "tense"
	SentimentUrgent     Sentiment = "urgent"
	SentimentDistressed Sentiment = "distressed"
)

// SyncStatus is the lifecycle state of a (user, platform) sync lease.
type SyncStatus string

const (
	SyncIdle    SyncStatus = "idle"
	SyncSyncing SyncStatus = "syncing"
	SyncError   SyncStatus = "error"
)

// Sender is a point-in-time snapshot of who sent a message, attached
// directly to the Message row. It is distinct from the durable Contact
// record, which accumulates relationship state across messages.
type Sender struct {
	ID       string
	Name     string
	Email    string
	Username string
}

// Enrichment holds every AI-derived and ranker-derived field attached to
// a Message. Each agent in the pipeline writes only the fields it owns;
// the pipeline merges partial Enrichment values produced concurrently by
// ContextBuilder, Classifier, and Sentiment before handing the merged
// value to the Ranker.
type Enrichment struct {
	PriorityScore           float64
	PriorityLabel           PriorityLabel
	Sentiment               Sentiment
	ContextNote             string
	Summary                 string
	ClassificationReasoning string
	IsComplaint             bool
	NeedsCarefulResponse    bool
	SuggestedApproach       string
	SuggestedActions        []string
	TimeSensitive           bool
}

// Message is the unit that flows through the pipeline and lands in
// FeedStore. Identity is the internal UUID; (UserID, Platform,
// PlatformMessageID) is the natural key enforced by FeedStore.UpsertMessage.
type Message struct {
	ID                 string
	UserID             string
	Platform           Platform
	PlatformMessageID  string
	ThreadID           string
	Sender             Sender
	ContentText        string
	Timestamp          time.Time
	IsRead             bool
	IsDone             bool
	SnoozedUntil       *time.Time
	Enrichment         Enrichment
	DraftReply         *string
	ProcessedAt        time.Time
	CreatedAt          time.Time
}

// Visible reports whether the message belongs in the live feed: not done,
// and either never snoozed or its snooze has already elapsed.
func (m Message) Visible(now time.Time) bool {
	if m.IsDone {
		return false
	}
	if m.SnoozedUntil == nil {
		return true
	}
	return !m.SnoozedUntil.After(now)
}

// Contact is one row per (UserID, Platform, ContactIdentifier): the durable
// relationship record upserted on every ingested message.
type Contact struct {
	UserID            string
	Platform          Platform
	ContactIdentifier string
	DisplayName       string
	Relationship      Relationship
	IsVIP             bool
	ReplyRate         float64
	MessageCount      int
	LastInteraction   time.Time
}

// Credential is one row per (UserID, Platform). AccessTokenCipher and
// RefreshTokenCipher hold AES-256-GCM ciphertext, never plaintext; the
// plaintext tokens exist only on an adapter call's stack, for the
// duration of that call.
type Credential struct {
	UserID             string
	Platform           Platform
	AccessTokenCipher  string
	RefreshTokenCipher string
	TokenExpiry        *time.Time
	Scopes             []string
	PlatformUserID     string
	WebhookID          string
}

// SyncState is one row per (UserID, Platform), the lease and checkpoint
// for SyncEngine's fleet sync.
type SyncState struct {
	UserID        string
	Platform      Platform
	LastSyncAt    *time.Time
	LastHistoryID string
	Status        SyncStatus
	ErrorMessage  string
}

// RelationshipScores maps a Relationship tier to its ranker weight, per
// the fixed table in the ranker specification. Unknown relationships
// score as RelationshipStranger's neighbor, 0.2, via RelationshipScore.
var RelationshipScores = map[Relationship]float64{
	RelationshipVIP:          1.0,
	RelationshipCloseContact: 0.8,
	RelationshipWorkContact:  0.65,
	RelationshipAcquaintance: 0.4,
	RelationshipStranger:     0.2,
	RelationshipBot:          0.05,
	RelationshipNewsletter:   0.02,
}

// RelationshipScore looks up the ranker weight for a relationship tier,
// defaulting to the stranger-adjacent 0.2 for unrecognized values.
func RelationshipScore(r Relationship) float64 {
	if v, ok := RelationshipScores[r]; ok {
		return v
	}
	return 0.2
}

// SentimentScores maps a Sentiment to its ranker intensity weight.
var SentimentScores = map[Sentiment]float64{
	SentimentDistressed: 1.0,
	SentimentUrgent:     0.9,
	SentimentTense:      0.7,
	SentimentNeutral:    0.3,
	SentimentPositive:   0.2,
}

// SentimentScore looks up the ranker intensity weight for a sentiment,
// defaulting to neutral's 0.3 for unrecognized values.
func SentimentScore(s Sentiment) float64 {
	if v, ok := SentimentScores[s]; ok {
		return v
	}
	return 0.3
}

// ReclassifyScores maps a user-corrected label to the score the API
// overrides priority_score with on POST /message/{id}/reclassify.
var ReclassifyScores = map[PriorityLabel]float64{
	PriorityUrgent: 0.90,
	PriorityAction: 0.70,
	PriorityFYI:    0.45,
	PrioritySocial: 0.25,
	PrioritySpam:   0.10,
}
