// Package ranker computes the final priority score and label for a
// message by combining signals already populated by the enrichment
// agents. It is deterministic — no LLM call — applying a fixed weighted
// formula, matching the service's own priority ranking agent precisely.
package ranker

import (
	"math"
	"strings"
	"time"

	"github.com/inboxd/inboxd/internal/model"
)

// weight keys, in the order they are documented.
const (
	weightSenderRelationship  = 0.30
	weightUrgencyKeywords     = 0.20
	weightTimeSensitivity     = 0.15
	weightHistoricalReplyRate = 0.15
	weightThreadActivity      = 0.10
	weightSentimentIntensity  = 0.10
)

// urgencyKeywords is the fixed 15-entry lexicon scanned against the
// lowercased message body.
var urgencyKeywords = []string{
	"asap", "urgent", "deadline", "today", "help", "call me",
	"immediately", "critical", "emergency", "important", "breaking",
	"time-sensitive", "overdue", "expires", "final notice",
}

// ThreadStats supplies the per-thread counters needed for the thread
// activity signal; the ranker itself never touches the store.
type ThreadStats struct {
	MessageCount  int
	RecentReplies int
}

// Input bundles everything the ranker reads: a message carrying its own
// Enrichment and Sender, the durable Contact row for relationship/VIP/reply
// rate, and the thread's activity stats.
type Input struct {
	Message model.Message
	Contact model.Contact
	Thread  ThreadStats
	Now     time.Time
}

// Signals exposes the six intermediate per-signal scores for logging and
// testing, before they're combined into the final weighted score.
type Signals struct {
	SenderRelationship  float64
	UrgencyKeywords     float64
	TimeSensitivity     float64
	HistoricalReplyRate float64
	ThreadActivity      float64
	SentimentIntensity  float64
}

// Result is the ranker's verdict: the clamped, rounded score and final
// label, plus the signals that produced it.
type Result struct {
	Score   float64
	Label   model.PriorityLabel
	Signals Signals
}

// Rank computes the weighted priority score and label for in.
func Rank(in Input) Result {
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	sig := Signals{
		SenderRelationship:  relationshipScore(in.Contact),
		UrgencyKeywords:     urgencyKeywordScore(in.Message.ContentText),
		TimeSensitivity:     timeDecay(in.Message.Timestamp, now),
		HistoricalReplyRate: clamp01(in.Contact.ReplyRate),
		ThreadActivity:      threadActivityScore(in.Thread),
		SentimentIntensity:  model.SentimentScore(in.Message.Enrichment.Sentiment),
	}

	score := sig.SenderRelationship*weightSenderRelationship +
		sig.UrgencyKeywords*weightUrgencyKeywords +
		sig.TimeSensitivity*weightTimeSensitivity +
		sig.HistoricalReplyRate*weightHistoricalReplyRate +
		sig.ThreadActivity*weightThreadActivity +
		sig.SentimentIntensity*weightSentimentIntensity

	if in.Contact.IsVIP {
		score = math.Max(score, 0.60)
	}
	score = roundTo(clamp01(score), 3)

	label := labelFor(score, in.Message.Enrichment.PriorityLabel)

	return Result{Score: score, Label: label, Signals: sig}
}

func relationshipScore(c model.Contact) float64 {
	if c.Relationship == "" {
		return model.RelationshipScore(model.RelationshipStranger)
	}
	return model.RelationshipScore(c.Relationship)
}

func urgencyKeywordScore(content string) float64 {
	lower := strings.ToLower(content)
	hits := 0
	for _, kw := range urgencyKeywords {
		if strings.Contains(lower, kw) {
			hits++
		}
	}
	return math.Min(1.0, float64(hits)*0.25)
}

// timeDecay scores message freshness: full score under 1hr, linear decay
// to near-zero by 48hrs, floored at 0.05 beyond that.
func timeDecay(timestamp, now time.Time) float64 {
	if timestamp.IsZero() {
		return 0.5
	}
	ageHours := now.Sub(timestamp).Hours()
	switch {
	case ageHours < 1:
		return 1.0
	case ageHours < 24:
		return 1.0 - (ageHours / 48)
	case ageHours < 48:
		return math.Max(0.1, 1.0-(ageHours/48))
	default:
		return 0.05
	}
}

// threadActivityScore rewards threads with a high ratio of recent replies
// to total messages, floored at 0.3 once a thread has more than one
// message, or fixed at 0.1 for a thread of just this one message.
func threadActivityScore(t ThreadStats) float64 {
	if t.MessageCount <= 1 {
		return 0.1
	}
	denom := t.MessageCount
	if denom < 1 {
		denom = 1
	}
	activity := math.Min(1.0, float64(t.RecentReplies)/float64(denom))
	return math.Max(0.3, activity)
}

// labelFor applies the score thresholds, falling back to preserving an
// existing spam/social classification when the score lands in the lowest
// bucket rather than always relabeling as social.
func labelFor(score float64, existing model.PriorityLabel) model.PriorityLabel {
	switch {
	case score >= 0.85:
		return model.PriorityUrgent
	case score >= 0.60:
		return model.PriorityAction
	case score >= 0.30:
		return model.PriorityFYI
	default:
		if existing == model.PrioritySpam || existing == model.PrioritySocial {
			return existing
		}
		return model.PrioritySocial
	}
}

func clamp01(v float64) float64 {
	return math.Max(0.0, math.Min(1.0, v))
}

func roundTo(v float64, places int) float64 {
	mult := math.Pow(10, float64(places))
	return math.Round(v*mult) / mult
}
