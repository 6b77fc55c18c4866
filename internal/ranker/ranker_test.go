package ranker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/inboxd/inboxd/internal/model"
)

func TestRankVIPFloor(t *testing.T) {
	now := time.Now()
	in := Input{
		Message: model.Message{
			ContentText: "just checking in, no rush",
			Timestamp:   now.Add(-40 * time.Hour),
			Enrichment:  model.Enrichment{Sentiment: model.SentimentPositive},
		},
		Contact: model.Contact{
			Relationship: model.RelationshipStranger,
			IsVIP:        true,
			ReplyRate:    0.0,
		},
		Thread: ThreadStats{MessageCount: 1},
		Now:    now,
	}

	result := Rank(in)
	require.GreaterOrEqual(t, result.Score, 0.60)
	require.Equal(t, model.PriorityAction, result.Label)
}

func TestRankUrgentKeywordsAndFreshness(t *testing.T) {
	now := time.Now()
	in := Input{
		Message: model.Message{
			ContentText: "URGENT: need this ASAP, critical deadline today",
			Timestamp:   now,
			Enrichment:  model.Enrichment{Sentiment: model.SentimentUrgent},
		},
		Contact: model.Contact{
			Relationship: model.RelationshipWorkContact,
			ReplyRate:    0.8,
		},
		Thread: ThreadStats{MessageCount: 5, RecentReplies: 4},
		Now:    now,
	}

	// 0.3*0.65 + 0.2*1.0 + 0.15*1.0 + 0.15*0.8 + 0.1*0.8 + 0.1*0.9 = 0.835
	result := Rank(in)
	require.InDelta(t, 0.835, result.Score, 1e-9)
	require.Equal(t, model.PriorityAction, result.Label)
}

func TestRankPreservesSpamLabelInLowestBucket(t *testing.T) {
	now := time.Now()
	in := Input{
		Message: model.Message{
			ContentText: "buy cheap watches now",
			Timestamp:   now.Add(-72 * time.Hour),
			Enrichment:  model.Enrichment{Sentiment: model.SentimentNeutral, PriorityLabel: model.PrioritySpam},
		},
		Contact: model.Contact{
			Relationship: model.RelationshipStranger,
			ReplyRate:    0.0,
		},
		Thread: ThreadStats{MessageCount: 1},
		Now:    now,
	}

	result := Rank(in)
	require.Less(t, result.Score, 0.30)
	require.Equal(t, model.PrioritySpam, result.Label)
}

func TestRankDefaultsToSocialInLowestBucketWithoutPriorLabel(t *testing.T) {
	now := time.Now()
	in := Input{
		Message: model.Message{
			ContentText: "hey, how's it going",
			Timestamp:   now.Add(-72 * time.Hour),
			Enrichment:  model.Enrichment{Sentiment: model.SentimentPositive},
		},
		Contact: model.Contact{
			Relationship: model.RelationshipAcquaintance,
			ReplyRate:    0.1,
		},
		Thread: ThreadStats{MessageCount: 1},
		Now:    now,
	}

	result := Rank(in)
	require.Equal(t, model.PrioritySocial, result.Label)
}

func TestRankScoreIsClampedAndRounded(t *testing.T) {
	now := time.Now()
	in := Input{
		Message: model.Message{
			ContentText: "asap urgent critical emergency immediately breaking",
			Timestamp:   now,
			Enrichment:  model.Enrichment{Sentiment: model.SentimentDistressed},
		},
		Contact: model.Contact{
			Relationship: model.RelationshipVIP,
			IsVIP:        true,
			ReplyRate:    1.0,
		},
		Thread: ThreadStats{MessageCount: 10, RecentReplies: 10},
		Now:    now,
	}

	result := Rank(in)
	require.LessOrEqual(t, result.Score, 1.0)
	require.GreaterOrEqual(t, result.Score, 0.0)
	require.Equal(t, roundTo(result.Score, 3), result.Score)
}
