package agent

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/inboxd/inboxd/internal/model"
)

const classifierSystemPrompt = `You are a message priority classifier for a unified inbox. ` +
	`Output strict JSON only: {"priority_label": one of ["urgent","action","fyi","social","spam"], ` +
	`"priority_score": number 0-1, "time_sensitive": boolean, "classification_reasoning": short string}.`

// ClassifierInput is truncated content plus the sender signals already
// known from ContextBuilder, so the classifier doesn't re-derive them.
type ClassifierInput struct {
	Content          string
	Platform         model.Platform
	Relationship     model.Relationship
	ReplyRate        float64
	IsVIP            bool
	TimestampISO     string
}

type classifierResponse struct {
	PriorityLabel           string  `json:"priority_label"`
	PriorityScore           float64 `json:"priority_score"`
	TimeSensitive           bool    `json:"time_sensitive"`
	ClassificationReasoning string  `json:"classification_reasoning"`
}

// ClassifierResult is the partial Enrichment this agent owns.
type ClassifierResult struct {
	PriorityLabel           model.PriorityLabel
	PriorityScore           float64
	TimeSensitive           bool
	ClassificationReasoning string
	UsedFallback            bool
}

var validPriorityLabels = map[model.PriorityLabel]bool{
	model.PriorityUrgent: true, model.PriorityAction: true, model.PriorityFYI: true,
	model.PrioritySocial: true, model.PrioritySpam: true,
}

// Classifier produces a preliminary priority label and score later
// superseded by the Ranker, plus time-sensitivity and its reasoning.
type Classifier struct {
	runner Invoker
}

func NewClassifier(runner Invoker) *Classifier {
	return &Classifier{runner: runner}
}

func (c *Classifier) Run(ctx context.Context, in ClassifierInput) ClassifierResult {
	content := in.Content
	if len(content) > 2000 {
		content = content[:2000]
	}

	prompt := fmt.Sprintf(
		"Platform: %s\nSender relationship: %s\nReply rate: %.2f\nVIP: %t\nTimestamp: %s\nContent:\n%s",
		in.Platform, in.Relationship, in.ReplyRate, in.IsVIP, in.TimestampISO, content,
	)

	var resp classifierResponse
	if err := c.runner.InvokeJSON(ctx, ModelHaiku, classifierSystemPrompt, prompt, 300, &resp); err != nil {
		return classifierFallback(in)
	}

	label := model.PriorityLabel(resp.PriorityLabel)
	if !validPriorityLabels[label] {
		return classifierFallback(in)
	}

	return ClassifierResult{
		PriorityLabel:           label,
		PriorityScore:           clamp01(resp.PriorityScore),
		TimeSensitive:           resp.TimeSensitive,
		ClassificationReasoning: resp.ClassificationReasoning,
	}
}

// classifierFallback is the weighted rule score: relationship tier (30%)
// + urgency-keyword hits*0.05 capped at 20% + reply_rate (15%) + vip
// boost (15%), with keyword-based spam/social detection on the residual.
func classifierFallback(in ClassifierInput) ClassifierResult {
	lower := strings.ToLower(in.Content)

	relationshipScore := model.RelationshipScore(in.Relationship) * 0.30

	hits := 0
	for _, kw := range urgencyKeywordsForFallback {
		if strings.Contains(lower, kw) {
			hits++
		}
	}
	urgencyScore := math.Min(0.20, float64(hits)*0.05)

	replyScore := clamp01(in.ReplyRate) * 0.15

	vipScore := 0.0
	if in.IsVIP {
		vipScore = 0.15
	}

	score := clamp01(relationshipScore + urgencyScore + replyScore + vipScore)

	label := model.PriorityAction
	switch {
	case score >= 0.85:
		label = model.PriorityUrgent
	case score >= 0.60:
		label = model.PriorityAction
	case score >= 0.30:
		label = model.PriorityFYI
	default:
		label = detectSpamOrSocial(lower)
	}

	return ClassifierResult{
		PriorityLabel:           label,
		PriorityScore:           score,
		TimeSensitive:           hits > 0,
		ClassificationReasoning: "fallback: rule-based weighted score",
		UsedFallback:            true,
	}
}

var urgencyKeywordsForFallback = []string{
	"asap", "urgent", "deadline", "today", "help", "call me",
	"immediately", "critical", "emergency", "important", "breaking",
	"time-sensitive", "overdue", "expires", "final notice",
}

var spamKeywords = []string{"unsubscribe", "click here", "limited time", "% off", "winner", "claim your"}
var socialKeywords = []string{"birthday", "congrat", "happy holidays", "invite", "party"}

func detectSpamOrSocial(lowerContent string) model.PriorityLabel {
	for _, kw := range spamKeywords {
		if strings.Contains(lowerContent, kw) {
			return model.PrioritySpam
		}
	}
	for _, kw := range socialKeywords {
		if strings.Contains(lowerContent, kw) {
			return model.PrioritySocial
		}
	}
	return model.PrioritySocial
}
