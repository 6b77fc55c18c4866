package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/inboxd/inboxd/internal/model"
)

const sentimentSystemPrompt = `You are a sentiment analyst for a unified inbox. ` +
	`Output strict JSON only: {"sentiment": one of ["positive","neutral","tense","urgent","distressed"], ` +
	`"is_complaint": boolean, "needs_careful_response": boolean, "suggested_approach": short string}.`

// SentimentInput is the minimal signal the sentiment agent reasons over.
type SentimentInput struct {
	Content  string
	Sender   model.Sender
	Platform model.Platform
}

type sentimentResponse struct {
	Sentiment             string `json:"sentiment"`
	IsComplaint           bool   `json:"is_complaint"`
	NeedsCarefulResponse  bool   `json:"needs_careful_response"`
	SuggestedApproach     string `json:"suggested_approach"`
}

// SentimentResult is the partial Enrichment this agent owns.
type SentimentResult struct {
	Sentiment            model.Sentiment
	IsComplaint          bool
	NeedsCarefulResponse bool
	SuggestedApproach    string
	UsedFallback         bool
}

var validSentiments = map[model.Sentiment]bool{
	model.SentimentPositive: true, model.SentimentNeutral: true, model.SentimentTense: true,
	model.SentimentUrgent: true, model.SentimentDistressed: true,
}

// Sentiment classifies emotional tone and flags messages needing a
// careful response.
type Sentiment struct {
	runner Invoker
}

func NewSentiment(runner Invoker) *Sentiment {
	return &Sentiment{runner: runner}
}

func (s *Sentiment) Run(ctx context.Context, in SentimentInput) SentimentResult {
	prompt := fmt.Sprintf("Platform: %s\nSender: %s\nContent:\n%s", in.Platform, in.Sender.Name, in.Content)

	var resp sentimentResponse
	if err := s.runner.InvokeJSON(ctx, ModelHaiku, sentimentSystemPrompt, prompt, 250, &resp); err != nil {
		return sentimentFallback(in)
	}

	sentiment := model.Sentiment(resp.Sentiment)
	if !validSentiments[sentiment] {
		return sentimentFallback(in)
	}

	return SentimentResult{
		Sentiment:            sentiment,
		IsComplaint:          resp.IsComplaint,
		NeedsCarefulResponse: resp.NeedsCarefulResponse,
		SuggestedApproach:    resp.SuggestedApproach,
	}
}

var sentimentKeywordBags = map[model.Sentiment][]string{
	model.SentimentDistressed: {"devastated", "desperate", "can't cope", "breaking down", "please help me"},
	model.SentimentUrgent:     {"asap", "urgent", "immediately", "right now", "critical"},
	model.SentimentTense:      {"frustrated", "disappointed", "unacceptable", "not happy", "again?!"},
	model.SentimentPositive:   {"thank you", "thanks", "great job", "appreciate", "awesome"},
}

// sentimentFallback scans fixed keyword bags in priority order
// (distressed, urgent, tense, positive), defaulting to neutral.
func sentimentFallback(in SentimentInput) SentimentResult {
	lower := strings.ToLower(in.Content)
	order := []model.Sentiment{model.SentimentDistressed, model.SentimentUrgent, model.SentimentTense, model.SentimentPositive}

	for _, s := range order {
		for _, kw := range sentimentKeywordBags[s] {
			if strings.Contains(lower, kw) {
				return SentimentResult{
					Sentiment:            s,
					NeedsCarefulResponse: s == model.SentimentTense || s == model.SentimentDistressed,
					SuggestedApproach:    "fallback: keyword-based sentiment",
					UsedFallback:         true,
				}
			}
		}
	}

	return SentimentResult{
		Sentiment:         model.SentimentNeutral,
		SuggestedApproach: "fallback: keyword-based sentiment",
		UsedFallback:      true,
	}
}
