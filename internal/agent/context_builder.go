package agent

import (
	"context"
	"strings"

	"github.com/inboxd/inboxd/internal/model"
)

// Invoker is the subset of Runner each agent depends on, so tests can
// substitute a fake without spinning up a real Anthropic client.
type Invoker interface {
	InvokeJSON(ctx context.Context, model, systemPrompt, userMessage string, maxTokens int64, out any) error
}

const contextBuilderSystemPrompt = `You are a relationship-context analyst for a unified inbox. ` +
	`Given a sender's history with this user, output strict JSON only: ` +
	`{"relationship": one of ["vip","close_contact","work_contact","acquaintance","stranger","bot","newsletter"], ` +
	`"reply_rate": number 0-1, "context_summary": short string, "is_vip": boolean}.`

// ContextHistory is the bounded window ContextBuilder reasons over: the
// sender's prior interaction history (<=20 messages), reply counters, and
// average reply latency.
type ContextHistory struct {
	Platform        model.Platform
	Sender          model.Sender
	PriorMessages   []string // last <=20 message bodies from this sender
	ReplyCount      int
	TotalMessages   int
	AvgReplyHours   float64
}

type contextBuilderResponse struct {
	Relationship   string  `json:"relationship"`
	ReplyRate      float64 `json:"reply_rate"`
	ContextSummary string  `json:"context_summary"`
	IsVIP          bool    `json:"is_vip"`
}

// ContextBuilder infers sender relationship, historical reply rate, and a
// short context summary from prior interaction history.
type ContextBuilder struct {
	runner Invoker
}

func NewContextBuilder(runner Invoker) *ContextBuilder {
	return &ContextBuilder{runner: runner}
}

// Run produces a partial Enrichment carrying only the fields this agent
// owns: the caller merges it with the other agents' partials before
// handing the result to the Ranker, and Contact fields updated separately.
type ContextResult struct {
	Relationship   model.Relationship
	ReplyRate      float64
	ContextSummary string
	IsVIP          bool
	UsedFallback   bool
}

func (c *ContextBuilder) Run(ctx context.Context, h ContextHistory) ContextResult {
	var resp contextBuilderResponse
	err := c.runner.InvokeJSON(ctx, ModelHaiku, contextBuilderSystemPrompt, renderContextPrompt(h), 300, &resp)
	if err != nil {
		return contextBuilderFallback(h)
	}

	relationship := model.Relationship(resp.Relationship)
	if _, ok := model.RelationshipScores[relationship]; !ok {
		return contextBuilderFallback(h)
	}

	return ContextResult{
		Relationship:   relationship,
		ReplyRate:      clamp01(resp.ReplyRate),
		ContextSummary: resp.ContextSummary,
		IsVIP:          resp.IsVIP,
	}
}

func renderContextPrompt(h ContextHistory) string {
	var b strings.Builder
	b.WriteString("Platform: ")
	b.WriteString(string(h.Platform))
	b.WriteString("\nSender: ")
	b.WriteString(h.Sender.Name)
	b.WriteString(" <")
	b.WriteString(h.Sender.Email)
	b.WriteString(">\nPrior messages from this sender:\n")
	for _, m := range h.PriorMessages {
		b.WriteString("- ")
		b.WriteString(m)
		b.WriteString("\n")
	}
	return b.String()
}

// contextBuilderFallback applies domain-based heuristics: consumer email
// domains score as acquaintance, noreply/notifications local-parts score
// as bot, everything else defaults to stranger.
func contextBuilderFallback(h ContextHistory) ContextResult {
	email := strings.ToLower(h.Sender.Email)
	localPart := email
	if idx := strings.Index(email, "@"); idx >= 0 {
		localPart = email[:idx]
	}

	relationship := model.RelationshipStranger
	switch {
	case strings.Contains(localPart, "noreply") || strings.Contains(localPart, "notifications"):
		relationship = model.RelationshipBot
	case isConsumerEmailDomain(email):
		relationship = model.RelationshipAcquaintance
	}

	replyRate := 0.0
	if h.TotalMessages > 0 {
		replyRate = clamp01(float64(h.ReplyCount) / float64(h.TotalMessages))
	}

	return ContextResult{
		Relationship:   relationship,
		ReplyRate:      replyRate,
		ContextSummary: "fallback: heuristic relationship inference",
		IsVIP:          false,
		UsedFallback:   true,
	}
}

var consumerEmailDomains = []string{"gmail.com", "yahoo.com", "hotmail.com", "outlook.com", "icloud.com", "aol.com"}

func isConsumerEmailDomain(email string) bool {
	for _, d := range consumerEmailDomains {
		if strings.HasSuffix(email, "@"+d) {
			return true
		}
	}
	return false
}
