// Package pipeline runs every newly ingested message through the
// enrichment agents and the ranker, then persists the result and notifies
// connected clients.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/inboxd/inboxd/internal/agent"
	"github.com/inboxd/inboxd/internal/cache"
	"github.com/inboxd/inboxd/internal/model"
	"github.com/inboxd/inboxd/internal/ranker"
	"github.com/inboxd/inboxd/internal/store"
	"github.com/inboxd/inboxd/internal/ws"
)

// Embedder is the narrow interface pipeline needs from the vector store,
// so a nil Embedder (vector search disabled) is a valid configuration.
type Embedder interface {
	Upsert(ctx context.Context, userID, messageID, text string) error
}

// AgentRunner is the full capability set the enrichment agents need: the
// JSON-contract call InvokeJSON uses, plus the free-text Invoke DraftReply
// uses. agent.Runner satisfies this; tests substitute a fake.
type AgentRunner interface {
	agent.Invoker
	Invoke(ctx context.Context, model, systemPrompt, userMessage string, maxTokens int64) (string, error)
}

const (
	defaultConcurrency    = 5
	syncTriggeredConcurrency = 3
)

// Pipeline wires the enrichment agents, ranker, store, cache, vector
// embedder, and realtime relay into a single per-message operation.
type Pipeline struct {
	store          *store.FeedStore
	cache          *cache.Cache
	contextBuilder *agent.ContextBuilder
	classifier     *agent.Classifier
	sentiment      *agent.Sentiment
	draftReply     *agent.DraftReply
	runner         AgentRunner
	embedder       Embedder
	relay          *ws.Relay
}

func New(feedStore *store.FeedStore, c *cache.Cache, runner AgentRunner, embedder Embedder, relay *ws.Relay) *Pipeline {
	return &Pipeline{
		store:          feedStore,
		cache:          c,
		contextBuilder: agent.NewContextBuilder(runner),
		classifier:     agent.NewClassifier(runner),
		sentiment:      agent.NewSentiment(runner),
		draftReply:     agent.NewDraftReply(runner),
		runner:         runner,
		embedder:       embedder,
		relay:          relay,
	}
}

// Process runs one normalized message through enrichment, ranking, and
// persistence. It never returns an error for enrichment-agent failures —
// every agent has a deterministic fallback — only for store/infra errors.
func (p *Pipeline) Process(ctx context.Context, msg model.Message) error {
	existing, err := p.store.GetContact(msg.UserID, msg.Platform, msg.Sender.ID)
	if err != nil {
		return fmt.Errorf("pipeline: load contact: %w", err)
	}

	history := buildContextHistory(msg, existing)

	var contextResult agent.ContextResult
	var classifierResult agent.ClassifierResult
	var sentimentResult agent.SentimentResult

	relationship, replyRate, isVIP := approximateSignals(existing)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		contextResult = p.contextBuilder.Run(gCtx, history)
		return nil
	})
	g.Go(func() error {
		classifierResult = p.classifier.Run(gCtx, agent.ClassifierInput{
			Content:      msg.ContentText,
			Platform:     msg.Platform,
			Relationship: relationship,
			ReplyRate:    replyRate,
			IsVIP:        isVIP,
			TimestampISO: msg.Timestamp.Format(time.RFC3339),
		})
		return nil
	})
	g.Go(func() error {
		sentimentResult = p.sentiment.Run(gCtx, agent.SentimentInput{
			Content:  msg.ContentText,
			Sender:   msg.Sender,
			Platform: msg.Platform,
		})
		return nil
	})
	_ = g.Wait() // each goroutine above always returns nil; agent fallbacks absorb failures

	contact := mergeContact(msg, existing, contextResult)

	threadStats, err := p.store.ThreadStats(msg.UserID, msg.Platform, msg.ThreadID)
	if err != nil {
		return fmt.Errorf("pipeline: thread stats: %w", err)
	}

	msg.Enrichment.PriorityLabel = classifierResult.PriorityLabel
	msg.Enrichment.Sentiment = sentimentResult.Sentiment

	rankResult := ranker.Rank(ranker.Input{
		Message: msg,
		Contact: contact,
		Thread:  ranker.ThreadStats(threadStats),
		Now:     time.Now().UTC(),
	})

	msg.Enrichment = model.Enrichment{
		PriorityScore:           rankResult.Score,
		PriorityLabel:           rankResult.Label,
		Sentiment:               sentimentResult.Sentiment,
		ContextNote:             contextResult.ContextSummary,
		Summary:                 classifierResult.ClassificationReasoning,
		ClassificationReasoning: classifierResult.ClassificationReasoning,
		IsComplaint:             sentimentResult.IsComplaint,
		NeedsCarefulResponse:    sentimentResult.NeedsCarefulResponse,
		SuggestedApproach:       sentimentResult.SuggestedApproach,
		TimeSensitive:           classifierResult.TimeSensitive,
	}
	msg.ProcessedAt = time.Now().UTC()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = msg.ProcessedAt
	}

	if err := p.store.UpsertMessage(&msg); err != nil {
		return fmt.Errorf("pipeline: upsert message: %w", err)
	}
	if err := p.store.UpsertContact(&contact); err != nil {
		return fmt.Errorf("pipeline: upsert contact: %w", err)
	}

	p.cache.Invalidate(ctx, p.cache.FeedKey(msg.UserID))
	p.cache.Invalidate(ctx, p.cache.ThreadKey(msg.UserID, string(msg.Platform), msg.ThreadID))

	if p.embedder != nil {
		go func() {
			embedCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := p.embedder.Upsert(embedCtx, msg.UserID, msg.ID, msg.ContentText); err != nil {
				slog.Error("pipeline: embed message failed", "message_id", msg.ID, "error", err)
			}
		}()
	}

	if p.relay != nil {
		if err := p.relay.PublishToUser(ctx, msg.UserID, ws.Event{Type: "new_message", Data: msg}); err != nil {
			slog.Error("pipeline: publish new_message failed", "message_id", msg.ID, "error", err)
		}
	}

	return nil
}

// ProcessBatch runs Process over a slice of messages with bounded
// concurrency: the default fleet-sync batch uses defaultConcurrency,
// while a user-triggered manual sync uses the narrower
// syncTriggeredConcurrency so it doesn't starve the fleet-sync batch
// sharing the same Anthropic rate limit.
func (p *Pipeline) ProcessBatch(ctx context.Context, messages []model.Message, syncTriggered bool) error {
	limit := int64(defaultConcurrency)
	if syncTriggered {
		limit = syncTriggeredConcurrency
	}
	sem := semaphore.NewWeighted(limit)

	g, gCtx := errgroup.WithContext(ctx)
	for _, msg := range messages {
		msg := msg
		if err := sem.Acquire(gCtx, 1); err != nil {
			return fmt.Errorf("pipeline: batch acquire: %w", err)
		}
		g.Go(func() error {
			defer sem.Release(1)
			if err := p.Process(gCtx, msg); err != nil {
				slog.Error("pipeline: process message failed", "message_id", msg.ID, "error", err)
			}
			return nil
		})
	}
	return g.Wait()
}

// GenerateDraft produces a reply draft for a message, used by the
// on-demand POST /draft endpoint rather than the ingestion path.
func (p *Pipeline) GenerateDraft(ctx context.Context, msg model.Message, threadMessages []string) string {
	carefulNote := ""
	if msg.Enrichment.NeedsCarefulResponse {
		carefulNote = msg.Enrichment.SuggestedApproach
	}
	return p.draftReply.Run(ctx, p.runner, agent.DraftReplyInput{
		Message:        msg,
		ThreadMessages: threadMessages,
		CarefulNote:    carefulNote,
	})
}

func buildContextHistory(msg model.Message, contact *model.Contact) agent.ContextHistory {
	h := agent.ContextHistory{Platform: msg.Platform, Sender: msg.Sender}
	if contact != nil {
		h.TotalMessages = contact.MessageCount
		h.ReplyCount = int(contact.ReplyRate * float64(contact.MessageCount))
	}
	return h
}

func approximateSignals(contact *model.Contact) (model.Relationship, float64, bool) {
	if contact == nil {
		return model.RelationshipStranger, 0, false
	}
	return contact.Relationship, contact.ReplyRate, contact.IsVIP
}

func mergeContact(msg model.Message, existing *model.Contact, ctxResult agent.ContextResult) model.Contact {
	c := model.Contact{
		UserID:            msg.UserID,
		Platform:          msg.Platform,
		ContactIdentifier: msg.Sender.ID,
		DisplayName:       msg.Sender.Name,
		Relationship:      ctxResult.Relationship,
		IsVIP:             ctxResult.IsVIP,
		ReplyRate:         ctxResult.ReplyRate,
		MessageCount:      1,
		LastInteraction:   msg.Timestamp,
	}
	if existing != nil {
		c.MessageCount = existing.MessageCount + 1
		if c.DisplayName == "" {
			c.DisplayName = existing.DisplayName
		}
	}
	return c
}
