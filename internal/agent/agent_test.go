package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/inboxd/inboxd/internal/model"
)

// fakeInvoker implements Invoker and draftRunner for testing, the same
// fake-over-mock shape the teacher uses for its ProcessRunner fake.
type fakeInvoker struct {
	jsonResponse string
	textResponse string
	err          error
}

func (f *fakeInvoker) InvokeJSON(ctx context.Context, model, systemPrompt, userMessage string, maxTokens int64, out any) error {
	if f.err != nil {
		return f.err
	}
	return json.Unmarshal([]byte(f.jsonResponse), out)
}

func (f *fakeInvoker) Invoke(ctx context.Context, model, systemPrompt, userMessage string, maxTokens int64) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.textResponse, nil
}

func TestContextBuilderSuccess(t *testing.T) {
	fake := &fakeInvoker{jsonResponse: `{"relationship":"vip","reply_rate":0.9,"context_summary":"frequent collaborator","is_vip":true}`}
	cb := NewContextBuilder(fake)

	result := cb.Run(context.Background(), ContextHistory{Sender: model.Sender{Email: "boss@company.com"}})
	require.Equal(t, model.RelationshipVIP, result.Relationship)
	require.True(t, result.IsVIP)
	require.False(t, result.UsedFallback)
}

func TestContextBuilderFallsBackOnError(t *testing.T) {
	fake := &fakeInvoker{err: errors.New("upstream 500")}
	cb := NewContextBuilder(fake)

	result := cb.Run(context.Background(), ContextHistory{Sender: model.Sender{Email: "noreply@service.com"}})
	require.True(t, result.UsedFallback)
	require.Equal(t, model.RelationshipBot, result.Relationship)
}

func TestContextBuilderFallbackConsumerDomain(t *testing.T) {
	fake := &fakeInvoker{err: errors.New("timeout")}
	cb := NewContextBuilder(fake)

	result := cb.Run(context.Background(), ContextHistory{Sender: model.Sender{Email: "friend@gmail.com"}})
	require.Equal(t, model.RelationshipAcquaintance, result.Relationship)
}

func TestClassifierFallbackContainsFallbackMarker(t *testing.T) {
	fake := &fakeInvoker{err: errors.New("upstream 500")}
	c := NewClassifier(fake)

	result := c.Run(context.Background(), ClassifierInput{
		Content:      "just a regular update",
		Relationship: model.RelationshipWorkContact,
		ReplyRate:    0.5,
	})
	require.True(t, result.UsedFallback)
	require.Contains(t, result.ClassificationReasoning, "fallback")
}

func TestClassifierSuccess(t *testing.T) {
	fake := &fakeInvoker{jsonResponse: `{"priority_label":"urgent","priority_score":0.95,"time_sensitive":true,"classification_reasoning":"explicit urgency"}`}
	c := NewClassifier(fake)

	result := c.Run(context.Background(), ClassifierInput{Content: "need this now"})
	require.Equal(t, model.PriorityUrgent, result.PriorityLabel)
	require.False(t, result.UsedFallback)
}

func TestClassifierRejectsInvalidLabel(t *testing.T) {
	fake := &fakeInvoker{jsonResponse: `{"priority_label":"not-a-label","priority_score":0.5}`}
	c := NewClassifier(fake)

	result := c.Run(context.Background(), ClassifierInput{Content: "hello"})
	require.True(t, result.UsedFallback)
}

func TestSentimentFallbackKeywordPriority(t *testing.T) {
	fake := &fakeInvoker{err: errors.New("down")}
	s := NewSentiment(fake)

	result := s.Run(context.Background(), SentimentInput{Content: "I am absolutely devastated and this is urgent"})
	require.Equal(t, model.SentimentDistressed, result.Sentiment)
	require.True(t, result.UsedFallback)
}

func TestSentimentFallbackDefaultsNeutral(t *testing.T) {
	fake := &fakeInvoker{err: errors.New("down")}
	s := NewSentiment(fake)

	result := s.Run(context.Background(), SentimentInput{Content: "see you at lunch"})
	require.Equal(t, model.SentimentNeutral, result.Sentiment)
}

func TestDraftReplyFallsBackToTemplateOnError(t *testing.T) {
	fake := &fakeInvoker{err: errors.New("timeout")}
	d := NewDraftReply(fake)

	draft := d.Run(context.Background(), fake, DraftReplyInput{
		Message: model.Message{Platform: model.PlatformSlack, Sender: model.Sender{Name: "Alex"}},
	})
	require.Contains(t, draft, "Alex")
}

func TestDraftReplyUsesRunnerOutput(t *testing.T) {
	fake := &fakeInvoker{textResponse: "Sounds good, will do."}
	d := NewDraftReply(fake)

	draft := d.Run(context.Background(), fake, DraftReplyInput{
		Message: model.Message{Platform: model.PlatformGmail, Sender: model.Sender{Name: "Sam"}},
	})
	require.Equal(t, "Sounds good, will do.", draft)
}
