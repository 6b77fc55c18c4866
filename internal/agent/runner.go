// Package agent implements the single LLM call pattern shared by the
// three enrichment agents and draft reply: render a prompt, invoke the
// model with a JSON-only system prompt, validate the response against an
// enumerated domain, and fall back deterministically on any failure.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
)

// Model hints for the haiku/sonnet classes named in the component design.
// They are fixed constants; Config has no setting that overrides them.
const (
	ModelHaiku  = "claude-haiku-4-5-20251001"
	ModelSonnet = "claude-sonnet-4-5-20250929"
)

// callTimeout is the hard per-call timeout; any call exceeding it (or
// erroring, or returning unparseable JSON) triggers the caller's fallback.
const callTimeout = 30 * time.Second

// Runner invokes the LLM provider with a system prompt and single user
// message, returning the raw text of the first text content block.
type Runner struct {
	client anthropic.Client
}

// NewRunner builds a Runner using ANTHROPIC_API_KEY from the environment,
// matching the teacher's zero-argument anthropic.NewClient() call.
func NewRunner() *Runner {
	return &Runner{client: anthropic.NewClient()}
}

// Invoke renders systemPrompt and userMessage against model, enforcing
// callTimeout regardless of the caller's own context deadline.
func (r *Runner) Invoke(ctx context.Context, model, systemPrompt, userMessage string, maxTokens int64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	msg, err := r.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userMessage)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("agent: anthropic messages: %w", err)
	}

	for _, block := range msg.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("agent: no text block in response")
}

// InvokeJSON is Invoke followed by strict JSON decoding into out. A parse
// failure is surfaced to the caller, which is expected to fall back.
func (r *Runner) InvokeJSON(ctx context.Context, model, systemPrompt, userMessage string, maxTokens int64, out any) error {
	text, err := r.Invoke(ctx, model, systemPrompt, userMessage, maxTokens)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("agent: parse JSON response: %w", err)
	}
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
