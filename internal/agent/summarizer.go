package agent

import (
	"context"
	"strings"
)

const summarizerSystemPrompt = `You are summarizing a message thread for a unified inbox. ` +
	`Given the thread's messages oldest-first, write a single paragraph (2-4 sentences) ` +
	`summarizing what has been discussed and any open items. Output the summary text only, ` +
	`no preamble, no markdown.`

// ThreadSummarizer produces a short prose summary of a thread, run lazily
// when a thread is fetched with more than five messages rather than as
// part of the per-message enrichment pipeline.
type ThreadSummarizer struct {
	runner Invoker
}

func NewThreadSummarizer(runner Invoker) *ThreadSummarizer {
	return &ThreadSummarizer{runner: runner}
}

type summarizerResponse struct {
	Summary string `json:"summary"`
}

// Summarize renders the thread body and asks for a JSON-wrapped summary
// string, falling back to a fixed generic note on any failure.
func (s *ThreadSummarizer) Summarize(ctx context.Context, messages []string) string {
	var resp summarizerResponse
	prompt := "Output strict JSON only: {\"summary\": string}.\n\nThread:\n" + renderThreadPrompt(messages)
	if err := s.runner.InvokeJSON(ctx, ModelHaiku, summarizerSystemPrompt, prompt, 300, &resp); err != nil || strings.TrimSpace(resp.Summary) == "" {
		return summarizerFallback(messages)
	}
	return strings.TrimSpace(resp.Summary)
}

func renderThreadPrompt(messages []string) string {
	var b strings.Builder
	for _, m := range messages {
		b.WriteString("- ")
		b.WriteString(m)
		b.WriteString("\n")
	}
	return b.String()
}

func summarizerFallback(messages []string) string {
	return "This thread has multiple messages; a summary could not be generated at this time."
}
