package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/inboxd/inboxd/internal/model"
)

// ToneProfile is a fixed per-platform drafting style.
type ToneProfile struct {
	Name        string
	Description string
}

var toneProfiles = map[model.Platform]ToneProfile{
	model.PlatformGmail:    {Name: "mail-style", Description: "professional, greeting+sign-off, <=150 words"},
	model.PlatformSlack:    {Name: "chat-ops", Description: "no greeting, <=3 sentences, casual-professional"},
	model.PlatformTelegram: {Name: "bot-chat", Description: "direct, 1-3 sentences"},
	model.PlatformDiscord:  {Name: "community-chat", Description: "casual, 1-2 sentences"},
}

// personalChatTone is available for adapters/contacts flagged as
// personal rather than platform-default (e.g. a close contact on a work
// platform); not wired to a platform by default.
var personalChatTone = ToneProfile{Name: "personal-chat", Description: "warm, short sentences, 1-3 sentences"}

func toneFor(platform model.Platform) ToneProfile {
	if t, ok := toneProfiles[platform]; ok {
		return t
	}
	return personalChatTone
}

const draftReplySystemPromptTemplate = `You are drafting a reply on behalf of the user. ` +
	`Match this tone profile: %s (%s). Address the received content directly. ` +
	`Do not open with stock pleasantries like "I hope this email finds you well". ` +
	`Respond with the reply text only, no surrounding markup or quotes.`

// DraftReplyInput bundles the message, thread context, and an optional
// careful-response note surfaced when sentiment is tense or distressed.
type DraftReplyInput struct {
	Message        model.Message
	ThreadMessages []string // last <=5 thread messages, oldest first
	CarefulNote    string   // set when sentiment in {tense, distressed}
}

// DraftReply drafts a reply matching the platform's fixed tone profile.
type DraftReply struct {
	runner Invoker
}

func NewDraftReply(runner Invoker) *DraftReply {
	return &DraftReply{runner: runner}
}

// draftRunner is the narrower text-only call DraftReply needs; InvokeJSON
// would force a JSON envelope around free text, so DraftReply calls
// Invoke directly through this interface instead.
type draftRunner interface {
	Invoke(ctx context.Context, model, systemPrompt, userMessage string, maxTokens int64) (string, error)
}

func (d *DraftReply) Run(ctx context.Context, runner draftRunner, in DraftReplyInput) string {
	tone := toneFor(in.Message.Platform)
	systemPrompt := fmt.Sprintf(draftReplySystemPromptTemplate, tone.Name, tone.Description)
	if in.CarefulNote != "" {
		systemPrompt += " Note: " + in.CarefulNote
	}

	userMessage := renderDraftPrompt(in)

	text, err := runner.Invoke(ctx, ModelSonnet, systemPrompt, userMessage, 400)
	if err != nil || strings.TrimSpace(text) == "" {
		return draftReplyFallback(in)
	}
	return strings.TrimSpace(text)
}

func renderDraftPrompt(in DraftReplyInput) string {
	var b strings.Builder
	b.WriteString("Sender: ")
	b.WriteString(in.Message.Sender.Name)
	b.WriteString("\nMessage:\n")
	b.WriteString(in.Message.ContentText)
	if len(in.ThreadMessages) > 0 {
		b.WriteString("\n\nRecent thread:\n")
		for _, m := range in.ThreadMessages {
			b.WriteString("- ")
			b.WriteString(m)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// draftReplyFallback returns a platform-keyed template addressing the
// sender by name, used when the LLM call fails or returns empty text.
func draftReplyFallback(in DraftReplyInput) string {
	name := in.Message.Sender.Name
	if name == "" {
		name = "there"
	}
	switch in.Message.Platform {
	case model.PlatformGmail:
		return fmt.Sprintf("Hi %s,\n\nThanks for your message — I'll follow up shortly.\n\nBest,", name)
	case model.PlatformSlack:
		return fmt.Sprintf("Thanks %s, I'll get back to you on this shortly.", name)
	case model.PlatformTelegram:
		return fmt.Sprintf("Got it, %s — will respond soon.", name)
	case model.PlatformDiscord:
		return fmt.Sprintf("thanks %s, on it!", name)
	default:
		return fmt.Sprintf("Thanks %s, I'll follow up soon.", name)
	}
}
