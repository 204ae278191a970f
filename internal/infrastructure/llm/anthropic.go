// Package llm builds the one concrete anthropic-sdk-go adapter
// thinker.Messenger, clarifier.Messenger, and registry.AnthropicMessenger
// all share — the architectural invariant those packages' doc comments
// describe: a single direct-SDK messenger, no generic LLM wrapper.
package llm

import (
	"context"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicMessenger wraps anthropic-sdk-go's messages.Service behind the
// CreateMessage(ctx, system, user) (string, error) shape every agentic
// collaborator in this repo depends on, grounded on
// intelligencedev-manifold's internal/llm/anthropic.Client: direct
// anthropic.NewClient(option.WithAPIKey(...)) construction, single
// Messages.New call, no retry/caching layer on top.
type AnthropicMessenger struct {
	sdk       anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewAnthropicMessenger builds a messenger using the given model, defaulting
// to Claude 3.7 Sonnet when model is empty.
func NewAnthropicMessenger(apiKey, model string) *AnthropicMessenger {
	m := anthropic.Model(strings.TrimSpace(model))
	if m == "" {
		m = anthropic.ModelClaude3_7SonnetLatest
	}
	return &AnthropicMessenger{
		sdk:       anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     m,
		maxTokens: 4096,
	}
}

// CreateMessage sends one single-turn request and concatenates the text
// blocks of the reply — the Clarifier/Thinker/query-rewriter stages this
// feeds are all single-shot prompt/response calls, never multi-turn tool use.
// It also surfaces the SDK's reported token usage so callers can mirror the
// teacher's MetricsCollector.RecordAIRequest(promptTokens, completionTokens,
// latency) accounting instead of discarding it.
func (m *AnthropicMessenger) CreateMessage(ctx context.Context, systemPrompt, userPrompt string) (response string, promptTokens, completionTokens int64, err error) {
	resp, err := m.sdk.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     m.model,
		MaxTokens: m.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return "", 0, 0, err
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(text.Text)
		}
	}
	return sb.String(), resp.Usage.InputTokens, resp.Usage.OutputTokens, nil
}
