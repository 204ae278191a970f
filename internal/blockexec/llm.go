package blockexec

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"

	"github.com/solace-automations/intentflow/internal/domain"
)

// slotRe matches the same {name} placeholder syntax
// domain.BlockDefinition.Validate enforces against input_schema.
var slotRe = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// renderPromptTemplate does safe slot substitution (§4.3 LLM step 2):
// missing slots render to empty strings rather than erroring.
func renderPromptTemplate(tmpl string, inputs map[string]any) string {
	return slotRe.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := slotRe.FindStringSubmatch(m)[1]
		v, ok := inputs[name]
		if !ok || v == nil {
			return ""
		}
		if s, ok := v.(string); ok {
			return s
		}
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	})
}

// LLMExecutor is the llm-kind KindExecutor, grounded on the teacher's
// OpenAICompletionExecutor (internal/application/executor/node_executors.go):
// direct openai.NewClient(apiKey) construction and a single
// CreateChatCompletion call, no wrapper library — the architectural
// invariant carried over from the teacher's own pattern.
type LLMExecutor struct {
	client      *openai.Client
	model       string
	temperature float32
}

// NewLLMExecutor builds an LLMExecutor with default model gpt-4o and
// temperature 0 (§4.3 step 4 "temperature = 0 by default").
func NewLLMExecutor(apiKey, model string) *LLMExecutor {
	if model == "" {
		model = "gpt-4o"
	}
	return &LLMExecutor{client: openai.NewClient(apiKey), model: model, temperature: 0}
}

func (e *LLMExecutor) Execute(ctx context.Context, block *domain.BlockDefinition, nodeID string, inputs map[string]any, execCtx ExecContext) (map[string]any, error) {
	resolved := ApplyDefaults(block.InputSchema, inputs)
	if err := ValidateInputs(block.ID, nodeID, block.InputSchema, resolved); err != nil {
		return nil, err
	}

	prompt := renderPromptTemplate(block.PromptTemplate, resolved)
	system := systemMessageForBlock(block)

	raw, err := e.complete(ctx, system, prompt)
	if err != nil {
		return nil, domain.BlockRuntimeError(block.ID, nodeID, err)
	}

	output, parseErr := extractJSONObject(raw)
	if parseErr != nil {
		// One retry with a nudge that the previous response was invalid JSON
		// (§4.3 step 5).
		retryPrompt := prompt + "\n\nYour previous response was invalid JSON. Respond with ONLY the JSON object."
		raw2, err2 := e.complete(ctx, system, retryPrompt)
		if err2 != nil {
			return nil, domain.BlockRuntimeError(block.ID, nodeID, err2)
		}
		output, parseErr = extractJSONObject(raw2)
		if parseErr != nil {
			return nil, domain.BlockOutputError(block.ID, nodeID, "raw response: "+raw2, parseErr)
		}
	}

	if err := ValidateOutput(block.ID, nodeID, block.OutputSchema, output); err != nil {
		return nil, err
	}
	return output, nil
}

func (e *LLMExecutor) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       e.model,
		Temperature: e.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm returned no choices")
	}
	log.Debug().Str("model", resp.Model).Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).Msg("block llm call")
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// systemMessageForBlock builds the §4.3 step 3 system message: name +
// description + output_schema, instructing JSON-only output.
func systemMessageForBlock(block *domain.BlockDefinition) string {
	schemaJSON, _ := json.Marshal(block.OutputSchema)
	return fmt.Sprintf(
		"You are executing the block %q: %s\nReturn ONLY a valid JSON object matching this schema, with no prose before or after it:\n%s",
		block.Name, block.Description, string(schemaJSON))
}

// extractJSONObject does a balanced-brace scan for the first complete JSON
// object in text (§4.3 step 5) — tolerant of leading/trailing prose a model
// adds despite instructions not to.
func extractJSONObject(text string) (map[string]any, error) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return nil, fmt.Errorf("no JSON object found in response")
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
			// inside a string literal, braces don't count
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				candidate := text[start : i+1]
				var out map[string]any
				if err := json.Unmarshal([]byte(candidate), &out); err != nil {
					return nil, err
				}
				return out, nil
			}
		}
	}
	return nil, fmt.Errorf("unbalanced JSON object in response")
}
