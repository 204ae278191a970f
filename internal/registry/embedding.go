package registry

import (
	"context"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/solace-automations/intentflow/internal/domain"
)

// EmbeddingProvider turns text into a vector for semantic search. Save and
// embed_query (§4.2) both go through this interface so the registry never
// depends on a concrete provider directly.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// OpenAIEmbedder is the default EmbeddingProvider, grounded on the teacher's
// own `openai.NewClient(apiKey)` + direct SDK call pattern
// (internal/application/executor/node_executors.go) — per the architectural
// invariant that LLM/embedding calls go straight through the provider SDK,
// never a generic wrapper.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

// NewOpenAIEmbedder constructs an embedder using the given model, defaulting
// to text-embedding-3-small when model is empty.
func NewOpenAIEmbedder(apiKey string, model openai.EmbeddingModel) *OpenAIEmbedder {
	if model == "" {
		model = openai.SmallEmbedding3
	}
	return &OpenAIEmbedder{client: openai.NewClient(apiKey), model: model}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: e.model,
	})
	if err != nil {
		return nil, domain.NewDomainError(domain.ErrCodeStoreError, "embedding request failed", err)
	}
	if len(resp.Data) == 0 {
		return nil, domain.NewDomainError(domain.ErrCodeStoreError, "embedding provider returned no data", nil)
	}
	return resp.Data[0].Embedding, nil
}

// QueryRewriter rewrites a raw natural-language query into a structured
// query representation before embedding, when the caller supplies an
// execution-kind hint (§4.2: "first rewrites the raw query into a structured
// query representation... via an LLM call before embedding"). It is a
// distinct, optional collaborator from EmbeddingProvider: a query rewrite is
// a completion call, an embed is an embedding call, and the architectural
// invariant keeps each on its own direct SDK path.
type QueryRewriter interface {
	Rewrite(ctx context.Context, rawQuery string, executionKindHint domain.ExecutionKind) (string, error)
}

// AnthropicQueryRewriter rewrites search queries via a direct
// anthropic-sdk-go call, grounded on the same "direct provider SDK, no
// wrapper" invariant as OpenAIEmbedder.
type AnthropicQueryRewriter struct {
	client AnthropicMessenger
	model  string
}

// AnthropicMessenger is the minimal subset of anthropic-sdk-go's
// messages.Service this package depends on, so tests can supply a fake
// without touching the SDK's full client construction.
type AnthropicMessenger interface {
	CreateMessage(ctx context.Context, systemPrompt, userPrompt string) (response string, promptTokens, completionTokens int64, err error)
}

// NewAnthropicQueryRewriter constructs a rewriter over an already-built
// AnthropicMessenger adapter (see cmd/server for the concrete anthropic-sdk-go
// wiring).
func NewAnthropicQueryRewriter(client AnthropicMessenger, model string) *AnthropicQueryRewriter {
	return &AnthropicQueryRewriter{client: client, model: model}
}

const queryRewriteSystemPrompt = `You rewrite a user's natural-language automation request into a short, ` +
	`keyword-dense query describing the single capability being searched for. Respond with the rewritten ` +
	`query only, no preamble, no quotes.`

func (r *AnthropicQueryRewriter) Rewrite(ctx context.Context, rawQuery string, hint domain.ExecutionKind) (string, error) {
	prompt := rawQuery
	if hint != "" {
		prompt = "execution_kind_hint: " + hint.String() + "\nquery: " + rawQuery
	}
	out, _, _, err := r.client.CreateMessage(ctx, queryRewriteSystemPrompt, prompt)
	if err != nil {
		// Embedding-provider / rewriter errors degrade to lexical-only search
		// with reduced confidence (§4.2) rather than failing the request.
		return rawQuery, nil
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return rawQuery, nil
	}
	return out, nil
}

// EmbedQuery resolves §4.2's embed_query operation: optionally rewrite the
// raw query via rewriter (nil skips rewriting), then embed. Any embedder
// failure is reported to the caller so it can fall back to Search with a nil
// queryEmbedding (pure lexical scoring) rather than aborting the search.
func EmbedQuery(ctx context.Context, embedder EmbeddingProvider, rewriter QueryRewriter, rawQuery string, hint domain.ExecutionKind) (text string, embedding []float32, err error) {
	text = rawQuery
	if rewriter != nil {
		if rewritten, rerr := rewriter.Rewrite(ctx, rawQuery, hint); rerr == nil && rewritten != "" {
			text = rewritten
		}
	}
	embedding, err = embedder.Embed(ctx, text)
	if err != nil {
		return text, nil, err
	}
	return text, embedding, nil
}
