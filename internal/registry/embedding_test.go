package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/solace-automations/intentflow/internal/domain"
)

type fakeRewriter struct {
	rewritten string
	err       error
}

func (f *fakeRewriter) Rewrite(ctx context.Context, rawQuery string, hint domain.ExecutionKind) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.rewritten, nil
}

type fakeEmbedder struct {
	vector []float32
	err    error
	lastIn string
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.lastIn = text
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

func TestEmbedQuery_UsesRewrittenTextWhenAvailable(t *testing.T) {
	rewriter := &fakeRewriter{rewritten: "structured query"}
	embedder := &fakeEmbedder{vector: []float32{0.1, 0.2}}

	text, vec, err := EmbedQuery(context.Background(), embedder, rewriter, "raw query", domain.ExecutionKindLLM)

	assert.NoError(t, err)
	assert.Equal(t, "structured query", text)
	assert.Equal(t, "structured query", embedder.lastIn)
	assert.Equal(t, []float32{0.1, 0.2}, vec)
}

func TestEmbedQuery_FallsBackToRawQueryWhenRewriterFails(t *testing.T) {
	rewriter := &fakeRewriter{err: errors.New("rewrite unavailable")}
	embedder := &fakeEmbedder{vector: []float32{0.1, 0.2}}

	text, _, err := EmbedQuery(context.Background(), embedder, rewriter, "raw query", "")

	assert.NoError(t, err)
	assert.Equal(t, "raw query", text)
}

func TestEmbedQuery_NilRewriterSkipsRewrite(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{1}}
	text, _, err := EmbedQuery(context.Background(), embedder, nil, "raw query", "")
	assert.NoError(t, err)
	assert.Equal(t, "raw query", text)
}

func TestEmbedQuery_EmbedderErrorPropagates(t *testing.T) {
	embedder := &fakeEmbedder{err: errors.New("provider down")}
	_, vec, err := EmbedQuery(context.Background(), embedder, nil, "raw query", "")
	assert.Error(t, err)
	assert.Nil(t, vec)
}

func TestAnthropicQueryRewriter_DegradesToRawQueryOnError(t *testing.T) {
	rewriter := NewAnthropicQueryRewriter(failingMessenger{}, "claude-haiku")
	out, err := rewriter.Rewrite(context.Background(), "find a summarizer", domain.ExecutionKindLLM)
	assert.NoError(t, err)
	assert.Equal(t, "find a summarizer", out)
}

type failingMessenger struct{}

func (failingMessenger) CreateMessage(ctx context.Context, systemPrompt, userPrompt string) (string, int64, int64, error) {
	return "", 0, 0, errors.New("unavailable")
}
