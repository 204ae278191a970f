package thinker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solace-automations/intentflow/internal/blockexec"
	"github.com/solace-automations/intentflow/internal/domain"
)

// fakeMessenger routes each call to a canned-response queue by inspecting
// which stage's system prompt it was given — the three stages' prompts are
// textually distinct (decompose/"wire a PipelineDAG"/"BlockDefinition"),
// so no call counter is needed to tell them apart.
type fakeMessenger struct {
	mu          sync.Mutex
	decompose   []string
	wire        []string
	synthesize  []string
	decomposeN  int
	wireN       int
	synthesizeN int
}

func (f *fakeMessenger) CreateMessage(ctx context.Context, system, user string) (string, int64, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case strings.Contains(system, "decompose"):
		f.decomposeN++
		return pop(&f.decompose)
	case strings.Contains(system, "wire a PipelineDAG"):
		f.wireN++
		return pop(&f.wire)
	case strings.Contains(system, "BlockDefinition"):
		f.synthesizeN++
		return pop(&f.synthesize)
	}
	return "", 0, 0, fmt.Errorf("fakeMessenger: unrecognized system prompt")
}

// pop returns the next canned response with a fixed, non-zero token count so
// tests asserting on emitLLMExchange's payload have something to check.
func pop(s *[]string) (string, int64, int64, error) {
	if len(*s) == 0 {
		return "", 0, 0, fmt.Errorf("fakeMessenger: no more canned responses")
	}
	v := (*s)[0]
	*s = (*s)[1:]
	return v, 12, 34, nil
}

type fakeBlockStore struct {
	mu     sync.Mutex
	blocks map[string]*domain.BlockDefinition
}

func newFakeBlockStore(seed ...*domain.BlockDefinition) *fakeBlockStore {
	s := &fakeBlockStore{blocks: map[string]*domain.BlockDefinition{}}
	for _, b := range seed {
		s.blocks[b.ID] = b
	}
	return s
}

func (s *fakeBlockStore) Get(ctx context.Context, id string) (*domain.BlockDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blocks[id]
	if !ok {
		return nil, domain.NewDomainError(domain.ErrCodeNotFound, "not found", nil)
	}
	return b, nil
}

func (s *fakeBlockStore) List(ctx context.Context, category domain.Category) ([]*domain.BlockDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.BlockDefinition, 0, len(s.blocks))
	for _, b := range s.blocks {
		if category == "" || b.Category == category {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *fakeBlockStore) Save(ctx context.Context, def *domain.BlockDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks[def.ID] = def
	return nil
}

// fakeEmbedder returns a fixed vector keyed by a substring of the text, so
// tests can control which candidates score as matches without a real
// embedding model.
type fakeEmbedder struct {
	vectors map[string][]float32
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	for key, vec := range f.vectors {
		if strings.Contains(text, key) {
			return vec, nil
		}
	}
	return []float32{0, 0, 1}, nil
}

type fakeExecutor struct {
	fns map[string]func(map[string]any) (map[string]any, error)
}

func (f *fakeExecutor) Execute(ctx context.Context, block *domain.BlockDefinition, nodeID string, inputs map[string]any, execCtx blockexec.ExecContext) (map[string]any, error) {
	fn, ok := f.fns[block.ID]
	if !ok {
		return map[string]any{}, nil
	}
	return fn(inputs)
}

func schemaStringField(required bool) domain.SchemaField {
	return domain.SchemaField{Type: domain.SchemaTypeString, Required: required}
}

func TestThinker_Run_MatchesExistingBlockAndWires(t *testing.T) {
	existing := &domain.BlockDefinition{
		ID:            "fetcher",
		Category:      domain.CategoryProcess,
		ExecutionKind: domain.ExecutionKindCode,
		Source:        "function entrypoint(inputs) { return inputs; }",
		InputSchema:   domain.Schema{"url": schemaStringField(true)},
		OutputSchema:  domain.Schema{"text": schemaStringField(true)},
		Embedding:     []float32{1, 0, 0},
	}
	blocks := newFakeBlockStore(existing)
	embedder := &fakeEmbedder{vectors: map[string][]float32{"existing": {1, 0, 0}}}

	decomposeJSON := `[{"suggested_id":"s1","description":"fetch an existing capability","execution_kind_hint":"code","depends_on":[],"input_schema":{"url":{"type":"string","required":true}},"output_schema":{"text":{"type":"string","required":true}}}]`
	wireJSON := `{"name":"p","nodes":[{"id":"n1","block_id":"fetcher","inputs":{"url":"http://example.com"}}],"edges":[]}`

	messenger := &fakeMessenger{decompose: []string{decomposeJSON}, wire: []string{wireJSON}}
	th := New(messenger, embedder, nil, blocks, &fakeExecutor{}, DefaultConfig())

	result, err := th.Run(context.Background(), "fetch http://example.com and give me the text", "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.ThinkerStateDone, result.Status)
	require.NotNil(t, result.Pipeline)
	require.Len(t, result.Pipeline.Nodes, 1)
	assert.Equal(t, "fetcher", result.Pipeline.Nodes[0].BlockID)
}

func TestThinker_Run_SynthesizesMissingBlock(t *testing.T) {
	blocks := newFakeBlockStore()
	embedder := &fakeEmbedder{} // always returns the unmatched default vector

	decomposeJSON := `[{"suggested_id":"s1","description":"a totally novel capability","execution_kind_hint":"code","depends_on":[],"input_schema":{"url":{"type":"string","required":true}},"output_schema":{"result":{"type":"string","required":true}}}]`
	synthJSON := `{"id":"novel-block","name":"Novel","description":"does something new","use_when":"when nothing else fits","tags":["novel"],"category":"process","execution_kind":"code","input_schema":{"url":{"type":"string","required":true}},"output_schema":{"result":{"type":"string","required":true}},"source":"function entrypoint(inputs) { return {result: inputs.url}; }"}`
	wireJSON := `{"name":"p","nodes":[{"id":"n1","block_id":"novel-block","inputs":{"url":"http://example.com"}}],"edges":[]}`

	messenger := &fakeMessenger{decompose: []string{decomposeJSON}, synthesize: []string{synthJSON}, wire: []string{wireJSON}}
	executor := &fakeExecutor{fns: map[string]func(map[string]any) (map[string]any, error){
		"novel-block": func(inputs map[string]any) (map[string]any, error) {
			return map[string]any{"result": inputs["url"]}, nil
		},
	}}
	th := New(messenger, embedder, nil, blocks, executor, DefaultConfig())

	result, err := th.Run(context.Background(), "do the novel thing with http://example.com", "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.ThinkerStateDone, result.Status)
	require.NotNil(t, result.Pipeline)
	assert.Equal(t, "novel-block", result.Pipeline.Nodes[0].BlockID)

	saved, err := blocks.Get(context.Background(), "novel-block")
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionKindCode, saved.ExecutionKind)
}

func TestThinker_Run_DecomposeFailsAfterRetryReturnsDecomposeError(t *testing.T) {
	messenger := &fakeMessenger{decompose: []string{"not json at all", "still not json"}}
	th := New(messenger, &fakeEmbedder{}, nil, newFakeBlockStore(), &fakeExecutor{}, DefaultConfig())

	result, err := th.Run(context.Background(), "do something", "u1", nil)
	require.Error(t, err)
	assert.Equal(t, domain.ThinkerStateError, result.Status)
	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeDecomposeError, domainErr.Code)
	assert.Equal(t, 2, messenger.decomposeN)
}

func TestThinker_Run_UnresolvedAfterSynthesizeAttemptsExhaustedReturnsUnresolved(t *testing.T) {
	decomposeJSON := `[{"suggested_id":"s1","description":"a capability nothing can satisfy","execution_kind_hint":"code","depends_on":[],"input_schema":{"url":{"type":"string","required":true}},"output_schema":{"result":{"type":"string","required":true}}}]`
	synthJSON := `{"id":"broken-block","name":"Broken","description":"always fails its sample test","use_when":"never","tags":[],"category":"process","execution_kind":"code","input_schema":{"url":{"type":"string","required":true}},"output_schema":{"result":{"type":"string","required":true}},"source":"function entrypoint(inputs) { return {}; }"}`

	messenger := &fakeMessenger{
		decompose:  []string{decomposeJSON},
		synthesize: []string{synthJSON, synthJSON, synthJSON},
	}
	executor := &fakeExecutor{fns: map[string]func(map[string]any) (map[string]any, error){
		"broken-block": func(map[string]any) (map[string]any, error) {
			return nil, fmt.Errorf("boom")
		},
	}}
	th := New(messenger, &fakeEmbedder{}, nil, newFakeBlockStore(), executor, DefaultConfig())

	result, err := th.Run(context.Background(), "do the impossible capability", "u1", nil)
	require.Error(t, err)
	assert.Equal(t, domain.ThinkerStateError, result.Status)
	assert.Equal(t, []string{"s1"}, result.Unresolved)
	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeNoMatchAndNoSynth, domainErr.Code)
}

func TestThinker_Run_WireRetriesOnceThenSucceeds(t *testing.T) {
	existing := &domain.BlockDefinition{
		ID:            "fetcher",
		Category:      domain.CategoryProcess,
		ExecutionKind: domain.ExecutionKindCode,
		Source:        "function entrypoint(inputs) { return inputs; }",
		InputSchema:   domain.Schema{"url": schemaStringField(true)},
		OutputSchema:  domain.Schema{"text": schemaStringField(true)},
		Embedding:     []float32{1, 0, 0},
	}
	blocks := newFakeBlockStore(existing)
	embedder := &fakeEmbedder{vectors: map[string][]float32{"existing": {1, 0, 0}}}

	decomposeJSON := `[{"suggested_id":"s1","description":"fetch an existing capability","execution_kind_hint":"code","depends_on":[],"input_schema":{"url":{"type":"string","required":true}},"output_schema":{"text":{"type":"string","required":true}}}]`
	// First wire attempt puts a template reference on the entry node, which
	// validateWire rejects (entry nodes take only literal inputs).
	badWireJSON := `{"name":"p","nodes":[{"id":"n1","block_id":"fetcher","inputs":{"url":"{{memory.last_url}}"}}],"edges":[]}`
	goodWireJSON := `{"name":"p","nodes":[{"id":"n1","block_id":"fetcher","inputs":{"url":"http://example.com"}}],"edges":[]}`

	messenger := &fakeMessenger{decompose: []string{decomposeJSON}, wire: []string{badWireJSON, goodWireJSON}}
	th := New(messenger, embedder, nil, blocks, &fakeExecutor{}, DefaultConfig())

	result, err := th.Run(context.Background(), "fetch http://example.com", "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.ThinkerStateDone, result.Status)
	assert.Equal(t, 2, messenger.wireN)
}
