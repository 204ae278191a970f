package thinker

import (
	"context"
	"time"

	"github.com/solace-automations/intentflow/internal/blockexec"
	"github.com/solace-automations/intentflow/internal/domain"
	"github.com/solace-automations/intentflow/internal/eventbus"
	"github.com/solace-automations/intentflow/internal/registry"
)

// Messenger is the minimal anthropic-sdk-go surface the Thinker's agentic
// stages call directly (spec.md §9's architectural invariant: no generic
// LLM wrapper). It is structurally identical to
// registry.AnthropicMessenger — the same concrete adapter built in
// cmd/server over anthropic-sdk-go's messages.Service satisfies both,
// without this package importing registry for it.
type Messenger interface {
	CreateMessage(ctx context.Context, systemPrompt, userPrompt string) (response string, promptTokens, completionTokens int64, err error)
}

// BlockStore is the registry surface the Thinker needs: read candidates for
// Search, persist a newly synthesized block. Narrowed from *registry.Store
// so Run can be driven in tests against an in-memory fake.
type BlockStore interface {
	Get(ctx context.Context, id string) (*domain.BlockDefinition, error)
	List(ctx context.Context, category domain.Category) ([]*domain.BlockDefinition, error)
	Save(ctx context.Context, def *domain.BlockDefinition) error
}

// Executor is the block-execution surface the Synthesize stage's sample
// test (§4.5 Stage C step 3) runs a candidate block through. Narrowed from
// *blockexec.Dispatcher for the same testability reason as doer.Executor.
type Executor interface {
	Execute(ctx context.Context, block *domain.BlockDefinition, nodeID string, inputs map[string]any, execCtx blockexec.ExecContext) (map[string]any, error)
}

// Thinker runs the Decompose -> Search -> Synthesize -> Wire state machine
// (§4.5). One Thinker is built once at process start and reused across
// requests; Run is safe for concurrent use since it carries no mutable
// per-call state on the receiver.
type Thinker struct {
	messenger Messenger
	embedder  registry.EmbeddingProvider
	rewriter  registry.QueryRewriter
	blocks    BlockStore
	executor  Executor
	config    Config
}

// New constructs a Thinker. rewriter may be nil (Search then skips query
// rewriting and embeds the raw description, per registry.EmbedQuery).
func New(messenger Messenger, embedder registry.EmbeddingProvider, rewriter registry.QueryRewriter, blocks BlockStore, executor Executor, config Config) *Thinker {
	if config == (Config{}) {
		config = DefaultConfig()
	}
	return &Thinker{messenger: messenger, embedder: embedder, rewriter: rewriter, blocks: blocks, executor: executor, config: config}
}

// Run drives the full state machine for one refined intent (produced by
// the Clarifier, §4.6) and returns a terminal Result. sink may be nil.
func (t *Thinker) Run(ctx context.Context, refinedIntent, userID string, sink eventbus.Sink) (*Result, error) {
	if sink == nil {
		sink = eventbus.NopSink{}
	}

	t.emitStage(sink, userID, domain.ThinkerStateDecomposing)
	specs, err := t.decompose(ctx, refinedIntent, userID, sink)
	if err != nil {
		t.emitComplete(sink, userID, nil, domain.ThinkerStateError)
		return &Result{Status: domain.ThinkerStateError}, err
	}

	t.emitStage(sink, userID, domain.ThinkerStateSearching)
	matched, missing, err := t.search(ctx, specs, userID, sink)
	if err != nil {
		t.emitComplete(sink, userID, nil, domain.ThinkerStateError)
		return &Result{Status: domain.ThinkerStateError}, err
	}

	if len(missing) > 0 {
		t.emitStage(sink, userID, domain.ThinkerStateSynthesizing)
		synthesized, unresolved := t.synthesizeAll(ctx, missing, userID, sink)
		for id, def := range synthesized {
			matched[id] = def
		}
		if len(unresolved) > 0 {
			t.emitComplete(sink, userID, nil, domain.ThinkerStateError)
			return &Result{Status: domain.ThinkerStateError, Unresolved: unresolved}, domain.NoMatchAndNoSynthesisError(unresolved)
		}
	}

	t.emitStage(sink, userID, domain.ThinkerStateWiring)
	pipeline, err := t.wire(ctx, refinedIntent, matched, userID, sink)
	if err != nil {
		t.emitComplete(sink, userID, nil, domain.ThinkerStateError)
		return &Result{Status: domain.ThinkerStateError}, err
	}

	t.emitComplete(sink, userID, pipeline, domain.ThinkerStateDone)
	return &Result{Pipeline: pipeline, Status: domain.ThinkerStateDone}, nil
}

func (t *Thinker) emitStage(sink eventbus.Sink, userID string, state domain.ThinkerState) {
	sink.Publish(eventbus.Event{
		Kind:      eventbus.KindStage,
		Timestamp: time.Now(),
		UserID:    userID,
		Payload:   map[string]any{"stage": state.String()},
	})
}

func (t *Thinker) emitComplete(sink eventbus.Sink, userID string, pipeline *domain.PipelineDAG, status domain.ThinkerState) {
	sink.Publish(eventbus.Event{
		Kind:      eventbus.KindComplete,
		Timestamp: time.Now(),
		UserID:    userID,
		Payload:   map[string]any{"pipeline": pipeline, "status": status.String()},
	})
}

// emitLLMExchange records one prompt/response round trip on the event bus.
// The llm_response payload's prompt_tokens/completion_tokens mirror the
// teacher's MetricsCollector.RecordAIRequest accounting so a downstream
// consumer can total cost per run without re-deriving it from raw text.
// monitoring.Sink does not read llm_prompt or llm_response events.
func (t *Thinker) emitLLMExchange(sink eventbus.Sink, userID, system, user string, started time.Time, response string, promptTokens, completionTokens int64, err error) {
	sink.Publish(eventbus.Event{
		Kind:      eventbus.KindLLMPrompt,
		Timestamp: started,
		UserID:    userID,
		Payload:   map[string]any{"system": system, "user": user},
	})
	payload := map[string]any{
		"elapsed_ms":        time.Since(started).Milliseconds(),
		"prompt_tokens":     promptTokens,
		"completion_tokens": completionTokens,
	}
	if err != nil {
		payload["error"] = err.Error()
	} else {
		payload["response"] = response
	}
	sink.Publish(eventbus.Event{
		Kind:      eventbus.KindLLMResponse,
		Timestamp: time.Now(),
		UserID:    userID,
		Payload:   payload,
	})
}
