package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solace-automations/intentflow/internal/clarifier"
	"github.com/solace-automations/intentflow/internal/doer"
	"github.com/solace-automations/intentflow/internal/domain"
	"github.com/solace-automations/intentflow/internal/eventbus"
	"github.com/solace-automations/intentflow/internal/thinker"
)

func testLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

// fakeClarifier always reports readiness on the second Step call.
type fakeClarifier struct {
	calls int
	err   error
}

func (f *fakeClarifier) Step(ctx context.Context, session *domain.ClarifierSession, userMessage string) (*clarifier.StepResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.calls++
	if f.calls < 2 {
		return &clarifier.StepResult{Ready: false, Question: "what output do you want?"}, nil
	}
	return &clarifier.StepResult{Ready: true, RefinedIntent: "send a daily weather email"}, nil
}

type fakeThinker struct {
	result *thinker.Result
	err    error
}

func (f *fakeThinker) Run(ctx context.Context, refinedIntent, userID string, sink eventbus.Sink) (*thinker.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	sink.Publish(eventbus.Event{Kind: eventbus.KindDecomposeBlocks})
	return f.result, nil
}

type fakeDoer struct {
	rs  *domain.RunState
	err error
}

func (f *fakeDoer) Run(ctx context.Context, pipeline *domain.PipelineDAG, userID string, sink eventbus.Sink) (*domain.RunState, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.rs, nil
}

type fakeBlockStore struct {
	blocks map[string]*domain.BlockDefinition
}

func newFakeBlockStore() *fakeBlockStore {
	return &fakeBlockStore{blocks: make(map[string]*domain.BlockDefinition)}
}

func (f *fakeBlockStore) Get(ctx context.Context, id string) (*domain.BlockDefinition, error) {
	b, ok := f.blocks[id]
	if !ok {
		return nil, domain.NewDomainError(domain.ErrCodeNotFound, "block "+id+" not found", nil)
	}
	return b, nil
}

func (f *fakeBlockStore) List(ctx context.Context, category domain.Category) ([]*domain.BlockDefinition, error) {
	out := make([]*domain.BlockDefinition, 0, len(f.blocks))
	for _, b := range f.blocks {
		if category != "" && b.Category != category {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (f *fakeBlockStore) Save(ctx context.Context, def *domain.BlockDefinition) error {
	f.blocks[def.ID] = def
	return nil
}

func (f *fakeBlockStore) Delete(ctx context.Context, id string) error {
	delete(f.blocks, id)
	return nil
}

type fakePipelineStore struct {
	pipelines map[string]*domain.PipelineDAG
}

func newFakePipelineStore() *fakePipelineStore {
	return &fakePipelineStore{pipelines: make(map[string]*domain.PipelineDAG)}
}

func (f *fakePipelineStore) Save(ctx context.Context, dag *domain.PipelineDAG) error {
	f.pipelines[dag.ID] = dag
	return nil
}

func (f *fakePipelineStore) Get(ctx context.Context, id string) (*domain.PipelineDAG, error) {
	p, ok := f.pipelines[id]
	if !ok {
		return nil, domain.NewDomainError(domain.ErrCodeNotFound, "pipeline "+id+" not found", nil)
	}
	return p, nil
}

func (f *fakePipelineStore) List(ctx context.Context) ([]*domain.PipelineDAG, error) {
	out := make([]*domain.PipelineDAG, 0, len(f.pipelines))
	for _, p := range f.pipelines {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakePipelineStore) Delete(ctx context.Context, id string) error {
	delete(f.pipelines, id)
	return nil
}

type fakeExecutionStore struct {
	model *doer.ExecutionModel
	err   error
}

func (f *fakeExecutionStore) Get(ctx context.Context, runID string) (*doer.ExecutionModel, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.model, nil
}

type fakeMemoryReader struct {
	memory map[string]any
	err    error
}

func (f *fakeMemoryReader) LoadMemory(ctx context.Context, userID string) (map[string]any, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.memory, nil
}

func newTestServer() *Server {
	logger := testLogger()
	return NewServer(Deps{
		Clarifier: &fakeClarifier{},
		Thinker:   &fakeThinker{result: &thinker.Result{Status: domain.ThinkerStateDone, Pipeline: &domain.PipelineDAG{ID: "p1"}}},
		Doer:      &fakeDoer{rs: newTestRunState()},
		Blocks:    newFakeBlockStore(),
		Pipelines: newFakePipelineStore(),
		Execs:     &fakeExecutionStore{model: &doer.ExecutionModel{RunID: "r1", Results: []byte(`{}`), Log: []byte(`[]`)}},
		Memory:    &fakeMemoryReader{memory: map[string]any{"last_city": "Paris"}},
		Logger:    logger,
	})
}

func newTestRunState() *domain.RunState {
	rs := domain.NewRunState("r1", "p1", "u1", nil, nil)
	rs.Finish(domain.RunStatusCompleted)
	return rs
}

func doRequest(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestHandleClarify_AsksQuestionThenReady(t *testing.T) {
	srv := newTestServer()

	rec := doRequest(t, srv, http.MethodPost, "/clarify", clarifyRequest{Message: "I want an automation"})
	require.Equal(t, http.StatusOK, rec.Code)
	var first clarifyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	assert.False(t, first.Ready)
	assert.NotEmpty(t, first.Question)
	assert.NotEmpty(t, first.SessionID)

	rec2 := doRequest(t, srv, http.MethodPost, "/clarify", clarifyRequest{SessionID: first.SessionID, Message: "daily weather email"})
	require.Equal(t, http.StatusOK, rec2.Code)
	var second clarifyResponse
	require.NoError(t, json.Unmarshal(rec2.Body.Bytes(), &second))
	assert.True(t, second.Ready)
	assert.Equal(t, "send a daily weather email", second.RefinedIntent)
}

func TestHandleCreateAgent_Success(t *testing.T) {
	srv := newTestServer()
	rec := doRequest(t, srv, http.MethodPost, "/create-agent", createAgentRequest{RefinedIntent: "do the thing", UserID: "u1"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp createAgentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(domain.ThinkerStateDone), resp.Status)
	require.NotNil(t, resp.Pipeline)
	assert.Equal(t, "p1", resp.Pipeline.ID)
}

func TestHandleCreateAgentStream_WritesSSERecords(t *testing.T) {
	srv := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/create-agent/stream", bytes.NewReader(mustJSON(t, createAgentRequest{RefinedIntent: "x", UserID: "u1"})))
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "event: ")
	assert.Contains(t, rec.Body.String(), "data: ")
}

func TestHandlePipelineRun_Success(t *testing.T) {
	srv := newTestServer()
	rec := doRequest(t, srv, http.MethodPost, "/pipeline/run", pipelineRunRequest{
		Pipeline: &domain.PipelineDAG{ID: "p1"},
		UserID:   "u1",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp pipelineRunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "r1", resp.RunID)
	assert.Equal(t, "completed", resp.Status)
}

type fakeSink struct {
	events []eventbus.Event
}

func (f *fakeSink) Publish(e eventbus.Event) error {
	f.events = append(f.events, e)
	return nil
}

func TestNewRunSink_FansOutToPersistentSinksAndExtras(t *testing.T) {
	persistent := &fakeSink{}
	extra := &fakeSink{}

	srv := NewServer(Deps{
		Clarifier:       &fakeClarifier{},
		Thinker:         &fakeThinker{},
		Doer:            &fakeDoer{},
		Blocks:          newFakeBlockStore(),
		Pipelines:       newFakePipelineStore(),
		Execs:           &fakeExecutionStore{},
		Memory:          &fakeMemoryReader{},
		Logger:          testLogger(),
		PersistentSinks: []eventbus.Sink{persistent},
	})

	bus := srv.newRunSink(extra)
	require.NoError(t, bus.Publish(eventbus.Event{Kind: eventbus.KindRunStart, RunID: "r1"}))

	require.Len(t, persistent.events, 1)
	require.Len(t, extra.events, 1)
	assert.Equal(t, eventbus.KindRunStart, persistent.events[0].Kind)
}

func TestHandlePipelineRun_MissingPipeline(t *testing.T) {
	srv := newTestServer()
	rec := doRequest(t, srv, http.MethodPost, "/pipeline/run", pipelineRunRequest{UserID: "u1"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, domain.ErrCodeInvalidInput, body.Code)
}

func TestHandleAutomate_ChainsThinkerAndDoer(t *testing.T) {
	srv := newTestServer()
	rec := doRequest(t, srv, http.MethodPost, "/automate", automateRequest{RefinedIntent: "x", UserID: "u1"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp automateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "completed", resp.Status)
	require.NotNil(t, resp.Run)
	assert.Equal(t, "r1", resp.Run.RunID)
}

func TestHandleBlocks_SaveGetListDelete(t *testing.T) {
	srv := newTestServer()

	def := domain.BlockDefinition{
		ID:            "b1",
		Category:      domain.CategoryProcess,
		ExecutionKind: domain.ExecutionKindLLM,
		PromptTemplate: "say hi to {name}",
		InputSchema:   domain.Schema{"name": {Type: domain.SchemaTypeString}},
	}
	rec := doRequest(t, srv, http.MethodPost, "/blocks", def)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/blocks/b1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got domain.BlockDefinition
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "b1", got.ID)

	rec = doRequest(t, srv, http.MethodGet, "/blocks", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []*domain.BlockDefinition
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	rec = doRequest(t, srv, http.MethodDelete, "/blocks/b1", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/blocks/b1", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleSearchBlocks_RequiresQuery(t *testing.T) {
	srv := newTestServer()
	rec := doRequest(t, srv, http.MethodGet, "/blocks/search", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSearchBlocks_LexicalFallback(t *testing.T) {
	srv := newTestServer()
	def := domain.BlockDefinition{
		ID: "weather-fetch", Category: domain.CategoryProcess, ExecutionKind: domain.ExecutionKindCode,
		Source: "def entrypoint(inputs, context): return {}",
		Description: "fetches current weather for a city",
	}
	doRequest(t, srv, http.MethodPost, "/blocks", def)

	rec := doRequest(t, srv, http.MethodGet, "/blocks/search?q=weather", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp searchBlocksResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Matches, 1)
	assert.Equal(t, "weather-fetch", resp.Matches[0].Block.ID)
}

func TestHandlePipelines_GetListDelete(t *testing.T) {
	srv := newTestServer()
	srv.pipelines.(*fakePipelineStore).pipelines["pl1"] = &domain.PipelineDAG{ID: "pl1", Name: "daily weather"}

	rec := doRequest(t, srv, http.MethodGet, "/pipelines/pl1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/pipelines", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []*domain.PipelineDAG
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	rec = doRequest(t, srv, http.MethodDelete, "/pipelines/pl1", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHandleGetPipeline_NotFound(t *testing.T) {
	srv := newTestServer()
	rec := doRequest(t, srv, http.MethodGet, "/pipelines/missing", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, domain.ErrCodeNotFound, body.Code)
}

func TestHandleGetExecution_Success(t *testing.T) {
	srv := newTestServer()
	rec := doRequest(t, srv, http.MethodGet, "/executions/r1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp executionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "r1", resp.RunID)
}

func TestHandleGetMemory_Success(t *testing.T) {
	srv := newTestServer()
	rec := doRequest(t, srv, http.MethodGet, "/memory/u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var memory map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &memory))
	assert.Equal(t, "Paris", memory["last_city"])
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}
