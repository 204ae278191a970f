// Package rest implements the host store's HTTP surface (spec §6.1):
// POST /clarify, POST /create-agent[/stream], POST /pipeline/run,
// POST /automate, the /blocks and /pipelines CRUD+search routes,
// GET /executions/{run_id}, and GET /memory/{user_id}. The WS
// /execution/{run_id} route is served by internal/infrastructure/websocket
// directly and is wired alongside this package's mux in cmd/server, not
// inside it.
package rest

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/solace-automations/intentflow/internal/clarifier"
	"github.com/solace-automations/intentflow/internal/doer"
	"github.com/solace-automations/intentflow/internal/domain"
	"github.com/solace-automations/intentflow/internal/eventbus"
	"github.com/solace-automations/intentflow/internal/infrastructure/websocket"
	"github.com/solace-automations/intentflow/internal/registry"
	"github.com/solace-automations/intentflow/internal/thinker"
)

// ClarifierStepper is the Clarifier surface POST /clarify drives.
type ClarifierStepper interface {
	Step(ctx context.Context, session *domain.ClarifierSession, userMessage string) (*clarifier.StepResult, error)
}

// ThinkerRunner is the Thinker surface POST /create-agent[/stream] and
// POST /automate drive.
type ThinkerRunner interface {
	Run(ctx context.Context, refinedIntent, userID string, sink eventbus.Sink) (*thinker.Result, error)
}

// DoerRunner is the Doer surface POST /pipeline/run and POST /automate
// drive.
type DoerRunner interface {
	Run(ctx context.Context, pipeline *domain.PipelineDAG, userID string, sink eventbus.Sink) (*domain.RunState, error)
}

// BlockStore is the registry surface the /blocks routes need. Narrowed
// from *registry.Store so handlers can be tested against a fake.
type BlockStore interface {
	Get(ctx context.Context, id string) (*domain.BlockDefinition, error)
	List(ctx context.Context, category domain.Category) ([]*domain.BlockDefinition, error)
	Save(ctx context.Context, def *domain.BlockDefinition) error
	Delete(ctx context.Context, id string) error
}

// PipelineStore is the registry surface the /pipelines routes need.
// Narrowed from *registry.PipelineStore.
type PipelineStore interface {
	Save(ctx context.Context, dag *domain.PipelineDAG) error
	Get(ctx context.Context, id string) (*domain.PipelineDAG, error)
	List(ctx context.Context) ([]*domain.PipelineDAG, error)
	Delete(ctx context.Context, id string) error
}

// ExecutionStore is the subset of doer.ExecutionStore GET /executions/{run_id}
// needs — a single lookup by run id, since the underlying store exposes no
// List.
type ExecutionStore interface {
	Get(ctx context.Context, runID string) (*doer.ExecutionModel, error)
}

// MemoryReader is the subset of doer.MemoryStore GET /memory/{user_id}
// needs.
type MemoryReader interface {
	LoadMemory(ctx context.Context, userID string) (map[string]any, error)
}

// Server wires the host store's HTTP surface. All collaborators are
// narrow interfaces so handlers can be exercised against fakes.
type Server struct {
	clarifier ClarifierStepper
	thinker   ThinkerRunner
	doer      DoerRunner

	blocks    BlockStore
	pipelines PipelineStore
	execs     ExecutionStore
	memory    MemoryReader

	embedder registry.EmbeddingProvider
	rewriter registry.QueryRewriter

	hub websocket.Broadcaster

	// persistentSinks receive every run's events in addition to the
	// per-call Hub/SSE sinks — e.g. the monitoring package's tracing/metrics
	// Sink and an optional Kafka sink, both wired once at startup rather
	// than per request.
	persistentSinks []eventbus.Sink

	// runCancels holds the cancel func for every pipeline/automate run
	// currently in flight, keyed by run ID, so a WS "cancel" command
	// (websocket.Client.handleCancel, via websocket.RunCanceller) can stop
	// one. Server implements websocket.RunCanceller itself.
	runCancels sync.Map

	sessions *sessionStore

	mux    *http.ServeMux
	logger *zerolog.Logger
}

// Deps bundles every collaborator NewServer needs, so call sites don't have
// to pass nine positional arguments.
type Deps struct {
	Clarifier ClarifierStepper
	Thinker   ThinkerRunner
	Doer      DoerRunner

	Blocks    BlockStore
	Pipelines PipelineStore
	Execs     ExecutionStore
	Memory    MemoryReader

	Embedder registry.EmbeddingProvider
	Rewriter registry.QueryRewriter

	// Hub fans Thinker/Doer run events to WebSocket subscribers alongside
	// whatever SSE stream a particular request also wants them on. May be
	// nil in tests that don't exercise the WS fan-out path.
	Hub websocket.Broadcaster

	// PersistentSinks receive every run's events regardless of transport —
	// e.g. monitoring.NewSink's tracing/metrics bridge, an eventbus.KafkaSink.
	PersistentSinks []eventbus.Sink

	Logger *zerolog.Logger
}

// NewServer builds the Server and registers its routes.
func NewServer(deps Deps) *Server {
	s := &Server{
		clarifier:       deps.Clarifier,
		thinker:         deps.Thinker,
		doer:            deps.Doer,
		blocks:          deps.Blocks,
		pipelines:       deps.Pipelines,
		execs:           deps.Execs,
		memory:          deps.Memory,
		embedder:        deps.Embedder,
		rewriter:        deps.Rewriter,
		hub:             deps.Hub,
		persistentSinks: deps.PersistentSinks,
		sessions:        newSessionStore(),
		mux:             http.NewServeMux(),
		logger:          deps.Logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /clarify", s.handleClarify)

	s.mux.HandleFunc("POST /create-agent", s.handleCreateAgent)
	s.mux.HandleFunc("POST /create-agent/stream", s.handleCreateAgentStream)

	s.mux.HandleFunc("POST /pipeline/run", s.handlePipelineRun)
	s.mux.HandleFunc("POST /automate", s.handleAutomate)

	s.mux.HandleFunc("GET /blocks", s.handleListBlocks)
	s.mux.HandleFunc("GET /blocks/search", s.handleSearchBlocks)
	s.mux.HandleFunc("POST /blocks", s.handleSaveBlock)
	s.mux.HandleFunc("GET /blocks/{id}", s.handleGetBlock)
	s.mux.HandleFunc("DELETE /blocks/{id}", s.handleDeleteBlock)

	s.mux.HandleFunc("GET /pipelines", s.handleListPipelines)
	s.mux.HandleFunc("GET /pipelines/{id}", s.handleGetPipeline)
	s.mux.HandleFunc("DELETE /pipelines/{id}", s.handleDeletePipeline)

	s.mux.HandleFunc("GET /executions/{run_id}", s.handleGetExecution)

	s.mux.HandleFunc("GET /memory/{user_id}", s.handleGetMemory)
}

// ServeHTTP makes Server an http.Handler directly, with no middleware
// applied — cmd/server calls Handler, not this, for anything bound to a
// real listener. Exposed for tests that want the bare routes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ServerConfig toggles the cross-cutting middleware wrapped around the
// route mux — mirrors the teacher's own rest.ServerConfig shape.
type ServerConfig struct {
	EnableCORS      bool
	EnableRateLimit bool
	RateLimitMax    int
	RateLimitWindow time.Duration
	APIKeys         []string
}

// Handler wraps Server's routes with the standard middleware chain:
// recovery innermost (so a panic in a route handler is caught and logged
// as a 500 by the logging layer around it), then logging, then
// rate-limit/auth/content-type/CORS outward to the client — the teacher's
// own ordering in cmd/server's wiring.
func (s *Server) Handler(cfg ServerConfig) http.Handler {
	var h http.Handler = s.mux
	h = recoveryMiddleware(s.logger, h)
	h = loggingMiddleware(s.logger, h)
	if cfg.EnableRateLimit {
		rl := newRateLimiter(cfg.RateLimitMax, cfg.RateLimitWindow)
		h = rl.middleware(h)
	}
	if len(cfg.APIKeys) > 0 {
		am := newAuthMiddleware(cfg.APIKeys)
		h = am.middleware(h)
	}
	h = contentTypeMiddleware(h)
	if cfg.EnableCORS {
		h = corsMiddleware(h)
	}
	return h
}

// newRunSink builds the per-call event fan-out: always a Bus, with the Hub
// registered as a WebSocket sink when one is configured, plus whatever
// extra sinks (e.g. an SSESink for a streaming response) the caller adds.
func (s *Server) newRunSink(extra ...eventbus.Sink) *eventbus.Bus {
	bus := eventbus.New()
	if s.hub != nil {
		bus.AddSink(eventbus.NewWebSocketSink(s.hub))
	}
	for _, sink := range s.persistentSinks {
		bus.AddSink(sink)
	}
	for _, sink := range extra {
		bus.AddSink(sink)
	}
	return bus
}

// newID generates a fresh opaque identifier for resources this package
// creates directly (clarifier session ids when the caller doesn't supply
// one).
func newID() string { return uuid.New().String() }

// trackRun registers cancel as the way to stop runID's execution. Called by
// cancelTrackingSink as soon as a run's run_start event is observed.
func (s *Server) trackRun(runID string, cancel context.CancelFunc) {
	s.runCancels.Store(runID, cancel)
}

// untrackRun forgets runID once it has finished, successfully or not.
func (s *Server) untrackRun(runID string) {
	s.runCancels.Delete(runID)
}

// CancelRun implements websocket.RunCanceller: it cancels the context a
// pipeline/automate run is executing under, which the Doer observes between
// waves (see Doer.Run's ctx.Err check) and unwinds as domain.RunStatusCancelled.
// Returns false if runID isn't currently tracked (already finished, unknown,
// or never cancellable in the first place).
func (s *Server) CancelRun(runID string) bool {
	v, ok := s.runCancels.LoadAndDelete(runID)
	if !ok {
		return false
	}
	v.(context.CancelFunc)()
	return true
}

// cancelTrackingSink is a pure side-effect Sink added alongside the real
// fan-out sinks on any run whose cancel func should be reachable from a WS
// "cancel" command: it has no transport of its own, it just bridges the
// event stream's run_start/run_complete/run_error events to the Server's
// runCancels registry.
type cancelTrackingSink struct {
	server *Server
	cancel context.CancelFunc
}

func (s *cancelTrackingSink) Publish(e eventbus.Event) error {
	switch e.Kind {
	case eventbus.KindRunStart:
		s.server.trackRun(e.RunID, s.cancel)
	case eventbus.KindRunComplete, eventbus.KindRunError:
		s.server.untrackRun(e.RunID)
	}
	return nil
}

// newCancellableRun wraps parent in a cancel scope and returns the event bus
// a Doer run should publish through so that scope's cancel func is reachable
// by run ID for the run's lifetime. Callers must invoke the returned
// CancelFunc (typically via defer) once the run completes, to avoid leaking
// the context and to guard against the run never emitting run_start.
func (s *Server) newCancellableRun(parent context.Context, extra ...eventbus.Sink) (context.Context, context.CancelFunc, *eventbus.Bus) {
	ctx, cancel := context.WithCancel(parent)
	bus := s.newRunSink(extra...)
	bus.AddSink(&cancelTrackingSink{server: s, cancel: cancel})
	return ctx, cancel, bus
}
