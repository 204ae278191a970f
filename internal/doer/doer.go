// Package doer implements the DAG Executor (spec §4.4): a deterministic
// runner that topologically orders a PipelineDAG, resolves template
// references, invokes blocks with per-level parallelism, threads user
// memory through the run, and emits the run_* / node_* event protocol.
package doer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/solace-automations/intentflow/internal/blockexec"
	"github.com/solace-automations/intentflow/internal/domain"
	"github.com/solace-automations/intentflow/internal/eventbus"
	"github.com/solace-automations/intentflow/internal/template"
)

// Config holds the Doer's tunables — mirrors the teacher's EngineConfig,
// narrowed to the knobs this spec's single-kind (no conditional edges, no
// per-node retry policy) model actually uses.
type Config struct {
	MaxParallelNodes int
	NodeTimeout      time.Duration
}

// DefaultConfig mirrors the teacher's DefaultEngineConfig defaults where
// this spec has an equivalent knob.
func DefaultConfig() Config {
	return Config{
		MaxParallelNodes: 10,
		NodeTimeout:      5 * time.Minute,
	}
}

// BlockStore is the subset of registry.Store the Doer needs to resolve a
// node's block_id into a BlockDefinition.
type BlockStore interface {
	Get(ctx context.Context, id string) (*domain.BlockDefinition, error)
}

// Executor is the subset of blockexec.Dispatcher the Doer drives — narrowed
// to an interface so a run can be exercised against fixture blocks and a
// fake executor without a real LLM/sandbox (§8: "deterministic blocks ...
// produce the same results").
type Executor interface {
	Execute(ctx context.Context, block *domain.BlockDefinition, nodeID string, inputs map[string]any, execCtx blockexec.ExecContext) (map[string]any, error)
}

// Doer is the DAG Executor's entry point: run(pipeline, user_id,
// event_sink?) -> RunState (§4.4).
type Doer struct {
	blocks  BlockStore
	exec    Executor
	memory  MemoryStore
	execLog ExecutionStore
	config  Config
}

// New wires a Doer. execLog may be nil (no execution-log persistence).
func New(blocks BlockStore, exec Executor, memory MemoryStore, execLog ExecutionStore, config Config) *Doer {
	if config.MaxParallelNodes <= 0 {
		config.MaxParallelNodes = DefaultConfig().MaxParallelNodes
	}
	if config.NodeTimeout <= 0 {
		config.NodeTimeout = DefaultConfig().NodeTimeout
	}
	return &Doer{blocks: blocks, exec: exec, memory: memory, execLog: execLog, config: config}
}

// Run executes pipeline for userID and returns the completed RunState.
// sink may be eventbus.NopSink{} when the caller wants no event fan-out
// (§4.4/§4.7: the sink is optional). Run only returns an error for
// structural problems that prevent any node from executing (an invalid DAG,
// an unreachable memory store) — a node failing during execution is
// recorded on the returned RunState, not returned as a Go error.
func (d *Doer) Run(ctx context.Context, pipeline *domain.PipelineDAG, userID string, sink eventbus.Sink) (*domain.RunState, error) {
	if sink == nil {
		sink = eventbus.NopSink{}
	}

	// Step 1: reject cycles / structurally invalid DAGs before any node runs.
	if err := pipeline.Validate(); err != nil {
		return nil, err
	}
	levels, err := pipeline.TopologicalLevels()
	if err != nil {
		return nil, err
	}

	// Step 2: load memory + user.
	memory, err := d.memory.LoadMemory(ctx, userID)
	if err != nil {
		return nil, domain.StoreError("failed to load user memory", err)
	}
	user, err := d.memory.LoadUser(ctx, userID)
	if err != nil {
		return nil, domain.StoreError("failed to load user profile", err)
	}

	// Step 3: init RunState; emit run_start.
	runID := uuid.New().String()
	rs := domain.NewRunState(runID, pipeline.ID, userID, user, memory)
	sink.Publish(eventbus.Event{
		Kind:       eventbus.KindRunStart,
		Timestamp:  time.Now(),
		UserID:     userID,
		PipelineID: pipeline.ID,
		RunID:      runID,
	})

	skipped := make(map[string]bool)
	failed := make(map[string]bool)
	predecessors := buildPredecessorIndex(pipeline)

	for _, wave := range levels {
		if ctx.Err() != nil {
			rs.Finish(domain.RunStatusCancelled)
			d.persistAndNotifyEnd(ctx, rs, sink)
			return rs, nil
		}
		d.runWave(ctx, pipeline, rs, wave, predecessors, skipped, failed, sink, userID)
		if d.execLog != nil {
			if err := d.execLog.Save(ctx, rs); err != nil {
				log.Warn().Err(err).Str("run_id", runID).Msg("doer: failed to checkpoint run after wave")
			}
		}
	}

	status := domain.RunStatusCompleted
	if len(failed) > 0 {
		status = domain.RunStatusFailed
	}
	if ctx.Err() != nil {
		status = domain.RunStatusCancelled
	}
	rs.Finish(status)

	// Step 7: save memory, persist the log.
	if err := d.memory.SaveMemory(ctx, userID, rs.Memory); err != nil {
		log.Warn().Err(err).Str("run_id", runID).Msg("doer: failed to save memory at run end")
	}
	d.persistAndNotifyEnd(ctx, rs, sink)

	return rs, nil
}

func (d *Doer) persistAndNotifyEnd(ctx context.Context, rs *domain.RunState, sink eventbus.Sink) {
	if d.execLog != nil {
		if err := d.execLog.Save(ctx, rs); err != nil {
			log.Warn().Err(err).Str("run_id", rs.RunID).Msg("doer: failed to persist final run state")
		}
	}
	kind := eventbus.KindRunComplete
	if rs.Status() == domain.RunStatusFailed {
		kind = eventbus.KindRunError
	}
	sink.Publish(eventbus.Event{
		Kind:       kind,
		Timestamp:  time.Now(),
		RunID:      rs.RunID,
		PipelineID: rs.PipelineID,
		Payload: map[string]any{
			"status":  rs.Status().String(),
			"results": rs.Results(),
		},
	})
}

// buildPredecessorIndex maps node id -> its direct predecessor node ids, so
// runWave can decide in O(predecessors) whether a node's dependencies all
// ran cleanly.
func buildPredecessorIndex(pipeline *domain.PipelineDAG) map[string][]string {
	idx := make(map[string][]string, len(pipeline.Nodes))
	for _, e := range pipeline.Edges {
		idx[e.To] = append(idx[e.To], e.From)
	}
	return idx
}

// runWave executes one level batch concurrently, bounded by
// config.MaxParallelNodes — the teacher's semaphore+WaitGroup pattern
// (engine.go: executeWave), generalized from fixed node-type dispatch to
// this spec's {llm, code} kind dispatch via blockexec.Dispatcher.
func (d *Doer) runWave(
	ctx context.Context,
	pipeline *domain.PipelineDAG,
	rs *domain.RunState,
	wave []string,
	predecessors map[string][]string,
	skipped, failed map[string]bool,
	sink eventbus.Sink,
	userID string,
) {
	maxParallel := d.config.MaxParallelNodes
	if len(wave) < maxParallel {
		maxParallel = len(wave)
	}
	semaphore := make(chan struct{}, maxParallel)

	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, nodeID := range wave {
		wg.Add(1)
		go func(nodeID string) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			mu.Lock()
			shouldSkip := false
			for _, p := range predecessors[nodeID] {
				if skipped[p] || failed[p] {
					shouldSkip = true
					break
				}
			}
			mu.Unlock()

			if shouldSkip {
				mu.Lock()
				skipped[nodeID] = true
				mu.Unlock()
				rs.AppendLog(domain.LogEntry{NodeID: nodeID, Status: domain.NodeStatusSkipped})
				return
			}

			if err := d.runNode(ctx, pipeline, rs, nodeID, sink, userID); err != nil {
				mu.Lock()
				failed[nodeID] = true
				mu.Unlock()
			}
		}(nodeID)
	}

	wg.Wait()
}

// runNode executes one node: step 5 of the Doer algorithm — node_start,
// resolve templates, execute, store result (write-once), node_complete.
func (d *Doer) runNode(ctx context.Context, pipeline *domain.PipelineDAG, rs *domain.RunState, nodeID string, sink eventbus.Sink, userID string) error {
	node, ok := pipeline.NodeByID(nodeID)
	if !ok {
		return domain.NewDomainError(domain.ErrCodeInvalidState, "node "+nodeID+" not found on its own pipeline", nil)
	}

	rs.AppendLog(domain.LogEntry{NodeID: nodeID, BlockID: node.BlockID, Status: domain.NodeStatusRunning})
	sink.Publish(eventbus.Event{
		Kind:       eventbus.KindNodeStart,
		Timestamp:  time.Now(),
		UserID:     userID,
		PipelineID: pipeline.ID,
		RunID:      rs.RunID,
		NodeID:     nodeID,
		BlockID:    node.BlockID,
	})

	block, err := d.blocks.Get(ctx, node.BlockID)
	if err != nil {
		return d.failNode(rs, pipeline, nodeID, node.BlockID, sink, userID,
			domain.NewBlockError(domain.ErrCodeNotFound, node.BlockID, nodeID, "block not found in registry", err))
	}

	lookup := template.NewRunLookup(rs.Results(), rs.Memory, rs.User)
	resolvedInputs := template.Resolve(node.Inputs, lookup)
	if err := d.checkRequiredRefs(block, nodeID, node.Inputs, resolvedInputs); err != nil {
		return d.failNode(rs, pipeline, nodeID, node.BlockID, sink, userID, err)
	}

	nodeCtx, cancel := context.WithTimeout(ctx, d.config.NodeTimeout)
	defer cancel()

	start := time.Now()
	output, err := d.exec.Execute(nodeCtx, block, nodeID, resolvedInputs, blockexec.ExecContext{
		User:   rs.User,
		Memory: rs.Memory,
		UserID: userID,
	})
	duration := time.Since(start)
	if err != nil {
		return d.failNode(rs, pipeline, nodeID, node.BlockID, sink, userID, err)
	}

	if block.Category == domain.CategoryMemory {
		for k, v := range output {
			rs.SetMemory(k, v)
		}
	}

	rs.SetResult(nodeID, output)
	rs.AppendLog(domain.LogEntry{
		NodeID:     nodeID,
		BlockID:    node.BlockID,
		Status:     domain.NodeStatusCompleted,
		Output:     output,
		DurationMs: duration.Milliseconds(),
	})
	sink.Publish(eventbus.Event{
		Kind:       eventbus.KindNodeComplete,
		Timestamp:  time.Now(),
		UserID:     userID,
		PipelineID: pipeline.ID,
		RunID:      rs.RunID,
		NodeID:     nodeID,
		BlockID:    node.BlockID,
		Payload: map[string]any{
			"status":      domain.NodeStatusCompleted.String(),
			"output":      output,
			"duration_ms": duration.Milliseconds(),
		},
	})
	return nil
}

// checkRequiredRefs escalates a resolver-null to BlockInputError when the
// original (unresolved) input was a template reference and the block
// declares that field required — §7's TemplateRefErrorAsBlockInput path.
func (d *Doer) checkRequiredRefs(block *domain.BlockDefinition, nodeID string, rawInputs, resolved map[string]any) error {
	for name, field := range block.InputSchema {
		if !field.Required {
			continue
		}
		if _, isTemplateRef := rawInputs[name].(string); !isTemplateRef {
			continue
		}
		if resolved[name] == nil {
			return domain.TemplateRefErrorAsBlockInput(block.ID, nodeID, name)
		}
	}
	return nil
}

func (d *Doer) failNode(rs *domain.RunState, pipeline *domain.PipelineDAG, nodeID, blockID string, sink eventbus.Sink, userID string, err error) error {
	rs.AppendLog(domain.LogEntry{
		NodeID:  nodeID,
		BlockID: blockID,
		Status:  domain.NodeStatusFailed,
		Error:   err.Error(),
	})
	sink.Publish(eventbus.Event{
		Kind:       eventbus.KindNodeComplete,
		Timestamp:  time.Now(),
		UserID:     userID,
		PipelineID: pipeline.ID,
		RunID:      rs.RunID,
		NodeID:     nodeID,
		BlockID:    blockID,
		Payload: map[string]any{
			"status": domain.NodeStatusFailed.String(),
			"error":  err.Error(),
		},
	})
	return err
}
