// Package blockexec implements the Block Executor (§4.3): dispatching a
// BlockDefinition by execution_kind to a concrete runner, validating inputs
// and outputs against the block's declared schemas.
package blockexec

import (
	"context"

	"github.com/solace-automations/intentflow/internal/domain"
)

// ExecContext bundles the read-only values an executor needs beyond the
// block's own resolved_inputs — mirrors spec.md §4.3's
// "context = {user, memory, user_id}".
type ExecContext struct {
	User   map[string]any
	Memory map[string]any
	UserID string
}

// KindExecutor runs one execution_kind. Dispatcher picks the right one by
// block.ExecutionKind. nodeID identifies the pipeline node this call is
// executing for, so errors can carry both block_id and node_id (§4.3
// "Errors... carry block_id, the offending field or trace").
type KindExecutor interface {
	Execute(ctx context.Context, block *domain.BlockDefinition, nodeID string, inputs map[string]any, execCtx ExecContext) (map[string]any, error)
}

// Dispatcher is the Block Executor's entry point: execute(block_def,
// resolved_inputs, context) -> output_object. It never falls through
// silently on an unhandled kind — mcp/browser are rejected with
// ErrCodeNotImplemented even though BlockDefinition.Validate already
// forbids saving such a block, since a stored definition could in
// principle predate a stricter validator.
type Dispatcher struct {
	llm  KindExecutor
	code KindExecutor
}

// NewDispatcher wires the llm and code kind executors. Either may be nil if
// the host doesn't support that kind; dispatch to a nil executor raises
// ErrCodeNotImplemented rather than panicking.
func NewDispatcher(llm, code KindExecutor) *Dispatcher {
	return &Dispatcher{llm: llm, code: code}
}

func (d *Dispatcher) Execute(ctx context.Context, block *domain.BlockDefinition, nodeID string, inputs map[string]any, execCtx ExecContext) (map[string]any, error) {
	var kind KindExecutor
	switch block.ExecutionKind {
	case domain.ExecutionKindLLM:
		kind = d.llm
	case domain.ExecutionKindCode:
		kind = d.code
	default:
		return nil, domain.NewDomainError(domain.ErrCodeNotImplemented,
			"execution_kind "+block.ExecutionKind.String()+" is not implemented", nil)
	}
	if kind == nil {
		return nil, domain.NewDomainError(domain.ErrCodeNotImplemented,
			"no executor configured for execution_kind "+block.ExecutionKind.String(), nil)
	}
	return kind.Execute(ctx, block, nodeID, inputs, execCtx)
}
