package domain

import "fmt"

// DomainError is a tagged error carrying a stable machine-readable code plus
// a human message and an optional wrapped cause. No stack traces cross the
// API boundary; handlers translate a DomainError into {code, message, ...}.
type DomainError struct {
	Code    string
	Message string
	BlockID string
	NodeID  string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Error codes. These map 1:1 onto the taxonomy in spec §7.
const (
	ErrCodeInvalidInput      = "INVALID_INPUT"
	ErrCodeValidationFailed  = "VALIDATION_FAILED"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeAlreadyExists     = "ALREADY_EXISTS"
	ErrCodeInvariantViolated = "INVARIANT_VIOLATED"
	ErrCodeInvalidState      = "INVALID_STATE"
	ErrCodeCyclicDependency  = "CYCLIC_DEPENDENCY"
	ErrCodeInvalidType       = "INVALID_TYPE"

	ErrCodeClarifyError      = "CLARIFY_ERROR"
	ErrCodeDecomposeError    = "DECOMPOSE_ERROR"
	ErrCodeWireError         = "WIRE_ERROR"
	ErrCodeNoMatchAndNoSynth = "NO_MATCH_AND_NO_SYNTHESIS"
	ErrCodeBlockInputError   = "BLOCK_INPUT_ERROR"
	ErrCodeBlockOutputError  = "BLOCK_OUTPUT_ERROR"
	ErrCodeBlockTimeoutError = "BLOCK_TIMEOUT_ERROR"
	ErrCodeBlockRuntimeError = "BLOCK_RUNTIME_ERROR"
	ErrCodeStoreError        = "STORE_ERROR"
	ErrCodeTemplateRefError  = "TEMPLATE_REF_ERROR"
	ErrCodeNotImplemented    = "NOT_IMPLEMENTED"
)

// NewDomainError builds a DomainError with no block/node context.
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{Code: code, Message: message, Err: err}
}

// NewBlockError builds a DomainError scoped to the block/node that raised it.
// Used by the Block Executor (§4.3) — every block-level error carries
// block_id and, when running inside a Doer node, node_id.
func NewBlockError(code, blockID, nodeID, message string, err error) *DomainError {
	return &DomainError{Code: code, Message: message, BlockID: blockID, NodeID: nodeID, Err: err}
}

// ClarifyError reports a failed Clarifier step: the readiness check, the
// clarifying-question call, or the refined-intent synthesis, in any round.
func ClarifyError(message string, err error) *DomainError {
	return NewDomainError(ErrCodeClarifyError, message, err)
}

// DecomposeError reports that the Thinker's Decompose stage produced invalid
// JSON or a structurally invalid block list after its one retry.
func DecomposeError(message string, err error) *DomainError {
	return NewDomainError(ErrCodeDecomposeError, message, err)
}

// WireError reports that the Wire stage produced a structurally invalid DAG
// after its one retry.
func WireError(message string, err error) *DomainError {
	return NewDomainError(ErrCodeWireError, message, err)
}

// NoMatchAndNoSynthesisError reports that one or more required blocks could
// neither be matched in the registry nor synthesized within the attempt cap.
func NoMatchAndNoSynthesisError(unresolved []string) *DomainError {
	return NewDomainError(ErrCodeNoMatchAndNoSynth, fmt.Sprintf("unresolved specs: %v", unresolved), nil)
}

// BlockInputError reports a schema mismatch on a block's resolved inputs.
func BlockInputError(blockID, nodeID, field string, err error) *DomainError {
	return NewBlockError(ErrCodeBlockInputError, blockID, nodeID, "invalid input: "+field, err)
}

// BlockOutputError reports an invalid or unparseable block output.
func BlockOutputError(blockID, nodeID, detail string, err error) *DomainError {
	return NewBlockError(ErrCodeBlockOutputError, blockID, nodeID, detail, err)
}

// BlockTimeoutError reports a block call exceeding its wall-clock budget.
func BlockTimeoutError(blockID, nodeID string) *DomainError {
	return NewBlockError(ErrCodeBlockTimeoutError, blockID, nodeID, "block execution timed out", nil)
}

// BlockRuntimeError reports an uncaught failure inside a block.
func BlockRuntimeError(blockID, nodeID string, err error) *DomainError {
	return NewBlockError(ErrCodeBlockRuntimeError, blockID, nodeID, "block raised an uncaught error", err)
}

// StoreError reports the registry or memory store being unreachable.
func StoreError(message string, err error) *DomainError {
	return NewDomainError(ErrCodeStoreError, message, err)
}

// TemplateRefErrorAsBlockInput escalates a resolver-null to BlockInputError
// when the block declares the referenced field required (§7).
func TemplateRefErrorAsBlockInput(blockID, nodeID, field string) *DomainError {
	return NewBlockError(ErrCodeBlockInputError, blockID, nodeID, "required field resolved to null: "+field, nil)
}

// CycleError reports a DAG with a cycle, rejected before any node executes.
func CycleError(pipelineID string) *DomainError {
	return NewDomainError(ErrCodeCyclicDependency, "pipeline "+pipelineID+" contains a cycle", nil)
}
