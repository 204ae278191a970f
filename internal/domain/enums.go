package domain

// Category classifies a BlockDefinition by the role it plays in a pipeline.
type Category string

const (
	CategoryInput   Category = "input"
	CategoryProcess Category = "process"
	CategoryAction  Category = "action"
	CategoryMemory  Category = "memory"
	CategoryTrigger Category = "trigger"
)

// IsValid reports whether c is one of the defined categories.
func (c Category) IsValid() bool {
	switch c {
	case CategoryInput, CategoryProcess, CategoryAction, CategoryMemory, CategoryTrigger:
		return true
	default:
		return false
	}
}

func (c Category) String() string { return string(c) }

// ExecutionKind selects how the Block Executor dispatches a block.
// mcp and browser are reserved: IsValid reports true for the full set
// spec.md names, but the executor's dispatch switch rejects anything that
// isn't llm or code with NotImplemented (§9 "never silently fall through").
type ExecutionKind string

const (
	ExecutionKindLLM     ExecutionKind = "llm"
	ExecutionKindCode    ExecutionKind = "code"
	ExecutionKindMCP     ExecutionKind = "mcp"
	ExecutionKindBrowser ExecutionKind = "browser"
)

func (k ExecutionKind) IsValid() bool {
	switch k {
	case ExecutionKindLLM, ExecutionKindCode, ExecutionKindMCP, ExecutionKindBrowser:
		return true
	default:
		return false
	}
}

// Implemented reports whether the executor has a concrete dispatch path.
func (k ExecutionKind) Implemented() bool {
	return k == ExecutionKindLLM || k == ExecutionKindCode
}

func (k ExecutionKind) String() string { return string(k) }

// NodeStatus is the per-node status recorded in a RunState's log during a
// Doer run.
type NodeStatus string

const (
	NodeStatusPending   NodeStatus = "pending"
	NodeStatusRunning   NodeStatus = "running"
	NodeStatusCompleted NodeStatus = "completed"
	NodeStatusFailed    NodeStatus = "failed"
	NodeStatusSkipped   NodeStatus = "skipped"
)

func (s NodeStatus) IsValid() bool {
	switch s {
	case NodeStatusPending, NodeStatusRunning, NodeStatusCompleted, NodeStatusFailed, NodeStatusSkipped:
		return true
	default:
		return false
	}
}

func (s NodeStatus) String() string { return string(s) }

// IsTerminal reports whether s will never transition further.
func (s NodeStatus) IsTerminal() bool {
	return s == NodeStatusCompleted || s == NodeStatusFailed || s == NodeStatusSkipped
}

// RunStatus is the overall status of a RunState.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

func (s RunStatus) IsValid() bool {
	switch s {
	case RunStatusPending, RunStatusRunning, RunStatusCompleted, RunStatusFailed, RunStatusCancelled:
		return true
	default:
		return false
	}
}

func (s RunStatus) String() string { return string(s) }

func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusCancelled
}

// ThinkerState is the state-machine position of a construction run (§4.5).
type ThinkerState string

const (
	ThinkerStateDecomposing  ThinkerState = "decomposing"
	ThinkerStateSearching    ThinkerState = "searching"
	ThinkerStateSynthesizing ThinkerState = "synthesizing"
	ThinkerStateWiring       ThinkerState = "wiring"
	ThinkerStateDone         ThinkerState = "done"
	ThinkerStateError        ThinkerState = "error"
)

func (s ThinkerState) String() string { return string(s) }

func (s ThinkerState) IsTerminal() bool {
	return s == ThinkerStateDone || s == ThinkerStateError
}

// SchemaType enumerates the JSON-Schema-shaped primitive/structured types
// an input_schema/output_schema field may declare (§3.1).
type SchemaType string

const (
	SchemaTypeString  SchemaType = "string"
	SchemaTypeNumber  SchemaType = "number"
	SchemaTypeInteger SchemaType = "integer"
	SchemaTypeBoolean SchemaType = "boolean"
	SchemaTypeArray   SchemaType = "array"
	SchemaTypeObject  SchemaType = "object"
)

func (t SchemaType) IsValid() bool {
	switch t {
	case SchemaTypeString, SchemaTypeNumber, SchemaTypeInteger, SchemaTypeBoolean, SchemaTypeArray, SchemaTypeObject:
		return true
	default:
		return false
	}
}

func (t SchemaType) String() string { return string(t) }
