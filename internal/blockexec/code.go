package blockexec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"github.com/solace-automations/intentflow/internal/domain"
)

// DefaultCodeTimeout is §4.3 step 2's default wall-clock budget.
const DefaultCodeTimeout = 60 * time.Second

// allowedModules is the small deterministic whitelist §4.3 step 1 names:
// "a small deterministic set sufficient for JSON/text/math/date/regex/HTTP".
// The sandbox interpreter enforces this whitelist itself (it's a capability
// of the interpreter binary, not of this Go process) — SandboxRunner passes
// it through so different interpreter builds can be configured with
// different allowances without a Go code change.
var allowedModules = []string{"json", "text", "math", "date", "regex", "http"}

// AllowedModules returns the module whitelist passed to the sandbox on
// every invocation.
func AllowedModules() []string {
	out := make([]string, len(allowedModules))
	copy(out, allowedModules)
	return out
}

// sandboxRequest is the stdin JSON contract for a code-kind block run,
// grounded on original_source's subprocess/stdin-stdout contract for code
// blocks (see SPEC_FULL.md's Sandboxed code execution supplement).
type sandboxRequest struct {
	Source         string         `json:"source"`
	Entrypoint     string         `json:"entrypoint"`
	Inputs         map[string]any `json:"inputs"`
	Context        map[string]any `json:"context"`
	AllowedModules []string       `json:"allowed_modules"`
	TimeoutSeconds int            `json:"timeout_seconds"`
}

// sandboxResponse is the stdout JSON contract: either Output or Error is
// set, never both.
type sandboxResponse struct {
	Output map[string]any `json:"output,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// SandboxRunner shells out to a whitelisted interpreter binary, feeding it a
// sandboxRequest over stdin and reading a sandboxResponse from stdout —
// modeled on original_source's subprocess contract (rejected the
// alternative of an in-process embedded interpreter; see DESIGN.md) and
// grounded in shape on
// _examples/intelligencedev-manifold/internal/codeeval/codeeval.go's
// exec.Command+stdout/stderr buffer pattern, generalized from
// language-specific run commands to one whitelisted interpreter binary that
// itself enforces the module whitelist.
type SandboxRunner struct {
	// InterpreterPath is the whitelisted interpreter binary invoked for
	// every code block (configurable — see SPEC_FULL.md's config surface).
	InterpreterPath string
	// Timeout bounds wall-clock execution; DefaultCodeTimeout when zero.
	Timeout time.Duration
}

// NewSandboxRunner builds a runner against interpreterPath with the default
// timeout.
func NewSandboxRunner(interpreterPath string) *SandboxRunner {
	return &SandboxRunner{InterpreterPath: interpreterPath, Timeout: DefaultCodeTimeout}
}

// Run invokes the sandbox interpreter once, wall-clock-bounded by timeout.
// Memory capping is left to the interpreter/host (cgroup, rlimit) — the
// caller's timeout is what this process can actually enforce (§4.3 step 2
// "a memory cap (if the host supports one)").
func (r *SandboxRunner) Run(ctx context.Context, req sandboxRequest) (map[string]any, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultCodeTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal sandbox request: %w", err)
	}

	cmd := exec.CommandContext(runCtx, r.InterpreterPath)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return nil, errTimeout
	}
	if runErr != nil {
		return nil, fmt.Errorf("sandbox exited with error: %w\nstderr: %s", runErr, stderr.String())
	}

	var resp sandboxResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("sandbox returned invalid JSON: %w\nstdout: %s", err, stdout.String())
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("%s", resp.Error)
	}
	return resp.Output, nil
}

var errTimeout = fmt.Errorf("sandbox execution timed out")

// CodeExecutor is the code-kind KindExecutor.
type CodeExecutor struct {
	runner *SandboxRunner
}

// NewCodeExecutor wires runner as the sandbox backend.
func NewCodeExecutor(runner *SandboxRunner) *CodeExecutor {
	return &CodeExecutor{runner: runner}
}

func (e *CodeExecutor) Execute(ctx context.Context, block *domain.BlockDefinition, nodeID string, inputs map[string]any, execCtx ExecContext) (map[string]any, error) {
	resolved := ApplyDefaults(block.InputSchema, inputs)
	if err := ValidateInputs(block.ID, nodeID, block.InputSchema, resolved); err != nil {
		return nil, err
	}

	req := sandboxRequest{
		Source:     block.Source,
		Entrypoint: "entrypoint",
		Inputs:     resolved,
		Context: map[string]any{
			"user":    execCtx.User,
			"memory":  execCtx.Memory,
			"user_id": execCtx.UserID,
		},
		AllowedModules: AllowedModules(),
		TimeoutSeconds: int(DefaultCodeTimeout.Seconds()),
	}

	output, err := e.runner.Run(ctx, req)
	if err != nil {
		if err == errTimeout {
			return nil, domain.BlockTimeoutError(block.ID, nodeID)
		}
		return nil, domain.BlockRuntimeError(block.ID, nodeID, err)
	}

	if err := ValidateOutput(block.ID, nodeID, block.OutputSchema, output); err != nil {
		return nil, err
	}
	return output, nil
}
