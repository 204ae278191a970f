package blockexec

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// catPath is a stand-in interpreter that never interprets anything:
// it echoes its stdin verbatim. Since sandboxRequest's field names don't
// overlap with sandboxResponse's ("output"/"error"), echoing the request
// back unmarshals into an empty, error-free sandboxResponse — enough to
// exercise the stdin/stdout subprocess wiring without a real interpreter.
const catPath = "/bin/cat"

func TestSandboxRunner_RunRoundTripsThroughSubprocess(t *testing.T) {
	runner := NewSandboxRunner(catPath)
	out, err := runner.Run(context.Background(), sandboxRequest{
		Source:     "function entrypoint(inputs) { return {}; }",
		Entrypoint: "entrypoint",
		Inputs:     map[string]any{"topic": "go"},
	})
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestSandboxRunner_DefaultsTimeoutWhenUnset(t *testing.T) {
	runner := &SandboxRunner{InterpreterPath: catPath}
	assert.Equal(t, time.Duration(0), runner.Timeout)
	_, err := runner.Run(context.Background(), sandboxRequest{})
	assert.NoError(t, err)
}

func TestSandboxRunner_NonexistentInterpreterErrors(t *testing.T) {
	runner := NewSandboxRunner("/nonexistent/interpreter/binary")
	_, err := runner.Run(context.Background(), sandboxRequest{})
	assert.Error(t, err)
}

func TestAllowedModules_ReturnsCopyNotSharedSlice(t *testing.T) {
	a := AllowedModules()
	a[0] = "mutated"
	b := AllowedModules()
	assert.NotEqual(t, "mutated", b[0])
}
