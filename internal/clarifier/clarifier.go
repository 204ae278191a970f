// Package clarifier implements the Clarifier (spec §4.6): a bounded
// pre-flight dialog that turns a conversation into a single self-contained
// refined_intent the Thinker can consume.
package clarifier

import (
	"context"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/solace-automations/intentflow/internal/domain"
)

// Messenger is the minimal anthropic-sdk-go surface the Clarifier calls
// directly — same shape as thinker.Messenger, satisfied by the same
// concrete adapter (§9's no-generic-wrapper invariant applies here too).
type Messenger interface {
	CreateMessage(ctx context.Context, systemPrompt, userPrompt string) (response string, promptTokens, completionTokens int64, err error)
}

// StepResult is the §4.6 contract's return shape:
// {ready, question?, refined_intent?}.
type StepResult struct {
	Ready         bool
	Question      string
	RefinedIntent string
}

// readinessExpr is the heuristic gate checked before ever calling the LLM:
// a message set counts as specific enough once it names a goal, a concrete
// input, and a desired outcome. Grounded on the teacher's ConditionEvaluator
// (internal/application/executor/conditions.go): expr.Compile against a
// map[string]interface{} env, expr.AsBool(), expr.Run per evaluation.
const readinessExpr = "hasGoal && hasInput && hasOutcome"

// Clarifier runs Step against a ClarifierSession. One instance is built
// once at process start and reused across sessions — it carries no
// per-session mutable state, all of which lives on the ClarifierSession
// itself.
type Clarifier struct {
	messenger        Messenger
	readinessProgram *vm.Program
}

// New compiles the readiness expression once and wraps messenger.
func New(messenger Messenger) (*Clarifier, error) {
	program, err := expr.Compile(readinessExpr, expr.Env(map[string]interface{}{}), expr.AsBool())
	if err != nil {
		return nil, err
	}
	return &Clarifier{messenger: messenger, readinessProgram: program}, nil
}

// Step implements the §4.6 policy: append the user's message, force
// readiness past the round cap, otherwise gate on the readiness heuristic
// and either synthesize a refined_intent or ask exactly one question.
func (c *Clarifier) Step(ctx context.Context, session *domain.ClarifierSession, userMessage string) (*StepResult, error) {
	session.AppendTurn(domain.ClarifierRoleUser, userMessage)
	messages := session.UserMessages()

	if session.MustForceReady() {
		return c.finish(ctx, session, messages, true)
	}

	ready, err := c.isReady(messages)
	if err != nil {
		return nil, domain.ClarifyError("readiness heuristic failed", err)
	}
	if ready {
		return c.finish(ctx, session, messages, false)
	}

	question, err := c.askQuestion(ctx, messages)
	if err != nil {
		return nil, domain.ClarifyError("failed to generate clarifying question", err)
	}
	session.AppendTurn(domain.ClarifierRoleAssistant, question)
	return &StepResult{Ready: false, Question: question}, nil
}

func (c *Clarifier) finish(ctx context.Context, session *domain.ClarifierSession, messages []string, forced bool) (*StepResult, error) {
	refined, err := c.synthesize(ctx, messages, forced)
	if err != nil {
		return nil, domain.ClarifyError("failed to synthesize refined intent", err)
	}
	session.Ready = true
	session.RefinedIntent = refined
	return &StepResult{Ready: true, RefinedIntent: refined}, nil
}

func (c *Clarifier) isReady(messages []string) (bool, error) {
	env := readinessEnv(messages)
	result, err := expr.Run(c.readinessProgram, env)
	if err != nil {
		return false, err
	}
	ready, ok := result.(bool)
	if !ok {
		return false, domain.NewDomainError(domain.ErrCodeInvalidType, "readiness expression did not return a bool", nil)
	}
	return ready, nil
}

// readinessEnv derives the three boolean features the readiness expression
// checks, from keyword heuristics over the conversation so far (§4.6:
// "goal + inputs + outcome identifiable").
func readinessEnv(messages []string) map[string]interface{} {
	combined := strings.ToLower(strings.Join(messages, " "))
	return map[string]interface{}{
		"hasGoal":    containsAny(combined, goalKeywords),
		"hasInput":   hasConcreteInput(combined),
		"hasOutcome": containsAny(combined, outcomeKeywords),
	}
}
