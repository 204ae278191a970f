package clarifier

import (
	"context"
	"fmt"
	"strings"
)

const synthesizeSystemPrompt = `You turn a short conversation into one self-contained automation intent: a ` +
	`single sentence naming the goal, the concrete input(s), and the desired outcome. Fill any gap the ` +
	`conversation leaves open with a reasonable default rather than asking anything further. Respond with ` +
	`ONLY the refined intent sentence, no preamble.`

const forcedSynthesizeSuffix = " The conversation did not fully resolve; make your best judgment call on " +
	"anything left ambiguous."

const askQuestionSystemPrompt = `You are clarifying a user's automation request. Identify the single biggest ` +
	`ambiguity standing between this conversation and a concrete, executable intent, and ask exactly one ` +
	`question about it. Respond with ONLY the question, no preamble, no numbering.`

// synthesize implements the §4.6 synthesis path: fold the user's messages
// so far into one refined_intent. forced marks the round-cap path, which
// gets an explicit "fill gaps with defaults" nudge.
func (c *Clarifier) synthesize(ctx context.Context, messages []string, forced bool) (string, error) {
	system := synthesizeSystemPrompt
	if forced {
		system += forcedSynthesizeSuffix
	}
	user := "Conversation so far:\n" + strings.Join(messages, "\n")

	out, _, _, err := c.messenger.CreateMessage(ctx, system, user)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("synthesis returned an empty refined intent")
	}
	return out, nil
}

// askQuestion implements the "otherwise" branch (§4.6): exactly one
// question targeting the biggest ambiguity.
func (c *Clarifier) askQuestion(ctx context.Context, messages []string) (string, error) {
	user := "Conversation so far:\n" + strings.Join(messages, "\n")
	out, _, _, err := c.messenger.CreateMessage(ctx, askQuestionSystemPrompt, user)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("question generation returned empty output")
	}
	return out, nil
}
