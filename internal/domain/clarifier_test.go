package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClarifierSession_RoundCountsUserTurnsOnly(t *testing.T) {
	s := NewClarifierSession("sess1")
	s.AppendTurn(ClarifierRoleUser, "alert me when X drops below 100")
	s.AppendTurn(ClarifierRoleAssistant, "what threshold do you mean by X?")
	assert.Equal(t, 1, s.Round)
	assert.False(t, s.MustForceReady())
}

func TestClarifierSession_ForcesReadyAfterRoundCap(t *testing.T) {
	s := NewClarifierSession("sess1")
	for i := 0; i < MaxClarifierRounds; i++ {
		s.AppendTurn(ClarifierRoleUser, "still vague")
		s.AppendTurn(ClarifierRoleAssistant, "can you clarify?")
	}
	assert.True(t, s.MustForceReady())
}

func TestClarifierSession_UserMessages(t *testing.T) {
	s := NewClarifierSession("sess1")
	s.AppendTurn(ClarifierRoleUser, "a")
	s.AppendTurn(ClarifierRoleAssistant, "b")
	s.AppendTurn(ClarifierRoleUser, "c")
	assert.Equal(t, []string{"a", "c"}, s.UserMessages())
}
