package domain

import "time"

// ClarifierRole distinguishes the speaker of one ClarifierSession turn.
type ClarifierRole string

const (
	ClarifierRoleUser      ClarifierRole = "user"
	ClarifierRoleAssistant ClarifierRole = "assistant"
)

// ClarifierTurn is one exchange in a ClarifierSession's conversation.
type ClarifierTurn struct {
	Role      ClarifierRole `json:"role"`
	Content   string        `json:"content"`
	Timestamp time.Time     `json:"timestamp"`
}

// MaxClarifierRounds is the cap on conversational turns (§4.6): after
// round >= 3, the Clarifier forces readiness and synthesizes from whatever
// it has.
const MaxClarifierRounds = 3

// ClarifierSession is a short-lived pre-flight dialog (§3.1). Sessions are
// transient — minutes, capped at MaxClarifierRounds turns.
type ClarifierSession struct {
	SessionID     string          `json:"session_id"`
	History       []ClarifierTurn `json:"history"`
	Round         int             `json:"round"`
	Ready         bool            `json:"ready"`
	RefinedIntent string          `json:"refined_intent,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// NewClarifierSession starts a fresh session.
func NewClarifierSession(sessionID string) *ClarifierSession {
	return &ClarifierSession{
		SessionID: sessionID,
		History:   make([]ClarifierTurn, 0, MaxClarifierRounds*2),
		CreatedAt: time.Now(),
	}
}

// AppendTurn records one exchange and, for user turns, advances Round.
func (s *ClarifierSession) AppendTurn(role ClarifierRole, content string) {
	s.History = append(s.History, ClarifierTurn{Role: role, Content: content, Timestamp: time.Now()})
	if role == ClarifierRoleUser {
		s.Round++
	}
}

// MustForceReady reports whether the round cap has been reached (§4.6:
// "After round >= 3 (user message count), force ready=true").
func (s *ClarifierSession) MustForceReady() bool {
	return s.Round >= MaxClarifierRounds
}

// UserMessages returns the content of every user turn, in order — the
// material the forced-synthesis path folds into a refined_intent.
func (s *ClarifierSession) UserMessages() []string {
	out := make([]string, 0, len(s.History))
	for _, t := range s.History {
		if t.Role == ClarifierRoleUser {
			out = append(out, t.Content)
		}
	}
	return out
}
