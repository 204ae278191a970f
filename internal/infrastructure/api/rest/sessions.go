package rest

import (
	"sync"

	"github.com/solace-automations/intentflow/internal/domain"
)

// sessionStore holds in-flight ClarifierSessions between POST /clarify
// calls. Sessions are transient (§3.1: "minutes, capped at
// MaxClarifierRounds turns") so an in-process map is sufficient — nothing
// in spec.md's persisted-state list (§6.4: blocks, user_memory, pipelines,
// executions) names clarifier sessions as durable state.
type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]*domain.ClarifierSession
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[string]*domain.ClarifierSession)}
}

// getOrCreate returns the existing session for id, or starts a new one.
func (s *sessionStore) getOrCreate(id string) *domain.ClarifierSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		session = domain.NewClarifierSession(id)
		s.sessions[id] = session
	}
	return session
}

// delete drops a session once it has produced a refined intent, so a
// completed session id can't be replayed into the Clarifier again.
func (s *sessionStore) delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}
