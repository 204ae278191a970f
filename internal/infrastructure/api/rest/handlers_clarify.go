package rest

import "net/http"

// clarifyRequest is POST /clarify's body (§6.1/§6.2): session_id is
// optional on the first call, required on every follow-up.
type clarifyRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

// clarifyResponse mirrors clarifier.StepResult's {ready, question?,
// refined_intent?} contract, plus the session_id the caller must echo back
// on the next turn.
type clarifyResponse struct {
	SessionID     string `json:"session_id"`
	Ready         bool   `json:"ready"`
	Question      string `json:"question,omitempty"`
	RefinedIntent string `json:"refined_intent,omitempty"`
}

func (s *Server) handleClarify(w http.ResponseWriter, r *http.Request) {
	var req clarifyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = newID()
	}
	session := s.sessions.getOrCreate(sessionID)

	result, err := s.clarifier.Step(r.Context(), session, req.Message)
	if err != nil {
		writeError(w, err)
		return
	}

	if result.Ready {
		s.sessions.delete(sessionID)
	}

	writeJSON(w, http.StatusOK, clarifyResponse{
		SessionID:     sessionID,
		Ready:         result.Ready,
		Question:      result.Question,
		RefinedIntent: result.RefinedIntent,
	})
}
