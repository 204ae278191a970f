package rest

import (
	"net/http"

	"github.com/solace-automations/intentflow/internal/domain"
	"github.com/solace-automations/intentflow/internal/eventbus"
)

// createAgentRequest is POST /create-agent[/stream]'s body: a refined
// intent (produced by the Clarifier) and the user it runs on behalf of.
type createAgentRequest struct {
	RefinedIntent string `json:"refined_intent"`
	UserID        string `json:"user_id"`
}

// createAgentResponse reports the Thinker's terminal Result.
type createAgentResponse struct {
	Pipeline   *domain.PipelineDAG `json:"pipeline,omitempty"`
	Status     string              `json:"status"`
	Unresolved []string            `json:"unresolved,omitempty"`
}

// handleCreateAgent runs the Thinker synchronously and returns its
// terminal Result as one JSON body.
func (s *Server) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	var req createAgentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	sink := s.newRunSink()
	result, err := s.thinker.Run(r.Context(), req.RefinedIntent, req.UserID, sink)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, createAgentResponse{
		Pipeline:   result.Pipeline,
		Status:     string(result.Status),
		Unresolved: result.Unresolved,
	})
}

// handleCreateAgentStream runs the Thinker with its Decompose/Search/
// Synthesize/Wire progress streamed to the client as Server-Sent Events
// (§6.1: "POST /create-agent/stream"), in addition to whatever WebSocket
// subscribers are listening on the same pipeline.
func (s *Server) handleCreateAgentStream(w http.ResponseWriter, r *http.Request) {
	var req createAgentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sseSink, err := eventbus.NewSSESink(w)
	if err != nil {
		writeError(w, domain.NewDomainError(domain.ErrCodeInvalidState, "streaming unsupported by this response writer", err))
		return
	}

	sink := s.newRunSink(sseSink)
	result, err := s.thinker.Run(r.Context(), req.RefinedIntent, req.UserID, sink)
	if err != nil {
		sink.Publish(eventbus.Event{Kind: eventbus.KindRunError, Payload: map[string]any{"error": err.Error()}})
		return
	}
	sink.Publish(eventbus.Event{
		Kind: eventbus.KindComplete,
		Payload: map[string]any{
			"status":     string(result.Status),
			"pipeline":   result.Pipeline,
			"unresolved": result.Unresolved,
		},
	})
}
