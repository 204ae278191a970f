package rest

import (
	"context"
	"net/http"
)

// automateRequest is POST /automate's body: a refined intent, run through
// the Thinker then straight into the Doer in one call (§6.1: "/automate —
// shorthand for create-agent followed immediately by pipeline/run").
type automateRequest struct {
	RefinedIntent string `json:"refined_intent"`
	UserID        string `json:"user_id"`
}

// automateResponse reports both the wired pipeline and its completed run.
type automateResponse struct {
	Pipeline interface{}          `json:"pipeline,omitempty"`
	Run      *pipelineRunResponse `json:"run,omitempty"`
	Status   string               `json:"status"`
}

func (s *Server) handleAutomate(w http.ResponseWriter, r *http.Request) {
	var req automateRequest
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

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	sink.AddSink(&cancelTrackingSink{server: s, cancel: cancel})

	rs, err := s.doer.Run(ctx, result.Pipeline, req.UserID, sink)
	if err != nil {
		writeError(w, err)
		return
	}

	run := runStateResponse(rs)
	writeJSON(w, http.StatusOK, automateResponse{
		Pipeline: result.Pipeline,
		Run:      &run,
		Status:   run.Status,
	})
}
