package rest

import (
	"net/http"

	"github.com/solace-automations/intentflow/internal/domain"
)

// pipelineRunRequest is POST /pipeline/run's body: an already-wired DAG
// plus the user it runs on behalf of.
type pipelineRunRequest struct {
	Pipeline *domain.PipelineDAG `json:"pipeline"`
	UserID   string              `json:"user_id"`
}

// pipelineRunResponse reports the completed RunState.
type pipelineRunResponse struct {
	RunID   string           `json:"run_id"`
	Status  string           `json:"status"`
	Results map[string]any   `json:"results"`
	Log     []domain.LogEntry `json:"log"`
}

func (s *Server) handlePipelineRun(w http.ResponseWriter, r *http.Request) {
	var req pipelineRunRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Pipeline == nil {
		writeError(w, domain.NewDomainError(domain.ErrCodeInvalidInput, "pipeline is required", nil))
		return
	}

	ctx, cancel, sink := s.newCancellableRun(r.Context())
	defer cancel()

	rs, err := s.doer.Run(ctx, req.Pipeline, req.UserID, sink)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, runStateResponse(rs))
}

// runStateResponse converts a *domain.RunState into the wire shape every
// pipeline-running route (run, automate) returns.
func runStateResponse(rs *domain.RunState) pipelineRunResponse {
	return pipelineRunResponse{
		RunID:   rs.RunID,
		Status:  rs.Status().String(),
		Results: rs.Results(),
		Log:     rs.Log(),
	}
}
