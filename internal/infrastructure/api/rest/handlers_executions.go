package rest

import (
	"encoding/json"
	"net/http"

	"github.com/solace-automations/intentflow/internal/domain"
)

// executionResponse decodes an ExecutionModel's jsonb columns back into
// structured results/log for the wire, rather than returning them as raw
// bytes.
type executionResponse struct {
	RunID      string         `json:"run_id"`
	PipelineID string         `json:"pipeline_id"`
	UserID     string         `json:"user_id"`
	Status     string         `json:"status"`
	Results    map[string]any `json:"results"`
	Log        []any          `json:"log"`
}

// handleGetExecution serves GET /executions/{run_id} (§6.1). There is no
// list route: the underlying ExecutionStore only supports single-run
// lookup (see DESIGN.md).
func (s *Server) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("run_id")
	model, err := s.execs.Get(r.Context(), runID)
	if err != nil {
		writeError(w, err)
		return
	}

	var results map[string]any
	if err := json.Unmarshal(model.Results, &results); err != nil {
		writeError(w, domain.StoreError("failed to decode stored execution results", err))
		return
	}
	var log []any
	if err := json.Unmarshal(model.Log, &log); err != nil {
		writeError(w, domain.StoreError("failed to decode stored execution log", err))
		return
	}

	writeJSON(w, http.StatusOK, executionResponse{
		RunID:      model.RunID,
		PipelineID: model.PipelineID,
		UserID:     model.UserID,
		Status:     model.Status,
		Results:    results,
		Log:        log,
	})
}
