package rest

import "net/http"

// handleGetMemory serves GET /memory/{user_id} (§6.1), a read-only view
// into the store's user_memory map.
func (s *Server) handleGetMemory(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	memory, err := s.memory.LoadMemory(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, memory)
}
