package rest

import (
	"net/http"

	"github.com/solace-automations/intentflow/internal/domain"
	"github.com/solace-automations/intentflow/internal/registry"
)

// handleListBlocks serves GET /blocks[?category=...] (§6.1).
func (s *Server) handleListBlocks(w http.ResponseWriter, r *http.Request) {
	category := domain.Category(r.URL.Query().Get("category"))
	blocks, err := s.blocks.List(r.Context(), category)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, blocks)
}

// handleGetBlock serves GET /blocks/{id}.
func (s *Server) handleGetBlock(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	block, err := s.blocks.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, block)
}

// handleSaveBlock serves POST /blocks — create or, per §3.1's immutable
// versioning, a new version of an existing block id.
func (s *Server) handleSaveBlock(w http.ResponseWriter, r *http.Request) {
	var def domain.BlockDefinition
	if err := decodeJSON(r, &def); err != nil {
		writeError(w, err)
		return
	}
	if err := def.Validate(); err != nil {
		writeError(w, err)
		return
	}
	if err := s.blocks.Save(r.Context(), &def); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, def)
}

// handleDeleteBlock serves DELETE /blocks/{id}.
func (s *Server) handleDeleteBlock(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.blocks.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// searchBlocksResponse wraps registry.Search's ranked matches for the wire.
type searchBlocksResponse struct {
	Query   string          `json:"query"`
	Matches []blockMatchDTO `json:"matches"`
}

type blockMatchDTO struct {
	Block *domain.BlockDefinition `json:"block"`
	Score float64                 `json:"score"`
}

// handleSearchBlocks serves GET /blocks/search?q=...&category=...&kind=...
// (§4.2's embed_query + Search pipeline, exposed directly so a caller other
// than the Thinker — e.g. a UI block picker — can reuse it).
func (s *Server) handleSearchBlocks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, domain.NewDomainError(domain.ErrCodeInvalidInput, "q is required", nil))
		return
	}
	category := domain.Category(r.URL.Query().Get("category"))
	hint := domain.ExecutionKind(r.URL.Query().Get("kind"))

	candidates, err := s.blocks.List(r.Context(), category)
	if err != nil {
		writeError(w, err)
		return
	}

	var embedding []float32
	if s.embedder != nil {
		_, embedding, err = registry.EmbedQuery(r.Context(), s.embedder, s.rewriter, q, hint)
		if err != nil {
			// Degrade to lexical-only search rather than failing the request
			// (§4.2's embedding-provider failure model).
			embedding = nil
		}
	}

	matches := registry.Search(candidates, embedding, q, 0)
	dto := make([]blockMatchDTO, len(matches))
	for i, m := range matches {
		dto[i] = blockMatchDTO{Block: m.Block, Score: m.Score}
	}
	writeJSON(w, http.StatusOK, searchBlocksResponse{Query: q, Matches: dto})
}
