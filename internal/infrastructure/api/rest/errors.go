package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/solace-automations/intentflow/internal/domain"
)

// errorBody is the {code, message, block_id?, node_id?} shape §7 requires
// at the API boundary — no stack traces, no wrapped Go error text.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	BlockID string `json:"block_id,omitempty"`
	NodeID  string `json:"node_id,omitempty"`
}

// statusForCode maps a DomainError code onto the HTTP status a client
// should see. Codes absent from this table fall back to 500 — an unmapped
// domain error is always a server-side problem, never a 4xx.
var statusForCode = map[string]int{
	domain.ErrCodeInvalidInput:      http.StatusBadRequest,
	domain.ErrCodeValidationFailed:  http.StatusBadRequest,
	domain.ErrCodeNotFound:          http.StatusNotFound,
	domain.ErrCodeAlreadyExists:     http.StatusConflict,
	domain.ErrCodeInvalidType:       http.StatusBadRequest,
	domain.ErrCodeCyclicDependency:  http.StatusBadRequest,
	domain.ErrCodeInvariantViolated: http.StatusBadRequest,
	domain.ErrCodeInvalidState:      http.StatusConflict,
	domain.ErrCodeNotImplemented:    http.StatusNotImplemented,

	domain.ErrCodeClarifyError:      http.StatusUnprocessableEntity,
	domain.ErrCodeDecomposeError:    http.StatusUnprocessableEntity,
	domain.ErrCodeWireError:         http.StatusUnprocessableEntity,
	domain.ErrCodeNoMatchAndNoSynth: http.StatusUnprocessableEntity,
	domain.ErrCodeBlockInputError:   http.StatusUnprocessableEntity,
	domain.ErrCodeBlockOutputError:  http.StatusBadGateway,
	domain.ErrCodeBlockTimeoutError: http.StatusGatewayTimeout,
	domain.ErrCodeBlockRuntimeError: http.StatusBadGateway,
	domain.ErrCodeStoreError:        http.StatusBadGateway,
	domain.ErrCodeTemplateRefError:  http.StatusUnprocessableEntity,
}

// writeError translates err into the wire error body and an appropriate
// status code. A *domain.DomainError carries its own code/message/block/node
// context; anything else is reported as an opaque internal error so no
// accidental Go error text (which may embed a stack-adjacent detail) leaks.
func writeError(w http.ResponseWriter, err error) {
	var derr *domain.DomainError
	if errors.As(err, &derr) {
		status, ok := statusForCode[derr.Code]
		if !ok {
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, errorBody{
			Code:    derr.Code,
			Message: derr.Message,
			BlockID: derr.BlockID,
			NodeID:  derr.NodeID,
		})
		return
	}
	writeJSON(w, http.StatusInternalServerError, errorBody{
		Code:    "INTERNAL_ERROR",
		Message: "internal server error",
	})
}

// writeJSON encodes v as the response body with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON parses r's body into v, reporting a DomainError the caller can
// hand straight to writeError on failure.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.NewDomainError(domain.ErrCodeInvalidInput, "malformed request body", err)
	}
	return nil
}
