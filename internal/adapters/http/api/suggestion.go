package api

import (
	"net/http"

	service "github.com/okian/oppsuggest/internal/app"
)

// suggestionRequest is the POST /opportunity_suggestion body.
type suggestionRequest struct {
	Data   service.SuggestionRequest `json:"data"`
	Config service.Overrides         `json:"config"`
}

// SuggestionHandler handles suggestion requests.
type SuggestionHandler struct {
	svc Suggester
}

// NewSuggestionHandler creates a new suggestion handler.
func NewSuggestionHandler(svc Suggester) *SuggestionHandler {
	return &SuggestionHandler{svc: svc}
}

// HandleSuggest handles POST /opportunity_suggestion requests.
func (h *SuggestionHandler) HandleSuggest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", ErrMethodNotAllowed)
		return
	}
	var req suggestionRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	resp, err := h.svc.Suggest(r.Context(), req.Data, req.Config)
	respond(w, resp, err)
}
