package api

import (
	"net/http"

	service "github.com/okian/oppsuggest/internal/app"
)

// rankRequest is the POST /rank body.
type rankRequest struct {
	Data   service.RankRequest `json:"data"`
	Config service.Overrides   `json:"config"`
}

// RankHandler handles inline ranking requests.
type RankHandler struct {
	svc Suggester
}

// NewRankHandler creates a new rank handler.
func NewRankHandler(svc Suggester) *RankHandler {
	return &RankHandler{svc: svc}
}

// HandleRank handles POST /rank requests.
func (h *RankHandler) HandleRank(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", ErrMethodNotAllowed)
		return
	}
	var req rankRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	resp, err := h.svc.Rank(r.Context(), req.Data, req.Config)
	respond(w, resp, err)
}
