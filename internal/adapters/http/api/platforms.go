package api

import (
	"net/http"

	"github.com/okian/oppsuggest/internal/domain/suggestion"
)

type platformsResponse struct {
	Platforms   []string          `json:"platforms"`
	StageTables []string          `json:"stageTables"`
	Strategies  []string          `json:"strategies"`
	Policy      suggestion.Policy `json:"policy"`
}

// PlatformsHandler lists what a request may select.
type PlatformsHandler struct {
	svc Suggester
}

// NewPlatformsHandler creates a new platforms handler.
func NewPlatformsHandler(svc Suggester) *PlatformsHandler {
	return &PlatformsHandler{svc: svc}
}

// HandlePlatforms handles GET /platforms requests.
func (h *PlatformsHandler) HandlePlatforms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, platformsResponse{
		Platforms:   h.svc.Platforms(),
		StageTables: h.svc.StageTables(),
		Strategies:  h.svc.Strategies(),
		Policy:      h.svc.Policy(),
	})
}
