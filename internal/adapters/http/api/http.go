// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	service "github.com/okian/oppsuggest/internal/app"
	"github.com/okian/oppsuggest/internal/domain/model"
	"github.com/okian/oppsuggest/internal/domain/suggestion"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 4 << 20

// Suggester is the slice of the service the handlers need.
type Suggester interface {
	Suggest(ctx context.Context, req service.SuggestionRequest, o service.Overrides) (*service.Response, error)
	Rank(ctx context.Context, req service.RankRequest, o service.Overrides) (*service.Response, error)
	Platforms() []string
	StageTables() []string
	Strategies() []string
	Policy() suggestion.Policy
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	suggestionHandler *SuggestionHandler
	rankHandler       *RankHandler
	platformsHandler  *PlatformsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(svc Suggester, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:     NewHealthHandler(),
		statsHandler:      NewStatsHandler(statsProvider),
		suggestionHandler: NewSuggestionHandler(svc),
		rankHandler:       NewRankHandler(svc),
		platformsHandler:  NewPlatformsHandler(svc),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/platforms", MetricsMiddleware(s.platformsHandler.HandlePlatforms, "platforms"))
	mux.HandleFunc("/opportunity_suggestion",
		MetricsMiddleware(RequestIDMiddleware(s.suggestionHandler.HandleSuggest), "opportunity_suggestion"))
	mux.HandleFunc("/rank", MetricsMiddleware(RequestIDMiddleware(s.rankHandler.HandleRank), "rank"))
}

// errorResponse keeps the success envelope's shape so clients parse one schema.
type errorResponse struct {
	Result    []model.RankedOpportunity `json:"result"`
	Error     string                    `json:"error"`
	Code      string                    `json:"code"`
	RequestID string                    `json:"requestId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{
		Result:    []model.RankedOpportunity{},
		Error:     msg,
		Code:      code,
		RequestID: w.Header().Get(HeaderRequestID),
	})
}

// decode reads a bounded JSON body into v.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid json body: %v", ErrBadRequest, err)
	}
	return nil
}

// respond maps a service result onto the HTTP envelope.
func respond(w http.ResponseWriter, resp *service.Response, err error) {
	if err != nil {
		status, code := classify(err)
		writeError(w, status, code, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// classify maps service sentinels to status codes.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, service.ErrInvalidRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrUnknownPlatform):
		return http.StatusBadRequest, "unknown_platform"
	case errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, service.ErrUpstream):
		return http.StatusBadGateway, "upstream_error"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
