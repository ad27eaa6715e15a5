// Package api provides HTTP handlers for MoodPipe endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/BTreeMap/MoodPipe/internal/crisis"
	"github.com/BTreeMap/MoodPipe/internal/models"
	"github.com/BTreeMap/MoodPipe/internal/util"
)

// validationErrors are request problems the client can fix; they map to 400.
var validationErrors = []error{
	models.ErrEmptyUserID,
	models.ErrEmptyIntent,
	models.ErrIntentTooLong,
	models.ErrInvalidPriority,
}

func isValidationError(err error) bool {
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return true
		}
	}
	return false
}

func (s *Server) interventionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	reqID := util.GenerateRequestID()
	slog.Debug("Server.interventionHandler: processing intervention request", "request_id", reqID, "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.interventionHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req models.InterventionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.interventionHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), DefaultRequestTimeout)
	defer cancel()

	resp, err := s.orchestrator.Process(ctx, req)
	if err != nil {
		s.writeInterventionError(w, req, err)
		return
	}

	slog.Info("Server.interventionHandler: intervention processed",
		"request_id", reqID, "user_id", req.UserID, "strategy", resp.Plan.Strategy)
	writeJSONResponse(w, http.StatusOK, models.Success(resp))
}

func (s *Server) writeInterventionError(w http.ResponseWriter, req models.InterventionRequest, err error) {
	if isValidationError(err) {
		slog.Warn("Server.writeInterventionError: validation failed", "error", err, "user_id", req.UserID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	var pipeErr *models.PipelineError
	if errors.As(err, &pipeErr) {
		slog.Error("Server.writeInterventionError: pipeline stage failed",
			"component", pipeErr.Component, "error", err, "user_id", req.UserID)
		writeJSONResponse(w, http.StatusBadGateway, models.Error("Intervention pipeline failed: "+pipeErr.Component))
		return
	}

	slog.Error("Server.writeInterventionError: unexpected failure", "error", err, "user_id", req.UserID)
	writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to process intervention"))
}

func (s *Server) analyzeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.analyzeHandler: processing analyze request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.analyzeHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req models.InterventionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.analyzeHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), DefaultRequestTimeout)
	defer cancel()

	record, err := s.orchestrator.Analyze(ctx, req)
	if err != nil {
		if isValidationError(err) {
			slog.Warn("Server.analyzeHandler: validation failed", "error", err)
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
			return
		}
		var extErr *models.ExternalCallError
		if errors.As(err, &extErr) {
			slog.Error("Server.analyzeHandler: analysis collaborator failed", "component", extErr.Component, "error", err)
			writeJSONResponse(w, http.StatusBadGateway, models.Error("Emotion analysis unavailable"))
			return
		}
		slog.Error("Server.analyzeHandler: analysis failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to analyze emotion"))
		return
	}

	writeJSONResponse(w, http.StatusOK, models.Success(record))
}

// capabilitiesPayload is the static description of what this service offers.
type capabilitiesPayload struct {
	Strategies      []models.Strategy      `json:"strategies"`
	Priorities      []models.Priority      `json:"priorities"`
	AudioFormats    []string               `json:"audio_formats"`
	CrisisProtocol  bool                   `json:"crisis_protocol"`
	SafetyResources models.SafetyResources `json:"safety_resources"`
}

func (s *Server) capabilitiesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(capabilitiesPayload{
		Strategies: []models.Strategy{
			models.StrategyGrounding,
			models.StrategyRelease,
			models.StrategyMindfulness,
			models.StrategySleep,
			models.StrategyWorkout,
			models.StrategyCrisisProtocol,
		},
		Priorities: []models.Priority{
			models.PriorityLow,
			models.PriorityNormal,
			models.PriorityHigh,
			models.PriorityUrgent,
		},
		AudioFormats:    []string{"mp3"},
		CrisisProtocol:  true,
		SafetyResources: crisis.Resources(),
	}))
}

func (s *Server) toolsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(s.orchestrator.Tools()))
}

// cacheStatusHandler reports one user's entry when user_id is given,
// otherwise the backend-level status.
func (s *Server) cacheStatusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if userID := r.URL.Query().Get("user_id"); userID != "" {
		status, err := s.orchestrator.UserCacheStatus(userID)
		if err != nil {
			slog.Error("Server.cacheStatusHandler: user status query failed", "error", err, "user_id", userID)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to query cache status"))
			return
		}
		writeJSONResponse(w, http.StatusOK, models.Success(status))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(s.orchestrator.CacheStatus()))
}

// cacheClearHandler clears one user's entry when user_id is given, otherwise
// the whole cache.
func (s *Server) cacheClearHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if userID := r.URL.Query().Get("user_id"); userID != "" {
		if err := s.orchestrator.ClearUserCache(userID); err != nil {
			slog.Error("Server.cacheClearHandler: user cache clear failed", "error", err, "user_id", userID)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to clear cache"))
			return
		}
		slog.Info("Server.cacheClearHandler: voice cache cleared for user", "user_id", userID)
		writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Cache cleared for user", nil))
		return
	}
	if err := s.orchestrator.ClearCache(); err != nil {
		slog.Error("Server.cacheClearHandler: cache clear failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to clear cache"))
		return
	}
	slog.Info("Server.cacheClearHandler: voice cache cleared")
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Cache cleared", nil))
}

func (s *Server) tracesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid limit parameter"))
			return
		}
		limit = parsed
	}
	traces, err := s.orchestrator.Traces(limit)
	if err != nil {
		slog.Error("Server.tracesHandler: trace query failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to query traces"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(traces))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("healthy", nil))
}
