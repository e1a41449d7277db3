package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/vigilstack/vigil-telemetry/internal/engine"
	"github.com/vigilstack/vigil-telemetry/internal/models"
)

const (
	defaultPatternLimit = 50
	maxPatternLimit     = 500
	defaultStatsWindow  = time.Hour
)

// errorRequest is the wire shape for fault submissions.
type errorRequest struct {
	Message       string              `json:"message"`
	StackTrace    string              `json:"stackTrace,omitempty"`
	Severity      models.Severity     `json:"severity,omitempty"`
	CorrelationID string              `json:"correlationId,omitempty"`
	Context       models.ErrorContext `json:"context"`
	Tags          map[string]string   `json:"tags,omitempty"`
	Extra         map[string]any      `json:"extra,omitempty"`
	User          *models.UserContext `json:"user,omitempty"`
	Environment   string              `json:"environment,omitempty"`
	Release       string              `json:"release,omitempty"`
}

// performanceRequest is the wire shape for measurement submissions.
type performanceRequest struct {
	Type          models.PerformanceType    `json:"type"`
	Metric        string                    `json:"metric"`
	Value         float64                   `json:"value"`
	Unit          string                    `json:"unit,omitempty"`
	CorrelationID string                    `json:"correlationId,omitempty"`
	Context       models.PerformanceContext `json:"context"`
	Thresholds    models.Thresholds         `json:"thresholds"`
}

// webVitalRequest is the wire shape for browser vital submissions.
type webVitalRequest struct {
	Name    string                    `json:"name"`
	Value   float64                   `json:"value"`
	Context models.PerformanceContext `json:"context"`
}

func (s *Server) recordError(w http.ResponseWriter, r *http.Request) {
	var req errorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		s.respondError(w, http.StatusBadRequest, "message is required")
		return
	}

	id, err := s.telemetry.RecordError(r.Context(), engine.ErrorInput{
		Message:       req.Message,
		StackTrace:    req.StackTrace,
		Severity:      req.Severity,
		CorrelationID: req.CorrelationID,
		Context:       req.Context,
		Tags:          req.Tags,
		Extra:         req.Extra,
		User:          req.User,
		Environment:   req.Environment,
		Release:       req.Release,
	})
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusAccepted, map[string]string{"id": id})
}

func (s *Server) recordPerformance(w http.ResponseWriter, r *http.Request) {
	var req performanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Metric == "" {
		s.respondError(w, http.StatusBadRequest, "metric is required")
		return
	}

	id, err := s.telemetry.RecordPerformance(r.Context(), engine.PerformanceInput{
		Type:          req.Type,
		Metric:        req.Metric,
		Value:         req.Value,
		Unit:          req.Unit,
		CorrelationID: req.CorrelationID,
		Context:       req.Context,
		Thresholds:    req.Thresholds,
	})
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusAccepted, map[string]string{"id": id})
}

func (s *Server) recordWebVital(w http.ResponseWriter, r *http.Request) {
	var req webVitalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		s.respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	id, err := s.telemetry.RecordWebVital(r.Context(), req.Name, req.Value, req.Context)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondJSON(w, http.StatusAccepted, map[string]string{"id": id})
}

// listPatterns returns live error patterns ordered by occurrence count.
// Supports ?limit=N, capped at 500.
func (s *Server) listPatterns(w http.ResponseWriter, r *http.Request) {
	limit := defaultPatternLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
			if limit > maxPatternLimit {
				limit = maxPatternLimit
			}
		}
	}

	patterns := s.telemetry.ListPatterns(limit)
	s.respondJSON(w, http.StatusOK, map[string]any{
		"data":  patterns,
		"total": len(patterns),
	})
}

// getStats summarises error activity inside a window. Supports ?window=1h.
func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	window := defaultStatsWindow
	if windowStr := r.URL.Query().Get("window"); windowStr != "" {
		parsed, err := time.ParseDuration(windowStr)
		if err != nil || parsed <= 0 {
			s.respondError(w, http.StatusBadRequest, "invalid window duration")
			return
		}
		window = parsed
	}

	s.respondJSON(w, http.StatusOK, s.telemetry.Stats(window))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// respondJSON writes a JSON response.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes an error response.
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
