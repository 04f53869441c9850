package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"budgetwatch/internal/alerting"
	"budgetwatch/internal/recurrence"
	"budgetwatch/internal/service"
	"budgetwatch/internal/source"
	"budgetwatch/internal/storage"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": s.version,
		"service": "budgetwatch",
	})
}

// handleBudgetReport evaluates a budget without persisting or sending alerts.
func (s *Server) handleBudgetReport(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseAsOf(r.URL.Query().Get("as_of"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.engine.Evaluate(r.Context(), service.Request{
		BudgetID: chi.URLParam(r, "id"),
		OwnerID:  r.URL.Query().Get("owner_id"),
		AsOf:     asOf,
		DryRun:   true,
	})
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

type upcomingResponse struct {
	Upcoming []recurrence.Projection  `json:"upcoming"`
	Issues   []recurrence.RecordIssue `json:"issues"`
}

func (s *Server) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	asOf, err := parseAsOf(q.Get("as_of"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	horizon, err := parseInt(q.Get("horizon"), "horizon")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := parseInt(q.Get("limit"), "limit")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	upcoming, issues, err := s.engine.Upcoming(r.Context(), q.Get("owner_id"), asOf, horizon, limit)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	if issues == nil {
		issues = []recurrence.RecordIssue{}
	}
	s.writeJSON(w, http.StatusOK, upcomingResponse{Upcoming: upcoming, Issues: issues})
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := parseInt(q.Get("limit"), "limit")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	status := alerting.Status(q.Get("status"))
	switch status {
	case "", alerting.StatusActive, alerting.StatusAcknowledged, alerting.StatusResolved:
	default:
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", status))
		return
	}

	alerts, err := s.engine.ListAlerts(r.Context(), storage.AlertFilter{
		BudgetID: q.Get("budget_id"),
		Status:   status,
		Limit:    limit,
	})
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, alerts)
}

func (s *Server) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	evt, err := s.engine.Acknowledge(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, evt)
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	evt, err := s.engine.Resolve(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, evt)
}

func parseAsOf(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("as_of must be RFC3339 or YYYY-MM-DD")
	}
	return t, nil
}

func parseInt(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return v, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, source.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, alerting.ErrInvalidTransition), errors.Is(err, storage.ErrStaleAlert):
		return http.StatusConflict
	case errors.Is(err, service.ErrNoAlertStore):
		return http.StatusServiceUnavailable
	case errors.Is(err, recurrence.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeFailure(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("request failed")
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{
		"error": message,
	})
}
