package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"loan-assistant/internal/common/errors"
	"loan-assistant/internal/models"
)

type messageRequest struct {
	Message string `json:"message"`
}

type messageResponse struct {
	Reply       string          `json:"reply"`
	NewDecision bool            `json:"newDecision"`
	Error       *errorBody      `json:"error,omitempty"`
	Snapshot    models.Snapshot `json:"snapshot"`
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	snap, err := s.sessions.Start(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	snap, err := s.sessions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) endSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.End(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// sendMessage runs one turn. A failed model call still answers 200: the
// turn completed with an apology and the failure is reported alongside.
func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.writeError(w, r, errors.NewInvalidRequestError(fmt.Sprintf("decode body: %v", err)))
		return
	}

	res, err := s.sessions.Send(r.Context(), r.PathValue("id"), req.Message)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := messageResponse{
		Reply:       res.Reply,
		NewDecision: res.NewDecision,
		Snapshot:    res.Snapshot,
	}
	if res.Failure != nil {
		stdErr := errors.Normalize(res.Failure)
		out.Error = &errorBody{Code: string(stdErr.Code), Message: stdErr.Message}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) resetSession(w http.ResponseWriter, r *http.Request) {
	snap, err := s.sessions.Reset(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) sessionMetrics(w http.ResponseWriter, r *http.Request) {
	m, err := s.sessions.Metrics(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// dailyMetrics serves ?date=YYYY-MM-DD, defaulting to today.
func (s *Server) dailyMetrics(w http.ResponseWriter, r *http.Request) {
	if s.daily == nil {
		writeJSON(w, http.StatusNotImplemented, errorBody{Code: "DAILY_METRICS_DISABLED", Message: "no aggregating metrics sink is configured"})
		return
	}

	day := time.Now().In(s.location)
	if v := r.URL.Query().Get("date"); v != "" {
		d, err := time.ParseInLocation(time.DateOnly, v, s.location)
		if err != nil {
			s.writeError(w, r, errors.NewInvalidRequestError("date must be YYYY-MM-DD"))
			return
		}
		day = d
	}

	summary, err := s.daily(r.Context(), day)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
