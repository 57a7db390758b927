package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/mattjoyce/inboxd/internal/log"
	"github.com/mattjoyce/inboxd/internal/message"
	"github.com/mattjoyce/inboxd/internal/store"
)

// handleListMessages serves GET /messages.
func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	filter, page, fields := parseListQuery(r.URL.Query())
	if len(fields) > 0 {
		writeValidationError(w, fields)
		return
	}

	res, err := s.store.List(r.Context(), filter, page)
	if err != nil {
		s.writeStoreError(w, r, "list messages", err)
		return
	}

	items := res.Items
	if items == nil {
		items = []message.Message{}
	}
	respondJSON(w, http.StatusOK, MessagesResponse{
		Items:  items,
		Total:  res.Total,
		Limit:  page.Limit,
		Offset: page.Offset,
	})
}

// handleStats serves GET /stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.Stats(r.Context())
	if err != nil {
		s.writeStoreError(w, r, "compute stats", err)
		return
	}
	if st.MessagesPerSender == nil {
		st.MessagesPerSender = []store.SenderCount{}
	}
	respondJSON(w, http.StatusOK, st)
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// handleReady reports 200 only when deliveries can actually be accepted:
// a secret is configured and the store answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"secret": "ok", "store": "ok"}
	ready := true

	if !s.config.SecretConfigured {
		checks["secret"] = "missing"
		ready = false
	}
	if err := s.store.Ping(r.Context()); err != nil {
		log.WithRequest(s.logger, middleware.GetReqID(r.Context())).Warn("readiness ping failed", "error", err)
		checks["store"] = "unavailable"
		ready = false
	}

	if !ready {
		respondJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Checks: checks})
		return
	}
	respondJSON(w, http.StatusOK, HealthResponse{Status: "ok", Checks: checks})
}

func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, buildOpenAPIDoc())
}

// writeStoreError maps store failures to status codes without leaking
// engine details to the client.
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, op string, err error) {
	logger := log.WithRequest(s.logger, middleware.GetReqID(r.Context()))

	var perr *store.PageError
	switch {
	case errors.As(err, &perr):
		writeValidationError(w, perr.Fields)
	case errors.Is(err, store.ErrUnavailable):
		logger.Error("store unavailable", "op", op, "error", err)
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	default:
		logger.Error("store request failed", "op", op, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, statusCode int, msg string) {
	respondJSON(w, statusCode, ErrorResponse{Error: msg})
}

func writeValidationError(w http.ResponseWriter, fields []message.FieldError) {
	respondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: "validation failed", Fields: fields})
}
