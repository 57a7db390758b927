package webhook

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/mattjoyce/inboxd/internal/config"
	"github.com/mattjoyce/inboxd/internal/dedupe"
	"github.com/mattjoyce/inboxd/internal/log"
	"github.com/mattjoyce/inboxd/internal/message"
	"github.com/mattjoyce/inboxd/internal/store"
)

// Handler serves POST /webhook.
type Handler struct {
	settings  Settings
	store     Inserter
	cache     dedupe.Cache
	validator *message.Validator
	logger    *slog.Logger
}

// NewHandler creates the ingestion handler. A nil cache disables the dedupe
// fast path.
func NewHandler(settings Settings, st Inserter, cache dedupe.Cache, logger *slog.Logger) *Handler {
	if settings.MaxBodySize <= 0 {
		settings.MaxBodySize = config.DefaultMaxBodySize
	}
	if settings.SignatureHeader == "" {
		settings.SignatureHeader = DefaultSignatureHeader
	}
	if cache == nil {
		cache = dedupe.NewNoOpCache()
	}
	if logger == nil {
		logger = log.WithComponent("webhook")
	}
	if settings.Secret == "" {
		logger.Warn("webhook secret is empty; every delivery will be rejected")
	}
	return &Handler{
		settings:  settings,
		store:     st,
		cache:     cache,
		validator: message.NewValidator(),
		logger:    logger,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.WithRequest(h.logger, middleware.GetReqID(ctx))

	// Enforce body size limit
	body, err := io.ReadAll(io.LimitReader(r.Body, h.settings.MaxBodySize+1))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if int64(len(body)) > h.settings.MaxBodySize {
		respondError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	// The signature covers the raw bytes, so it is checked before parsing.
	if err := Verify(body, r.Header.Get(h.settings.SignatureHeader), h.settings.Secret); err != nil {
		logger.Warn("webhook signature verification failed", "header", h.settings.SignatureHeader)
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	msg, err := h.validator.Decode(body)
	if err != nil {
		var verr *message.ValidationError
		if errors.As(err, &verr) {
			logger.Info("webhook payload rejected", "fields", len(verr.Fields))
			respondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: "validation failed", Fields: verr.Fields})
			return
		}
		logger.Error("webhook payload decode failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	logger = logger.With("message_id", msg.ID)

	if seen, err := h.cache.Seen(ctx, msg.ID); err != nil {
		logger.Debug("dedupe cache lookup failed", "error", err)
	} else if seen {
		logger.Info("webhook message received", "dup", true, "diverged", false, "result", ResultCached)
		respondJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
		return
	}

	out, err := h.store.Insert(ctx, msg)
	if err != nil {
		if errors.Is(err, store.ErrUnavailable) {
			logger.Error("store unavailable", "error", err)
			respondError(w, http.StatusServiceUnavailable, "service unavailable")
			return
		}
		logger.Error("failed to store message", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := h.cache.Mark(ctx, msg.ID); err != nil {
		logger.Debug("dedupe cache mark failed", "error", err)
	}

	dup := out.Result == store.Duplicate
	result := ResultInserted
	if dup {
		result = ResultDup
	}
	level := slog.LevelInfo
	if out.Diverged {
		level = slog.LevelWarn
	}
	logger.Log(ctx, level, "webhook message received", "dup", dup, "diverged", out.Diverged, "result", result)

	respondJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respondError sends a JSON error response.
func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, ErrorResponse{Error: msg})
}
