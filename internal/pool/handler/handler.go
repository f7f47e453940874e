// Package handler exposes the credential pool inventory over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"firegate/internal/pool"
	"firegate/pkg/platform/httputil"
)

// Service is the pool surface the handler needs.
type Service interface {
	List(ctx context.Context) ([]*pool.Entry, error)
	Get(ctx context.Context, firefighterID string) (*pool.Entry, error)
}

// Handler handles the /pool endpoints.
type Handler struct {
	svc    Service
	logger *slog.Logger
}

// New creates the pool handler.
func New(svc Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Register mounts the pool routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/pool", h.handleList)
	r.Get("/pool/{firefighterID}", h.handleGet)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.List(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "pool list failed", "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	entry, err := h.svc.Get(r.Context(), chi.URLParam(r, "firefighterID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entry)
}
