// Package handler exposes the request lifecycle over HTTP. It stays
// thin: decode, resolve the acting identity, delegate to the lifecycle
// service, translate errors.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"firegate/internal/domain"
	"firegate/internal/platform/metrics"
	"firegate/internal/request/models"
	"firegate/internal/request/store"
	"firegate/internal/sessionlog"
	dErrors "firegate/pkg/domain-errors"
	"firegate/pkg/platform/httputil"
	"firegate/pkg/requestcontext"
)

// Service is the lifecycle surface the handler needs.
type Service interface {
	Submit(ctx context.Context, draft models.Draft) (*models.AccessRequest, error)
	Get(ctx context.Context, requestID string) (*models.AccessRequest, error)
	List(ctx context.Context, f store.Filter) ([]*models.AccessRequest, error)
	Decide(ctx context.Context, requestID string, d models.Decision) (*models.AccessRequest, error)
	Cancel(ctx context.Context, requestID, actor string) (*models.AccessRequest, error)
	Terminate(ctx context.Context, requestID, actor string) (*models.AccessRequest, error)
	Logs(ctx context.Context, requestID string) (*sessionlog.Bundle, error)
}

// Handler handles the /requests endpoints.
type Handler struct {
	svc     Service
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates the request handler.
func New(svc Service, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{svc: svc, logger: logger, metrics: m}
}

// Register mounts the request routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/requests", func(r chi.Router) {
		r.Post("/", h.handleSubmit)
		r.Get("/", h.handleList)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Post("/decisions", h.handleDecide)
			r.Post("/cancel", h.handleCancel)
			r.Post("/terminate", h.handleTerminate)
			r.Get("/logs", h.handleLogs)
		})
	})
}

type submitRequest struct {
	Subject       string               `json:"subject"`
	TargetSystem  string               `json:"target_system"`
	Window        domain.Window        `json:"window"`
	Justification models.Justification `json:"justification"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(w, ctx)
	if !ok {
		return
	}

	body, ok := httputil.DecodeAndPrepare[submitRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	subject := body.Subject
	if subject == "" {
		subject = actor
	}
	req, err := h.svc.Submit(ctx, models.Draft{
		Requester:     actor,
		Subject:       subject,
		TargetSystem:  body.TargetSystem,
		Window:        body.Window,
		Justification: body.Justification,
	})
	if err != nil {
		h.writeServiceError(w, ctx, "submit failed", err)
		return
	}
	h.metrics.IncSubmitted()
	httputil.WriteJSON(w, http.StatusCreated, req)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.requestID(w, r)
	if !ok {
		return
	}
	req, err := h.svc.Get(ctx, id)
	if err != nil {
		h.writeServiceError(w, ctx, "get failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, req)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var f store.Filter
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := domain.ParseStatus(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		f.Status = status
	}
	f.Requester = r.URL.Query().Get("requester")
	f.Approver = r.URL.Query().Get("approver")

	reqs, err := h.svc.List(ctx, f)
	if err != nil {
		h.writeServiceError(w, ctx, "list failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"requests": reqs})
}

type decisionRequest struct {
	StepKind string `json:"step_kind"`
	Outcome  string `json:"outcome"`
	Comment  string `json:"comment"`
}

func (h *Handler) handleDecide(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(w, ctx)
	if !ok {
		return
	}
	id, ok := h.requestID(w, r)
	if !ok {
		return
	}
	body, ok := httputil.DecodeAndPrepare[decisionRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	step, err := domain.ParseStepKind(body.StepKind)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	outcome, err := domain.ParseOutcome(body.Outcome)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, err := h.svc.Decide(ctx, id, models.Decision{
		Actor:     actor,
		StepKind:  step,
		Outcome:   outcome,
		Comment:   body.Comment,
		Timestamp: requestcontext.Now(ctx),
	})
	if err != nil {
		h.writeServiceError(w, ctx, "decision failed", err)
		return
	}
	h.metrics.IncDecision(string(step), string(outcome))
	httputil.WriteJSON(w, http.StatusOK, req)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	h.handleActorAction(w, r, h.svc.Cancel)
}

func (h *Handler) handleTerminate(w http.ResponseWriter, r *http.Request) {
	h.handleActorAction(w, r, h.svc.Terminate)
}

func (h *Handler) handleActorAction(w http.ResponseWriter, r *http.Request, action func(context.Context, string, string) (*models.AccessRequest, error)) {
	ctx := r.Context()
	actor, ok := h.requireActor(w, ctx)
	if !ok {
		return
	}
	id, ok := h.requestID(w, r)
	if !ok {
		return
	}
	req, err := action(ctx, id, actor)
	if err != nil {
		h.writeServiceError(w, ctx, "action failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, req)
}

func (h *Handler) handleLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.requestID(w, r)
	if !ok {
		return
	}
	bundle, err := h.svc.Logs(ctx, id)
	if err != nil {
		h.writeServiceError(w, ctx, "log bundle failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, bundle)
}

func (h *Handler) requireActor(w http.ResponseWriter, ctx context.Context) (string, bool) {
	actor := requestcontext.ActorID(ctx)
	if actor == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "X-Actor-ID header is required"))
		return "", false
	}
	return actor, true
}

func (h *Handler) requestID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := domain.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return "", false
	}
	return id, true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, ctx context.Context, msg string, err error) {
	level := slog.LevelWarn
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
	httputil.WriteError(w, err)
}
