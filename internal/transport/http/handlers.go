// Package httptransport is the thin HTTP layer. Handlers delegate to domain
// services and translate their errors; no business logic lives here.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"leadpipe/internal/lead"
	"leadpipe/internal/pipeline"
	"leadpipe/internal/platform/middleware"
	"leadpipe/internal/roles"
	pkgerrors "leadpipe/pkg/errors"
	"leadpipe/pkg/httputil"
)

//go:generate mockgen -source=handlers.go -destination=mocks/leadpipe-mocks.go -package=mocks LeadService,RoleService

// LeadService defines the interface for lead record operations.
type LeadService interface {
	Create(ctx context.Context, actor string, p lead.Payload) (lead.Lead, error)
	Update(ctx context.Context, actor, id string, p lead.Payload) (lead.Lead, error)
	Delete(ctx context.Context, actor, id string) error
	Get(ctx context.Context, actor, id string) (lead.Lead, error)
}

// RoleService defines the interface for capability operations.
type RoleService interface {
	Resolve(ctx context.Context, identity string) (roles.CapabilitySet, error)
	Grant(ctx context.Context, actor, identity string, caps roles.CapabilitySet) error
}

// Handler wires lead, role, and pipeline endpoints to their services.
type Handler struct {
	leads         LeadService
	roles         RoleService
	watcher       pipeline.Watcher
	logger        *slog.Logger
	snapshotLimit int
}

func New(leads LeadService, roleService RoleService, watcher pipeline.Watcher, logger *slog.Logger, snapshotLimit int) *Handler {
	return &Handler{
		leads:         leads,
		roles:         roleService,
		watcher:       watcher,
		logger:        logger,
		snapshotLimit: snapshotLimit,
	}
}

// Register mounts all endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/leads", h.HandleCreateLead)
	r.Get("/leads/{id}", h.HandleGetLead)
	r.Put("/leads/{id}", h.HandleUpdateLead)
	r.Delete("/leads/{id}", h.HandleDeleteLead)

	r.Get("/pipeline", h.HandlePipelineSnapshot)
	r.Get("/pipeline/stream", h.HandlePipelineStream)

	r.Get("/roles/me", h.HandleMyCapabilities)
	r.Put("/roles/{identity}", h.HandleGrantCapabilities)
}

// HandleCreateLead handles POST /leads.
func (h *Handler) HandleCreateLead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.GetIdentity(ctx)

	payload, err := httputil.Decode[lead.Payload](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	created, err := h.leads.Create(ctx, actor, payload)
	if err != nil {
		h.logger.ErrorContext(ctx, "lead creation failed", "actor", actor, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

// HandleGetLead handles GET /leads/{id}.
func (h *Handler) HandleGetLead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.GetIdentity(ctx)
	id := chi.URLParam(r, "id")

	l, err := h.leads.Get(ctx, actor, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, l)
}

// HandleUpdateLead handles PUT /leads/{id}.
func (h *Handler) HandleUpdateLead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.GetIdentity(ctx)
	id := chi.URLParam(r, "id")

	payload, err := httputil.Decode[lead.Payload](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	updated, err := h.leads.Update(ctx, actor, id, payload)
	if err != nil {
		h.logger.ErrorContext(ctx, "lead update failed", "actor", actor, "lead_id", id, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

// HandleDeleteLead handles DELETE /leads/{id}.
func (h *Handler) HandleDeleteLead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.GetIdentity(ctx)
	id := chi.URLParam(r, "id")

	if err := h.leads.Delete(ctx, actor, id); err != nil {
		h.logger.ErrorContext(ctx, "lead deletion failed", "actor", actor, "lead_id", id, "error", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandlePipelineSnapshot handles GET /pipeline: a one-shot, ordered view of
// the lead set. Query params: stage narrows to one pipeline stage, q is a
// free-text search applied after the snapshot is taken.
func (h *Handler) HandlePipelineSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter, err := h.parseFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	snapshot, err := pipeline.Snapshot(ctx, h.watcher, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "pipeline snapshot failed", "error", err)
		httputil.WriteError(w, err)
		return
	}
	snapshot = pipeline.FilterSnapshot(snapshot, r.URL.Query().Get("q"))
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"leads": snapshot})
}

// HandleMyCapabilities handles GET /roles/me. First sight of an identity
// bootstraps its default capability set.
func (h *Handler) HandleMyCapabilities(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.GetIdentity(ctx)

	caps, err := h.roles.Resolve(ctx, actor)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"identity":     actor,
		"capabilities": caps,
	})
}

// HandleGrantCapabilities handles PUT /roles/{identity}.
func (h *Handler) HandleGrantCapabilities(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.GetIdentity(ctx)
	identity := chi.URLParam(r, "identity")

	caps, err := httputil.Decode[roles.CapabilitySet](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.roles.Grant(ctx, actor, identity, caps); err != nil {
		h.logger.ErrorContext(ctx, "capability grant failed", "actor", actor, "identity", identity, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"identity":     identity,
		"capabilities": caps,
	})
}

func (h *Handler) parseFilter(r *http.Request) (pipeline.Filter, error) {
	filter := pipeline.Filter{Limit: h.snapshotLimit}
	if raw := r.URL.Query().Get("stage"); raw != "" {
		stage := lead.Stage(raw)
		if !stage.Valid() {
			return pipeline.Filter{}, pkgerrors.New(pkgerrors.CodeValidation, "unknown stage")
		}
		filter.Stage = &stage
	}
	return filter, nil
}
