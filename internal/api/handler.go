// internal/api/handler.go
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hibiken/asynq"

	apperrors "github-sync-service/internal/errors"
	"github-sync-service/internal/model"
	"github-sync-service/internal/progress"
	"github-sync-service/internal/retention"
)

// IntegrationStore reads integration records for the API.
type IntegrationStore interface {
	GetIntegration(ctx context.Context, integrationID string) (*model.Integration, error)
}

// SyncService exposes the orchestrator's progress and cancellation surface.
type SyncService interface {
	GetSyncProgress(ctx context.Context, integrationID string) (*progress.Snapshot, error)
	CancelSync(ctx context.Context, integrationID string)
}

// Enqueuer submits sync work onto the queue.
type Enqueuer interface {
	EnqueueFullSync(ctx context.Context, integrationID string) (*asynq.TaskInfo, error)
}

// Sweeper runs retention cleanups on demand.
type Sweeper interface {
	RunFullCleanup(ctx context.Context) (*retention.CleanupReport, error)
	Stats(ctx context.Context) (map[string]int64, error)
}

// Handler is the container for API dependencies.
type Handler struct {
	store    IntegrationStore
	syncer   SyncService
	enqueuer Enqueuer
	sweeper  Sweeper
	logger   *slog.Logger
}

// NewRouter creates and configures a new chi router with all API routes.
func NewRouter(store IntegrationStore, syncer SyncService, enqueuer Enqueuer, sweeper Sweeper, logger *slog.Logger) http.Handler {
	h := &Handler{
		store:    store,
		syncer:   syncer,
		enqueuer: enqueuer,
		sweeper:  sweeper,
		logger:   logger,
	}

	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger) // Chi's default logger
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// API Routes
	r.Get("/health", h.healthCheck)
	r.Route("/v1", func(r chi.Router) {
		r.Route("/integrations/{id}", func(r chi.Router) {
			r.Get("/", h.getIntegration)
			r.Post("/sync", h.startSync)
			r.Get("/sync/progress", h.getSyncProgress)
			r.Delete("/sync", h.cancelSync)
		})
		r.Post("/cleanup", h.runCleanup)
		r.Get("/retention/stats", h.getRetentionStats)
	})

	return r
}

// healthCheck is a simple health endpoint.
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// getIntegration returns the integration record with its sync state and
// entity counts.
// GET /v1/integrations/{id}
func (h *Handler) getIntegration(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	integration, err := h.store.GetIntegration(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperrors.ErrIntegrationNotFound) {
			respondWithError(w, http.StatusNotFound, "Integration not found")
			return
		}
		h.logger.Error("Failed to get integration", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	integration.AccessToken = ""

	respondWithJSON(w, http.StatusOK, integration)
}

// startSync enqueues a full sync run for the integration.
// POST /v1/integrations/{id}/sync
func (h *Handler) startSync(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := h.store.GetIntegration(r.Context(), id); err != nil {
		if errors.Is(err, apperrors.ErrIntegrationNotFound) {
			respondWithError(w, http.StatusNotFound, "Integration not found")
			return
		}
		h.logger.Error("Failed to get integration", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	info, err := h.enqueuer.EnqueueFullSync(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to enqueue sync", "integration_id", id, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to enqueue sync")
		return
	}

	respondWithJSON(w, http.StatusAccepted, map[string]string{
		"task_id":        info.ID,
		"integration_id": id,
		"status":         "queued",
	})
}

// getSyncProgress returns the latest progress snapshot for a running or
// recently finished sync.
// GET /v1/integrations/{id}/sync/progress
func (h *Handler) getSyncProgress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	snap, err := h.syncer.GetSyncProgress(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to get sync progress", "integration_id", id, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if snap == nil {
		respondWithError(w, http.StatusNotFound, "No sync in progress")
		return
	}

	respondWithJSON(w, http.StatusOK, snap)
}

// cancelSync clears the sync marker and lease for the integration.
// DELETE /v1/integrations/{id}/sync
func (h *Handler) cancelSync(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	h.syncer.CancelSync(r.Context(), id)
	respondWithJSON(w, http.StatusOK, map[string]string{
		"integration_id": id,
		"status":         "cancelled",
	})
}

// runCleanup triggers a full retention sweep.
// POST /v1/cleanup
func (h *Handler) runCleanup(w http.ResponseWriter, r *http.Request) {
	report, err := h.sweeper.RunFullCleanup(r.Context())
	if err != nil {
		h.logger.Error("Failed to run cleanup", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondWithJSON(w, http.StatusOK, report)
}

// getRetentionStats returns the current row totals per entity.
// GET /v1/retention/stats
func (h *Handler) getRetentionStats(w http.ResponseWriter, r *http.Request) {
	totals, err := h.sweeper.Stats(r.Context())
	if err != nil {
		h.logger.Error("Failed to get retention stats", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondWithJSON(w, http.StatusOK, totals)
}
