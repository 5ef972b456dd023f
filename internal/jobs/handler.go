// internal/jobs/handler.go
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	apperrors "github-sync-service/internal/errors"
	"github-sync-service/internal/github"
	"github-sync-service/internal/syncer"
)

// SyncService is the orchestration surface the workers delegate to.
type SyncService interface {
	SyncAll(ctx context.Context, integrationID string) (*syncer.RunReport, error)
	SyncOrganizations(ctx context.Context, integrationID string) (syncer.Result, error)
	SyncRepositories(ctx context.Context, integrationID, owner string) (syncer.Result, error)
	SyncCommits(ctx context.Context, integrationID, owner, repo string) (syncer.Result, error)
	SyncPulls(ctx context.Context, integrationID, owner, repo string) (syncer.Result, error)
	SyncIssues(ctx context.Context, integrationID, owner, repo string) (syncer.Result, error)
	SyncUsers(ctx context.Context, integrationID string) (syncer.Result, error)
}

// Handler executes queued sync tasks.
type Handler struct {
	syncer SyncService
	logger *slog.Logger
}

func NewHandler(s SyncService, logger *slog.Logger) *Handler {
	return &Handler{syncer: s, logger: logger}
}

// Register mounts every task type onto the mux.
func (h *Handler) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeFullSync, h.handleFullSync)
	mux.HandleFunc(TypeSyncOrgs, h.handleOrgSync)
	mux.HandleFunc(TypeSyncRepos, h.handleRepoSync)
	mux.HandleFunc(TypeSyncCommits, h.handleCommitSync)
	mux.HandleFunc(TypeSyncPulls, h.handlePullSync)
	mux.HandleFunc(TypeSyncIssues, h.handleIssueSync)
	mux.HandleFunc(TypeSyncUsers, h.handleUserSync)
}

// classify maps permanent failures onto SkipRetry so the queue does not
// grind on work that cannot succeed. A concurrent sync is not a failure at
// all: the running sync covers the requested work.
func classify(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, apperrors.ErrSyncInProgress),
		errors.Is(err, apperrors.ErrIntegrationNotFound),
		errors.Is(err, apperrors.ErrRepoNotFound),
		github.IsAuthError(err):
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return err
}

func (h *Handler) handleFullSync(ctx context.Context, t *asynq.Task) error {
	p, err := decodePayload(t)
	if err != nil {
		return err
	}
	report, err := h.syncer.SyncAll(ctx, p.IntegrationID)
	if err != nil {
		h.logger.Error("Full sync task failed", "integration_id", p.IntegrationID, "error", err)
		return classify(err)
	}
	h.logger.Info("Full sync task finished",
		"integration_id", p.IntegrationID,
		"run_id", report.RunID,
		"failed_stages", len(report.Failed()))
	return nil
}

func (h *Handler) handleStage(ctx context.Context, t *asynq.Task, op func(context.Context, Payload) (syncer.Result, error)) error {
	p, err := decodePayload(t)
	if err != nil {
		return err
	}
	res, err := op(ctx, p)
	if err != nil {
		h.logger.Error("Sync stage task failed", "type", t.Type(), "integration_id", p.IntegrationID, "error", err)
		return classify(err)
	}
	if !res.Success {
		h.logger.Error("Sync stage task unsuccessful", "type", t.Type(), "integration_id", p.IntegrationID, "message", res.Message)
		return fmt.Errorf("%s: %s", t.Type(), res.Message)
	}
	h.logger.Info("Sync stage task finished", "type", t.Type(), "integration_id", p.IntegrationID, "count", res.Count)
	return nil
}

func (h *Handler) handleOrgSync(ctx context.Context, t *asynq.Task) error {
	return h.handleStage(ctx, t, func(ctx context.Context, p Payload) (syncer.Result, error) {
		return h.syncer.SyncOrganizations(ctx, p.IntegrationID)
	})
}

func (h *Handler) handleRepoSync(ctx context.Context, t *asynq.Task) error {
	return h.handleStage(ctx, t, func(ctx context.Context, p Payload) (syncer.Result, error) {
		return h.syncer.SyncRepositories(ctx, p.IntegrationID, p.Owner)
	})
}

func (h *Handler) handleCommitSync(ctx context.Context, t *asynq.Task) error {
	return h.handleStage(ctx, t, func(ctx context.Context, p Payload) (syncer.Result, error) {
		return h.syncer.SyncCommits(ctx, p.IntegrationID, p.Owner, p.Repo)
	})
}

func (h *Handler) handlePullSync(ctx context.Context, t *asynq.Task) error {
	return h.handleStage(ctx, t, func(ctx context.Context, p Payload) (syncer.Result, error) {
		return h.syncer.SyncPulls(ctx, p.IntegrationID, p.Owner, p.Repo)
	})
}

func (h *Handler) handleIssueSync(ctx context.Context, t *asynq.Task) error {
	return h.handleStage(ctx, t, func(ctx context.Context, p Payload) (syncer.Result, error) {
		return h.syncer.SyncIssues(ctx, p.IntegrationID, p.Owner, p.Repo)
	})
}

func (h *Handler) handleUserSync(ctx context.Context, t *asynq.Task) error {
	return h.handleStage(ctx, t, func(ctx context.Context, p Payload) (syncer.Result, error) {
		return h.syncer.SyncUsers(ctx, p.IntegrationID)
	})
}
