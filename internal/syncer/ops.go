// internal/syncer/ops.go
package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "github-sync-service/internal/errors"
	"github-sync-service/internal/model"
)

// Result is the outcome of a single-stage operation.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// opRun prepares a client and a scratch report for a single-stage operation.
func (s *Syncer) opRun(ctx context.Context, integrationID string) (*run, error) {
	if err := s.quota.Check(ctx, integrationID); err != nil {
		return nil, err
	}
	client, err := s.clientFor(ctx, integrationID)
	if err != nil {
		return nil, err
	}
	return &run{
		integrationID: integrationID,
		client:        client,
		logger:        s.logger.With("integration_id", integrationID),
		report: &RunReport{
			RunID:         uuid.New(),
			IntegrationID: integrationID,
			StartedAt:     time.Now(),
		},
	}, nil
}

// resolveRepo looks up an already-synced repository by owner and name.
func (s *Syncer) resolveRepo(ctx context.Context, integrationID, owner, name string) (*model.Repo, error) {
	repo, err := s.store.FindRepoByOwnerName(ctx, integrationID, owner, name)
	if err != nil {
		return nil, err
	}
	if repo == nil {
		return nil, apperrors.ErrRepoNotFound
	}
	return repo, nil
}

// stageResult folds the report entries for one stage into a Result.
func stageResult(r *run, stage string) Result {
	total := 0
	for _, st := range r.report.Stages {
		if st.Stage != stage {
			continue
		}
		if st.Status == StageFailed {
			return Result{Success: false, Message: st.Reason, Count: st.Count}
		}
		total += st.Count
	}
	return Result{
		Success: true,
		Message: fmt.Sprintf("Synced %d %s", total, stage),
		Count:   total,
	}
}

// SyncOrganizations refreshes the account and organization records only.
func (s *Syncer) SyncOrganizations(ctx context.Context, integrationID string) (Result, error) {
	r, err := s.opRun(ctx, integrationID)
	if err != nil {
		return Result{}, err
	}
	orgs, err := s.stageOrganizations(ctx, r)
	if err != nil {
		return Result{}, err
	}
	return Result{Success: true, Message: fmt.Sprintf("Synced %d organizations", len(orgs)), Count: len(orgs)}, nil
}

// SyncRepositories refreshes the repositories of one already-synced owner.
func (s *Syncer) SyncRepositories(ctx context.Context, integrationID, owner string) (Result, error) {
	r, err := s.opRun(ctx, integrationID)
	if err != nil {
		return Result{}, err
	}
	org, err := s.store.FindOrganizationByLogin(ctx, integrationID, owner)
	if err != nil {
		return Result{}, err
	}
	if org == nil {
		return Result{}, fmt.Errorf("owner %q has not been synced: %w", owner, apperrors.ErrRepoNotFound)
	}
	repos, err := s.stageRepositories(ctx, r, []model.Organization{*org})
	if err != nil {
		return Result{}, err
	}
	return Result{Success: true, Message: fmt.Sprintf("Synced %d repositories for %s", len(repos), owner), Count: len(repos)}, nil
}

// SyncCommits refreshes the recent commits of one repository.
func (s *Syncer) SyncCommits(ctx context.Context, integrationID, owner, name string) (Result, error) {
	r, err := s.opRun(ctx, integrationID)
	if err != nil {
		return Result{}, err
	}
	repo, err := s.resolveRepo(ctx, integrationID, owner, name)
	if err != nil {
		return Result{}, err
	}
	s.stageCommits(ctx, r, *repo)
	return stageResult(r, "commits"), nil
}

// SyncPulls refreshes the pull requests of one repository.
func (s *Syncer) SyncPulls(ctx context.Context, integrationID, owner, name string) (Result, error) {
	r, err := s.opRun(ctx, integrationID)
	if err != nil {
		return Result{}, err
	}
	repo, err := s.resolveRepo(ctx, integrationID, owner, name)
	if err != nil {
		return Result{}, err
	}
	s.stagePulls(ctx, r, *repo)
	return stageResult(r, "pulls"), nil
}

// SyncIssues refreshes the issues and changelogs of one repository.
func (s *Syncer) SyncIssues(ctx context.Context, integrationID, owner, name string) (Result, error) {
	r, err := s.opRun(ctx, integrationID)
	if err != nil {
		return Result{}, err
	}
	repo, err := s.resolveRepo(ctx, integrationID, owner, name)
	if err != nil {
		return Result{}, err
	}
	s.stageIssues(ctx, r, *repo)
	return stageResult(r, "issues"), nil
}

// SyncUsers refreshes member profiles for every already-synced organization.
// Personal accounts resolve contributors from their live repository listing.
func (s *Syncer) SyncUsers(ctx context.Context, integrationID string) (Result, error) {
	r, err := s.opRun(ctx, integrationID)
	if err != nil {
		return Result{}, err
	}
	orgs, err := s.store.ListOrganizations(ctx, integrationID)
	if err != nil {
		return Result{}, err
	}
	if len(orgs) == 0 {
		return Result{Success: true, Message: "No organizations synced yet", Count: 0}, nil
	}

	var repos []model.Repo
	for _, org := range orgs {
		if org.Type == "Organization" {
			continue
		}
		owned, err := r.client.ListRepositories(ctx, org.Login)
		if err != nil {
			r.logger.Warn("Repository listing failed, continuing", "owner", org.Login, "error", err)
			continue
		}
		repos = append(repos, owned...)
	}

	s.stageUsers(ctx, r, orgs, repos)
	return stageResult(r, "users"), nil
}
