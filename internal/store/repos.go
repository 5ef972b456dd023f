// internal/store/repos.go
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	apperrors "github-sync-service/internal/errors"
	"github-sync-service/internal/model"
)

// UpsertRepo inserts or updates by the remote numeric id and returns the
// stored row id.
func (s *Store) UpsertRepo(ctx context.Context, r *model.Repo) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO repos (integration_id, organization_id, github_repo_id, owner, name,
		                   private, fork, archived, disabled, language,
		                   stars_count, forks_count, open_issues_count, watchers_count,
		                   pushed_at, last_synced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, now())
		ON CONFLICT (github_repo_id) DO UPDATE
		SET organization_id = EXCLUDED.organization_id, owner = EXCLUDED.owner,
		    name = EXCLUDED.name, private = EXCLUDED.private, fork = EXCLUDED.fork,
		    archived = EXCLUDED.archived, disabled = EXCLUDED.disabled,
		    language = EXCLUDED.language, stars_count = EXCLUDED.stars_count,
		    forks_count = EXCLUDED.forks_count, open_issues_count = EXCLUDED.open_issues_count,
		    watchers_count = EXCLUDED.watchers_count, pushed_at = EXCLUDED.pushed_at,
		    last_synced_at = now()
		RETURNING id`,
		r.IntegrationID, r.OrganizationID, r.GithubRepoID, r.Owner, r.Name,
		r.Private, r.Fork, r.Archived, r.Disabled, r.Language,
		r.StarsCount, r.ForksCount, r.OpenIssuesCount, r.WatchersCount, r.PushedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert repo %s/%s: %w", r.Owner, r.Name, err)
	}
	return id, nil
}

// FindRepoByOwnerName returns ErrRepoNotFound when no row matches.
func (s *Store) FindRepoByOwnerName(ctx context.Context, integrationID, owner, name string) (*model.Repo, error) {
	var r model.Repo
	err := s.pool.QueryRow(ctx, `
		SELECT id, integration_id, organization_id, github_repo_id, owner, name,
		       private, fork, archived, disabled, language,
		       stars_count, forks_count, open_issues_count, watchers_count,
		       pushed_at, last_synced_at
		FROM repos WHERE integration_id = $1 AND owner = $2 AND name = $3`,
		integrationID, owner, name,
	).Scan(&r.ID, &r.IntegrationID, &r.OrganizationID, &r.GithubRepoID, &r.Owner, &r.Name,
		&r.Private, &r.Fork, &r.Archived, &r.Disabled, &r.Language,
		&r.StarsCount, &r.ForksCount, &r.OpenIssuesCount, &r.WatchersCount,
		&r.PushedAt, &r.LastSyncedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrRepoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find repo %s/%s: %w", owner, name, err)
	}
	return &r, nil
}

// CountReposByOwner is used by the idempotence checks and stats.
func (s *Store) CountReposByOwner(ctx context.Context, integrationID, owner string) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM repos WHERE integration_id = $1 AND owner = $2`,
		integrationID, owner).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count repos: %w", err)
	}
	return n, nil
}
