// internal/store/users.go
package store

import (
	"context"
	"fmt"

	"github-sync-service/internal/model"
)

// UpsertUser inserts or updates by the remote numeric id.
func (s *Store) UpsertUser(ctx context.Context, u *model.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (integration_id, organization_id, github_user_id, login, name, email,
		                   avatar_url, company, location, public_repos, followers, last_synced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
		ON CONFLICT (github_user_id) DO UPDATE
		SET organization_id = EXCLUDED.organization_id, login = EXCLUDED.login,
		    name = EXCLUDED.name, email = EXCLUDED.email, avatar_url = EXCLUDED.avatar_url,
		    company = EXCLUDED.company, location = EXCLUDED.location,
		    public_repos = EXCLUDED.public_repos, followers = EXCLUDED.followers,
		    last_synced_at = now()`,
		u.IntegrationID, u.OrganizationID, u.GithubUserID, u.Login, u.Name, u.Email,
		u.AvatarURL, u.Company, u.Location, u.PublicRepos, u.Followers)
	if err != nil {
		return fmt.Errorf("failed to upsert user %q: %w", u.Login, err)
	}
	return nil
}

// Counts aggregates per-entity record counts for one integration.
func (s *Store) Counts(ctx context.Context, integrationID string) (model.EntityCounts, error) {
	var c model.EntityCounts
	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM organizations WHERE integration_id = $1),
			(SELECT count(*) FROM repos WHERE integration_id = $1),
			(SELECT count(*) FROM commits WHERE integration_id = $1),
			(SELECT count(*) FROM pulls WHERE integration_id = $1),
			(SELECT count(*) FROM issues WHERE integration_id = $1),
			(SELECT count(*) FROM changelogs WHERE integration_id = $1),
			(SELECT count(*) FROM users WHERE integration_id = $1)`,
		integrationID,
	).Scan(&c.Organizations, &c.Repos, &c.Commits, &c.Pulls, &c.Issues, &c.Changelogs, &c.Users)
	if err != nil {
		return model.EntityCounts{}, fmt.Errorf("failed to count entities: %w", err)
	}
	return c, nil
}
