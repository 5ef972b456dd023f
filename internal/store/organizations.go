// internal/store/organizations.go
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github-sync-service/internal/model"
)

// UpsertOrganization inserts or updates by the remote numeric id and
// returns the stored row id.
func (s *Store) UpsertOrganization(ctx context.Context, o *model.Organization) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO organizations (integration_id, github_org_id, login, type, name, avatar_url, description, last_synced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (github_org_id) DO UPDATE
		SET login = EXCLUDED.login, type = EXCLUDED.type, name = EXCLUDED.name,
		    avatar_url = EXCLUDED.avatar_url, description = EXCLUDED.description,
		    last_synced_at = now()
		RETURNING id`,
		o.IntegrationID, o.GithubOrgID, o.Login, o.Type, o.Name, o.AvatarURL, o.Description,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert organization %q: %w", o.Login, err)
	}
	return id, nil
}

// FindOrganizationByLogin returns nil when no matching row exists.
func (s *Store) FindOrganizationByLogin(ctx context.Context, integrationID, login string) (*model.Organization, error) {
	var o model.Organization
	err := s.pool.QueryRow(ctx, `
		SELECT id, integration_id, github_org_id, login, type, name, avatar_url, description, last_synced_at
		FROM organizations WHERE integration_id = $1 AND login = $2`,
		integrationID, login,
	).Scan(&o.ID, &o.IntegrationID, &o.GithubOrgID, &o.Login, &o.Type, &o.Name, &o.AvatarURL, &o.Description, &o.LastSyncedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find organization %q: %w", login, err)
	}
	return &o, nil
}

// ListOrganizations returns every organization record for an integration.
func (s *Store) ListOrganizations(ctx context.Context, integrationID string) ([]model.Organization, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, integration_id, github_org_id, login, type, name, avatar_url, description, last_synced_at
		FROM organizations WHERE integration_id = $1 ORDER BY login`,
		integrationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	var orgs []model.Organization
	for rows.Next() {
		var o model.Organization
		if err := rows.Scan(&o.ID, &o.IntegrationID, &o.GithubOrgID, &o.Login, &o.Type, &o.Name, &o.AvatarURL, &o.Description, &o.LastSyncedAt); err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		orgs = append(orgs, o)
	}
	return orgs, rows.Err()
}
