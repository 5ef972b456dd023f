// internal/store/integrations.go
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	apperrors "github-sync-service/internal/errors"
	"github-sync-service/internal/model"
)

// GetIntegration loads an integration by id.
func (s *Store) GetIntegration(ctx context.Context, id string) (*model.Integration, error) {
	var in model.Integration
	err := s.pool.QueryRow(ctx, `
		SELECT id, github_account_id, login, access_token, sync_status,
		       progress_current, progress_total, progress_message,
		       last_error, org_logins, entity_counts, last_sync_at, active,
		       created_at, updated_at
		FROM integrations WHERE id = $1`, id).Scan(
		&in.ID, &in.GithubAccountID, &in.Login, &in.AccessToken, &in.SyncStatus,
		&in.ProgressCurrent, &in.ProgressTotal, &in.ProgressMessage,
		&in.LastError, &in.OrgLogins, &in.EntityCounts, &in.LastSyncAt, &in.Active,
		&in.CreatedAt, &in.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrIntegrationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load integration: %w", err)
	}
	return &in, nil
}

// GetDecryptedAccessToken returns the access token for an active
// integration. Decryption of the stored credential is the credential
// store's concern; this layer sees the usable token.
func (s *Store) GetDecryptedAccessToken(ctx context.Context, id string) (string, error) {
	var token string
	err := s.pool.QueryRow(ctx,
		`SELECT access_token FROM integrations WHERE id = $1 AND active`, id).Scan(&token)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", apperrors.ErrIntegrationNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to load access token: %w", err)
	}
	return token, nil
}

// SetSyncStatus transitions the integration's sync state. lastError may be
// nil to clear the previous failure.
func (s *Store) SetSyncStatus(ctx context.Context, id string, status model.SyncStatus, lastError *string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE integrations
		SET sync_status = $2, last_error = $3, updated_at = now()
		WHERE id = $1`, id, status, lastError)
	if err != nil {
		return fmt.Errorf("failed to set sync status: %w", err)
	}
	return nil
}

// SetProgress mirrors the current progress onto the integration row.
func (s *Store) SetProgress(ctx context.Context, id string, current, total int, message string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE integrations
		SET progress_current = $2, progress_total = $3, progress_message = $4, updated_at = now()
		WHERE id = $1`, id, current, total, message)
	if err != nil {
		return fmt.Errorf("failed to set progress: %w", err)
	}
	return nil
}

// FinishSync stamps a successful run: status, aggregate metadata and
// last_sync_at in one statement.
func (s *Store) FinishSync(ctx context.Context, id string, counts model.EntityCounts, orgLogins []string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE integrations
		SET sync_status = $2, entity_counts = $3, org_logins = $4,
		    progress_current = progress_total, last_error = NULL,
		    last_sync_at = now(), updated_at = now()
		WHERE id = $1`, id, model.SyncCompleted, counts, orgLogins)
	if err != nil {
		return fmt.Errorf("failed to finish sync: %w", err)
	}
	return nil
}

// SaveRateLimit mirrors the latest quota snapshot onto the integration row.
func (s *Store) SaveRateLimit(ctx context.Context, id string, rl model.RateLimit) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE integrations
		SET rate_limit_limit = $2, rate_limit_remaining = $3,
		    rate_limit_used = $4, rate_limit_reset = $5, updated_at = now()
		WHERE id = $1`, id, rl.Limit, rl.Remaining, rl.Used, rl.Reset)
	if err != nil {
		return fmt.Errorf("failed to save rate limit: %w", err)
	}
	return nil
}
