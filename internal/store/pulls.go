// internal/store/pulls.go
package store

import (
	"context"
	"fmt"

	"github-sync-service/internal/model"
)

// UpsertPull inserts or updates by (repo, number).
func (s *Store) UpsertPull(ctx context.Context, p *model.Pull) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pulls (integration_id, repo_id, number, state, merged, title, author_login,
		                   head_ref, base_ref, created_at, closed_at, merged_at, last_synced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now())
		ON CONFLICT (repo_id, number) DO UPDATE
		SET state = EXCLUDED.state, merged = EXCLUDED.merged, title = EXCLUDED.title,
		    author_login = EXCLUDED.author_login, head_ref = EXCLUDED.head_ref,
		    base_ref = EXCLUDED.base_ref, closed_at = EXCLUDED.closed_at,
		    merged_at = EXCLUDED.merged_at, last_synced_at = now()`,
		p.IntegrationID, p.RepoID, p.Number, p.State, p.Merged, p.Title, p.AuthorLogin,
		p.HeadRef, p.BaseRef, p.CreatedAt, p.ClosedAt, p.MergedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert pull #%d: %w", p.Number, err)
	}
	return nil
}
