// internal/store/commits.go
package store

import (
	"context"
	"fmt"

	"github-sync-service/internal/model"
)

// UpsertCommit inserts or updates by SHA.
func (s *Store) UpsertCommit(ctx context.Context, c *model.Commit) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO commits (integration_id, repo_id, sha, author_name, author_email, author_login,
		                     message, additions, deletions, changed_files, committed_at, last_synced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
		ON CONFLICT (sha) DO UPDATE
		SET author_name = EXCLUDED.author_name, author_email = EXCLUDED.author_email,
		    author_login = EXCLUDED.author_login, message = EXCLUDED.message,
		    additions = EXCLUDED.additions, deletions = EXCLUDED.deletions,
		    changed_files = EXCLUDED.changed_files, committed_at = EXCLUDED.committed_at,
		    last_synced_at = now()`,
		c.IntegrationID, c.RepoID, c.SHA, c.AuthorName, c.AuthorEmail, c.AuthorLogin,
		c.Message, c.Additions, c.Deletions, c.ChangedFiles, c.CommittedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert commit %s: %w", c.SHA, err)
	}
	return nil
}
