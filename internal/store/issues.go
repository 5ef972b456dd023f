// internal/store/issues.go
package store

import (
	"context"
	"fmt"

	"github-sync-service/internal/model"
)

// UpsertIssue inserts or updates by (repo, number) and returns the stored
// row id for changelog attachment.
func (s *Store) UpsertIssue(ctx context.Context, i *model.Issue) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO issues (integration_id, repo_id, number, state, title, author_login,
		                    labels, comments_count, created_at, closed_at, last_synced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		ON CONFLICT (repo_id, number) DO UPDATE
		SET state = EXCLUDED.state, title = EXCLUDED.title,
		    author_login = EXCLUDED.author_login, labels = EXCLUDED.labels,
		    comments_count = EXCLUDED.comments_count, closed_at = EXCLUDED.closed_at,
		    last_synced_at = now()
		RETURNING id`,
		i.IntegrationID, i.RepoID, i.Number, i.State, i.Title, i.AuthorLogin,
		i.Labels, i.CommentsCount, i.CreatedAt, i.ClosedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert issue #%d: %w", i.Number, err)
	}
	return id, nil
}

// InsertChangelog appends one timeline event. Changelogs are append-only;
// a duplicate (issue, remote event id) is silently skipped. Returns whether
// a row was written.
func (s *Store) InsertChangelog(ctx context.Context, cl *model.Changelog) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO changelogs (integration_id, issue_id, github_event_id, event, actor_login, detail, event_created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (issue_id, github_event_id) DO NOTHING`,
		cl.IntegrationID, cl.IssueID, cl.GithubEventID, cl.Event, cl.ActorLogin, cl.Detail, cl.EventCreatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to insert changelog event %d: %w", cl.GithubEventID, err)
	}
	return tag.RowsAffected() > 0, nil
}
