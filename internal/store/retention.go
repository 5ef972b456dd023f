// internal/store/retention.go
package store

import (
	"context"
	"fmt"
	"time"
)

func (s *Store) deleteBefore(ctx context.Context, query string, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteCommitsBefore removes commits last synced strictly before cutoff.
func (s *Store) DeleteCommitsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := s.deleteBefore(ctx, `DELETE FROM commits WHERE last_synced_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete aged commits: %w", err)
	}
	return n, nil
}

// DeleteClosedPullsBefore removes closed pulls last synced before cutoff.
// Open pulls are kept regardless of age.
func (s *Store) DeleteClosedPullsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := s.deleteBefore(ctx, `DELETE FROM pulls WHERE state = 'closed' AND last_synced_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete aged pulls: %w", err)
	}
	return n, nil
}

// DeleteClosedIssuesBefore removes closed issues last synced before cutoff,
// cascading to their changelogs.
func (s *Store) DeleteClosedIssuesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := s.deleteBefore(ctx, `DELETE FROM issues WHERE state = 'closed' AND last_synced_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete aged issues: %w", err)
	}
	return n, nil
}

// DeleteChangelogsBefore removes changelog rows recorded before cutoff.
func (s *Store) DeleteChangelogsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := s.deleteBefore(ctx, `DELETE FROM changelogs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete aged changelogs: %w", err)
	}
	return n, nil
}

// DeleteInactiveReposBefore removes archived or disabled repos last synced
// before cutoff, cascading to their child entities.
func (s *Store) DeleteInactiveReposBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := s.deleteBefore(ctx, `DELETE FROM repos WHERE (archived OR disabled) AND last_synced_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete inactive repos: %w", err)
	}
	return n, nil
}

// DeleteStaleUsersBefore removes users last synced before cutoff.
func (s *Store) DeleteStaleUsersBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := s.deleteBefore(ctx, `DELETE FROM users WHERE last_synced_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale users: %w", err)
	}
	return n, nil
}

// EntityTotals returns global per-entity row counts across all integrations.
func (s *Store) EntityTotals(ctx context.Context) (map[string]int64, error) {
	totals := map[string]int64{}
	for _, e := range []struct{ name, table string }{
		{"organizations", "organizations"},
		{"repos", "repos"},
		{"commits", "commits"},
		{"pulls", "pulls"},
		{"issues", "issues"},
		{"changelogs", "changelogs"},
		{"users", "users"},
	} {
		var n int64
		if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM `+e.table).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", e.name, err)
		}
		totals[e.name] = n
	}
	return totals, nil
}
