//go:build integration

// cmd/service/integration_test.go
package main

import (
	"context"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github-sync-service/internal/model"
	"github-sync-service/internal/store"
)

func setupTestDatabase(ctx context.Context, t *testing.T) (*pgxpool.Pool, func()) {
	// Start a postgres container
	pgContainer, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("test-db"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second),
		),
	)
	require.NoError(t, err)

	// Get the connection string
	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Run migrations
	m, err := migrate.New("file://../../migrations", connStr)
	require.NoError(t, err)
	err = m.Up()
	require.NoError(t, err)

	// Create a connection pool
	dbpool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	// Teardown function to be called by the test
	teardown := func() {
		dbpool.Close()
		err := pgContainer.Terminate(ctx)
		require.NoError(t, err)
	}

	return dbpool, teardown
}

func seedIntegration(ctx context.Context, t *testing.T, dbpool *pgxpool.Pool) string {
	var id string
	err := dbpool.QueryRow(ctx, `
		INSERT INTO integrations (github_account_id, login, access_token)
		VALUES (42, 'octocat', 'test-token')
		RETURNING id`).Scan(&id)
	require.NoError(t, err)
	return id
}

func TestStore_IdempotentReSync(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	dbpool, teardown := setupTestDatabase(ctx, t)
	defer teardown()

	st := store.New(dbpool)
	integrationID := seedIntegration(ctx, t, dbpool)

	// First pass
	orgID, err := st.UpsertOrganization(ctx, &model.Organization{
		IntegrationID: integrationID,
		GithubOrgID:   100,
		Login:         "acme",
		Type:          "Organization",
	})
	require.NoError(t, err)

	repoID, err := st.UpsertRepo(ctx, &model.Repo{
		IntegrationID:  integrationID,
		OrganizationID: &orgID,
		GithubRepoID:   200,
		Owner:          "acme",
		Name:           "widget",
		StarsCount:     5,
	})
	require.NoError(t, err)

	require.NoError(t, st.UpsertCommit(ctx, &model.Commit{
		IntegrationID: integrationID,
		RepoID:        repoID,
		SHA:           "abc123",
		Message:       "initial commit",
		CommittedAt:   time.Now().Add(-time.Hour),
	}))

	issueID, err := st.UpsertIssue(ctx, &model.Issue{
		IntegrationID: integrationID,
		RepoID:        repoID,
		Number:        1,
		State:         "open",
		Title:         "flaky test",
		CreatedAt:     time.Now().Add(-time.Hour),
	})
	require.NoError(t, err)

	inserted, err := st.InsertChangelog(ctx, &model.Changelog{
		IntegrationID:  integrationID,
		IssueID:        issueID,
		GithubEventID:  900,
		Event:          "labeled",
		EventCreatedAt: time.Now().Add(-time.Hour),
	})
	require.NoError(t, err)
	assert.True(t, inserted)

	// Second pass: same natural keys with changed mutable fields must
	// update in place, never duplicate.
	orgID2, err := st.UpsertOrganization(ctx, &model.Organization{
		IntegrationID: integrationID,
		GithubOrgID:   100,
		Login:         "acme",
		Type:          "Organization",
	})
	require.NoError(t, err)
	assert.Equal(t, orgID, orgID2)

	repoID2, err := st.UpsertRepo(ctx, &model.Repo{
		IntegrationID:  integrationID,
		OrganizationID: &orgID,
		GithubRepoID:   200,
		Owner:          "acme",
		Name:           "widget",
		StarsCount:     9,
	})
	require.NoError(t, err)
	assert.Equal(t, repoID, repoID2)

	require.NoError(t, st.UpsertCommit(ctx, &model.Commit{
		IntegrationID: integrationID,
		RepoID:        repoID,
		SHA:           "abc123",
		Message:       "initial commit",
		Additions:     3,
		CommittedAt:   time.Now().Add(-time.Hour),
	}))

	inserted, err = st.InsertChangelog(ctx, &model.Changelog{
		IntegrationID:  integrationID,
		IssueID:        issueID,
		GithubEventID:  900,
		Event:          "labeled",
		EventCreatedAt: time.Now().Add(-time.Hour),
	})
	require.NoError(t, err)
	assert.False(t, inserted, "replayed changelog events must be ignored")

	var repoCount, stars, commitCount int
	require.NoError(t, dbpool.QueryRow(ctx, `SELECT count(*), max(stars_count) FROM repos`).Scan(&repoCount, &stars))
	require.NoError(t, dbpool.QueryRow(ctx, `SELECT count(*) FROM commits`).Scan(&commitCount))
	assert.Equal(t, 1, repoCount)
	assert.Equal(t, 9, stars)
	assert.Equal(t, 1, commitCount)

	counts, err := st.Counts(ctx, integrationID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.Organizations)
	assert.Equal(t, int64(1), counts.Repos)
	assert.Equal(t, int64(1), counts.Commits)
	assert.Equal(t, int64(1), counts.Issues)
	assert.Equal(t, int64(1), counts.Changelogs)

	require.NoError(t, st.FinishSync(ctx, integrationID, counts, []string{"acme"}))
	integration, err := st.GetIntegration(ctx, integrationID)
	require.NoError(t, err)
	assert.Equal(t, model.SyncCompleted, integration.SyncStatus)
	assert.Equal(t, []string{"acme"}, integration.OrgLogins)
	require.NotNil(t, integration.LastSyncAt)
}

func TestStore_RetentionDeletesAgedRows(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	dbpool, teardown := setupTestDatabase(ctx, t)
	defer teardown()

	st := store.New(dbpool)
	integrationID := seedIntegration(ctx, t, dbpool)

	repoID, err := st.UpsertRepo(ctx, &model.Repo{
		IntegrationID: integrationID,
		GithubRepoID:  200,
		Owner:         "acme",
		Name:          "widget",
	})
	require.NoError(t, err)

	require.NoError(t, st.UpsertCommit(ctx, &model.Commit{
		IntegrationID: integrationID,
		RepoID:        repoID,
		SHA:           "old",
		CommittedAt:   time.Now().Add(-time.Hour),
	}))
	// Age the row beyond the cutoff.
	_, err = dbpool.Exec(ctx, `UPDATE commits SET last_synced_at = now() - interval '200 days' WHERE sha = 'old'`)
	require.NoError(t, err)

	require.NoError(t, st.UpsertCommit(ctx, &model.Commit{
		IntegrationID: integrationID,
		RepoID:        repoID,
		SHA:           "fresh",
		CommittedAt:   time.Now(),
	}))

	deleted, err := st.DeleteCommitsBefore(ctx, time.Now().Add(-180*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var remaining string
	require.NoError(t, dbpool.QueryRow(ctx, `SELECT sha FROM commits`).Scan(&remaining))
	assert.Equal(t, "fresh", remaining)
}
