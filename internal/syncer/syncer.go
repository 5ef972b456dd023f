// internal/syncer/syncer.go
package syncer

import (
	"context"
	"log/slog"
	"regexp"
	"time"

	"github-sync-service/internal/model"
	"github-sync-service/internal/progress"
)

const (
	// defaultCommitWindow bounds commit fetches to a recent window; full
	// history is never pulled.
	defaultCommitWindow = 30 * 24 * time.Hour
	// defaultUserConcurrency caps parallel user-profile fetches.
	defaultUserConcurrency = 5
	// maxContributorProfiles caps how many contributor profiles are
	// resolved for a personal account, which has no member listing.
	maxContributorProfiles = 100
)

// Store is the persistence surface the orchestrator drives.
type Store interface {
	GetDecryptedAccessToken(ctx context.Context, integrationID string) (string, error)
	SetSyncStatus(ctx context.Context, integrationID string, status model.SyncStatus, lastError *string) error
	SetProgress(ctx context.Context, integrationID string, current, total int, message string) error
	FinishSync(ctx context.Context, integrationID string, counts model.EntityCounts, orgLogins []string) error
	SaveRateLimit(ctx context.Context, integrationID string, rl model.RateLimit) error

	UpsertOrganization(ctx context.Context, o *model.Organization) (int64, error)
	FindOrganizationByLogin(ctx context.Context, integrationID, login string) (*model.Organization, error)
	ListOrganizations(ctx context.Context, integrationID string) ([]model.Organization, error)
	UpsertRepo(ctx context.Context, r *model.Repo) (int64, error)
	FindRepoByOwnerName(ctx context.Context, integrationID, owner, name string) (*model.Repo, error)
	UpsertCommit(ctx context.Context, c *model.Commit) error
	UpsertPull(ctx context.Context, p *model.Pull) error
	UpsertIssue(ctx context.Context, i *model.Issue) (int64, error)
	InsertChangelog(ctx context.Context, cl *model.Changelog) (bool, error)
	UpsertUser(ctx context.Context, u *model.User) error
	Counts(ctx context.Context, integrationID string) (model.EntityCounts, error)
}

// Client is the remote API surface consumed by the pipeline.
type Client interface {
	AuthenticatedUser(ctx context.Context) (*model.Organization, error)
	ListOrganizations(ctx context.Context) ([]model.Organization, error)
	ListRepositories(ctx context.Context, owner string) ([]model.Repo, error)
	ListCommits(ctx context.Context, owner, repo string, since time.Time) ([]model.Commit, error)
	GetCommit(ctx context.Context, owner, repo, sha string) (*model.Commit, error)
	ListPulls(ctx context.Context, owner, repo string) ([]model.Pull, error)
	ListIssues(ctx context.Context, owner, repo string) ([]model.Issue, error)
	ListIssueTimeline(ctx context.Context, owner, repo string, number int) ([]model.Changelog, error)
	ListOrgMembers(ctx context.Context, org string) ([]string, error)
	ListContributors(ctx context.Context, owner, repo string) ([]string, error)
	GetUser(ctx context.Context, login string) (*model.User, error)
}

// ClientFactory builds an API client for one integration's token.
type ClientFactory func(integrationID, token string) Client

// Progress is the shared progress store plus the single-flight lease.
type Progress interface {
	Set(ctx context.Context, integrationID string, snap progress.Snapshot)
	Finish(ctx context.Context, integrationID string, snap progress.Snapshot)
	Get(ctx context.Context, integrationID string) (*progress.Snapshot, error)
	Clear(ctx context.Context, integrationID string)
	AcquireLease(ctx context.Context, integrationID string) (bool, error)
	ReleaseLease(ctx context.Context, integrationID string)
}

// Quota is the advisory rate-limit gate.
type Quota interface {
	Check(ctx context.Context, integrationID string) error
	Record(ctx context.Context, integrationID string, rl model.RateLimit) error
}

// Syncer orchestrates the multi-stage pipeline for one integration at a
// time: organizations, repositories, per-repo commits/pulls/issues with
// changelogs, then users.
type Syncer struct {
	store           Store
	progress        Progress
	quota           Quota
	newClient       ClientFactory
	logger          *slog.Logger
	commitWindow    time.Duration
	userConcurrency int
}

// Options tunes the orchestrator; zero values use the defaults.
type Options struct {
	CommitWindow    time.Duration
	UserConcurrency int
}

// NewSyncer creates a new Syncer instance.
func NewSyncer(store Store, prog Progress, quota Quota, newClient ClientFactory, logger *slog.Logger, opts Options) *Syncer {
	if opts.CommitWindow <= 0 {
		opts.CommitWindow = defaultCommitWindow
	}
	if opts.UserConcurrency <= 0 {
		opts.UserConcurrency = defaultUserConcurrency
	}
	return &Syncer{
		store:           store,
		progress:        prog,
		quota:           quota,
		newClient:       newClient,
		logger:          logger,
		commitWindow:    opts.CommitWindow,
		userConcurrency: opts.UserConcurrency,
	}
}

// GetSyncProgress returns the latest progress snapshot, or nil when no sync
// has reported recently.
func (s *Syncer) GetSyncProgress(ctx context.Context, integrationID string) (*progress.Snapshot, error) {
	return s.progress.Get(ctx, integrationID)
}

// CancelSync clears the shared progress marker and releases the sync lease.
// Advisory only: an in-flight stage runs to completion.
func (s *Syncer) CancelSync(ctx context.Context, integrationID string) {
	s.logger.Info("Cancelling sync", "integration_id", integrationID)
	s.progress.Clear(ctx, integrationID)
	s.progress.ReleaseLease(ctx, integrationID)
}

// clientFor resolves the integration's token and builds an API client.
func (s *Syncer) clientFor(ctx context.Context, integrationID string) (Client, error) {
	token, err := s.store.GetDecryptedAccessToken(ctx, integrationID)
	if err != nil {
		return nil, err
	}
	return s.newClient(integrationID, token), nil
}

var secretPattern = regexp.MustCompile(`(?i)(gh[pousr]_[A-Za-z0-9_]+|github_pat_[A-Za-z0-9_]+|(?:token|bearer|authorization)[=:\s]+\S+)`)

// sanitize strips anything token-shaped before an error message is persisted.
func sanitize(msg string) string {
	return secretPattern.ReplaceAllString(msg, "[redacted]")
}
