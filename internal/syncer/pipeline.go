// internal/syncer/pipeline.go
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github-sync-service/internal/batch"
	apperrors "github-sync-service/internal/errors"
	"github-sync-service/internal/model"
	"github-sync-service/internal/progress"
)

// Milestone apportionment across the run: organizations reach 20%, the
// per-repo stages fill 20→80 proportionally, users end at 90, finalize at 100.
const (
	milestoneOrgs  = 10
	milestoneRepos = 20
	milestoneUsers = 90
	repoSpan       = 60
	progressTotal  = 100
)

// run carries the mutable state of one full sync pass.
type run struct {
	integrationID string
	client        Client
	logger        *slog.Logger
	report        *RunReport
	current       int
}

// SyncAll drives the whole pipeline for one integration. Per-repo stage
// failures are recorded and skipped over; organization and repository stage
// failures abort the run and flip the integration to failed.
func (s *Syncer) SyncAll(ctx context.Context, integrationID string) (*RunReport, error) {
	logger := s.logger.With("integration_id", integrationID)

	if err := s.quota.Check(ctx, integrationID); err != nil {
		return nil, err
	}

	ok, err := s.progress.AcquireLease(ctx, integrationID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.ErrSyncInProgress
	}
	defer s.progress.ReleaseLease(ctx, integrationID)

	client, err := s.clientFor(ctx, integrationID)
	if err != nil {
		return nil, err
	}

	if err := s.store.SetSyncStatus(ctx, integrationID, model.SyncSyncing, nil); err != nil {
		return nil, err
	}

	r := &run{
		integrationID: integrationID,
		client:        client,
		logger:        logger,
		report: &RunReport{
			RunID:         uuid.New(),
			IntegrationID: integrationID,
			StartedAt:     time.Now(),
		},
	}
	logger.Info("Starting full sync", "run_id", r.report.RunID)
	s.setProgress(ctx, r, 0, "Starting sync")

	orgs, err := s.stageOrganizations(ctx, r)
	if err != nil {
		return nil, s.failRun(ctx, r, err)
	}
	s.setProgress(ctx, r, milestoneOrgs, "Organizations synced")

	repos, err := s.stageRepositories(ctx, r, orgs)
	if err != nil {
		return nil, s.failRun(ctx, r, err)
	}
	s.setProgress(ctx, r, milestoneRepos, "Repositories synced")

	for i, repo := range repos {
		s.stageCommits(ctx, r, repo)
		s.stagePulls(ctx, r, repo)
		s.stageIssues(ctx, r, repo)
		pct := milestoneRepos + repoSpan*(i+1)/len(repos)
		s.setProgress(ctx, r, pct, fmt.Sprintf("Synced repository %s/%s", repo.Owner, repo.Name))
	}

	s.stageUsers(ctx, r, orgs, repos)
	s.setProgress(ctx, r, milestoneUsers, "Users synced")

	counts, err := s.store.Counts(ctx, integrationID)
	if err != nil {
		return nil, s.failRun(ctx, r, err)
	}
	orgLogins := make([]string, 0, len(orgs))
	for _, o := range orgs {
		orgLogins = append(orgLogins, o.Login)
	}
	if err := s.store.FinishSync(ctx, integrationID, counts, orgLogins); err != nil {
		return nil, s.failRun(ctx, r, err)
	}

	r.report.FinishedAt = time.Now()
	s.progress.Finish(ctx, integrationID, progress.Snapshot{
		Status:  string(model.SyncCompleted),
		Message: "Sync completed",
		Current: progressTotal,
		Total:   progressTotal,
	})
	logger.Info("Full sync completed",
		"run_id", r.report.RunID,
		"duration", r.report.FinishedAt.Sub(r.report.StartedAt).String(),
		"failed_stages", len(r.report.Failed()))
	return r.report, nil
}

// setProgress publishes a milestone. Progress never moves backwards and
// never exceeds the total while running.
func (s *Syncer) setProgress(ctx context.Context, r *run, current int, message string) {
	if current < r.current {
		current = r.current
	}
	if current > progressTotal {
		current = progressTotal
	}
	r.current = current

	s.progress.Set(ctx, r.integrationID, progress.Snapshot{
		Status:  string(model.SyncSyncing),
		Message: message,
		Current: current,
		Total:   progressTotal,
	})
	if err := s.store.SetProgress(ctx, r.integrationID, current, progressTotal, message); err != nil {
		r.logger.Warn("Failed to mirror progress onto integration", "error", err)
	}
}

// failRun marks the integration failed with a sanitized message and
// publishes the terminal progress snapshot. The original error is returned.
func (s *Syncer) failRun(ctx context.Context, r *run, cause error) error {
	r.logger.Error("Full sync failed", "run_id", r.report.RunID, "error", cause)
	r.report.FinishedAt = time.Now()

	msg := sanitize(cause.Error())
	if err := s.store.SetSyncStatus(ctx, r.integrationID, model.SyncFailed, &msg); err != nil {
		r.logger.Error("Failed to record sync failure", "error", err)
	}
	s.progress.Finish(ctx, r.integrationID, progress.Snapshot{
		Status:  string(model.SyncFailed),
		Message: msg,
		Current: r.current,
		Total:   progressTotal,
	})
	return cause
}

// stageOrganizations upserts the authenticated account plus every visible
// organization and returns them with stored ids.
func (s *Syncer) stageOrganizations(ctx context.Context, r *run) ([]model.Organization, error) {
	account, err := r.client.AuthenticatedUser(ctx)
	if err != nil {
		r.report.add("organizations", "", StageFailed, 0, err.Error())
		return nil, fmt.Errorf("failed to fetch authenticated account: %w", err)
	}
	account.IntegrationID = r.integrationID
	account.ID, err = s.store.UpsertOrganization(ctx, account)
	if err != nil {
		r.report.add("organizations", account.Login, StageFailed, 0, err.Error())
		return nil, err
	}

	orgs, err := r.client.ListOrganizations(ctx)
	if err != nil {
		r.report.add("organizations", "", StageFailed, 1, err.Error())
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	all := []model.Organization{*account}
	for i := range orgs {
		orgs[i].IntegrationID = r.integrationID
		orgs[i].ID, err = s.store.UpsertOrganization(ctx, &orgs[i])
		if err != nil {
			r.report.add("organizations", orgs[i].Login, StageFailed, len(all), err.Error())
			return nil, err
		}
		all = append(all, orgs[i])
	}

	r.report.add("organizations", "", StageSuccess, len(all), "")
	r.logger.Info("Organizations synced", "count", len(all))
	return all, nil
}

// stageRepositories lists and upserts the repositories of every owner,
// linking each to its stored organization.
func (s *Syncer) stageRepositories(ctx context.Context, r *run, owners []model.Organization) ([]model.Repo, error) {
	orgIDByLogin := make(map[string]int64, len(owners))
	for _, o := range owners {
		orgIDByLogin[o.Login] = o.ID
	}

	var all []model.Repo
	for _, owner := range owners {
		repos, err := r.client.ListRepositories(ctx, owner.Login)
		if err != nil {
			r.report.add("repositories", owner.Login, StageFailed, len(all), err.Error())
			return nil, fmt.Errorf("failed to list repositories for %q: %w", owner.Login, err)
		}
		for i := range repos {
			repos[i].IntegrationID = r.integrationID
			if orgID, ok := orgIDByLogin[repos[i].Owner]; ok {
				repos[i].OrganizationID = &orgID
			}
			repos[i].ID, err = s.store.UpsertRepo(ctx, &repos[i])
			if err != nil {
				r.report.add("repositories", owner.Login, StageFailed, len(all), err.Error())
				return nil, err
			}
			all = append(all, repos[i])
		}
	}

	r.report.add("repositories", "", StageSuccess, len(all), "")
	r.logger.Info("Repositories synced", "count", len(all))
	return all, nil
}

// stageCommits syncs the repo's recent commits. Failures are recorded and
// do not abort the run.
func (s *Syncer) stageCommits(ctx context.Context, r *run, repo model.Repo) {
	target := repo.Owner + "/" + repo.Name
	since := time.Now().Add(-s.commitWindow)

	commits, err := r.client.ListCommits(ctx, repo.Owner, repo.Name, since)
	if err != nil {
		r.logger.Warn("Commit sync failed, continuing", "repo", target, "error", err)
		r.report.add("commits", target, StageFailed, 0, err.Error())
		return
	}

	stored := 0
	for i := range commits {
		c := commits[i]
		// Best-effort enrichment with file-level stats; a detail failure
		// degrades to the summary record.
		if detail, derr := r.client.GetCommit(ctx, repo.Owner, repo.Name, c.SHA); derr == nil {
			c = *detail
		} else {
			r.logger.Debug("Commit detail fetch failed, storing summary", "repo", target, "sha", c.SHA, "error", derr)
		}
		c.IntegrationID = r.integrationID
		c.RepoID = repo.ID
		if err := s.store.UpsertCommit(ctx, &c); err != nil {
			r.logger.Warn("Commit sync failed, continuing", "repo", target, "error", err)
			r.report.add("commits", target, StageFailed, stored, err.Error())
			return
		}
		stored++
	}
	r.report.add("commits", target, StageSuccess, stored, "")
}

// stagePulls syncs the repo's pull requests in any state.
func (s *Syncer) stagePulls(ctx context.Context, r *run, repo model.Repo) {
	target := repo.Owner + "/" + repo.Name

	pulls, err := r.client.ListPulls(ctx, repo.Owner, repo.Name)
	if err != nil {
		r.logger.Warn("Pull sync failed, continuing", "repo", target, "error", err)
		r.report.add("pulls", target, StageFailed, 0, err.Error())
		return
	}

	for i := range pulls {
		pulls[i].IntegrationID = r.integrationID
		pulls[i].RepoID = repo.ID
		if err := s.store.UpsertPull(ctx, &pulls[i]); err != nil {
			r.logger.Warn("Pull sync failed, continuing", "repo", target, "error", err)
			r.report.add("pulls", target, StageFailed, i, err.Error())
			return
		}
	}
	r.report.add("pulls", target, StageSuccess, len(pulls), "")
}

// stageIssues syncs the repo's issues and, per issue, appends its timeline
// events as changelogs.
func (s *Syncer) stageIssues(ctx context.Context, r *run, repo model.Repo) {
	target := repo.Owner + "/" + repo.Name

	issues, err := r.client.ListIssues(ctx, repo.Owner, repo.Name)
	if err != nil {
		r.logger.Warn("Issue sync failed, continuing", "repo", target, "error", err)
		r.report.add("issues", target, StageFailed, 0, err.Error())
		return
	}

	changelogs := 0
	for i := range issues {
		issues[i].IntegrationID = r.integrationID
		issues[i].RepoID = repo.ID
		issueID, err := s.store.UpsertIssue(ctx, &issues[i])
		if err != nil {
			r.logger.Warn("Issue sync failed, continuing", "repo", target, "error", err)
			r.report.add("issues", target, StageFailed, i, err.Error())
			return
		}
		changelogs += s.syncChangelogs(ctx, r, repo, issues[i].Number, issueID)
	}
	r.report.add("issues", target, StageSuccess, len(issues), "")
	if changelogs > 0 {
		r.report.add("changelogs", target, StageSuccess, changelogs, "")
	}
}

// syncChangelogs appends the issue's timeline events. Timeline failures are
// logged per issue and never abort the issue stage.
func (s *Syncer) syncChangelogs(ctx context.Context, r *run, repo model.Repo, number int, issueID int64) int {
	events, err := r.client.ListIssueTimeline(ctx, repo.Owner, repo.Name, number)
	if err != nil {
		r.logger.Warn("Timeline fetch failed, continuing", "repo", repo.Owner+"/"+repo.Name, "issue", number, "error", err)
		r.report.add("changelogs", fmt.Sprintf("%s/%s#%d", repo.Owner, repo.Name, number), StageFailed, 0, err.Error())
		return 0
	}

	created := 0
	for i := range events {
		events[i].IntegrationID = r.integrationID
		events[i].IssueID = issueID
		inserted, err := s.store.InsertChangelog(ctx, &events[i])
		if err != nil {
			r.logger.Warn("Changelog insert failed, continuing", "issue", number, "error", err)
			continue
		}
		if inserted {
			created++
		}
	}
	return created
}

// stageUsers resolves member profiles for every organization via bounded
// fan-out, and contributor profiles for the personal account, which has no
// member listing. Failures here never abort the run.
func (s *Syncer) stageUsers(ctx context.Context, r *run, orgs []model.Organization, repos []model.Repo) {
	for _, org := range orgs {
		var logins []string
		var err error

		switch org.Type {
		case "Organization":
			logins, err = r.client.ListOrgMembers(ctx, org.Login)
		default:
			logins = s.contributorLogins(ctx, r, org.Login, repos)
		}
		if err != nil {
			r.logger.Warn("Member listing failed, continuing", "org", org.Login, "error", err)
			r.report.add("users", org.Login, StageFailed, 0, err.Error())
			continue
		}
		if len(logins) == 0 {
			r.report.add("users", org.Login, StageSkipped, 0, "no members to resolve")
			continue
		}

		orgID := org.ID
		out := batch.Process(ctx, logins, s.userConcurrency, func(ctx context.Context, login string) (*model.User, error) {
			return r.client.GetUser(ctx, login)
		})

		stored := 0
		for _, u := range out.Results {
			u.IntegrationID = r.integrationID
			u.OrganizationID = &orgID
			if err := s.store.UpsertUser(ctx, u); err != nil {
				r.logger.Warn("User upsert failed, continuing", "org", org.Login, "login", u.Login, "error", err)
				continue
			}
			stored++
		}
		for _, ie := range out.Errors {
			r.logger.Warn("User profile fetch failed, continuing", "org", org.Login, "login", logins[ie.Index], "error", ie.Err)
		}

		reason := ""
		if len(out.Errors) > 0 {
			reason = fmt.Sprintf("%d of %d profiles failed", len(out.Errors), len(logins))
		}
		r.report.add("users", org.Login, StageSuccess, stored, reason)
	}
}

// contributorLogins gathers a capped, de-duplicated set of contributor
// logins across the account's own repositories.
func (s *Syncer) contributorLogins(ctx context.Context, r *run, owner string, repos []model.Repo) []string {
	seen := map[string]bool{}
	var logins []string
	for _, repo := range repos {
		if repo.Owner != owner {
			continue
		}
		contributors, err := r.client.ListContributors(ctx, repo.Owner, repo.Name)
		if err != nil {
			r.logger.Warn("Contributor listing failed, continuing", "repo", repo.Owner+"/"+repo.Name, "error", err)
			continue
		}
		for _, login := range contributors {
			if login == "" || seen[login] {
				continue
			}
			seen[login] = true
			logins = append(logins, login)
			if len(logins) >= maxContributorProfiles {
				return logins
			}
		}
	}
	return logins
}
