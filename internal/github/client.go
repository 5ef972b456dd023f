// internal/github/client.go
package github

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github-sync-service/internal/model"
	"github-sync-service/internal/retry"
)

const (
	pageSize = 100

	// Hard per-resource ceilings. A full history pull is never wanted;
	// these bound the cost of a single sync pass.
	maxCommitItems   = 1000
	maxPullItems     = 500
	maxIssueItems    = 500
	maxTimelinePages = 3
	maxListPages     = 1000

	// Conservative client-side throttle; the quota tracker and retrier
	// remain the real protection.
	requestsPerSecond = 8.0
	requestBurst      = 10
)

// RecordFunc receives the quota snapshot observed on each API response.
type RecordFunc func(model.RateLimit)

// Client is a per-integration wrapper around the go-github client. Listing
// methods page transparently, enforce their resource ceiling, and run under
// the backoff retrier; single-item getters are not retried at this layer.
type Client struct {
	gh      *github.Client
	logger  *slog.Logger
	limiter *rate.Limiter
	record  RecordFunc
	retry   retry.Policy
}

// Option configures a Client.
type Option func(*Client)

// WithRateLimitRecorder forwards observed quota headers to fn.
func WithRateLimitRecorder(fn RecordFunc) Option {
	return func(c *Client) { c.record = fn }
}

// NewClient creates a client authenticated with the integration's token.
func NewClient(token string, logger *slog.Logger, opts ...Option) *Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(context.Background(), ts)

	c := &Client{
		gh:      github.NewClient(tc),
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), requestBurst),
	}
	c.retry = retry.Policy{
		MaxAttempts: 4,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		IsRetryable: Retryable,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			logger.Warn("Retrying GitHub request", "attempt", attempt, "delay", delay.String(), "error", err)
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) observe(resp *github.Response) {
	if resp == nil || c.record == nil {
		return
	}
	c.record(model.RateLimit{
		Limit:     resp.Rate.Limit,
		Remaining: resp.Rate.Remaining,
		Used:      resp.Rate.Limit - resp.Rate.Remaining,
		Reset:     resp.Rate.Reset.Time,
	})
}

type page[T any] struct {
	items []T
	resp  *github.Response
}

type fetchFunc[T any] func(ctx context.Context, opts github.ListOptions) ([]T, *github.Response, error)

// collect drives pagination for a listing endpoint: page size is fixed,
// iteration stops on a short page, and the item/page ceilings are enforced
// here once rather than per call site. Each page fetch runs under the
// retrier.
func collect[T any](ctx context.Context, c *Client, maxItems, maxPages int, fetch fetchFunc[T]) ([]T, error) {
	opts := github.ListOptions{Page: 1, PerPage: pageSize}

	var all []T
	for pages := 0; pages < maxPages; pages++ {
		res, err := retry.Do(ctx, c.retry, func(ctx context.Context) (page[T], error) {
			if err := c.limiter.Wait(ctx); err != nil {
				return page[T]{}, err
			}
			items, resp, err := fetch(ctx, opts)
			c.observe(resp)
			return page[T]{items: items, resp: resp}, err
		})
		if err != nil {
			return nil, err
		}

		all = append(all, res.items...)
		if maxItems > 0 && len(all) >= maxItems {
			return all[:maxItems], nil
		}
		if len(res.items) < pageSize || res.resp == nil || res.resp.NextPage == 0 {
			break
		}
		opts.Page = res.resp.NextPage
	}
	return all, nil
}

// AuthenticatedUser fetches the account the token belongs to, normalized as
// a personal-account organization record.
func (c *Client) AuthenticatedUser(ctx context.Context) (*model.Organization, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	u, resp, err := c.gh.Users.Get(ctx, "")
	c.observe(resp)
	if err != nil {
		return nil, err
	}
	return toAccountOrganization(u), nil
}

// ListOrganizations fetches every organization the token can see.
func (c *Client) ListOrganizations(ctx context.Context) ([]model.Organization, error) {
	raw, err := collect(ctx, c, 0, maxListPages, func(ctx context.Context, opts github.ListOptions) ([]*github.Organization, *github.Response, error) {
		return c.gh.Organizations.List(ctx, "", &opts)
	})
	if err != nil {
		return nil, err
	}

	orgs := make([]model.Organization, 0, len(raw))
	for _, o := range raw {
		orgs = append(orgs, toOrganization(o))
	}
	return orgs, nil
}

// ListRepositories lists all repositories belonging to owner.
func (c *Client) ListRepositories(ctx context.Context, owner string) ([]model.Repo, error) {
	raw, err := collect(ctx, c, 0, maxListPages, func(ctx context.Context, opts github.ListOptions) ([]*github.Repository, *github.Response, error) {
		return c.gh.Repositories.ListByUser(ctx, owner, &github.RepositoryListByUserOptions{ListOptions: opts})
	})
	if err != nil {
		return nil, err
	}

	repos := make([]model.Repo, 0, len(raw))
	for _, r := range raw {
		repos = append(repos, toRepo(r))
	}
	return repos, nil
}

// ListCommits fetches commits pushed since the given time, newest first,
// capped at 1000 items.
func (c *Client) ListCommits(ctx context.Context, owner, repo string, since time.Time) ([]model.Commit, error) {
	raw, err := collect(ctx, c, maxCommitItems, maxListPages, func(ctx context.Context, opts github.ListOptions) ([]*github.RepositoryCommit, *github.Response, error) {
		return c.gh.Repositories.ListCommits(ctx, owner, repo, &github.CommitsListOptions{
			Since:       since,
			ListOptions: opts,
		})
	})
	if err != nil {
		return nil, err
	}

	commits := make([]model.Commit, 0, len(raw))
	for _, rc := range raw {
		commits = append(commits, toCommit(rc))
	}
	return commits, nil
}

// GetCommit fetches a single commit with file-level stats. Not retried
// here; callers decide how hard to try.
func (c *Client) GetCommit(ctx context.Context, owner, repo, sha string) (*model.Commit, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	rc, resp, err := c.gh.Repositories.GetCommit(ctx, owner, repo, sha, nil)
	c.observe(resp)
	if err != nil {
		return nil, err
	}
	commit := toCommit(rc)
	return &commit, nil
}

// ListPulls lists pull requests in any state, capped at 500 items.
func (c *Client) ListPulls(ctx context.Context, owner, repo string) ([]model.Pull, error) {
	raw, err := collect(ctx, c, maxPullItems, maxListPages, func(ctx context.Context, opts github.ListOptions) ([]*github.PullRequest, *github.Response, error) {
		return c.gh.PullRequests.List(ctx, owner, repo, &github.PullRequestListOptions{
			State:       "all",
			ListOptions: opts,
		})
	})
	if err != nil {
		return nil, err
	}

	pulls := make([]model.Pull, 0, len(raw))
	for _, p := range raw {
		pulls = append(pulls, toPull(p))
	}
	return pulls, nil
}

// ListIssues lists issues in any state, capped at 500 items. The issues
// endpoint conflates pull requests with issues; those entries are dropped.
func (c *Client) ListIssues(ctx context.Context, owner, repo string) ([]model.Issue, error) {
	raw, err := collect(ctx, c, maxIssueItems, maxListPages, func(ctx context.Context, opts github.ListOptions) ([]*github.Issue, *github.Response, error) {
		return c.gh.Issues.ListByRepo(ctx, owner, repo, &github.IssueListByRepoOptions{
			State:       "all",
			ListOptions: opts,
		})
	})
	if err != nil {
		return nil, err
	}

	issues := make([]model.Issue, 0, len(raw))
	for _, i := range raw {
		if i.IsPullRequest() {
			continue
		}
		issues = append(issues, toIssue(i))
	}
	return issues, nil
}

// ListIssueTimeline fetches the issue's event timeline, capped at 3 pages.
func (c *Client) ListIssueTimeline(ctx context.Context, owner, repo string, number int) ([]model.Changelog, error) {
	raw, err := collect(ctx, c, 0, maxTimelinePages, func(ctx context.Context, opts github.ListOptions) ([]*github.Timeline, *github.Response, error) {
		return c.gh.Issues.ListIssueTimeline(ctx, owner, repo, number, &opts)
	})
	if err != nil {
		return nil, err
	}

	events := make([]model.Changelog, 0, len(raw))
	for _, ev := range raw {
		events = append(events, toChangelog(ev))
	}
	return events, nil
}

// ListOrgMembers lists the logins of an organization's members.
func (c *Client) ListOrgMembers(ctx context.Context, org string) ([]string, error) {
	raw, err := collect(ctx, c, 0, maxListPages, func(ctx context.Context, opts github.ListOptions) ([]*github.User, *github.Response, error) {
		return c.gh.Organizations.ListMembers(ctx, org, &github.ListMembersOptions{ListOptions: opts})
	})
	if err != nil {
		return nil, err
	}

	logins := make([]string, 0, len(raw))
	for _, u := range raw {
		logins = append(logins, u.GetLogin())
	}
	return logins, nil
}

// ListContributors lists the logins of a repository's contributors.
func (c *Client) ListContributors(ctx context.Context, owner, repo string) ([]string, error) {
	raw, err := collect(ctx, c, 0, maxListPages, func(ctx context.Context, opts github.ListOptions) ([]*github.Contributor, *github.Response, error) {
		return c.gh.Repositories.ListContributors(ctx, owner, repo, &github.ListContributorsOptions{ListOptions: opts})
	})
	if err != nil {
		return nil, err
	}

	logins := make([]string, 0, len(raw))
	for _, u := range raw {
		logins = append(logins, u.GetLogin())
	}
	return logins, nil
}

// GetUser fetches a user's full profile. Not retried here.
func (c *Client) GetUser(ctx context.Context, login string) (*model.User, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	u, resp, err := c.gh.Users.Get(ctx, login)
	c.observe(resp)
	if err != nil {
		return nil, err
	}
	user := toUser(u)
	return &user, nil
}
