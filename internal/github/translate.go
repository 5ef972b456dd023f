// internal/github/translate.go
package github

import (
	"github.com/google/go-github/v62/github"

	"github-sync-service/internal/model"
)

// Translators map the remote wire shape onto our records field-by-field so
// nothing downstream has to trust the raw payload.

func toAccountOrganization(u *github.User) *model.Organization {
	return &model.Organization{
		GithubOrgID: u.GetID(),
		Login:       u.GetLogin(),
		Type:        "User",
		Name:        u.Name,
		AvatarURL:   u.GetAvatarURL(),
	}
}

func toOrganization(o *github.Organization) model.Organization {
	return model.Organization{
		GithubOrgID: o.GetID(),
		Login:       o.GetLogin(),
		Type:        "Organization",
		Name:        o.Name,
		AvatarURL:   o.GetAvatarURL(),
		Description: o.Description,
	}
}

func toRepo(r *github.Repository) model.Repo {
	repo := model.Repo{
		GithubRepoID:    r.GetID(),
		Owner:           r.GetOwner().GetLogin(),
		Name:            r.GetName(),
		Private:         r.GetPrivate(),
		Fork:            r.GetFork(),
		Archived:        r.GetArchived(),
		Disabled:        r.GetDisabled(),
		Language:        r.Language,
		StarsCount:      r.GetStargazersCount(),
		ForksCount:      r.GetForksCount(),
		OpenIssuesCount: r.GetOpenIssuesCount(),
		WatchersCount:   r.GetWatchersCount(),
	}
	if r.PushedAt != nil {
		t := r.PushedAt.Time
		repo.PushedAt = &t
	}
	return repo
}

func toCommit(c *github.RepositoryCommit) model.Commit {
	commit := model.Commit{
		SHA:         c.GetSHA(),
		AuthorName:  c.GetCommit().GetAuthor().GetName(),
		AuthorEmail: c.GetCommit().GetAuthor().GetEmail(),
		AuthorLogin: c.GetAuthor().GetLogin(),
		Message:     c.GetCommit().GetMessage(),
		CommittedAt: c.GetCommit().GetAuthor().GetDate().Time,
	}
	if c.Stats != nil {
		commit.Additions = c.Stats.GetAdditions()
		commit.Deletions = c.Stats.GetDeletions()
		commit.ChangedFiles = len(c.Files)
	}
	return commit
}

func toPull(p *github.PullRequest) model.Pull {
	pull := model.Pull{
		Number:      p.GetNumber(),
		State:       p.GetState(),
		Merged:      p.MergedAt != nil,
		Title:       p.GetTitle(),
		AuthorLogin: p.GetUser().GetLogin(),
		HeadRef:     p.GetHead().GetRef(),
		BaseRef:     p.GetBase().GetRef(),
		CreatedAt:   p.GetCreatedAt().Time,
	}
	if p.ClosedAt != nil {
		t := p.ClosedAt.Time
		pull.ClosedAt = &t
	}
	if p.MergedAt != nil {
		t := p.MergedAt.Time
		pull.MergedAt = &t
	}
	return pull
}

func toIssue(i *github.Issue) model.Issue {
	issue := model.Issue{
		Number:        i.GetNumber(),
		State:         i.GetState(),
		Title:         i.GetTitle(),
		AuthorLogin:   i.GetUser().GetLogin(),
		CommentsCount: i.GetComments(),
		CreatedAt:     i.GetCreatedAt().Time,
	}
	for _, l := range i.Labels {
		issue.Labels = append(issue.Labels, l.GetName())
	}
	if i.ClosedAt != nil {
		t := i.ClosedAt.Time
		issue.ClosedAt = &t
	}
	return issue
}

func toChangelog(ev *github.Timeline) model.Changelog {
	cl := model.Changelog{
		GithubEventID:  ev.GetID(),
		Event:          ev.GetEvent(),
		ActorLogin:     ev.GetActor().GetLogin(),
		EventCreatedAt: ev.GetCreatedAt().Time,
	}
	detail := map[string]any{}
	if ev.Label != nil {
		detail["label"] = ev.Label.GetName()
	}
	if ev.Assignee != nil {
		detail["assignee"] = ev.Assignee.GetLogin()
	}
	if ev.Milestone != nil {
		detail["milestone"] = ev.Milestone.GetTitle()
	}
	if ev.Rename != nil {
		detail["rename_from"] = ev.Rename.GetFrom()
		detail["rename_to"] = ev.Rename.GetTo()
	}
	if len(detail) > 0 {
		cl.Detail = detail
	}
	return cl
}

func toUser(u *github.User) model.User {
	return model.User{
		GithubUserID: u.GetID(),
		Login:        u.GetLogin(),
		Name:         u.Name,
		Email:        u.Email,
		AvatarURL:    u.GetAvatarURL(),
		Company:      u.Company,
		Location:     u.Location,
		PublicRepos:  u.GetPublicRepos(),
		Followers:    u.GetFollowers(),
	}
}
