// internal/model/models.go
package model

import "time"

// SyncStatus is the lifecycle state of an integration's sync pipeline.
type SyncStatus string

const (
	SyncIdle      SyncStatus = "idle"
	SyncSyncing   SyncStatus = "syncing"
	SyncCompleted SyncStatus = "completed"
	SyncFailed    SyncStatus = "failed"
)

// RateLimit is the last observed GitHub quota snapshot for an integration.
type RateLimit struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	Used      int       `json:"used"`
	Reset     time.Time `json:"reset"`
}

// EntityCounts aggregates how many records of each type an integration owns.
type EntityCounts struct {
	Organizations int64 `json:"organizations"`
	Repos         int64 `json:"repos"`
	Commits       int64 `json:"commits"`
	Pulls         int64 `json:"pulls"`
	Issues        int64 `json:"issues"`
	Changelogs    int64 `json:"changelogs"`
	Users         int64 `json:"users"`
}

// Integration represents one connected GitHub account and its sync state.
type Integration struct {
	ID              string
	GithubAccountID int64
	Login           string
	AccessToken     string
	SyncStatus      SyncStatus
	ProgressCurrent int
	ProgressTotal   int
	ProgressMessage string
	LastError       *string
	OrgLogins       []string
	EntityCounts    EntityCounts
	RateLimit       *RateLimit
	LastSyncAt      *time.Time
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Organization is a GitHub organization or a personal account that owns repos.
type Organization struct {
	ID            int64
	IntegrationID string
	GithubOrgID   int64
	Login         string
	Type          string // "User" for personal accounts, "Organization" otherwise
	Name          *string
	AvatarURL     string
	Description   *string
	LastSyncedAt  time.Time
}

// Repo is a GitHub repository keyed by its remote numeric id.
type Repo struct {
	ID              int64
	IntegrationID   string
	OrganizationID  *int64
	GithubRepoID    int64
	Owner           string
	Name            string
	Private         bool
	Fork            bool
	Archived        bool
	Disabled        bool
	Language        *string
	StarsCount      int
	ForksCount      int
	OpenIssuesCount int
	WatchersCount   int
	PushedAt        *time.Time
	LastSyncedAt    time.Time
}

// Commit is keyed by its content-addressed SHA.
type Commit struct {
	ID            int64
	IntegrationID string
	RepoID        int64
	SHA           string
	AuthorName    string
	AuthorEmail   string
	AuthorLogin   string
	Message       string
	Additions     int
	Deletions     int
	ChangedFiles  int
	CommittedAt   time.Time
	LastSyncedAt  time.Time
}

// Pull is keyed by (repo, number).
type Pull struct {
	ID            int64
	IntegrationID string
	RepoID        int64
	Number        int
	State         string // open, closed
	Merged        bool
	Title         string
	AuthorLogin   string
	HeadRef       string
	BaseRef       string
	CreatedAt     time.Time
	ClosedAt      *time.Time
	MergedAt      *time.Time
	LastSyncedAt  time.Time
}

// Issue is keyed by (repo, number). Entries that are really pull requests
// are filtered out at the client boundary.
type Issue struct {
	ID            int64
	IntegrationID string
	RepoID        int64
	Number        int
	State         string // open, closed
	Title         string
	AuthorLogin   string
	Labels        []string
	CommentsCount int
	CreatedAt     time.Time
	ClosedAt      *time.Time
	LastSyncedAt  time.Time
}

// Changelog is one timeline event on an issue, append-only and
// de-duplicated by (issue, remote event id).
type Changelog struct {
	ID             int64
	IntegrationID  string
	IssueID        int64
	GithubEventID  int64
	Event          string
	ActorLogin     string
	Detail         map[string]any
	EventCreatedAt time.Time
}

// User is an organization member keyed by their remote numeric id.
type User struct {
	ID             int64
	IntegrationID  string
	OrganizationID *int64
	GithubUserID   int64
	Login          string
	Name           *string
	Email          *string
	AvatarURL      string
	Company        *string
	Location       *string
	PublicRepos    int
	Followers      int
	LastSyncedAt   time.Time
}
