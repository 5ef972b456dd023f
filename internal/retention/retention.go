// internal/retention/retention.go
package retention

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Windows holds the age cutoffs per entity class. Zero values fall back to
// the defaults.
type Windows struct {
	Commits       time.Duration
	ClosedPulls   time.Duration
	ClosedIssues  time.Duration
	Changelogs    time.Duration
	InactiveRepos time.Duration
	StaleUsers    time.Duration
}

// DefaultWindows returns the standard retention policy.
func DefaultWindows() Windows {
	return Windows{
		Commits:       180 * 24 * time.Hour,
		ClosedPulls:   365 * 24 * time.Hour,
		ClosedIssues:  365 * 24 * time.Hour,
		Changelogs:    180 * 24 * time.Hour,
		InactiveRepos: 730 * 24 * time.Hour,
		StaleUsers:    365 * 24 * time.Hour,
	}
}

func (w Windows) withDefaults() Windows {
	d := DefaultWindows()
	if w.Commits <= 0 {
		w.Commits = d.Commits
	}
	if w.ClosedPulls <= 0 {
		w.ClosedPulls = d.ClosedPulls
	}
	if w.ClosedIssues <= 0 {
		w.ClosedIssues = d.ClosedIssues
	}
	if w.Changelogs <= 0 {
		w.Changelogs = d.Changelogs
	}
	if w.InactiveRepos <= 0 {
		w.InactiveRepos = d.InactiveRepos
	}
	if w.StaleUsers <= 0 {
		w.StaleUsers = d.StaleUsers
	}
	return w
}

// Store is the persistence surface the sweeper drives. Each delete takes an
// absolute cutoff and returns how many rows it removed.
type Store interface {
	DeleteCommitsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteClosedPullsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteClosedIssuesBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteChangelogsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteInactiveReposBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteStaleUsersBefore(ctx context.Context, cutoff time.Time) (int64, error)
	EntityTotals(ctx context.Context) (map[string]int64, error)
}

// Cleanup is the outcome of one category's sweep.
type Cleanup struct {
	Entity  string    `json:"entity"`
	Cutoff  time.Time `json:"cutoff"`
	Deleted int64     `json:"deleted"`
	Error   string    `json:"error,omitempty"`
}

// CleanupReport aggregates one full sweep.
type CleanupReport struct {
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	TotalDeleted int64     `json:"total_deleted"`
	Cleanups     []Cleanup `json:"cleanups"`
}

// Sweeper prunes aged records on a schedule.
type Sweeper struct {
	store   Store
	windows Windows
	logger  *slog.Logger
}

func NewSweeper(store Store, windows Windows, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		store:   store,
		windows: windows.withDefaults(),
		logger:  logger,
	}
}

type sweepTask struct {
	entity string
	window time.Duration
	del    func(context.Context, time.Time) (int64, error)
}

// RunFullCleanup sweeps every category. Categories run concurrently and a
// failure in one never stops the others.
func (s *Sweeper) RunFullCleanup(ctx context.Context) (*CleanupReport, error) {
	report := &CleanupReport{StartedAt: time.Now()}
	now := report.StartedAt

	tasks := []sweepTask{
		{"commits", s.windows.Commits, s.store.DeleteCommitsBefore},
		{"pulls", s.windows.ClosedPulls, s.store.DeleteClosedPullsBefore},
		{"issues", s.windows.ClosedIssues, s.store.DeleteClosedIssuesBefore},
		{"changelogs", s.windows.Changelogs, s.store.DeleteChangelogsBefore},
		{"repos", s.windows.InactiveRepos, s.store.DeleteInactiveReposBefore},
		{"users", s.windows.StaleUsers, s.store.DeleteStaleUsersBefore},
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	for _, task := range tasks {
		g.Go(func() error {
			cutoff := now.Add(-task.window)
			deleted, err := task.del(ctx, cutoff)

			c := Cleanup{Entity: task.entity, Cutoff: cutoff, Deleted: deleted}
			if err != nil {
				s.logger.Error("Cleanup failed", "entity", task.entity, "error", err)
				c.Error = err.Error()
			}

			mu.Lock()
			report.Cleanups = append(report.Cleanups, c)
			report.TotalDeleted += deleted
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	report.FinishedAt = time.Now()
	s.logger.Info("Retention sweep finished",
		"total_deleted", report.TotalDeleted,
		"duration", report.FinishedAt.Sub(report.StartedAt).String())
	return report, nil
}

// Stats returns the current row totals per entity.
func (s *Sweeper) Stats(ctx context.Context) (map[string]int64, error) {
	return s.store.EntityTotals(ctx)
}

// Start runs the sweep on a fixed interval until the context ends.
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) {
	s.logger.Info("Retention sweeper started", "interval", interval.String())
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Retention sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.RunFullCleanup(ctx); err != nil {
				s.logger.Error("Retention sweep failed", "error", err)
			}
		}
	}
}
