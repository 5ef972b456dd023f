// internal/retention/retention_test.go
package retention

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRetentionStore struct{ mock.Mock }

func (m *mockRetentionStore) DeleteCommitsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRetentionStore) DeleteClosedPullsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRetentionStore) DeleteClosedIssuesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRetentionStore) DeleteChangelogsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRetentionStore) DeleteInactiveReposBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRetentionStore) DeleteStaleUsersBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRetentionStore) EntityTotals(ctx context.Context) (map[string]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int64), args.Error(1)
}

func newTestSweeper(store Store, windows Windows) *Sweeper {
	return NewSweeper(store, windows, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRunFullCleanup_SweepsEveryCategory(t *testing.T) {
	store := &mockRetentionStore{}
	store.On("DeleteCommitsBefore", mock.Anything, mock.Anything).Return(int64(5), nil)
	store.On("DeleteClosedPullsBefore", mock.Anything, mock.Anything).Return(int64(3), nil)
	store.On("DeleteClosedIssuesBefore", mock.Anything, mock.Anything).Return(int64(2), nil)
	store.On("DeleteChangelogsBefore", mock.Anything, mock.Anything).Return(int64(10), nil)
	store.On("DeleteInactiveReposBefore", mock.Anything, mock.Anything).Return(int64(1), nil)
	store.On("DeleteStaleUsersBefore", mock.Anything, mock.Anything).Return(int64(4), nil)

	s := newTestSweeper(store, Windows{})
	report, err := s.RunFullCleanup(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(25), report.TotalDeleted)
	assert.Len(t, report.Cleanups, 6)
	for _, c := range report.Cleanups {
		assert.Empty(t, c.Error)
	}
	store.AssertExpectations(t)
}

func TestRunFullCleanup_UsesConfiguredCutoffs(t *testing.T) {
	store := &mockRetentionStore{}
	var commitCutoff time.Time
	store.On("DeleteCommitsBefore", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { commitCutoff = args.Get(1).(time.Time) }).
		Return(int64(0), nil)
	store.On("DeleteClosedPullsBefore", mock.Anything, mock.Anything).Return(int64(0), nil)
	store.On("DeleteClosedIssuesBefore", mock.Anything, mock.Anything).Return(int64(0), nil)
	store.On("DeleteChangelogsBefore", mock.Anything, mock.Anything).Return(int64(0), nil)
	store.On("DeleteInactiveReposBefore", mock.Anything, mock.Anything).Return(int64(0), nil)
	store.On("DeleteStaleUsersBefore", mock.Anything, mock.Anything).Return(int64(0), nil)

	s := newTestSweeper(store, Windows{Commits: 24 * time.Hour})
	_, err := s.RunFullCleanup(context.Background())
	require.NoError(t, err)

	want := time.Now().Add(-24 * time.Hour)
	assert.WithinDuration(t, want, commitCutoff, 5*time.Second)
}

func TestRunFullCleanup_OneFailureDoesNotStopOthers(t *testing.T) {
	store := &mockRetentionStore{}
	store.On("DeleteCommitsBefore", mock.Anything, mock.Anything).Return(int64(0), errors.New("deadlock detected"))
	store.On("DeleteClosedPullsBefore", mock.Anything, mock.Anything).Return(int64(7), nil)
	store.On("DeleteClosedIssuesBefore", mock.Anything, mock.Anything).Return(int64(0), nil)
	store.On("DeleteChangelogsBefore", mock.Anything, mock.Anything).Return(int64(0), nil)
	store.On("DeleteInactiveReposBefore", mock.Anything, mock.Anything).Return(int64(0), nil)
	store.On("DeleteStaleUsersBefore", mock.Anything, mock.Anything).Return(int64(0), nil)

	s := newTestSweeper(store, Windows{})
	report, err := s.RunFullCleanup(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(7), report.TotalDeleted)

	failed := 0
	for _, c := range report.Cleanups {
		if c.Error != "" {
			failed++
		}
	}
	assert.Equal(t, 1, failed)
	store.AssertExpectations(t)
}

func TestStats_ReturnsEntityTotals(t *testing.T) {
	store := &mockRetentionStore{}
	store.On("EntityTotals", mock.Anything).Return(map[string]int64{"commits": 120, "issues": 34}, nil)

	s := newTestSweeper(store, Windows{})
	totals, err := s.Stats(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(120), totals["commits"])
	assert.Equal(t, int64(34), totals["issues"])
}

func TestWindows_ZeroValuesFallBackToDefaults(t *testing.T) {
	w := Windows{Commits: time.Hour}.withDefaults()

	assert.Equal(t, time.Hour, w.Commits)
	assert.Equal(t, DefaultWindows().ClosedPulls, w.ClosedPulls)
	assert.Equal(t, DefaultWindows().StaleUsers, w.StaleUsers)
}
