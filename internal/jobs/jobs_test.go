// internal/jobs/jobs_test.go
package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github-sync-service/internal/errors"
	"github-sync-service/internal/ratelimit"
	"github-sync-service/internal/syncer"
)

type mockSyncService struct{ mock.Mock }

func (m *mockSyncService) SyncAll(ctx context.Context, integrationID string) (*syncer.RunReport, error) {
	args := m.Called(ctx, integrationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*syncer.RunReport), args.Error(1)
}

func (m *mockSyncService) SyncOrganizations(ctx context.Context, integrationID string) (syncer.Result, error) {
	args := m.Called(ctx, integrationID)
	return args.Get(0).(syncer.Result), args.Error(1)
}

func (m *mockSyncService) SyncRepositories(ctx context.Context, integrationID, owner string) (syncer.Result, error) {
	args := m.Called(ctx, integrationID, owner)
	return args.Get(0).(syncer.Result), args.Error(1)
}

func (m *mockSyncService) SyncCommits(ctx context.Context, integrationID, owner, repo string) (syncer.Result, error) {
	args := m.Called(ctx, integrationID, owner, repo)
	return args.Get(0).(syncer.Result), args.Error(1)
}

func (m *mockSyncService) SyncPulls(ctx context.Context, integrationID, owner, repo string) (syncer.Result, error) {
	args := m.Called(ctx, integrationID, owner, repo)
	return args.Get(0).(syncer.Result), args.Error(1)
}

func (m *mockSyncService) SyncIssues(ctx context.Context, integrationID, owner, repo string) (syncer.Result, error) {
	args := m.Called(ctx, integrationID, owner, repo)
	return args.Get(0).(syncer.Result), args.Error(1)
}

func (m *mockSyncService) SyncUsers(ctx context.Context, integrationID string) (syncer.Result, error) {
	args := m.Called(ctx, integrationID)
	return args.Get(0).(syncer.Result), args.Error(1)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewTask_RequiresIntegrationID(t *testing.T) {
	_, err := newTask(TypeFullSync, Payload{})
	assert.Error(t, err)
}

func TestDecodePayload_BadJSONIsNotRetried(t *testing.T) {
	_, err := decodePayload(asynq.NewTask(TypeFullSync, []byte("{not json")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestDecodePayload_RoundTrip(t *testing.T) {
	task, err := newTask(TypeSyncCommits, Payload{IntegrationID: "integ-1", Owner: "acme", Repo: "widget"})
	require.NoError(t, err)

	p, err := decodePayload(task)
	require.NoError(t, err)
	assert.Equal(t, "integ-1", p.IntegrationID)
	assert.Equal(t, "acme", p.Owner)
	assert.Equal(t, "widget", p.Repo)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		skipRetry bool
	}{
		{"sync in progress", apperrors.ErrSyncInProgress, true},
		{"integration missing", apperrors.ErrIntegrationNotFound, true},
		{"repo missing", apperrors.ErrRepoNotFound, true},
		{"transient", errors.New("503 unavailable"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			require.Error(t, got)
			assert.Equal(t, tt.skipRetry, errors.Is(got, asynq.SkipRetry))
		})
	}
}

func TestHandleFullSync_DelegatesToSyncer(t *testing.T) {
	svc := &mockSyncService{}
	svc.On("SyncAll", mock.Anything, "integ-1").Return(&syncer.RunReport{IntegrationID: "integ-1"}, nil)

	h := NewHandler(svc, testLogger())
	task, err := newTask(TypeFullSync, Payload{IntegrationID: "integ-1"})
	require.NoError(t, err)

	require.NoError(t, h.handleFullSync(context.Background(), task))
	svc.AssertExpectations(t)
}

func TestHandleFullSync_ConcurrentSyncIsNotRetried(t *testing.T) {
	svc := &mockSyncService{}
	svc.On("SyncAll", mock.Anything, "integ-1").Return(nil, apperrors.ErrSyncInProgress)

	h := NewHandler(svc, testLogger())
	task, err := newTask(TypeFullSync, Payload{IntegrationID: "integ-1"})
	require.NoError(t, err)

	err = h.handleFullSync(context.Background(), task)
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleCommitSync_PassesRepoLocator(t *testing.T) {
	svc := &mockSyncService{}
	svc.On("SyncCommits", mock.Anything, "integ-1", "acme", "widget").
		Return(syncer.Result{Success: true, Count: 12}, nil)

	h := NewHandler(svc, testLogger())
	task, err := newTask(TypeSyncCommits, Payload{IntegrationID: "integ-1", Owner: "acme", Repo: "widget"})
	require.NoError(t, err)

	require.NoError(t, h.handleCommitSync(context.Background(), task))
	svc.AssertExpectations(t)
}

func TestRetryDelay(t *testing.T) {
	task := asynq.NewTask(TypeFullSync, nil)

	assert.Equal(t, 2*time.Second, retryDelay(0, errors.New("boom"), task))
	assert.Equal(t, 8*time.Second, retryDelay(2, errors.New("boom"), task))

	// Quota exhaustion waits for the reset instead of backing off blindly.
	reset := time.Now().Add(10 * time.Minute)
	delay := retryDelay(0, &ratelimit.Error{Reset: reset}, task)
	assert.InDelta(t, (10 * time.Minute).Seconds(), delay.Seconds(), 2)
}
