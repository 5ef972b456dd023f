// internal/jobs/enqueuer.go
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const (
	maxRetry      = 3
	taskTimeout   = 30 * time.Minute
	taskRetention = 24 * time.Hour
)

// Enqueuer submits sync tasks onto the shared queue.
type Enqueuer struct {
	client *asynq.Client
	logger *slog.Logger
}

func NewEnqueuer(client *asynq.Client, logger *slog.Logger) *Enqueuer {
	return &Enqueuer{client: client, logger: logger}
}

func (e *Enqueuer) enqueue(ctx context.Context, taskType string, p Payload) (*asynq.TaskInfo, error) {
	task, err := newTask(taskType, p)
	if err != nil {
		return nil, err
	}
	info, err := e.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueSync),
		asynq.MaxRetry(maxRetry),
		asynq.Timeout(taskTimeout),
		asynq.Retention(taskRetention),
	)
	if err != nil {
		return nil, err
	}
	e.logger.Info("Enqueued sync task",
		"task_id", info.ID,
		"type", taskType,
		"integration_id", p.IntegrationID)
	return info, nil
}

// EnqueueFullSync queues a complete pipeline run for one integration.
func (e *Enqueuer) EnqueueFullSync(ctx context.Context, integrationID string) (*asynq.TaskInfo, error) {
	return e.enqueue(ctx, TypeFullSync, Payload{IntegrationID: integrationID})
}

// EnqueueOrgSync queues an organizations-only refresh.
func (e *Enqueuer) EnqueueOrgSync(ctx context.Context, integrationID string) (*asynq.TaskInfo, error) {
	return e.enqueue(ctx, TypeSyncOrgs, Payload{IntegrationID: integrationID})
}

// EnqueueRepoSync queues a repository refresh for one owner.
func (e *Enqueuer) EnqueueRepoSync(ctx context.Context, integrationID, owner string) (*asynq.TaskInfo, error) {
	return e.enqueue(ctx, TypeSyncRepos, Payload{IntegrationID: integrationID, Owner: owner})
}

// EnqueueCommitSync queues a commit refresh for one repository.
func (e *Enqueuer) EnqueueCommitSync(ctx context.Context, integrationID, owner, repo string) (*asynq.TaskInfo, error) {
	return e.enqueue(ctx, TypeSyncCommits, Payload{IntegrationID: integrationID, Owner: owner, Repo: repo})
}

// EnqueuePullSync queues a pull-request refresh for one repository.
func (e *Enqueuer) EnqueuePullSync(ctx context.Context, integrationID, owner, repo string) (*asynq.TaskInfo, error) {
	return e.enqueue(ctx, TypeSyncPulls, Payload{IntegrationID: integrationID, Owner: owner, Repo: repo})
}

// EnqueueIssueSync queues an issue and changelog refresh for one repository.
func (e *Enqueuer) EnqueueIssueSync(ctx context.Context, integrationID, owner, repo string) (*asynq.TaskInfo, error) {
	return e.enqueue(ctx, TypeSyncIssues, Payload{IntegrationID: integrationID, Owner: owner, Repo: repo})
}

// EnqueueUserSync queues a member-profile refresh.
func (e *Enqueuer) EnqueueUserSync(ctx context.Context, integrationID string) (*asynq.TaskInfo, error) {
	return e.enqueue(ctx, TypeSyncUsers, Payload{IntegrationID: integrationID})
}
