// internal/jobs/tasks.go
package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// Task types routed through the sync queue. Payloads carry locators only;
// access tokens are resolved inside the worker, never serialized into Redis.
const (
	TypeFullSync    = "sync:full"
	TypeSyncOrgs    = "sync:orgs"
	TypeSyncRepos   = "sync:repos"
	TypeSyncCommits = "sync:commits"
	TypeSyncPulls   = "sync:pulls"
	TypeSyncIssues  = "sync:issues"
	TypeSyncUsers   = "sync:users"
)

// QueueSync is the queue all sync tasks run on.
const QueueSync = "sync"

// Payload locates the work for any sync task. Owner and Repo are only set
// for the stage tasks that need them.
type Payload struct {
	IntegrationID string `json:"integration_id"`
	Owner         string `json:"owner,omitempty"`
	Repo          string `json:"repo,omitempty"`
}

func newTask(taskType string, p Payload) (*asynq.Task, error) {
	if p.IntegrationID == "" {
		return nil, fmt.Errorf("task %s requires an integration id", taskType)
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode task payload: %w", err)
	}
	return asynq.NewTask(taskType, data), nil
}

func decodePayload(t *asynq.Task) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return Payload{}, fmt.Errorf("failed to decode %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	if p.IntegrationID == "" {
		return Payload{}, fmt.Errorf("%s payload has no integration id: %w", t.Type(), asynq.SkipRetry)
	}
	return p, nil
}
