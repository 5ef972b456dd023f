// internal/jobs/server.go
package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github-sync-service/internal/ratelimit"
)

const retryBaseDelay = 2 * time.Second

// retryDelay backs off exponentially, except for quota exhaustion, where the
// snapshot already knows when the budget returns.
func retryDelay(n int, err error, t *asynq.Task) time.Duration {
	var rle *ratelimit.Error
	if errors.As(err, &rle) {
		if until := time.Until(rle.Reset); until > 0 {
			return until
		}
	}
	return retryBaseDelay * (1 << n)
}

// NewServer builds the queue worker bound to the sync queue.
func NewServer(redisAddr string, concurrency int, logger *slog.Logger) *asynq.Server {
	return asynq.NewServer(
		asynq.RedisClientOpt{Addr: redisAddr},
		asynq.Config{
			Concurrency:    concurrency,
			Queues:         map[string]int{QueueSync: 1},
			RetryDelayFunc: retryDelay,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task execution failed", "type", task.Type(), "error", err)
			}),
		},
	)
}
