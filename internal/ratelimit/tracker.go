// internal/ratelimit/tracker.go
package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github-sync-service/internal/model"
)

// minTTL keeps a snapshot around for at least a minute even when the remote
// reset timestamp is already in the past or skewed.
const minTTL = 60 * time.Second

// Error signals that the integration's GitHub quota is exhausted until Reset.
type Error struct {
	Reset time.Time
}

func (e *Error) Error() string {
	return fmt.Sprintf("GitHub rate limit exhausted, resets at %s", e.Reset.Format(time.RFC3339))
}

// Tracker persists the per-integration quota snapshot with a TTL bound to
// the remote reset time. The check is advisory: the client's own
// retry/backoff remains the backstop when the snapshot is stale.
type Tracker struct {
	rdb    *redis.Client
	logger *slog.Logger
}

func NewTracker(rdb *redis.Client, logger *slog.Logger) *Tracker {
	return &Tracker{rdb: rdb, logger: logger}
}

func quotaKey(integrationID string) string {
	return "github:quota:" + integrationID
}

// Record stores the quota snapshot observed on a GitHub response.
func (t *Tracker) Record(ctx context.Context, integrationID string, rl model.RateLimit) error {
	data, err := json.Marshal(rl)
	if err != nil {
		return fmt.Errorf("failed to marshal rate limit snapshot: %w", err)
	}

	ttl := time.Until(rl.Reset)
	if ttl < minTTL {
		ttl = minTTL
	}

	if err := t.rdb.Set(ctx, quotaKey(integrationID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store rate limit snapshot: %w", err)
	}
	return nil
}

// Get returns the stored snapshot, or nil when none exists.
func (t *Tracker) Get(ctx context.Context, integrationID string) (*model.RateLimit, error) {
	data, err := t.rdb.Get(ctx, quotaKey(integrationID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read rate limit snapshot: %w", err)
	}

	var rl model.RateLimit
	if err := json.Unmarshal(data, &rl); err != nil {
		return nil, fmt.Errorf("failed to decode rate limit snapshot: %w", err)
	}
	return &rl, nil
}

// Check rejects with *Error when the last snapshot shows an exhausted quota
// whose reset is still in the future. A missing or expired snapshot admits.
func (t *Tracker) Check(ctx context.Context, integrationID string) error {
	rl, err := t.Get(ctx, integrationID)
	if err != nil {
		// An unreachable snapshot store must not block syncs.
		t.logger.Warn("Rate limit check degraded", "integration_id", integrationID, "error", err)
		return nil
	}
	if rl == nil {
		return nil
	}

	if rl.Remaining <= 0 && rl.Reset.After(time.Now()) {
		return &Error{Reset: rl.Reset}
	}
	return nil
}
