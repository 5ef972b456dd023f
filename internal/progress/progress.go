// internal/progress/progress.go
package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// runningTTL bounds how long a progress entry survives a crashed run.
	runningTTL = time.Hour
	// graceTTL keeps the terminal entry visible to pollers after a run ends.
	graceTTL = 5 * time.Minute
	// leaseTTL outlives the queue's per-job timeout so an expiring lease
	// always means the holder is gone.
	leaseTTL = 35 * time.Minute
)

// Snapshot is one progress observation, visible across processes.
type Snapshot struct {
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Current   int       `json:"current"`
	Total     int       `json:"total"`
	Timestamp time.Time `json:"timestamp"`
}

// Reporter writes sync progress to Redis for cross-process visibility and
// mirrors it in an in-process cache. Redis is never the source of truth for
// sync status; that lives on the integration record.
type Reporter struct {
	rdb    *redis.Client
	logger *slog.Logger

	mu    sync.RWMutex
	cache map[string]Snapshot
}

func NewReporter(rdb *redis.Client, logger *slog.Logger) *Reporter {
	return &Reporter{
		rdb:    rdb,
		logger: logger,
		cache:  make(map[string]Snapshot),
	}
}

func progressKey(integrationID string) string {
	return "sync:progress:" + integrationID
}

func leaseKey(integrationID string) string {
	return "sync:lease:" + integrationID
}

func (r *Reporter) write(ctx context.Context, integrationID string, snap Snapshot, ttl time.Duration) {
	snap.Timestamp = time.Now()

	r.mu.Lock()
	r.cache[integrationID] = snap
	r.mu.Unlock()

	data, err := json.Marshal(snap)
	if err != nil {
		r.logger.Error("Failed to marshal progress snapshot", "error", err)
		return
	}
	// A progress write failure must never fail the sync itself.
	if err := r.rdb.Set(ctx, progressKey(integrationID), data, ttl).Err(); err != nil {
		r.logger.Warn("Failed to publish progress", "integration_id", integrationID, "error", err)
	}
}

// Set publishes an in-flight progress snapshot.
func (r *Reporter) Set(ctx context.Context, integrationID string, snap Snapshot) {
	r.write(ctx, integrationID, snap, runningTTL)
}

// Finish publishes the terminal snapshot; the shared entry expires after a
// grace period instead of vanishing immediately.
func (r *Reporter) Finish(ctx context.Context, integrationID string, snap Snapshot) {
	r.write(ctx, integrationID, snap, graceTTL)
}

// Get returns the latest snapshot, preferring the shared store, or nil when
// no sync has reported recently.
func (r *Reporter) Get(ctx context.Context, integrationID string) (*Snapshot, error) {
	data, err := r.rdb.Get(ctx, progressKey(integrationID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		// Shared store unreachable: fall back to the local cache.
		r.mu.RLock()
		snap, ok := r.cache[integrationID]
		r.mu.RUnlock()
		if ok {
			return &snap, nil
		}
		return nil, fmt.Errorf("failed to read progress: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode progress: %w", err)
	}
	return &snap, nil
}

// Clear removes the progress marker. Advisory: an in-flight stage is not
// preempted.
func (r *Reporter) Clear(ctx context.Context, integrationID string) {
	r.mu.Lock()
	delete(r.cache, integrationID)
	r.mu.Unlock()

	if err := r.rdb.Del(ctx, progressKey(integrationID)).Err(); err != nil {
		r.logger.Warn("Failed to clear progress", "integration_id", integrationID, "error", err)
	}
}

// AcquireLease takes the per-integration single-flight lease. Returns false
// when another sync already holds it.
func (r *Reporter) AcquireLease(ctx context.Context, integrationID string) (bool, error) {
	ok, err := r.rdb.SetNX(ctx, leaseKey(integrationID), time.Now().Format(time.RFC3339), leaseTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire sync lease: %w", err)
	}
	return ok, nil
}

// ReleaseLease frees the single-flight lease.
func (r *Reporter) ReleaseLease(ctx context.Context, integrationID string) {
	if err := r.rdb.Del(ctx, leaseKey(integrationID)).Err(); err != nil {
		r.logger.Warn("Failed to release sync lease", "integration_id", integrationID, "error", err)
	}
}
