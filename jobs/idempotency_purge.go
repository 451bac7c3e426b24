package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/fabtrack/fabtrack/internal/jobs"
)

// TaskTypeIdempotencyPurge removes expired Idempotency-Key records.
const TaskTypeIdempotencyPurge = "idempotency:purge"

// DefaultIdempotencyRetention is how long processed keys are remembered.
const DefaultIdempotencyRetention = 72 * time.Hour

// IdempotencyPurgePayload carries the retention window in seconds. Zero uses the default.
type IdempotencyPurgePayload struct {
	RetentionSeconds int64 `json:"retention_seconds,omitempty"`
}

// NewIdempotencyPurgeTask builds the purge task.
func NewIdempotencyPurgeTask(retention time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(IdempotencyPurgePayload{RetentionSeconds: int64(retention / time.Second)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeIdempotencyPurge, body, asynq.Queue(QueueDefault)), nil
}

// KeyCleaner deletes idempotency keys older than the given age.
type KeyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// IdempotencyPurgeJob runs the purge.
type IdempotencyPurgeJob struct {
	store   KeyCleaner
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewIdempotencyPurgeJob constructs the job. metrics may be nil.
func NewIdempotencyPurgeJob(store KeyCleaner, logger *slog.Logger, metrics *jobmetrics.Metrics) *IdempotencyPurgeJob {
	return &IdempotencyPurgeJob{store: store, logger: logger, metrics: metrics}
}

// Handle processes TaskTypeIdempotencyPurge tasks.
func (j *IdempotencyPurgeJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track(TaskTypeIdempotencyPurge)

	var payload IdempotencyPurgePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return tracker.End(fmt.Errorf("decode %s payload: %v: %w", TaskTypeIdempotencyPurge, err, asynq.SkipRetry))
		}
	}
	retention := DefaultIdempotencyRetention
	if payload.RetentionSeconds > 0 {
		retention = time.Duration(payload.RetentionSeconds) * time.Second
	}

	if err := j.store.Cleanup(ctx, retention); err != nil {
		return tracker.End(fmt.Errorf("purge idempotency keys: %w", err))
	}
	j.logger.Info("idempotency keys purged", slog.Duration("retention", retention))
	return tracker.End(nil)
}
