// Package notify turns order events into background notification jobs.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/fabtrack/fabtrack/internal/orders"
	"github.com/fabtrack/fabtrack/jobs"
)

const defaultEnqueueTimeout = 2 * time.Second

// eventNamespace scopes the deterministic task ids derived from order events.
var eventNamespace = uuid.MustParse("3f0c2d8e-5b7a-4c61-9d2e-8a4f1b6c7e90")

// Enqueuer submits the fan-out task.
type Enqueuer interface {
	EnqueueOrderNotification(ctx context.Context, payload jobs.OrderNotifyPayload, taskID string) (*asynq.TaskInfo, error)
}

// Dispatcher implements orders.Notifier on top of the job queue.
type Dispatcher struct {
	queue   Enqueuer
	logger  *slog.Logger
	timeout time.Duration
}

// Option customises the dispatcher.
type Option func(*Dispatcher)

// WithTimeout bounds the enqueue round trip.
func WithTimeout(d time.Duration) Option {
	return func(disp *Dispatcher) {
		if d > 0 {
			disp.timeout = d
		}
	}
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(queue Enqueuer, logger *slog.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{queue: queue, logger: logger, timeout: defaultEnqueueTimeout}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// OrderChanged enqueues the event. The caller's cancellation does not abort the
// enqueue, and failures are logged only.
func (d *Dispatcher) OrderChanged(ctx context.Context, ev orders.Event) {
	if d == nil || d.queue == nil || len(ev.Recipients) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	recipients := make(map[string]int64, len(ev.Recipients))
	for kind, id := range ev.Recipients {
		recipients[string(kind)] = id
	}
	payload := jobs.OrderNotifyPayload{
		OrderID:    ev.OrderID,
		Code:       ev.Code,
		From:       string(ev.From),
		To:         string(ev.To),
		ActorID:    ev.ActorID,
		Note:       ev.Note,
		Recipients: recipients,
	}

	taskID := TaskID(ev)
	info, err := d.queue.EnqueueOrderNotification(ctx, payload, taskID)
	switch {
	case err == nil:
		d.logger.Debug("order notification queued",
			slog.Int64("order_id", ev.OrderID),
			slog.String("task_id", info.ID),
			slog.String("to", string(ev.To)))
	case isDuplicate(err):
		d.logger.Debug("order notification already queued", slog.String("task_id", taskID))
	default:
		d.logger.Warn("order notification dropped",
			slog.Int64("order_id", ev.OrderID),
			slog.String("code", ev.Code),
			slog.String("to", string(ev.To)),
			slog.Any("error", err))
	}
}

// TaskID derives a stable id from the order, its version and the target status so a
// replayed event is not queued twice.
func TaskID(ev orders.Event) string {
	name := fmt.Sprintf("%d:%d:%s", ev.OrderID, ev.Version, ev.To)
	return uuid.NewSHA1(eventNamespace, []byte(name)).String()
}

func isDuplicate(err error) bool {
	return errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask)
}
