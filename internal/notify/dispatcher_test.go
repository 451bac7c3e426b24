package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabtrack/fabtrack/internal/directory"
	"github.com/fabtrack/fabtrack/internal/orders"
	"github.com/fabtrack/fabtrack/jobs"
)

type recordingQueue struct {
	payloads []jobs.OrderNotifyPayload
	taskIDs  []string
	ctxErr   error
	deadline bool
	err      error
}

func (q *recordingQueue) EnqueueOrderNotification(ctx context.Context, p jobs.OrderNotifyPayload, taskID string) (*asynq.TaskInfo, error) {
	q.ctxErr = ctx.Err()
	_, q.deadline = ctx.Deadline()
	if q.err != nil {
		return nil, q.err
	}
	q.payloads = append(q.payloads, p)
	q.taskIDs = append(q.taskIDs, taskID)
	return &asynq.TaskInfo{ID: taskID}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleEvent() orders.Event {
	return orders.Event{
		OrderID: 42,
		Code:    "PED-00042",
		Version: 3,
		From:    orders.StatusSubmitted,
		To:      orders.StatusInFabrication,
		ActorID: 9,
		Note:    "start",
		Recipients: map[directory.MemberKind]int64{
			directory.KindFabricator: 1,
		},
	}
}

func TestDispatcherEnqueuesPayload(t *testing.T) {
	q := &recordingQueue{}
	NewDispatcher(q, quietLogger()).OrderChanged(context.Background(), sampleEvent())

	require.Len(t, q.payloads, 1)
	assert.Equal(t, jobs.OrderNotifyPayload{
		OrderID:    42,
		Code:       "PED-00042",
		From:       "SUBMITTED",
		To:         "IN_FABRICATION",
		ActorID:    9,
		Note:       "start",
		Recipients: map[string]int64{"FABRICATOR": 1},
	}, q.payloads[0])
	assert.Equal(t, TaskID(sampleEvent()), q.taskIDs[0])
	assert.True(t, q.deadline)
}

func TestDispatcherIgnoresCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	q := &recordingQueue{}
	NewDispatcher(q, quietLogger(), WithTimeout(time.Second)).OrderChanged(ctx, sampleEvent())

	require.Len(t, q.payloads, 1)
	assert.NoError(t, q.ctxErr)
}

func TestDispatcherSwallowsQueueErrors(t *testing.T) {
	for _, err := range []error{errors.New("redis down"), asynq.ErrTaskIDConflict} {
		q := &recordingQueue{err: err}
		assert.NotPanics(t, func() {
			NewDispatcher(q, quietLogger()).OrderChanged(context.Background(), sampleEvent())
		})
	}
}

func TestDispatcherSkipsEventsWithoutRecipients(t *testing.T) {
	q := &recordingQueue{}
	ev := sampleEvent()
	ev.Recipients = nil
	NewDispatcher(q, quietLogger()).OrderChanged(context.Background(), ev)
	assert.Empty(t, q.payloads)
}

func TestTaskIDStablePerVersion(t *testing.T) {
	a := sampleEvent()
	b := sampleEvent()
	assert.Equal(t, TaskID(a), TaskID(b))

	b.Version++
	assert.NotEqual(t, TaskID(a), TaskID(b))
}
