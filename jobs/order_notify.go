package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/fabtrack/fabtrack/internal/directory"
	jobmetrics "github.com/fabtrack/fabtrack/internal/jobs"
	"github.com/fabtrack/fabtrack/internal/shared"
)

// TaskTypeOrderNotify fans an order event out into one email per recipient.
const TaskTypeOrderNotify = "order:notify"

// OrderNotifyPayload is the wire form of an order event.
type OrderNotifyPayload struct {
	OrderID int64  `json:"order_id"`
	Code    string `json:"code"`
	From    string `json:"from,omitempty"`
	To      string `json:"to"`
	ActorID int64  `json:"actor_id"`
	Note    string `json:"note,omitempty"`
	// Recipients maps the relation (FABRICATOR, INSTALLER) to a workforce member id.
	Recipients map[string]int64 `json:"recipients"`
}

// NewOrderNotifyTask builds the fan-out task.
func NewOrderNotifyTask(payload OrderNotifyPayload, opts ...asynq.Option) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	opts = append([]asynq.Option{asynq.Queue(QueueDefault), asynq.MaxRetry(3)}, opts...)
	return asynq.NewTask(TaskTypeOrderNotify, body, opts...), nil
}

// MailEnqueuer queues individual emails.
type MailEnqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload SendEmailPayload) (*asynq.TaskInfo, error)
}

// OrderNotifyHandler resolves recipients and queues one email each, so a failing
// mailbox only retries its own message.
type OrderNotifyHandler struct {
	directory directory.Repository
	mail      MailEnqueuer
	metrics   *jobmetrics.Metrics
	logger    *slog.Logger
}

// NewOrderNotifyHandler constructs the handler. metrics may be nil.
func NewOrderNotifyHandler(dir directory.Repository, mail MailEnqueuer, metrics *jobmetrics.Metrics, logger *slog.Logger) *OrderNotifyHandler {
	return &OrderNotifyHandler{directory: dir, mail: mail, metrics: metrics, logger: logger}
}

// Handle processes TaskTypeOrderNotify tasks.
func (h *OrderNotifyHandler) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := h.metrics.Track(TaskTypeOrderNotify)

	var payload OrderNotifyPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return tracker.End(fmt.Errorf("decode %s payload: %v: %w", TaskTypeOrderNotify, err, asynq.SkipRetry))
	}

	kinds := make([]string, 0, len(payload.Recipients))
	for kind := range payload.Recipients {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	var errs []error
	for _, kind := range kinds {
		memberID := payload.Recipients[kind]
		member, err := h.directory.GetMember(ctx, memberID)
		if errors.Is(err, shared.ErrNotFound) {
			h.logger.Warn("notification recipient vanished", slog.Int64("member_id", memberID), slog.String("order", payload.Code))
			h.metrics.AddNotification(kind, "skipped")
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("load member %d: %w", memberID, err))
			continue
		}
		if strings.TrimSpace(member.Email) == "" || !member.Active {
			h.logger.Info("notification recipient unreachable", slog.Int64("member_id", memberID), slog.String("order", payload.Code))
			h.metrics.AddNotification(kind, "skipped")
			continue
		}

		subject, body := composeOrderMail(payload, member)
		if _, err := h.mail.EnqueueSendEmail(ctx, SendEmailPayload{To: member.Email, Subject: subject, Body: body}); err != nil {
			errs = append(errs, fmt.Errorf("enqueue mail for member %d: %w", memberID, err))
			continue
		}
		h.metrics.AddNotification(kind, "queued")
	}
	return tracker.End(errors.Join(errs...))
}

func composeOrderMail(p OrderNotifyPayload, m directory.Member) (string, string) {
	var subject string
	if p.From == "" {
		subject = fmt.Sprintf("New order %s assigned to you", p.Code)
	} else {
		subject = fmt.Sprintf("Order %s is now %s", p.Code, humanize(p.To))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", m.FullName)
	if p.From == "" {
		fmt.Fprintf(&b, "Order %s has been submitted and lists you as %s.\n", p.Code, strings.ToLower(string(m.Kind)))
	} else {
		fmt.Fprintf(&b, "Order %s moved from %s to %s.\n", p.Code, humanize(p.From), humanize(p.To))
	}
	if p.Note != "" {
		fmt.Fprintf(&b, "\nNote: %s\n", p.Note)
	}
	return subject, b.String()
}

func humanize(status string) string {
	return strings.ToLower(strings.ReplaceAll(status, "_", " "))
}
