package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data, asynq.Queue(QueueDefault), asynq.MaxRetry(5)), nil
}

// MailHandler delivers TaskTypeSendEmail tasks through a Mailer.
type MailHandler struct {
	mailer Mailer
	logger *slog.Logger
}

// NewMailHandler constructs the handler.
func NewMailHandler(mailer Mailer, logger *slog.Logger) *MailHandler {
	return &MailHandler{mailer: mailer, logger: logger}
}

// HandleSendEmailTask processes TaskTypeSendEmail tasks. Malformed payloads are not retried.
func (h *MailHandler) HandleSendEmailTask(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode %s payload: %v: %w", TaskTypeSendEmail, err, asynq.SkipRetry)
	}
	if payload.To == "" {
		return fmt.Errorf("%s without recipient: %w", TaskTypeSendEmail, asynq.SkipRetry)
	}
	if err := h.mailer.Send(ctx, Message(payload)); err != nil {
		return fmt.Errorf("send mail to %s: %w", payload.To, err)
	}
	h.logger.Info("mail sent", slog.String("to", payload.To), slog.String("subject", payload.Subject))
	return nil
}
