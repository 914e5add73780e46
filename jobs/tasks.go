package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/meridian-bank/meridian/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendOTPEmail is the task type for delivering admin login codes.
	TaskTypeSendOTPEmail = "mail:otp"
)

// SendOTPEmailPayload carries the recipient and the login code.
type SendOTPEmailPayload struct {
	To   string `json:"to"`
	Code string `json:"code"`
}

// NewSendOTPEmailTask constructs an Asynq task.
func NewSendOTPEmailTask(payload SendOTPEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendOTPEmail, data), nil
}

// OTPSender delivers a login verification code to an email address.
type OTPSender interface {
	SendOTP(ctx context.Context, to, code string) error
}

// OTPEmailJob processes TaskTypeSendOTPEmail tasks.
type OTPEmailJob struct {
	mailer  OTPSender
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewOTPEmailJob constructs the handler.
func NewOTPEmailJob(mailer OTPSender, logger *slog.Logger, metrics *jobmetrics.Metrics) *OTPEmailJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &OTPEmailJob{mailer: mailer, logger: logger, metrics: metrics}
}

// Handle unmarshals the payload and sends the code. Malformed payloads are
// dropped rather than retried.
func (j *OTPEmailJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track("otp_email")
	var payload SendOTPEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		j.logger.Error("otp email payload", slog.Any("error", err))
		_ = tracker.End(err)
		return asynq.SkipRetry
	}
	if err := j.mailer.SendOTP(ctx, payload.To, payload.Code); err != nil {
		j.logger.Warn("otp email delivery", slog.String("to", payload.To), slog.Any("error", err))
		return tracker.End(err)
	}
	return tracker.End(nil)
}
