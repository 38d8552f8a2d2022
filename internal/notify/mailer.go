package notify

import (
	"context"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/spec-kit/device-issue-service/internal/config"
)

// Sender delivers a single job.
type Sender interface {
	Send(ctx context.Context, job Job) error
}

// SMTPMailer sends jobs through an SMTP relay.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPMailer builds a mailer from the notification settings.
func NewSMTPMailer(cfg config.NotificationConfig) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass),
		from:   cfg.EmailFrom,
	}
}

// Send dials the relay and writes one message. gomail has no context support,
// so ctx is only checked before dialing.
func (m *SMTPMailer) Send(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.dialer.DialAndSend(m.message(job))
}

func (m *SMTPMailer) message(job Job) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", job.To)
	msg.SetHeader("Subject", job.Subject)
	msg.SetBody("text/plain", job.Body)
	return msg
}

// LogSender stands in for SMTP when no relay is configured.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender returns a sender that only logs.
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, job Job) error {
	s.logger.Info("notification (smtp disabled)",
		zap.String("to", job.To),
		zap.String("subject", job.Subject),
		zap.String("issue_id", job.IssueID))
	return nil
}
