package notify

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/device-issue-service/internal/config"
)

func TestJobEncoding(t *testing.T) {
	job := Job{
		ID:        "j1",
		EventType: "issue.submitted",
		IssueID:   "i1",
		To:        "dc@example.com",
		Subject:   "New issue ISS-1234ABCD",
		Body:      "body",
		CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	raw, err := encodeJob(job)
	require.NoError(t, err)
	assert.Contains(t, raw, `"to":"dc@example.com"`)

	decoded, err := decodeJob(raw)
	require.NoError(t, err)
	assert.Equal(t, job, *decoded)

	_, err = decodeJob("{not json")
	assert.Error(t, err)
}

func TestSMTPMailerMessage(t *testing.T) {
	mailer := NewSMTPMailer(config.NotificationConfig{SMTPHost: "smtp.example.com", SMTPPort: 587, EmailFrom: "noreply@example.com"})
	msg := mailer.message(Job{To: "root@example.com", Subject: "Issue ISS-1 awaits you", Body: "please review"})

	var buf bytes.Buffer
	_, err := msg.WriteTo(&buf)
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "From: noreply@example.com")
	assert.Contains(t, out, "To: root@example.com")
	assert.Contains(t, out, "Subject: Issue ISS-1 awaits you")
	assert.Contains(t, out, "please review")
}

func TestSMTPMailerHonoursCancelledContext(t *testing.T) {
	mailer := NewSMTPMailer(config.NotificationConfig{SMTPHost: "127.0.0.1", SMTPPort: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, mailer.Send(ctx, Job{To: "x@example.com"}), context.Canceled)
}

func TestLogSender(t *testing.T) {
	assert.NoError(t, NewLogSender(nil).Send(context.Background(), Job{To: "x@example.com"}))
}
