package mail

import (
	"bytes"
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMTPMailer_SkipsWhenUnconfigured(t *testing.T) {
	logger, hook := test.NewNullLogger()
	m := NewSMTPMailer(Config{From: "noreply@example.com"}, logger)

	err := m.Send(context.Background(), "alice@example.com", "s", "b")

	require.NoError(t, err)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "alice@example.com", hook.LastEntry().Data["to"])
}

func TestSMTPMailer_RejectsEmptyRecipient(t *testing.T) {
	logger, _ := test.NewNullLogger()
	m := NewSMTPMailer(Config{Host: "smtp.example.com", Port: 587, From: "noreply@example.com"}, logger)

	assert.Error(t, m.Send(context.Background(), "  ", "s", "b"))
}

func TestSMTPMailer_CancelledContext(t *testing.T) {
	logger, _ := test.NewNullLogger()
	m := NewSMTPMailer(Config{Host: "smtp.example.com", Port: 587, From: "noreply@example.com"}, logger)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, m.Send(ctx, "alice@example.com", "s", "b"), context.Canceled)
}

func TestNewMessage(t *testing.T) {
	subject, body := VerificationMessage("http://localhost:8080/api/v1/auth/email-verification?token=abc")
	msg := newMessage("noreply@example.com", "alice@example.com", subject, body)

	var buf bytes.Buffer
	_, err := msg.WriteTo(&buf)
	require.NoError(t, err)

	raw := buf.String()
	assert.Contains(t, raw, "From: noreply@example.com")
	assert.Contains(t, raw, "To: alice@example.com")
	assert.Contains(t, raw, "Subject: Account Verification")
	assert.Equal(t, []string{"alice@example.com"}, msg.GetHeader("To"))
}

func TestRetentionWarningMessage(t *testing.T) {
	subject, body := RetentionWarningMessage()
	assert.Equal(t, "Inactive Account Removal", subject)
	assert.Contains(t, body, "log in")
}
