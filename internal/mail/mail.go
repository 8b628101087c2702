package mail

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// Mailer sends plain text mail.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Config holds SMTP settings. An empty Host disables sending.
type Config struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

// SMTPMailer sends mail through an SMTP relay with gomail.
type SMTPMailer struct {
	cfg    Config
	dialer *gomail.Dialer
	log    logrus.FieldLogger
}

var _ Mailer = (*SMTPMailer)(nil)

// NewSMTPMailer creates a mailer. Messages are dropped with a warning while Host is unset.
func NewSMTPMailer(cfg Config, log logrus.FieldLogger) *SMTPMailer {
	m := &SMTPMailer{cfg: cfg, log: log}
	if cfg.Host != "" {
		m.dialer = gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Pass)
	}
	return m
}

// Send delivers one message. gomail has no context support, so ctx only guards against
// sending for an already cancelled request.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if m.dialer == nil {
		m.log.WithField("to", to).Warn("smtp not configured, skip mail")
		return nil
	}
	if strings.TrimSpace(to) == "" {
		return fmt.Errorf("send mail: empty recipient")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := m.dialer.DialAndSend(newMessage(m.cfg.From, to, subject, body)); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	m.log.WithFields(logrus.Fields{"to": to, "subject": subject}).Info("mail sent")
	return nil
}

func newMessage(from, to, subject, body string) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetHeader("From", from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	return msg
}

// VerificationMessage returns subject and body of the account verification mail.
func VerificationMessage(link string) (string, string) {
	return "Account Verification", "Click this link to verify your account: " + link
}

// RetentionWarningMessage returns subject and body of the inactivity warning mail.
func RetentionWarningMessage() (string, string) {
	return "Inactive Account Removal",
		"Your account hasn't been logged into for almost six months and will be deleted in about two weeks. " +
			"If you don't want it to be deleted please log in to your account."
}
