package notification

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net/mail"
	"net/smtp"
	"strings"

	"github.com/spec-kit/ticket-triage/internal/config"
	apperrors "github.com/spec-kit/ticket-triage/pkg/util/errorutil"
)

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer delivers HTML email over SMTP.
type SMTPMailer struct {
	addr   string
	auth   smtp.Auth
	from   mail.Address
	appURL string
	send   sendFunc
}

var _ Dispatcher = (*SMTPMailer)(nil)

// NewSMTPMailer creates a mailer for cfg; PLAIN auth is used when a user is set.
func NewSMTPMailer(cfg config.NotificationConfig, appURL string) *SMTPMailer {
	var auth smtp.Auth
	if cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPHost)
	}
	return &SMTPMailer{
		addr:   cfg.SMTPAddr(),
		auth:   auth,
		from:   mail.Address{Name: senderName, Address: cfg.EmailFrom},
		appURL: appURL,
		send:   smtp.SendMail,
	}
}

func (m *SMTPMailer) SendVerification(ctx context.Context, to, name, verificationURL string) error {
	msg, err := renderVerification(to, name, verificationURL)
	if err != nil {
		return err
	}
	return m.deliver(ctx, msg)
}

func (m *SMTPMailer) SendTicketNotification(ctx context.Context, n TicketNotification) error {
	msg, err := renderTicket(n, m.appURL)
	if err != nil {
		return err
	}
	return m.deliver(ctx, msg)
}

func (m *SMTPMailer) deliver(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	to, err := mail.ParseAddress(msg.To)
	if err != nil {
		return apperrors.NewValidationError("invalid recipient address", map[string]any{"to": msg.To})
	}
	if err := m.send(m.addr, m.auth, m.from.Address, []string{to.Address}, m.compose(to, msg)); err != nil {
		return fmt.Errorf("send mail to %s: %w", to.Address, err)
	}
	return nil
}

func (m *SMTPMailer) compose(to *mail.Address, msg Message) []byte {
	var buf bytes.Buffer
	headers := []string{
		"From: " + m.from.String(),
		"To: " + to.String(),
		"Subject: " + mime.QEncoding.Encode("utf-8", msg.Subject),
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=UTF-8",
	}
	buf.WriteString(strings.Join(headers, "\r\n"))
	buf.WriteString("\r\n\r\n")
	buf.WriteString(msg.HTML)
	return buf.Bytes()
}
