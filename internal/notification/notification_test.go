package notification

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/config"
	apperrors "github.com/spec-kit/ticket-triage/pkg/util/errorutil"
)

type capturedMail struct {
	addr string
	from string
	to   []string
	body string
}

func newCapturingMailer(t *testing.T, sendErr error) (*SMTPMailer, *[]capturedMail) {
	t.Helper()
	var sent []capturedMail
	m := NewSMTPMailer(config.NotificationConfig{
		EmailFrom: "noreply@smarttickets.com",
		SMTPHost:  "smtp.example.com",
		SMTPPort:  2525,
		SMTPUser:  "user",
	}, "http://localhost:5173/")
	m.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		sent = append(sent, capturedMail{addr: addr, from: from, to: to, body: string(msg)})
		return sendErr
	}
	return m, &sent
}

func TestSendVerification(t *testing.T) {
	m, sent := newCapturingMailer(t, nil)

	err := m.SendVerification(context.Background(), "bob@example.com", "Bob", "http://localhost:5173/verify/tok123")
	require.NoError(t, err)
	require.Len(t, *sent, 1)

	mail := (*sent)[0]
	assert.Equal(t, "smtp.example.com:2525", mail.addr)
	assert.Equal(t, "noreply@smarttickets.com", mail.from)
	assert.Equal(t, []string{"bob@example.com"}, mail.to)
	assert.Contains(t, mail.body, `From: "Smart Ticketing System" <noreply@smarttickets.com>`)
	assert.Contains(t, mail.body, "Subject: Verify Your Email Address")
	assert.Contains(t, mail.body, "Content-Type: text/html; charset=UTF-8")
	assert.Contains(t, mail.body, "Hi Bob,")
	assert.Equal(t, 2, strings.Count(mail.body, "http://localhost:5173/verify/tok123"))
}

func TestSendTicketCreated(t *testing.T) {
	m, sent := newCapturingMailer(t, nil)

	err := m.SendTicketNotification(context.Background(), TicketNotification{
		To:             "alice@example.com",
		Name:           "Alice",
		TicketID:       "T1",
		Title:          "Login broken",
		Status:         StatusCreated,
		AssignedToName: "Bob",
	})
	require.NoError(t, err)

	body := (*sent)[0].body
	assert.Contains(t, body, "Subject: Ticket Created: Login broken")
	assert.Contains(t, body, "<strong>Ticket ID:</strong> T1")
	assert.Contains(t, body, "<strong>Assigned to:</strong> Bob")
	assert.Contains(t, body, `href="http://localhost:5173/"`)
	assert.Contains(t, body, "View Ticket")
	assert.NotContains(t, body, "copy and paste this link")
}

func TestSendTicketAssigned(t *testing.T) {
	m, sent := newCapturingMailer(t, nil)

	err := m.SendTicketNotification(context.Background(), TicketNotification{
		To:                  "bob@example.com",
		Name:                "Bob",
		TicketID:            "T1",
		Title:               "Login broken",
		Status:              StatusAssigned,
		Description:         "Users cannot log in",
		EnhancedDescription: "Authentication service rejects valid credentials",
	})
	require.NoError(t, err)

	body := (*sent)[0].body
	assert.Contains(t, body, "Subject: New Ticket Assigned: Login broken")
	assert.Contains(t, body, "Users cannot log in")
	assert.Contains(t, body, "AI Enhanced Analysis")
	assert.Contains(t, body, "Authentication service rejects valid credentials")
}

func TestTemplateEscapesUserInput(t *testing.T) {
	msg, err := renderTicket(TicketNotification{
		To:     "a@example.com",
		Name:   "<script>x</script>",
		Title:  "t",
		Status: StatusCreated,
	}, "http://localhost/")
	require.NoError(t, err)
	assert.NotContains(t, msg.HTML, "<script>")
}

func TestSendFailuresAreReturned(t *testing.T) {
	m, _ := newCapturingMailer(t, errors.New("421 service not available"))
	err := m.SendVerification(context.Background(), "bob@example.com", "Bob", "u")
	require.Error(t, err)
	assert.False(t, apperrors.IsPermanent(err))

	err = m.SendVerification(context.Background(), "not an address", "Bob", "u")
	assert.True(t, apperrors.IsPermanent(err))

	err = m.SendTicketNotification(context.Background(), TicketNotification{To: "a@example.com", Status: "closed"})
	assert.True(t, apperrors.IsPermanent(err))
}

func TestNewDispatcher(t *testing.T) {
	_, isLog := NewDispatcher(config.NotificationConfig{}, "http://x/", zap.NewNop()).(*LogMailer)
	assert.True(t, isLog)

	_, isSMTP := NewDispatcher(config.NotificationConfig{SMTPHost: "smtp", SMTPPort: 25}, "http://x/", nil).(*SMTPMailer)
	assert.True(t, isSMTP)
}

func TestLogMailer(t *testing.T) {
	m := NewLogMailer("noreply@smarttickets.com", "http://x/", nil)
	assert.NoError(t, m.SendVerification(context.Background(), "a@example.com", "A", "http://x/verify/t"))
	assert.NoError(t, m.SendTicketNotification(context.Background(), TicketNotification{To: "a@example.com", Status: StatusCreated}))
	assert.Error(t, m.SendTicketNotification(context.Background(), TicketNotification{Status: "bogus"}))
}
