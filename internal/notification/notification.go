package notification

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/config"
)

// TicketStatus selects the ticket email template.
type TicketStatus string

const (
	// StatusCreated goes to the ticket author.
	StatusCreated TicketStatus = "created"
	// StatusAssigned goes to the assignee.
	StatusAssigned TicketStatus = "assigned"
)

// TicketNotification carries what a ticket email needs.
type TicketNotification struct {
	To                  string
	Name                string
	TicketID            string
	Title               string
	Status              TicketStatus
	AssignedToName      string
	Description         string
	EnhancedDescription string
}

// Dispatcher sends user-facing emails. A returned error fails the calling step.
type Dispatcher interface {
	SendVerification(ctx context.Context, to, name, verificationURL string) error
	SendTicketNotification(ctx context.Context, n TicketNotification) error
}

// NewDispatcher returns an SMTP dispatcher when a host is configured, otherwise one that only logs.
func NewDispatcher(cfg config.NotificationConfig, appURL string, logger *zap.Logger) Dispatcher {
	if cfg.SMTPAddr() == "" {
		if logger != nil {
			logger.Warn("SMTP_HOST not set, notification emails will only be logged")
		}
		return NewLogMailer(cfg.EmailFrom, appURL, logger)
	}
	return NewSMTPMailer(cfg, appURL)
}
