package notification

import (
	"context"

	"go.uber.org/zap"
)

// LogMailer renders emails and logs them instead of sending.
type LogMailer struct {
	from   string
	appURL string
	logger *zap.Logger
}

var _ Dispatcher = (*LogMailer)(nil)

func NewLogMailer(from, appURL string, logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{from: from, appURL: appURL, logger: logger}
}

func (m *LogMailer) SendVerification(ctx context.Context, to, name, verificationURL string) error {
	msg, err := renderVerification(to, name, verificationURL)
	if err != nil {
		return err
	}
	m.log(msg, zap.String("verification_url", verificationURL))
	return nil
}

func (m *LogMailer) SendTicketNotification(ctx context.Context, n TicketNotification) error {
	msg, err := renderTicket(n, m.appURL)
	if err != nil {
		return err
	}
	m.log(msg, zap.String("ticket_id", n.TicketID), zap.String("status", string(n.Status)))
	return nil
}

func (m *LogMailer) log(msg Message, fields ...zap.Field) {
	m.logger.Info("email (not sent)",
		append(fields,
			zap.String("from", m.from),
			zap.String("to", msg.To),
			zap.String("subject", msg.Subject),
		)...,
	)
}
