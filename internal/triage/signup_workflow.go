package triage

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/events"
	"github.com/spec-kit/ticket-triage/internal/notification"
	"github.com/spec-kit/ticket-triage/internal/workflow"
)

const (
	SignupWorkflowName        = "user-signup"
	StepSendVerificationEmail = "send-verification-email"
)

// SignupWorkflow sends the email verification link to a new user.
type SignupWorkflow struct {
	notifier notification.Dispatcher
	appURL   string
}

func NewSignupWorkflow(notifier notification.Dispatcher, appURL string) *SignupWorkflow {
	return &SignupWorkflow{notifier: notifier, appURL: appURL}
}

// Definition returns the workflow triggered by user.signup, one run per user id.
func (w *SignupWorkflow) Definition() workflow.Workflow {
	return workflow.Workflow{
		Name:     SignupWorkflowName,
		Event:    events.EventUserSignup,
		Identity: dataString("userId"),
		Handler:  w.run,
	}
}

func (w *SignupWorkflow) run(sc *workflow.StepContext) (any, error) {
	var payload events.UserSignupPayload
	if err := sc.Event().DecodeData(&payload); err != nil {
		return nil, err
	}
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	if _, err := workflow.Run(sc, StepSendVerificationEmail, func(ctx context.Context) (string, error) {
		url := VerificationURL(w.appURL, payload.VerificationToken)
		if err := w.notifier.SendVerification(ctx, payload.Email, payload.Name, url); err != nil {
			return "", err
		}
		sc.Logger().Info("verification email sent", zap.String("user_id", payload.UserID))
		return url, nil
	}); err != nil {
		return nil, err
	}

	return map[string]bool{"success": true}, nil
}

// VerificationURL joins the public app URL and the verify path for token.
func VerificationURL(appURL, token string) string {
	if !strings.HasSuffix(appURL, "/") {
		appURL += "/"
	}
	return appURL + "verify/" + token
}
