package notification

import (
	"bytes"
	"fmt"
	"html/template"

	apperrors "github.com/spec-kit/ticket-triage/pkg/util/errorutil"
)

const senderName = "Smart Ticketing System"

// Message is a rendered email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

const layoutHTML = `{{define "layout"}}<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
{{template "content" .}}
{{if .ButtonURL}}<div style="text-align: center; margin: 30px 0;">
  <a href="{{.ButtonURL}}" style="background-color: #007bff; color: white; padding: 12px 30px; text-decoration: none; border-radius: 5px; display: inline-block;">{{.ButtonLabel}}</a>
</div>{{end}}
{{block "footer" .}}{{end}}
<p>Best regards,<br>Smart Ticketing System Team</p>
</div>{{end}}`

const verificationHTML = `{{define "content"}}<h2 style="color: #333;">Welcome to Smart Ticketing System!</h2>
<p>Hi {{.Name}},</p>
<p>Thank you for signing up! Please verify your email address by clicking the button below:</p>
{{end}}{{define "footer"}}<p>If the button doesn't work, you can copy and paste this link into your browser:</p>
<p style="word-break: break-all; color: #666;">{{.ButtonURL}}</p>{{end}}`

const createdHTML = `{{define "content"}}<h2 style="color: #333;">Ticket Created Successfully</h2>
<p>Hi {{.Name}},</p>
<p>Your support ticket has been created and is being processed by our AI system.</p>
<div style="background-color: #f8f9fa; padding: 20px; border-radius: 5px; margin: 20px 0;">
  <h3>Ticket Details:</h3>
  <p><strong>Ticket ID:</strong> {{.TicketID}}</p>
  <p><strong>Title:</strong> {{.Title}}</p>
  <p><strong>Status:</strong> Open</p>
  {{if .AssignedToName}}<p><strong>Assigned to:</strong> {{.AssignedToName}}</p>{{end}}
</div>
<p>You will receive updates as your ticket progresses.</p>
{{end}}`

const assignedHTML = `{{define "content"}}<h2 style="color: #333;">New Ticket Assigned to You</h2>
<p>Hi {{.Name}},</p>
<p>A new support ticket has been assigned to you based on your skills and expertise.</p>
<div style="background-color: #f8f9fa; padding: 20px; border-radius: 5px; margin: 20px 0;">
  <h3>Ticket Details:</h3>
  <p><strong>Ticket ID:</strong> {{.TicketID}}</p>
  <p><strong>Title:</strong> {{.Title}}</p>
  <p><strong>Original Description:</strong></p>
  <p style="margin-left: 20px;">{{.Description}}</p>
  {{if .EnhancedDescription}}<p><strong>AI Enhanced Analysis:</strong></p>
  <p style="margin-left: 20px; font-style: italic;">{{.EnhancedDescription}}</p>{{end}}
</div>
<p>Please log in to the system to view and manage this ticket.</p>
{{end}}`

var (
	verificationTmpl = template.Must(template.Must(template.New("verification").Parse(layoutHTML)).Parse(verificationHTML))
	createdTmpl      = template.Must(template.Must(template.New("created").Parse(layoutHTML)).Parse(createdHTML))
	assignedTmpl     = template.Must(template.Must(template.New("assigned").Parse(layoutHTML)).Parse(assignedHTML))
)

type templateData struct {
	TicketNotification
	ButtonURL   string
	ButtonLabel string
}

// renderVerification builds the signup verification email.
func renderVerification(to, name, verificationURL string) (Message, error) {
	data := templateData{
		TicketNotification: TicketNotification{Name: name},
		ButtonURL:          verificationURL,
		ButtonLabel:        "Verify Email Address",
	}
	var buf bytes.Buffer
	if err := verificationTmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return Message{}, fmt.Errorf("render verification email: %w", err)
	}
	return Message{To: to, Subject: "Verify Your Email Address", HTML: buf.String()}, nil
}

// renderTicket builds a created or assigned ticket email linking to appURL.
func renderTicket(n TicketNotification, appURL string) (Message, error) {
	var (
		tmpl    *template.Template
		subject string
	)
	switch n.Status {
	case StatusCreated:
		tmpl, subject = createdTmpl, "Ticket Created: "+n.Title
	case StatusAssigned:
		tmpl, subject = assignedTmpl, "New Ticket Assigned: "+n.Title
	default:
		return Message{}, apperrors.NewValidationError(
			fmt.Sprintf("unknown ticket notification status %q", n.Status),
			map[string]any{"ticket_id": n.TicketID},
		)
	}

	var buf bytes.Buffer
	err := tmpl.ExecuteTemplate(&buf, "layout", templateData{
		TicketNotification: n,
		ButtonURL:          appURL,
		ButtonLabel:        "View Ticket",
	})
	if err != nil {
		return Message{}, fmt.Errorf("render %s email: %w", n.Status, err)
	}
	return Message{To: n.To, Subject: subject, HTML: buf.String()}, nil
}
