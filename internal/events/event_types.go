package events

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/spec-kit/ticket-triage/pkg/util/errorutil"
)

// Name identifies an event kind.
type Name string

const (
	EventTicketCreate Name = "ticket.create"
	EventUserSignup   Name = "user.signup"
)

// Event is an immutable, named message with a free-form payload.
type Event struct {
	ID        string         `json:"id"`
	Name      Name           `json:"name"`
	Data      map[string]any `json:"data"`
	Timestamp time.Time      `json:"ts"`
}

// NewEvent stamps a new event with an id and the current time.
func NewEvent(name Name, data map[string]any) Event {
	return Event{
		ID:        uuid.NewString(),
		Name:      name,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

// DecodeData copies the event payload into out.
func (e Event) DecodeData(out any) error {
	raw, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("encode event data: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apperrors.NewValidationError("malformed event data", map[string]any{
			"event": string(e.Name),
			"error": err.Error(),
		})
	}
	return nil
}

// TicketCreatePayload is the data carried by ticket.create.
type TicketCreatePayload struct {
	TicketID    string `json:"ticketId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	UserID      string `json:"userId"`
	UserEmail   string `json:"userEmail"`
	UserName    string `json:"userName"`
}

// Validate reports missing required fields.
func (p TicketCreatePayload) Validate() error {
	return requireFields(EventTicketCreate, map[string]string{
		"ticketId":    p.TicketID,
		"title":       p.Title,
		"description": p.Description,
		"userId":      p.UserID,
		"userEmail":   p.UserEmail,
		"userName":    p.UserName,
	})
}

// UserSignupPayload is the data carried by user.signup.
type UserSignupPayload struct {
	UserID            string `json:"userId"`
	Email             string `json:"email"`
	Name              string `json:"name"`
	VerificationToken string `json:"verificationToken"`
}

// Validate reports missing required fields.
func (p UserSignupPayload) Validate() error {
	return requireFields(EventUserSignup, map[string]string{
		"userId":            p.UserID,
		"email":             p.Email,
		"name":              p.Name,
		"verificationToken": p.VerificationToken,
	})
}

func requireFields(name Name, fields map[string]string) error {
	var missing []string
	for field, value := range fields {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return apperrors.NewValidationError(
		fmt.Sprintf("%s: missing %s", name, strings.Join(missing, ", ")),
		map[string]any{"event": string(name), "missing": missing},
	)
}
