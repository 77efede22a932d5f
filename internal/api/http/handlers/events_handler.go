package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-triage/internal/api/dto"
	"github.com/spec-kit/ticket-triage/internal/auth"
	"github.com/spec-kit/ticket-triage/internal/events"
	apperrors "github.com/spec-kit/ticket-triage/pkg/util/errorutil"
)

// EventsHandler accepts events for asynchronous processing.
type EventsHandler struct {
	publisher events.Publisher
	known     map[events.Name]struct{}
}

// NewEventsHandler constructs handler accepting only the given event names.
func NewEventsHandler(publisher events.Publisher, known []events.Name) *EventsHandler {
	set := make(map[events.Name]struct{}, len(known))
	for _, name := range known {
		set[name] = struct{}{}
	}
	return &EventsHandler{publisher: publisher, known: set}
}

// Publish POST /api/events. Responds 202 once the event is enqueued.
func (h *EventsHandler) Publish(c *fiber.Ctx) error {
	var req dto.PublishEventRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	name := events.Name(strings.TrimSpace(req.Name))
	if name == "" {
		return apperrors.NewValidationError("name required", nil)
	}
	if _, ok := h.known[name]; !ok {
		return apperrors.NewValidationError("unknown event", map[string]any{"name": string(name)})
	}
	if principal, ok := auth.PrincipalFromContext(c); ok && !principal.Allows(string(name)) {
		return apperrors.NewDomainError(apperrors.CodeUnauthorized, "event key may not publish this event", http.StatusForbidden,
			map[string]any{"name": string(name)})
	}
	if req.Data == nil {
		req.Data = map[string]any{}
	}

	event := events.NewEvent(name, req.Data)
	if err := h.publisher.Publish(c.UserContext(), event); err != nil {
		return apperrors.NewDomainError(apperrors.CodeInternal, "event could not be enqueued", http.StatusServiceUnavailable, nil).WithCause(err)
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"data": dto.PublishEventResponse{ID: event.ID}})
}
