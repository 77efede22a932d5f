package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/ticket-triage/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Principal is the publisher behind a verified event key.
type Principal struct {
	Publisher string
	Events    []string
}

// Allows reports whether the key may publish the named event.
func (p *Principal) Allows(name string) bool {
	if p == nil || len(p.Events) == 0 {
		return true
	}
	for _, allowed := range p.Events {
		if allowed == name {
			return true
		}
	}
	return false
}

// EventKeyMiddleware verifies event keys on trigger routes.
type EventKeyMiddleware struct {
	tokens *TokenManager
}

// NewEventKeyMiddleware constructs middleware. With a nil manager every request passes.
func NewEventKeyMiddleware(tokens *TokenManager) *EventKeyMiddleware {
	return &EventKeyMiddleware{tokens: tokens}
}

// Handle enforces a valid bearer event key when a signing key is configured.
func (m *EventKeyMiddleware) Handle(c *fiber.Ctx) error {
	if m.tokens == nil {
		return c.Next()
	}

	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid event key")
	}

	c.Locals(principalKey, &Principal{Publisher: claims.Publisher, Events: claims.Events})
	return c.Next()
}

// PrincipalFromContext retrieves the verified publisher, if any.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
