package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/spec-kit/ticket-triage/pkg/util/errorutil"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", time.Hour)

	token, expiresAt, err := tm.GenerateToken("signup-service", "user.signup")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "signup-service", claims.Publisher)
	assert.Equal(t, []string{"user.signup"}, claims.Events)
}

func TestParseTokenRejects(t *testing.T) {
	token, _, err := NewTokenManager("other", 0).GenerateToken("x")
	require.NoError(t, err)

	_, err = NewTokenManager("secret", 0).ParseToken(token)
	assert.Error(t, err)

	expired, _, err := NewTokenManager("secret", -time.Minute).GenerateToken("x")
	require.NoError(t, err)
	_, err = NewTokenManager("secret", 0).ParseToken(expired)
	assert.Error(t, err)
}

func TestPrincipalAllows(t *testing.T) {
	assert.True(t, (&Principal{}).Allows("ticket.create"))
	assert.True(t, (*Principal)(nil).Allows("ticket.create"))

	p := &Principal{Events: []string{"user.signup"}}
	assert.True(t, p.Allows("user.signup"))
	assert.False(t, p.Allows("ticket.create"))
}

func newTestApp(mw *EventKeyMiddleware) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			de := apperrors.ToDomainError(err)
			return c.Status(de.HTTPStatus).SendString(de.Code)
		},
	})
	app.Post("/events", mw.Handle, func(c *fiber.Ctx) error {
		p, ok := PrincipalFromContext(c)
		if !ok {
			return c.SendString("anonymous")
		}
		return c.SendString(p.Publisher)
	})
	return app
}

func TestEventKeyMiddleware(t *testing.T) {
	tm := NewTokenManager("secret", time.Hour)
	app := newTestApp(NewEventKeyMiddleware(tm))
	token, _, err := tm.GenerateToken("ci")
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"malformed", "Token abc", http.StatusUnauthorized},
		{"bad token", "Bearer abc", http.StatusUnauthorized},
		{"valid", "Bearer " + token, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/events", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestEventKeyMiddlewareDisabled(t *testing.T) {
	app := newTestApp(NewEventKeyMiddleware(nil))

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/events", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
