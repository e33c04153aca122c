package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/blockhaven/ticketd/internal/domain"
	"github.com/blockhaven/ticketd/pkg/util"
)

const sessionKey = "session"

// Session is the authenticated caller context attached to each request. The
// identity is taken from the token as issued; no account lookup happens per
// request, the bridge already vouched for the player at session open.
type Session struct {
	Actor  domain.Actor
	Server string
}

// Middleware validates bearer tokens and attaches the session.
type Middleware struct {
	tokens *TokenManager
}

// NewMiddleware constructs middleware.
func NewMiddleware(tokens *TokenManager) *Middleware {
	return &Middleware{tokens: tokens}
}

// Handle enforces authentication for protected routes.
func (m *Middleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return util.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return util.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return util.NewUnauthorized("invalid token")
	}

	session := Session{
		Actor:  domain.Actor{Name: claims.Name, Elevated: claims.Elevated},
		Server: claims.Server,
	}
	c.Locals(sessionKey, session)
	return c.Next()
}

// SessionFromContext retrieves the authenticated session.
func SessionFromContext(c *fiber.Ctx) (Session, bool) {
	val := c.Locals(sessionKey)
	if val == nil {
		return Session{}, false
	}
	session, ok := val.(Session)
	return session, ok
}
