package web

import (
	"strings"
	"unicode/utf8"

	"github.com/dukex/nodeflow/pkg/models"
	"github.com/gofiber/fiber/v3"
)

const principalLocal = "principal"

// RequirePrincipal reads the principal set by the auth gateway from header and
// rejects requests without one, or with one no store could hold.
func RequirePrincipal(header string) fiber.Handler {
	return func(c fiber.Ctx) error {
		principal := strings.TrimSpace(c.Get(header))
		if principal == "" || utf8.RuneCountInString(principal) > models.MaxFieldLength || !models.ValidText(principal) {
			return unauthenticated(c)
		}

		c.Locals(principalLocal, principal)

		return c.Next()
	}
}

// Principal returns the principal stored by RequirePrincipal.
func Principal(c fiber.Ctx) string {
	principal, _ := c.Locals(principalLocal).(string)

	return principal
}
