package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/recodex/sis-binding/internal/db/controller/users"
	"github.com/recodex/sis-binding/internal/db/models"
)

// Keys under which the middleware stores request-scoped data in fiber locals.
const (
	localsUser   = "authUser"
	localsClaims = "authClaims"
	localsToken  = "recodexToken"
)

// Middleware authenticates the request with a bearer token issued by this
// service. It loads the user and reassembles the delegated ReCodEx token into
// the request locals.
func Middleware(secret string, db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		tokenString, found := strings.CutPrefix(header, "Bearer ")
		if !found || tokenString == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "authentication token is missing")
		}

		claims, err := Verify(secret, tokenString)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "authentication token is invalid")
		}

		user, err := users.Get(db, claims.Subject)
		if err != nil {
			log.Warn().Err(err).Str("user", claims.Subject).Msg("token subject not found")

			return fiber.NewError(fiber.StatusUnauthorized, "authentication token is invalid")
		}

		c.Locals(localsUser, user)
		c.Locals(localsClaims, claims)
		c.Locals(localsToken, JoinToken(user.TokenPrefix, claims.TokenSuffix))

		return c.Next()
	}
}

// RequireScope guards an endpoint with a token scope. Must run after Middleware.
func RequireScope(scope string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := TokenClaims(c)
		if claims == nil || !claims.HasScope(scope) {
			return fiber.NewError(fiber.StatusForbidden, "token scope is insufficient")
		}

		return c.Next()
	}
}

// CurrentUser returns the authenticated user of the request, nil when the
// request did not pass the middleware.
func CurrentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals(localsUser).(*models.User)

	return user
}

// TokenClaims returns the verified claims of the request token.
func TokenClaims(c *fiber.Ctx) *Claims {
	claims, _ := c.Locals(localsClaims).(*Claims)

	return claims
}

// RecodexToken returns the reassembled delegated ReCodEx token of the request.
func RecodexToken(c *fiber.Ctx) string {
	token, _ := c.Locals(localsToken).(string)

	return token
}
