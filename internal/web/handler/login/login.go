// Package login implements the token-exchange login endpoint.
//
// A user logs in with a temporary token minted by ReCodEx for this extension.
// The temp token is exchanged for a full delegated token, which is split in
// half; one half is persisted, the other is embedded in the access token this
// service issues.
package login

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/recodex/sis-binding/internal/auth"
	"github.com/recodex/sis-binding/internal/config"
	"github.com/recodex/sis-binding/internal/db/controller/users"
	"github.com/recodex/sis-binding/internal/web/handler"
)

const (
	// Path is the base path of the login endpoints.
	Path = "/login"
)

// Service is the login handler service.
type Service struct {
	handler.Service
	cfg       *config.Config
	db        *gorm.DB
	clients   *handler.Clients
	validator *validator.Validate
}

// Handler is the login handler.
var Handler = Service{}

// Init initializes the login handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, clients *handler.Clients) error {
	if app == nil || cfg == nil || db == nil || clients == nil {
		return errors.New(handler.ErrNilACDFatalLogMsg)
	}

	s.cfg = cfg
	s.db = db
	s.clients = clients
	s.validator = validator.New()

	app.Route(Path, func(router fiber.Router) {
		router.Post(handler.RouterRootPath, s.Post)
		router.Get(
			"/refresh",
			auth.Middleware(cfg.Webserver.TokenSecret, db),
			auth.RequireScope(auth.ScopeRefresh),
			s.Refresh,
		)
	})

	return nil
}

type loginRequest struct {
	// Token is the temporary token issued by ReCodEx for this extension.
	Token string `json:"token" validate:"required"`
}

func (s *Service) tokenExpiry() time.Duration {
	return time.Duration(s.cfg.Webserver.TokenExpiryHours) * time.Hour
}

// Post exchanges a temporary ReCodEx token for an access token of this service.
func (s *Service) Post(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed request body")
	}
	if err := s.validator.Struct(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	instanceID, err := s.clients.Recodex.TempTokenInstance(req.Token)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "the token is not a valid temporary token of this extension")
	}

	fullToken, recodexUser, err := s.clients.Recodex.TokenAndUser(c.Context(), req.Token)
	if err != nil {
		return err
	}

	user, err := users.Get(s.db, recodexUser.ID())
	if errors.Is(err, users.ErrUserNotFound) {
		user, err = recodexUser.NewLocalUser(instanceID)
		if err != nil {
			return err
		}
		log.Info().Str("user", user.ID).Msg("first login, new user cached")
	} else if err != nil {
		return err
	} else if _, err = recodexUser.ApplyTo(user); err != nil {
		return err
	}

	prefix, suffix, err := auth.SplitToken(fullToken)
	if err != nil {
		return err
	}
	user.TokenPrefix = prefix

	if err := users.Save(s.db, user); err != nil {
		return err
	}

	accessToken, err := auth.Issue(
		s.cfg.Webserver.TokenSecret, user.ID, suffix,
		[]string{auth.ScopeMaster, auth.ScopeRefresh}, s.tokenExpiry(),
	)
	if err != nil {
		return err
	}

	return handler.SendSuccess(c, fiber.Map{
		"accessToken": accessToken,
		"user":        user,
	})
}

// Refresh issues a fresh access token for the current user. The delegated
// token halves stay as they are, only the expiration moves.
func (s *Service) Refresh(c *fiber.Ctx) error {
	user := auth.CurrentUser(c)
	claims := auth.TokenClaims(c)

	accessToken, err := auth.Issue(
		s.cfg.Webserver.TokenSecret, user.ID, claims.TokenSuffix, claims.Scopes, s.tokenExpiry(),
	)
	if err != nil {
		return err
	}

	return handler.SendSuccess(c, fiber.Map{
		"accessToken": accessToken,
		"user":        user,
	})
}
