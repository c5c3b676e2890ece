// Package users implements the user detail and SIS synchronization endpoints.
package users

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/recodex/sis-binding/internal/auth"
	"github.com/recodex/sis-binding/internal/config"
	"github.com/recodex/sis-binding/internal/db/controller/affiliations"
	"github.com/recodex/sis-binding/internal/db/controller/changelogs"
	"github.com/recodex/sis-binding/internal/db/controller/sisusers"
	userstore "github.com/recodex/sis-binding/internal/db/controller/users"
	"github.com/recodex/sis-binding/internal/db/models"
	"github.com/recodex/sis-binding/internal/sync"
	"github.com/recodex/sis-binding/internal/web/handler"
)

const (
	// Path is the base path of the user endpoints.
	Path = "/users"
)

// Service is the users handler service.
type Service struct {
	handler.Service
	cfg     *config.Config
	db      *gorm.DB
	clients *handler.Clients
}

// Handler is the users handler.
var Handler = Service{}

// Init initializes the users handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, clients *handler.Clients) error {
	if app == nil || cfg == nil || db == nil || clients == nil {
		return errors.New(handler.ErrNilACDFatalLogMsg)
	}

	s.cfg = cfg
	s.db = db
	s.clients = clients

	app.Route(Path, func(router fiber.Router) {
		router.Use(auth.Middleware(cfg.Webserver.TokenSecret, db))
		router.Use(auth.RequireScope(auth.ScopeMaster))
		router.Get("/:id", s.Detail)
		router.Post("/:id/sis-user", s.SisUser)
		router.Post("/:id/sync-sis", s.SyncSis)
	})

	return nil
}

// target resolves the user addressed by the route. Users may access their own
// record, administrators may access anyone.
func (s *Service) target(c *fiber.Ctx) (*models.User, error) {
	current := auth.CurrentUser(c)
	id := c.Params("id")
	if id == current.ID {
		return current, nil
	}
	if !handler.IsAdmin(current) {
		return nil, fiber.NewError(
			fiber.StatusForbidden, "you do not have permissions to access the selected user",
		)
	}

	return userstore.Get(s.db, id)
}

// Detail returns the cached user record together with the sizes of the
// synchronized affiliation cache and the profile changelog.
func (s *Service) Detail(c *fiber.Ctx) error {
	user, err := s.target(c)
	if err != nil {
		return err
	}

	affiliationCount, err := affiliations.CountForUser(s.db, user)
	if err != nil {
		return err
	}
	changelogCount, err := changelogs.CountForUser(s.db, user)
	if err != nil {
		return err
	}

	return handler.SendSuccess(c, fiber.Map{
		"user":             user,
		"affiliationCount": affiliationCount,
		"changelogCount":   changelogCount,
	})
}

type sisUserRequest struct {
	// Expiration is the tolerated age of the cached record in days.
	// Absent means no refetching, zero forces a refetch.
	Expiration *int `json:"expiration"`
}

// SisUser returns the SIS personal record of the user, refetching it from the
// SIS when the expiration demands it. A SIS outage is reported as failed:true
// while the cached record is still served.
func (s *Service) SisUser(c *fiber.Ctx) error {
	user, err := s.target(c)
	if err != nil {
		return err
	}

	var req sisUserRequest
	if err := c.BodyParser(&req); err != nil && !errors.Is(err, fiber.ErrUnprocessableEntity) {
		return fiber.NewError(fiber.StatusBadRequest, "malformed request body")
	}

	result, err := sync.FetchSisUser(c.Context(), s.db, s.clients.Sis, user, req.Expiration)
	if err != nil {
		return err
	}

	return handler.SendSuccess(c, fiber.Map{
		"sisUser": result.SisUser,
		"updated": result.Updated,
		"failed":  result.Failed,
	})
}

// SyncSis pushes the cached SIS personal data of the user to ReCodEx.
func (s *Service) SyncSis(c *fiber.Ctx) error {
	user, err := s.target(c)
	if err != nil {
		return err
	}

	sisUser, err := sisusers.Get(s.db, user.SisIDValue())
	if err != nil {
		return err
	}
	if sisUser == nil {
		return fiber.NewError(fiber.StatusBadRequest, "SIS personal data were not fetched for this user yet")
	}

	result, err := sync.SyncProfile(c.Context(), s.db, s.clients.Recodex, auth.RecodexToken(c), user, sisUser)
	if err != nil {
		return err
	}

	if result.Canceled {
		return handler.SendSuccess(c, fiber.Map{
			"user":     user,
			"sisUser":  sisUser,
			"canceled": true,
		})
	}

	return handler.SendSuccess(c, fiber.Map{
		"user":    user,
		"sisUser": sisUser,
		"updated": result.Updated,
	})
}
