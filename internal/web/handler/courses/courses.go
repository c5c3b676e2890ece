// Package courses implements the scheduling event listing endpoint.
package courses

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/recodex/sis-binding/internal/auth"
	"github.com/recodex/sis-binding/internal/config"
	"github.com/recodex/sis-binding/internal/db/controller/events"
	termstore "github.com/recodex/sis-binding/internal/db/controller/terms"
	"github.com/recodex/sis-binding/internal/db/models"
	"github.com/recodex/sis-binding/internal/sync"
	"github.com/recodex/sis-binding/internal/web/handler"
)

const (
	// Path is the base path of the course endpoints.
	Path = "/courses"
)

// Service is the courses handler service.
type Service struct {
	handler.Service
	cfg       *config.Config
	db        *gorm.DB
	clients   *handler.Clients
	validator *validator.Validate
}

// Handler is the courses handler.
var Handler = Service{}

// Init initializes the courses handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, clients *handler.Clients) error {
	if app == nil || cfg == nil || db == nil || clients == nil {
		return errors.New(handler.ErrNilACDFatalLogMsg)
	}

	s.cfg = cfg
	s.db = db
	s.clients = clients
	s.validator = validator.New()

	app.Route(Path, func(router fiber.Router) {
		router.Use(auth.Middleware(cfg.Webserver.TokenSecret, db))
		router.Use(auth.RequireScope(auth.ScopeMaster))
		router.Post(handler.RouterRootPath, s.List)
	})

	return nil
}

type listRequest struct {
	// Year of the requested term.
	Year int `json:"year" validate:"required"`
	// Term number of the requested term (1=winter, 2=summer).
	Term int `json:"term" validate:"required,gte=1,lte=2"`
	// Affiliation filters the listing to 'student' or 'teacher' courses.
	// Empty means all eligible affiliations.
	Affiliation string `json:"affiliation" validate:"omitempty,oneof=student teacher"`
	// Expiration is the tolerated age of the cached events in days.
	// Absent means no refetching, zero forces a refetch.
	Expiration *int `json:"expiration"`
}

// affiliationTypes resolves which affiliations the user may list; teacher
// courses are hidden from plain students.
func affiliationTypes(user *models.User, affiliation string) ([]models.AffiliationType, error) {
	canTeacher := user.Role != "student"
	if affiliation == "teacher" && !canTeacher {
		return nil, fiber.NewError(fiber.StatusForbidden, "you are not allowed to view teacher courses")
	}

	var res []models.AffiliationType
	if affiliation == "" || affiliation == "student" {
		res = append(res, models.AffiliationStudent)
	}
	if canTeacher && (affiliation == "" || affiliation == "teacher") {
		// the UI does not distinguish teachers from guarantors
		res = append(res, models.AffiliationTeacher, models.AffiliationGuarantor)
	}

	return res, nil
}

// List returns the scheduling events of the given term that apply to the
// current user, keyed by affiliation type. The expiration parameter controls
// whether the events are refetched from SIS first.
func (s *Service) List(c *fiber.Ctx) error {
	user := auth.CurrentUser(c)

	var req listRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed request body")
	}
	if err := s.validator.Struct(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	term, err := termstore.Find(s.db, req.Year, req.Term)
	if err != nil {
		return err
	}
	if term == nil {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("term %d-%d not found", req.Year, req.Term))
	}

	affiliations, err := affiliationTypes(user, req.Affiliation)
	if err != nil {
		return err
	}

	res := fiber.Map{}
	if sync.RefetchNeeded(user.SisEventsLoaded, req.Expiration, time.Now()) {
		if err := sync.RefetchCourses(c.Context(), s.db, s.clients.Sis, user); err != nil {
			return err
		}
		res["refetched"] = true
	}

	for _, affiliation := range affiliations {
		list, err := events.AllOfUser(s.db, user, term, []models.AffiliationType{affiliation})
		if err != nil {
			return err
		}
		res[string(affiliation)] = list
	}

	return handler.SendSuccess(c, res)
}
