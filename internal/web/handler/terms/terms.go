// Package terms implements the administrator-managed term CRUD endpoints.
package terms

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/recodex/sis-binding/internal/auth"
	"github.com/recodex/sis-binding/internal/config"
	termstore "github.com/recodex/sis-binding/internal/db/controller/terms"
	"github.com/recodex/sis-binding/internal/db/models"
	"github.com/recodex/sis-binding/internal/web/handler"
)

const (
	// Path is the base path of the term endpoints.
	Path = "/terms"
)

// Service is the terms handler service.
type Service struct {
	handler.Service
	cfg       *config.Config
	db        *gorm.DB
	validator *validator.Validate
}

// Handler is the terms handler.
var Handler = Service{}

// Init initializes the terms handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, clients *handler.Clients) error {
	if app == nil || cfg == nil || db == nil || clients == nil {
		return errors.New(handler.ErrNilACDFatalLogMsg)
	}

	s.cfg = cfg
	s.db = db
	s.validator = validator.New()

	app.Route(Path, func(router fiber.Router) {
		router.Use(auth.Middleware(cfg.Webserver.TokenSecret, db))
		router.Use(auth.RequireScope(auth.ScopeMaster))
		router.Get(handler.RouterRootPath, s.List)
		router.Post(handler.RouterRootPath, s.Create)
		router.Get("/:id", s.Detail)
		router.Post("/:id", s.Update)
		router.Delete("/:id", s.Remove)
	})

	return nil
}

// termDates carries the date parameters shared by create and update requests.
// All values are unix timestamps; zero means not provided.
type termDates struct {
	// StudentsFrom opens the window in which students can enroll groups.
	StudentsFrom int64 `json:"studentsFrom" validate:"required"`
	// StudentsUntil closes the student enrollment window.
	StudentsUntil int64 `json:"studentsUntil" validate:"required"`
	// TeachersFrom opens the window in which teachers can create groups.
	TeachersFrom int64 `json:"teachersFrom" validate:"required"`
	// TeachersUntil closes the teacher window.
	TeachersUntil int64 `json:"teachersUntil" validate:"required"`
	// Beginning is when the term officially begins (optional).
	Beginning int64 `json:"beginning"`
	// End is when the term officially ends (optional).
	End int64 `json:"end"`
	// ArchiveAfter is when group archiving should be suggested (optional).
	ArchiveAfter int64 `json:"archiveAfter"`
}

type createTermRequest struct {
	termDates

	// Year is the calendar year in which the academic year begins.
	Year int `json:"year" validate:"required,gte=2000,lte=2200"`
	// Term is 1 for the winter term, 2 for the summer term.
	Term int `json:"term" validate:"required,gte=1,lte=2"`
}

// boundedDate converts a unix timestamp into a time within the sanity bounds
// of the term's year. Zero timestamps yield nil.
func boundedDate(name string, ts int64, minTs, maxTs time.Time) (*time.Time, error) {
	if ts <= 0 {
		return nil, nil
	}

	res := time.Unix(ts, 0)
	if res.Before(minTs) {
		return nil, fiber.NewError(fiber.StatusBadRequest,
			fmt.Sprintf("date '%s' must not precede %s", name, minTs.Format(time.DateOnly)))
	}
	if !maxTs.IsZero() && res.After(maxTs) {
		return nil, fiber.NewError(fiber.StatusBadRequest,
			fmt.Sprintf("date '%s' must not exceed %s", name, maxTs.Format(time.DateOnly)))
	}

	return &res, nil
}

// applyDates validates the date parameters against the term's year and sets
// them on the entity. Advertisement windows are mandatory, the official
// begin/end dates must come in a pair, and the archivation suggestion must
// come after both advertisement windows close.
func applyDates(term *models.Term, dates *termDates) error {
	minTs := time.Date(term.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
	maxTs := time.Date(term.Year+1, time.December, 31, 23, 59, 59, 0, time.UTC)

	begin, err := boundedDate("beginning", dates.Beginning, minTs, maxTs)
	if err != nil {
		return err
	}
	end, err := boundedDate("end", dates.End, minTs, maxTs)
	if err != nil {
		return err
	}
	if (begin == nil) != (end == nil) {
		return fiber.NewError(fiber.StatusBadRequest, "both 'beginning' and 'end' dates must be provided together")
	}
	if begin != nil && begin.After(*end) {
		return fiber.NewError(fiber.StatusBadRequest, "the 'beginning' date cannot be after the 'end' date")
	}
	term.Beginning = begin
	term.End = end

	studentsFrom, err := boundedDate("studentsFrom", dates.StudentsFrom, minTs, maxTs)
	if err != nil {
		return err
	}
	studentsUntil, err := boundedDate("studentsUntil", dates.StudentsUntil, minTs, maxTs)
	if err != nil {
		return err
	}
	if studentsFrom == nil || studentsUntil == nil {
		return fiber.NewError(fiber.StatusBadRequest, "both 'studentsFrom' and 'studentsUntil' dates must be provided")
	}
	if err := term.SetStudentsAdvertisement(*studentsFrom, *studentsUntil); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	teachersFrom, err := boundedDate("teachersFrom", dates.TeachersFrom, minTs, maxTs)
	if err != nil {
		return err
	}
	teachersUntil, err := boundedDate("teachersUntil", dates.TeachersUntil, minTs, maxTs)
	if err != nil {
		return err
	}
	if teachersFrom == nil || teachersUntil == nil {
		return fiber.NewError(fiber.StatusBadRequest, "both 'teachersFrom' and 'teachersUntil' dates must be provided")
	}
	if err := term.SetTeachersAdvertisement(*teachersFrom, *teachersUntil); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	archiveAfter, err := boundedDate("archiveAfter", dates.ArchiveAfter, minTs, time.Time{})
	if err != nil {
		return err
	}
	if archiveAfter != nil && (archiveAfter.Before(*studentsUntil) || archiveAfter.Before(*teachersUntil)) {
		return fiber.NewError(fiber.StatusBadRequest,
			"the 'archiveAfter' date should be after the advertisement periods for students and teachers")
	}
	term.ArchiveAfter = archiveAfter

	return nil
}

func requireAdmin(c *fiber.Ctx) error {
	if !handler.IsAdmin(auth.CurrentUser(c)) {
		return fiber.NewError(fiber.StatusForbidden, "you do not have permissions to manage terms")
	}

	return nil
}

// List returns all terms.
func (s *Service) List(c *fiber.Ctx) error {
	all, err := termstore.FindAll(s.db)
	if err != nil {
		return err
	}

	return handler.SendSuccess(c, all)
}

// Detail returns one term.
func (s *Service) Detail(c *fiber.Ctx) error {
	term, err := termstore.Get(s.db, c.Params("id"))
	if err != nil {
		return err
	}

	return handler.SendSuccess(c, term)
}

// Create registers a new term.
func (s *Service) Create(c *fiber.Ctx) error {
	if err := requireAdmin(c); err != nil {
		return err
	}

	var req createTermRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed request body")
	}
	if err := s.validator.Struct(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	term := &models.Term{
		ID:   uuid.NewString(),
		Year: req.Year,
		Term: req.Term,
	}
	if err := applyDates(term, &req.termDates); err != nil {
		return err
	}

	if err := termstore.Create(s.db, term); err != nil {
		return err
	}

	return handler.SendSuccess(c, term)
}

// Update changes the dates of an existing term. The year-term pair is immutable.
func (s *Service) Update(c *fiber.Ctx) error {
	if err := requireAdmin(c); err != nil {
		return err
	}

	term, err := termstore.Get(s.db, c.Params("id"))
	if err != nil {
		return err
	}

	var req termDates
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed request body")
	}
	if err := s.validator.Struct(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	if err := applyDates(term, &req); err != nil {
		return err
	}

	if err := termstore.Save(s.db, term); err != nil {
		return err
	}

	return handler.SendSuccess(c, term)
}

// Remove deletes a term.
func (s *Service) Remove(c *fiber.Ctx) error {
	if err := requireAdmin(c); err != nil {
		return err
	}

	if err := termstore.Delete(s.db, c.Params("id")); err != nil {
		return err
	}

	return handler.SendSuccess(c, "OK")
}
