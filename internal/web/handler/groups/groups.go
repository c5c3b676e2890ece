// Package groups implements the proxy endpoints manipulating the ReCodEx
// group hierarchy. Every action fetches a fresh snapshot of the hierarchy,
// applies the access policy on it, and only then proxies the mutation.
package groups

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/recodex/sis-binding/internal/auth"
	"github.com/recodex/sis-binding/internal/config"
	"github.com/recodex/sis-binding/internal/db/controller/events"
	"github.com/recodex/sis-binding/internal/db/models"
	"github.com/recodex/sis-binding/internal/policy"
	"github.com/recodex/sis-binding/internal/recodex"
	"github.com/recodex/sis-binding/internal/web/handler"
)

const (
	// Path is the base path of the group endpoints.
	Path = "/groups"
)

// Service is the groups handler service.
type Service struct {
	handler.Service
	cfg       *config.Config
	db        *gorm.DB
	clients   *handler.Clients
	validator *validator.Validate
}

// Handler is the groups handler.
var Handler = Service{}

// Init initializes the groups handler.
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
		router.Get("/student", s.Student)
		router.Get("/teacher", s.Teacher)
		router.Post(handler.RouterRootPath, s.Create)
		router.Post("/:id/bind", s.Bind)
		router.Post("/:id/unbind", s.Unbind)
		router.Post("/:id/join", s.Join)
		router.Post("/:id/attributes", s.AddAttribute)
		router.Delete("/:id/attributes", s.RemoveAttribute)
		router.Post("/:id/archived", s.Archive)
		router.Delete("/:id/archived", s.Unarchive)
	})

	return nil
}

// queryList collects a repeatable query parameter, accepting both the plain
// and the PHP-style bracketed key, with optional comma separation.
func queryList(c *fiber.Ctx, name string) []string {
	var res []string
	args := c.Context().QueryArgs()
	for _, key := range []string{name, name + "[]"} {
		for _, value := range args.PeekMulti(key) {
			for _, item := range strings.Split(string(value), ",") {
				if item = strings.TrimSpace(item); item != "" {
					res = append(res, item)
				}
			}
		}
	}

	return res
}

// snapshot fetches a fresh view of the group hierarchy as seen by the user.
func (s *Service) snapshot(c *fiber.Ctx) (map[string]*recodex.Group, error) {
	return s.clients.Recodex.Groups(c.Context(), auth.RecodexToken(c), auth.CurrentUser(c))
}

// Student returns the part of the hierarchy relevant for a student joining
// groups bound to the given scheduling events.
func (s *Service) Student(c *fiber.Ctx) error {
	groups, err := s.snapshot(c)
	if err != nil {
		return err
	}

	pruned, err := recodex.PruneForStudent(groups, queryList(c, "eventIds"))
	if err != nil {
		return err
	}
	roots, err := recodex.PopulateChildren(pruned)
	if err != nil {
		return err
	}

	return handler.SendSuccess(c, roots)
}

// Teacher returns the part of the hierarchy relevant for a teacher managing
// groups of the given courses and scheduling events.
func (s *Service) Teacher(c *fiber.Ctx) error {
	groups, err := s.snapshot(c)
	if err != nil {
		return err
	}

	pruned, err := recodex.PruneForTeacher(groups, queryList(c, "courseIds"), queryList(c, "eventIds"))
	if err != nil {
		return err
	}
	roots, err := recodex.PopulateChildren(pruned)
	if err != nil {
		return err
	}

	return handler.SendSuccess(c, roots)
}

// event loads a scheduling event by its SIS code and verifies the current
// user may manage groups for it.
func (s *Service) event(c *fiber.Ctx, sisID string) (*models.ScheduleEvent, error) {
	event, err := events.GetBySisID(s.db, sisID)
	if err != nil {
		return nil, err
	}

	allowed, err := policy.CanManageGroupsForEvent(s.db, auth.CurrentUser(c), event, time.Now())
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, fiber.NewError(
			fiber.StatusForbidden, "you do not have permissions to manage groups for the selected SIS event",
		)
	}

	return event, nil
}

type createRequest struct {
	// ParentID is the ReCodEx group under which the new group is created.
	ParentID string `json:"parentId" validate:"required"`
	// EventID is the SIS code of the scheduling event the group is created for.
	EventID string `json:"eventId" validate:"required"`
}

// Create makes a new student group in ReCodEx for a scheduling event. The
// group is named after the event, bound to it, and the creator becomes admin.
func (s *Service) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed request body")
	}
	if err := s.validator.Struct(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	event, err := s.event(c, req.EventID)
	if err != nil {
		return err
	}

	groups, err := s.snapshot(c)
	if err != nil {
		return err
	}
	if err := policy.GroupSuitableForEvent(groups, req.ParentID, event); err != nil {
		return err
	}

	user := auth.CurrentUser(c)
	token := auth.RecodexToken(c)
	names, descriptions := LocalizedTexts(event)

	group, err := s.clients.Recodex.CreateGroup(c.Context(), token, recodex.CreateGroupRequest{
		InstanceID:    user.InstanceID,
		ParentGroupID: req.ParentID,
		Names:         names,
		Descriptions:  descriptions,
		Detaining:     true,
	})
	if err != nil {
		return err
	}

	if err := s.clients.Recodex.AddGroupAttribute(
		c.Context(), token, group.ID, recodex.AttrGroupKey, event.SisID,
	); err != nil {
		return err
	}
	if err := s.clients.Recodex.AddAdmin(c.Context(), token, group.ID, user.ID); err != nil {
		return err
	}

	return handler.SendSuccess(c, group)
}

type bindRequest struct {
	// EventID is the SIS code of the scheduling event.
	EventID string `json:"eventId" validate:"required"`
}

func (s *Service) parseBind(c *fiber.Ctx) (*bindRequest, error) {
	var req bindRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "malformed request body")
	}
	if err := s.validator.Struct(&req); err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	return &req, nil
}

// Bind attaches an existing group to a scheduling event by setting the
// 'group' attribute on it.
func (s *Service) Bind(c *fiber.Ctx) error {
	groupID := c.Params("id")
	req, err := s.parseBind(c)
	if err != nil {
		return err
	}

	event, err := s.event(c, req.EventID)
	if err != nil {
		return err
	}

	groups, err := s.snapshot(c)
	if err != nil {
		return err
	}
	if err := policy.GroupSuitableForEvent(groups, groupID, event); err != nil {
		return err
	}
	if groups[groupID].HasGroupAttribute(event.SisID) {
		return fiber.NewError(fiber.StatusBadRequest, "the group is already bound to the selected SIS event")
	}

	if err := s.clients.Recodex.AddGroupAttribute(
		c.Context(), auth.RecodexToken(c), groupID, recodex.AttrGroupKey, event.SisID,
	); err != nil {
		return err
	}

	return handler.SendSuccess(c, "OK")
}

// Unbind detaches a group from a scheduling event.
func (s *Service) Unbind(c *fiber.Ctx) error {
	groupID := c.Params("id")
	req, err := s.parseBind(c)
	if err != nil {
		return err
	}

	event, err := s.event(c, req.EventID)
	if err != nil {
		return err
	}

	groups, err := s.snapshot(c)
	if err != nil {
		return err
	}
	if err := policy.CanAdministrateGroup(groups, groupID); err != nil {
		return err
	}
	if !groups[groupID].HasGroupAttribute(event.SisID) {
		return fiber.NewError(fiber.StatusBadRequest, "the group is not bound to the selected SIS event")
	}

	if err := s.clients.Recodex.RemoveGroupAttribute(
		c.Context(), auth.RecodexToken(c), groupID, recodex.AttrGroupKey, event.SisID,
	); err != nil {
		return err
	}

	return handler.SendSuccess(c, "OK")
}

// Join adds the current user as a student of a group bound to one of their
// scheduling events.
func (s *Service) Join(c *fiber.Ctx) error {
	groupID := c.Params("id")
	user := auth.CurrentUser(c)

	groups, err := s.snapshot(c)
	if err != nil {
		return err
	}
	if err := policy.CheckJoin(s.db, groups, groupID, user, time.Now()); err != nil {
		return err
	}

	if err := s.clients.Recodex.AddStudent(c.Context(), auth.RecodexToken(c), groupID, user.ID); err != nil {
		return err
	}

	return handler.SendSuccess(c, "OK")
}

type attributeRequest struct {
	// Key of the extension attribute (e.g. course, term, group).
	Key string `json:"key" validate:"required"`
	// Value of the attribute.
	Value string `json:"value" validate:"required"`
}

// editAttribute adds or removes an extension attribute of a group the user
// administrates.
func (s *Service) editAttribute(c *fiber.Ctx, add bool) error {
	groupID := c.Params("id")

	var req attributeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed request body")
	}
	if err := s.validator.Struct(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	groups, err := s.snapshot(c)
	if err != nil {
		return err
	}
	if err := policy.CanAdministrateGroup(groups, groupID); err != nil {
		return err
	}

	if add {
		err = s.clients.Recodex.AddGroupAttribute(c.Context(), auth.RecodexToken(c), groupID, req.Key, req.Value)
	} else {
		err = s.clients.Recodex.RemoveGroupAttribute(c.Context(), auth.RecodexToken(c), groupID, req.Key, req.Value)
	}
	if err != nil {
		return err
	}

	return handler.SendSuccess(c, "OK")
}

// AddAttribute attaches an extension attribute to a group.
func (s *Service) AddAttribute(c *fiber.Ctx) error {
	return s.editAttribute(c, true)
}

// RemoveAttribute detaches an extension attribute from a group.
func (s *Service) RemoveAttribute(c *fiber.Ctx) error {
	return s.editAttribute(c, false)
}

// setArchived flips the archived flag of a group the user administrates.
func (s *Service) setArchived(c *fiber.Ctx, archived bool) error {
	groupID := c.Params("id")

	groups, err := s.snapshot(c)
	if err != nil {
		return err
	}
	if err := policy.CanAdministrateGroup(groups, groupID); err != nil {
		return err
	}

	if err := s.clients.Recodex.SetArchived(c.Context(), auth.RecodexToken(c), groupID, archived); err != nil {
		return err
	}

	return handler.SendSuccess(c, "OK")
}

// Archive marks a group archived (read-only in ReCodEx).
func (s *Service) Archive(c *fiber.Ctx) error {
	return s.setArchived(c, true)
}

// Unarchive clears the archived flag of a group.
func (s *Service) Unarchive(c *fiber.Ctx) error {
	return s.setArchived(c, false)
}
