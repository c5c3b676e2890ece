package handler

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/recodex/sis-binding/internal/config"
	"github.com/recodex/sis-binding/internal/db/models"
	"github.com/recodex/sis-binding/internal/recodex"
	"github.com/recodex/sis-binding/internal/sis"
)

// Clients bundles the remote API clients shared by all handlers.
type Clients struct {
	Recodex *recodex.Client
	Sis     *sis.Client
}

// Service is the interface for a web handler service.
type Service interface {
	Init(app *fiber.App, cfg *config.Config, db *gorm.DB, clients *Clients) error
}

// IsAdmin reports whether the user holds an administrator role in ReCodEx.
func IsAdmin(user *models.User) bool {
	return user != nil && user.Role == "superadmin"
}
