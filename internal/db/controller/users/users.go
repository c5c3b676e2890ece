// Package users provides lookups and persistence for cached ReCodEx users.
package users

import (
	"errors"

	"gorm.io/gorm"

	"github.com/recodex/sis-binding/internal/db/models"
)

var (
	// ErrUserNotFound is returned when a user is not cached locally.
	ErrUserNotFound = errors.New("user not found")
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
)

// Get retrieves a user by the ReCodEx ID.
func Get(db *gorm.DB, id string) (*models.User, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var user models.User
	result := db.First(&user, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, result.Error
	}

	return &user, nil
}

// GetBySisID retrieves a user by the university personal identifier.
// A nil user with nil error means no local user references that SIS ID.
func GetBySisID(db *gorm.DB, sisID string) (*models.User, error) {
	if db == nil {
		return nil, ErrDBNil
	}
	if sisID == "" {
		return nil, nil
	}

	var user models.User
	result := db.First(&user, "sis_id = ?", sisID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}

	return &user, nil
}

// Save persists the user (insert or update).
func Save(db *gorm.DB, user *models.User) error {
	if db == nil {
		return ErrDBNil
	}

	return db.Save(user).Error
}
