// Package sisusers provides lookups and persistence for cached SIS personal records.
package sisusers

import (
	"errors"

	"gorm.io/gorm"

	"github.com/recodex/sis-binding/internal/db/models"
)

// ErrDBNil is returned when the database connection is nil.
var ErrDBNil = errors.New("database connection is nil")

// Get retrieves a cached SIS personal record by the university ID.
// A nil record with nil error means the record was never fetched.
func Get(db *gorm.DB, ukco string) (*models.SisUser, error) {
	if db == nil {
		return nil, ErrDBNil
	}
	if ukco == "" {
		return nil, nil
	}

	var user models.SisUser
	result := db.First(&user, "id = ?", ukco)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}

	return &user, nil
}

// Save persists the SIS personal record (insert or update).
func Save(db *gorm.DB, user *models.SisUser) error {
	if db == nil {
		return ErrDBNil
	}

	return db.Save(user).Error
}
