// Package changelogs appends and lists immutable user sync audit records.
package changelogs

import (
	"encoding/json"
	"errors"

	"gorm.io/gorm"

	"github.com/recodex/sis-binding/internal/db/models"
)

// ErrDBNil is returned when the database connection is nil.
var ErrDBNil = errors.New("database connection is nil")

// Append creates a new changelog entry for the user with the given diff.
// The diff maps field names to old/new value pairs and is stored as JSON.
func Append(db *gorm.DB, user *models.User, diff any) error {
	if db == nil {
		return ErrDBNil
	}

	encoded, err := json.Marshal(diff)
	if err != nil {
		return err
	}

	return db.Create(&models.UserChangelog{
		UserID: user.ID,
		Diff:   encoded,
	}).Error
}

// AllForUser returns the changelog entries of one user, newest first.
func AllForUser(db *gorm.DB, user *models.User) ([]models.UserChangelog, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var result []models.UserChangelog
	err := db.Where("user_id = ?", user.ID).Order("created_at DESC, id DESC").Find(&result).Error
	if err != nil {
		return nil, err
	}

	return result, nil
}

// CountForUser returns the number of changelog entries of one user.
func CountForUser(db *gorm.DB, user *models.User) (int64, error) {
	if db == nil {
		return 0, ErrDBNil
	}

	var count int64
	err := db.Model(&models.UserChangelog{}).Where("user_id = ?", user.ID).Count(&count).Error

	return count, err
}
