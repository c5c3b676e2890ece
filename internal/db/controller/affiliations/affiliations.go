// Package affiliations manages the cached user-event enrollment relations.
package affiliations

import (
	"errors"

	"gorm.io/gorm"

	"github.com/recodex/sis-binding/internal/db/models"
)

// ErrDBNil is returned when the database connection is nil.
var ErrDBNil = errors.New("database connection is nil")

// Get retrieves the affiliation of a user to a scheduling event.
// A nil affiliation with nil error means the user has no relation to the event.
func Get(db *gorm.DB, event *models.ScheduleEvent, user *models.User) (*models.Affiliation, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var affiliation models.Affiliation
	result := db.First(&affiliation, "event_id = ? AND user_id = ?", event.ID, user.ID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}

	return &affiliation, nil
}

// Clear removes all affiliations of a user within one term.
// This is necessary before a re-sync, to avoid lingering affiliations when
// the user changes course/event enrollment in SIS.
func Clear(db *gorm.DB, user *models.User, term *models.Term) error {
	if db == nil {
		return ErrDBNil
	}

	return db.
		Where("user_id = ? AND term_id = ?", user.ID, term.ID).
		Delete(&models.Affiliation{}).Error
}

// CountForUser returns the number of affiliation rows of a user (all terms).
func CountForUser(db *gorm.DB, user *models.User) (int64, error) {
	if db == nil {
		return 0, ErrDBNil
	}

	var count int64
	err := db.Model(&models.Affiliation{}).Where("user_id = ?", user.ID).Count(&count).Error

	return count, err
}

// Save persists the affiliation (insert or update).
func Save(db *gorm.DB, affiliation *models.Affiliation) error {
	if db == nil {
		return ErrDBNil
	}

	return db.Save(affiliation).Error
}
