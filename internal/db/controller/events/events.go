// Package events provides lookups and persistence for cached scheduling events.
package events

import (
	"errors"

	"gorm.io/gorm"

	"github.com/recodex/sis-binding/internal/db/models"
)

var (
	// ErrEventNotFound is returned when a scheduling event is not cached locally.
	ErrEventNotFound = errors.New("scheduling event not found")
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
)

// FindBySisID retrieves a scheduling event by its SIS code.
// A nil event with nil error means the event was not sighted yet.
func FindBySisID(db *gorm.DB, sisID string) (*models.ScheduleEvent, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var event models.ScheduleEvent
	result := db.Preload("Term").Preload("Course").First(&event, "sis_id = ?", sisID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}

	return &event, nil
}

// GetBySisID retrieves a scheduling event by its SIS code, failing when absent.
func GetBySisID(db *gorm.DB, sisID string) (*models.ScheduleEvent, error) {
	event, err := FindBySisID(db, sisID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, ErrEventNotFound
	}

	return event, nil
}

// AllOfUser returns all scheduling events the user is affiliated with,
// optionally filtered by term and affiliation types.
func AllOfUser(
	db *gorm.DB,
	user *models.User,
	term *models.Term,
	affiliations []models.AffiliationType,
) ([]models.ScheduleEvent, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	query := db.Model(&models.ScheduleEvent{}).
		Joins("JOIN affiliations ON affiliations.event_id = schedule_events.id").
		Where("affiliations.user_id = ?", user.ID).
		Preload("Term").Preload("Course")

	if term != nil {
		query = query.Where("schedule_events.term_id = ?", term.ID)
	}

	if len(affiliations) > 0 {
		query = query.Where("affiliations.type IN ?", affiliations)
	}

	var result []models.ScheduleEvent
	if err := query.Find(&result).Error; err != nil {
		return nil, err
	}

	return result, nil
}

// Save persists the scheduling event (insert or update).
func Save(db *gorm.DB, event *models.ScheduleEvent) error {
	if db == nil {
		return ErrDBNil
	}

	return db.Save(event).Error
}
