// Package courses provides lookups and persistence for cached SIS courses.
package courses

import (
	"errors"

	"gorm.io/gorm"

	"github.com/recodex/sis-binding/internal/db/models"
)

// ErrDBNil is returned when the database connection is nil.
var ErrDBNil = errors.New("database connection is nil")

// FindByCode retrieves a course by its SIS code.
// A nil course with nil error means the course was not sighted yet.
func FindByCode(db *gorm.DB, code string) (*models.Course, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var course models.Course
	result := db.First(&course, "code = ?", code)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}

	return &course, nil
}

// Save persists the course (insert or update).
func Save(db *gorm.DB, course *models.Course) error {
	if db == nil {
		return ErrDBNil
	}

	return db.Save(course).Error
}
