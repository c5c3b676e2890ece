// Package terms provides CRUD operations for administrator-managed terms.
package terms

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/recodex/sis-binding/internal/db/models"
)

var (
	// ErrTermNotFound is returned when a term does not exist.
	ErrTermNotFound = errors.New("term not found")
	// ErrTermAlreadyExists is returned when creating a term for an already covered year-term pair.
	ErrTermAlreadyExists = errors.New("term already exists")
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
)

// Get retrieves a term by its ID.
func Get(db *gorm.DB, id string) (*models.Term, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var term models.Term
	result := db.First(&term, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrTermNotFound
		}
		return nil, result.Error
	}

	return &term, nil
}

// Find retrieves a term by academic year and term number.
// A nil term with nil error means the pair is not covered.
func Find(db *gorm.DB, year, term int) (*models.Term, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var t models.Term
	result := db.First(&t, "year = ? AND term = ?", year, term)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}

	return &t, nil
}

// FindAll returns all terms ordered from the most recent.
func FindAll(db *gorm.DB) ([]models.Term, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var result []models.Term
	if err := db.Order("year DESC, term DESC").Find(&result).Error; err != nil {
		return nil, err
	}

	return result, nil
}

// FindAllActive returns all terms whose student or teacher advertisement
// window contains the given instant.
func FindAllActive(db *gorm.DB, now time.Time) ([]models.Term, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var result []models.Term
	err := db.
		Where("(students_from <= ? AND students_until >= ?) OR (teachers_from <= ? AND teachers_until >= ?)",
			now, now, now, now).
		Find(&result).Error
	if err != nil {
		return nil, err
	}

	return result, nil
}

// Create inserts a new term; the year-term pair must not be covered yet.
func Create(db *gorm.DB, term *models.Term) error {
	if db == nil {
		return ErrDBNil
	}

	existing, err := Find(db, term.Year, term.Term)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrTermAlreadyExists
	}

	return db.Create(term).Error
}

// Save persists an updated term.
func Save(db *gorm.DB, term *models.Term) error {
	if db == nil {
		return ErrDBNil
	}

	return db.Save(term).Error
}

// Delete removes a term by ID.
func Delete(db *gorm.DB, id string) error {
	if db == nil {
		return ErrDBNil
	}

	result := db.Delete(&models.Term{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTermNotFound
	}

	return nil
}
