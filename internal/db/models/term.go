package models

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// ErrInvalidDateRange is returned when a from-until pair is reversed.
var ErrInvalidDateRange = errors.New("in the date range from-until, the 'from' date must not be after the 'until' date")

// Term numbers as used by SIS.
const (
	TermWinter = 1
	TermSummer = 2
)

// Term represents one semester with all important dates, especially the
// ranges from-until it is advertised to students/teachers. Terms are managed
// by administrators; the sync engine never creates them.
type Term struct {
	// ID is a locally generated UUID.
	ID string `gorm:"primaryKey;size:36"`
	// Year is the calendar year in which the academic year begins.
	Year int `gorm:"uniqueIndex:idx_year_term;not null"`
	// Term is 1 for the winter term, 2 for the summer term.
	Term int `gorm:"uniqueIndex:idx_year_term;not null"`
	// Beginning is when the term officially begins (optional).
	Beginning *time.Time
	// End is when the term officially ends (optional).
	End *time.Time
	// StudentsFrom opens the window in which students can enroll groups.
	StudentsFrom time.Time `gorm:"not null"`
	// StudentsUntil closes the student enrollment window.
	StudentsUntil time.Time `gorm:"not null"`
	// TeachersFrom opens the window in which teachers can create groups.
	TeachersFrom time.Time `gorm:"not null"`
	// TeachersUntil closes the teacher window.
	TeachersUntil time.Time `gorm:"not null"`
	// ArchiveAfter is when semi-automated group archiving should be suggested (optional).
	ArchiveAfter *time.Time
	// CreatedAt is the creation timestamp (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the last update timestamp (managed by GORM).
	UpdatedAt time.Time
}

// YearTermKey returns the term identification in the '<year>-<term>' format
// used by SIS and by the 'term' group attribute.
func (t *Term) YearTermKey() string {
	return fmt.Sprintf("%d-%d", t.Year, t.Term)
}

// SetStudentsAdvertisement sets the student enrollment window after validating it.
func (t *Term) SetStudentsAdvertisement(from, until time.Time) error {
	if from.After(until) {
		return ErrInvalidDateRange
	}

	t.StudentsFrom = from
	t.StudentsUntil = until

	return nil
}

// SetTeachersAdvertisement sets the teacher window after validating it.
func (t *Term) SetTeachersAdvertisement(from, until time.Time) error {
	if from.After(until) {
		return ErrInvalidDateRange
	}

	t.TeachersFrom = from
	t.TeachersUntil = until

	return nil
}

// AdvertisedForStudents reports whether students may currently enroll groups of this term.
func (t *Term) AdvertisedForStudents(now time.Time) bool {
	return !now.Before(t.StudentsFrom) && !now.After(t.StudentsUntil)
}

// AdvertisedForTeachers reports whether teachers may currently create groups for this term.
func (t *Term) AdvertisedForTeachers(now time.Time) bool {
	return !now.Before(t.TeachersFrom) && !now.After(t.TeachersUntil)
}

// Active reports whether either advertisement window contains now.
func (t *Term) Active(now time.Time) bool {
	return t.AdvertisedForStudents(now) || t.AdvertisedForTeachers(now)
}
