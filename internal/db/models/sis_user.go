package models

import "time"

// SisUser caches the personal record fetched from the SIS personnel module.
// The ID is the university personal identifier (UKCO).
type SisUser struct {
	// ID is the university personal identifier (UKCO).
	ID string `gorm:"primaryKey;size:32"`
	// Login is the alphanumerical SIS login generated from the name.
	Login *string `gorm:"uniqueIndex;size:64"`
	// TitlesBeforeName holds academic titles placed before the name.
	TitlesBeforeName string `gorm:"size:64"`
	// FirstName is the given name as recorded in SIS.
	FirstName string `gorm:"size:100;not null"`
	// LastName is the family name as recorded in SIS.
	LastName string `gorm:"size:100;not null"`
	// TitlesAfterName holds academic titles placed after the name.
	TitlesAfterName string `gorm:"size:64"`
	// Email is the personal email address recorded in SIS.
	Email string `gorm:"size:255;not null"`
	// Student is true when at least one of the user's enrollments is in an active state.
	Student bool `gorm:"not null"`
	// Teacher is true when the user has an active teaching assignment.
	Teacher bool `gorm:"not null"`
	// CreatedAt is the timestamp when the record was cached (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the cache was last refreshed (managed by GORM).
	UpdatedAt time.Time
}

// LoginValue returns the SIS login or an empty string.
func (u *SisUser) LoginValue() string {
	if u.Login == nil {
		return ""
	}

	return *u.Login
}
