package models

import "time"

// Course caches one SIS course (subject). Created on first sighting during a
// sync; only the bilingual captions may drift afterwards.
type Course struct {
	// ID is a locally generated UUID.
	ID string `gorm:"primaryKey;size:36"`
	// Code is the SIS course code (e.g. NPRG041).
	Code string `gorm:"uniqueIndex;size:32;not null"`
	// CaptionCs is the Czech name of the course.
	CaptionCs string `gorm:"size:255;not null"`
	// CaptionEn is the English name of the course.
	CaptionEn string `gorm:"size:255;not null"`
	// CreatedAt is the timestamp of the first sighting (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is bumped on every sync that touches the course (managed by GORM).
	UpdatedAt time.Time
}

// Caption returns the course name in the requested locale, falling back to Czech.
func (c *Course) Caption(locale string) string {
	if locale == "en" && c.CaptionEn != "" {
		return c.CaptionEn
	}

	return c.CaptionCs
}
