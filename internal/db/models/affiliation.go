package models

import "time"

// AffiliationType classifies the relation between a user and a scheduling event.
type AffiliationType string

const (
	// AffiliationStudent marks a student enrollment.
	AffiliationStudent AffiliationType = "student"
	// AffiliationTeacher marks a teaching assignment.
	AffiliationTeacher AffiliationType = "teacher"
	// AffiliationGuarantor marks a course guarantor.
	AffiliationGuarantor AffiliationType = "guarantor"
)

// ParseAffiliationType maps a SIS affiliation string onto the closed enum.
// The boolean is false for affiliations this service does not track.
func ParseAffiliationType(s string) (AffiliationType, bool) {
	switch AffiliationType(s) {
	case AffiliationStudent, AffiliationTeacher, AffiliationGuarantor:
		return AffiliationType(s), true
	default:
		return "", false
	}
}

// Supervisor reports whether the affiliation grants teacher-level rights.
func (t AffiliationType) Supervisor() bool {
	return t == AffiliationTeacher || t == AffiliationGuarantor
}

// Affiliation links a cached user to a scheduling event. This is merely a
// cache of SIS enrollment data; affiliations are bulk-cleared and recreated
// on every term re-sync, never diffed.
type Affiliation struct {
	// ID is an auto-incremented surrogate key.
	ID uint `gorm:"primaryKey"`
	// UserID references the cached ReCodEx user.
	UserID string `gorm:"size:36;not null;uniqueIndex:idx_user_event"`
	// User is the associated user.
	User User `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE"`
	// EventID references the cached scheduling event.
	EventID string `gorm:"size:36;not null;uniqueIndex:idx_user_event"`
	// Event is the associated scheduling event.
	Event ScheduleEvent `gorm:"foreignKey:EventID;references:ID;constraint:OnDelete:CASCADE"`
	// TermID references the term of the event (denormalized for bulk clearing).
	TermID string `gorm:"size:36;not null"`
	// Term is the associated term.
	Term Term `gorm:"foreignKey:TermID;references:ID;constraint:OnDelete:CASCADE"`
	// Type is one of the AffiliationType values.
	Type AffiliationType `gorm:"type:varchar(16);not null"`
	// CreatedAt is the creation timestamp (managed by GORM).
	CreatedAt time.Time
}
