package models

import "time"

// UserChangelog is an immutable audit record created whenever a profile sync
// finds and applies changes. The diff is stored as a JSON object mapping
// field names to {old, new} value pairs.
type UserChangelog struct {
	// ID is an auto-incremented surrogate key.
	ID uint `gorm:"primaryKey"`
	// UserID references the user whose profile changed.
	UserID string `gorm:"size:36;not null;index"`
	// User is the associated user.
	User User `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE"`
	// Diff is the JSON encoded log of changes.
	Diff []byte `gorm:"type:text;not null"`
	// CreatedAt is the creation timestamp (managed by GORM).
	CreatedAt time.Time
}
