// Package models defines the GORM entities cached by the binding service.
package models

import "time"

// User is a local cache of a ReCodEx user account that logged into this
// service at least once. The ID is the ReCodEx user ID (shared identity).
type User struct {
	// ID is the ReCodEx user identifier (UUID assigned by ReCodEx).
	ID string `gorm:"primaryKey;size:36"`
	// InstanceID is the ReCodEx instance the user belongs to.
	InstanceID string `gorm:"size:36;not null"`
	// SisID is the university personal identifier (UKCO) taken from ReCodEx external logins.
	SisID *string `gorm:"uniqueIndex;size:32"`
	// SisLogin is the SIS/LDAP login taken from ReCodEx external logins.
	SisLogin *string `gorm:"size:64"`
	// TitlesBeforeName holds academic titles placed before the name.
	TitlesBeforeName string `gorm:"size:64"`
	// FirstName is the user's given name.
	FirstName string `gorm:"size:100;not null"`
	// LastName is the user's family name.
	LastName string `gorm:"size:100;not null"`
	// TitlesAfterName holds academic titles placed after the name.
	TitlesAfterName string `gorm:"size:64"`
	// Email is the user's email address as registered in ReCodEx.
	Email string `gorm:"size:255;not null"`
	// Role is the ReCodEx role of the user (student, supervisor, ...).
	Role string `gorm:"size:32;not null"`
	// DefaultLanguage is the preferred locale of the user ('en', 'cs').
	DefaultLanguage string `gorm:"size:8;not null;default:'en'"`
	// TokenPrefix is the stored prefix of the delegated ReCodEx token.
	// The suffix travels inside this service's own access token, so the full
	// delegated token is never stored in one place.
	TokenPrefix string `gorm:"size:512"`
	// SisUserLoaded is when the SIS personal record was last fetched for this user.
	SisUserLoaded *time.Time
	// SisEventsLoaded is when the SIS scheduling events were last fetched for this user.
	SisEventsLoaded *time.Time
	// CreatedAt is the timestamp when the user was cached (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the cache was last updated (managed by GORM).
	UpdatedAt time.Time
}

// FullName assembles the displayable name including titles.
func (u *User) FullName() string {
	name := u.FirstName + " " + u.LastName
	if u.TitlesBeforeName != "" {
		name = u.TitlesBeforeName + " " + name
	}
	if u.TitlesAfterName != "" {
		name = name + " " + u.TitlesAfterName
	}

	return name
}

// SisIDValue returns the SIS personal identifier or an empty string.
func (u *User) SisIDValue() string {
	if u.SisID == nil {
		return ""
	}

	return *u.SisID
}

// SisLoginValue returns the SIS login or an empty string.
func (u *User) SisLoginValue() string {
	if u.SisLogin == nil {
		return ""
	}

	return *u.SisLogin
}
