// Package sync copies data between the SIS, the local cache, and ReCodEx.
// The SIS is the authority for personal data and schedules; ReCodEx is the
// authority for its own user profiles between sync points.
package sync

import (
	"github.com/recodex/sis-binding/internal/db/models"
)

// FieldDiff records one changed field with its old and new value.
type FieldDiff struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// userField describes one synchronized field. The user side is the ReCodEx
// cached entity, the record side is the SIS cached entity.
type userField struct {
	key string
	get func(*models.User) string
	set func(*models.User, string)
	new func(*models.SisUser) string
}

// userFields lists all fields the SIS is authoritative for. The login maps to
// the SIS login external ID of the ReCodEx user; the rest share names.
var userFields = []userField{
	{
		key: "login",
		get: func(u *models.User) string { return u.SisLoginValue() },
		set: func(u *models.User, v string) {
			if v == "" {
				u.SisLogin = nil
			} else {
				u.SisLogin = &v
			}
		},
		new: func(s *models.SisUser) string { return s.LoginValue() },
	},
	{
		key: "titlesBeforeName",
		get: func(u *models.User) string { return u.TitlesBeforeName },
		set: func(u *models.User, v string) { u.TitlesBeforeName = v },
		new: func(s *models.SisUser) string { return s.TitlesBeforeName },
	},
	{
		key: "firstName",
		get: func(u *models.User) string { return u.FirstName },
		set: func(u *models.User, v string) { u.FirstName = v },
		new: func(s *models.SisUser) string { return s.FirstName },
	},
	{
		key: "lastName",
		get: func(u *models.User) string { return u.LastName },
		set: func(u *models.User, v string) { u.LastName = v },
		new: func(s *models.SisUser) string { return s.LastName },
	},
	{
		key: "titlesAfterName",
		get: func(u *models.User) string { return u.TitlesAfterName },
		set: func(u *models.User, v string) { u.TitlesAfterName = v },
		new: func(s *models.SisUser) string { return s.TitlesAfterName },
	},
	{
		key: "email",
		get: func(u *models.User) string { return u.Email },
		set: func(u *models.User, v string) { u.Email = v },
		new: func(s *models.SisUser) string { return s.Email },
	},
}

// DiffUser compares the cached ReCodEx user with the cached SIS record and
// returns the fields that differ, keyed by field name.
func DiffUser(user *models.User, sisUser *models.SisUser) map[string]FieldDiff {
	diff := map[string]FieldDiff{}
	for _, field := range userFields {
		old, updated := field.get(user), field.new(sisUser)
		if old != updated {
			diff[field.key] = FieldDiff{Old: old, New: updated}
		}
	}

	return diff
}

// UpdateUser overwrites the synchronized fields of the cached ReCodEx user
// with the SIS values. Returns true when anything changed.
func UpdateUser(user *models.User, sisUser *models.SisUser) bool {
	updated := false
	for _, field := range userFields {
		if field.get(user) != field.new(sisUser) {
			field.set(user, field.new(sisUser))
			updated = true
		}
	}

	return updated
}
