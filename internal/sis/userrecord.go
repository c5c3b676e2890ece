package sis

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/recodex/sis-binding/internal/db/models"
)

// Study states in which the person still counts as a student:
// S = studying, R = decomposed year, X = accepted for studies,
// O = repeating, D = proceeding to termination (but still studying).
var studentStates = map[string]bool{"S": true, "R": true, "X": true, "O": true, "D": true}

// UserRecord is a parsed personal record from the kdojekdo module.
type UserRecord struct {
	UKCO             string
	Login            *string
	TitlesBeforeName string
	FirstName        string
	LastName         string
	TitlesAfterName  string
	Email            string
	Student          bool
	Teacher          bool
}

type userRecordWire struct {
	Oidos      flexString `json:"oidos"`
	Login      string     `json:"login"`
	Titul      string     `json:"titul"`
	Jmeno      string     `json:"jmeno"`
	Prijmeni   string     `json:"prijmeni"`
	TitulZa    string     `json:"titulza"`
	OsobniMail string     `json:"osobni_mail"`
	Studia     []struct {
		Sstav string `json:"sstav"`
	} `json:"studia"`
	Ucitel []struct {
		Uaktivni string `json:"uaktivni"`
	} `json:"ucitel"`
}

// parseUserRecord decodes and validates a single personal record. The record
// must describe the requested person.
func parseUserRecord(ukco string, data json.RawMessage) (*UserRecord, error) {
	var wire userRecordWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, newAPIError(moduleKdojekdo, "malformed personal record: "+err.Error(), string(data))
	}

	required := map[string]string{
		"oidos":       string(wire.Oidos),
		"login":       wire.Login,
		"jmeno":       wire.Jmeno,
		"prijmeni":    wire.Prijmeni,
		"osobni_mail": wire.OsobniMail,
	}
	for key, value := range required {
		if value == "" {
			return nil, newAPIError(moduleKdojekdo,
				fmt.Sprintf("missing item '%s' in the response", key), string(data))
		}
	}

	if string(wire.Oidos) != ukco {
		return nil, newAPIError(moduleKdojekdo,
			fmt.Sprintf("the response was for user %s, but %s was requested", wire.Oidos, ukco), string(data))
	}

	login := strings.ToLower(wire.Login)
	record := &UserRecord{
		UKCO:             ukco,
		Login:            &login,
		TitlesBeforeName: wire.Titul,
		FirstName:        wire.Jmeno,
		LastName:         wire.Prijmeni,
		TitlesAfterName:  wire.TitulZa,
		Email:            wire.OsobniMail,
	}

	for _, studium := range wire.Studia {
		if studentStates[studium.Sstav] {
			record.Student = true

			break
		}
	}
	for _, ucit := range wire.Ucitel {
		if ucit.Uaktivni == "T" {
			record.Teacher = true

			break
		}
	}

	return record, nil
}

// NewLocalUser creates a new cached SIS user entity from the record.
// The returned entity is not persisted.
func (r *UserRecord) NewLocalUser() *models.SisUser {
	return &models.SisUser{
		ID:               r.UKCO,
		Login:            r.Login,
		TitlesBeforeName: r.TitlesBeforeName,
		FirstName:        r.FirstName,
		LastName:         r.LastName,
		TitlesAfterName:  r.TitlesAfterName,
		Email:            r.Email,
		Student:          r.Student,
		Teacher:          r.Teacher,
	}
}

// ApplyTo overrides any fields of the cached SIS user entity that differ from
// the record. Returns true when at least one field was changed.
func (r *UserRecord) ApplyTo(user *models.SisUser) (bool, error) {
	if user.ID != r.UKCO {
		return false, newAPIError(moduleKdojekdo, "user ID mismatch", "")
	}

	changed := false

	applyString := func(target *string, value string) {
		if *target != value {
			*target = value
			changed = true
		}
	}
	applyBool := func(target *bool, value bool) {
		if *target != value {
			*target = value
			changed = true
		}
	}

	current := user.LoginValue()
	next := ""
	if r.Login != nil {
		next = *r.Login
	}
	if current != next {
		user.Login = r.Login
		changed = true
	}

	applyString(&user.Email, r.Email)
	applyString(&user.TitlesBeforeName, r.TitlesBeforeName)
	applyString(&user.FirstName, r.FirstName)
	applyString(&user.LastName, r.LastName)
	applyString(&user.TitlesAfterName, r.TitlesAfterName)
	applyBool(&user.Student, r.Student)
	applyBool(&user.Teacher, r.Teacher)

	return changed, nil
}
