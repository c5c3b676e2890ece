package recodex

import (
	"github.com/recodex/sis-binding/internal/db/models"
)

// User wraps the user view returned by the ReCodEx API. The accessors mirror
// the view structure; the external-login keys used to extract the SIS
// identity are part of the client configuration.
type User struct {
	data        userWire
	sisIDKey    string
	sisLoginKey string
}

type userWire struct {
	ID   string `json:"id"`
	Name struct {
		TitlesBeforeName string `json:"titlesBeforeName"`
		FirstName        string `json:"firstName"`
		LastName         string `json:"lastName"`
		TitlesAfterName  string `json:"titlesAfterName"`
	} `json:"name"`
	PrivateData struct {
		Email       string            `json:"email"`
		Role        string            `json:"role"`
		InstanceIDs []string          `json:"instanceIds"`
		ExternalIDs map[string]string `json:"externalIds"`
		Settings    struct {
			DefaultLanguage string `json:"defaultLanguage"`
		} `json:"settings"`
	} `json:"privateData"`
}

// ID returns the ReCodEx user identifier.
func (u *User) ID() string {
	return u.data.ID
}

// SisID returns the university personal identifier or nil when not linked.
func (u *User) SisID() *string {
	if id, ok := u.data.PrivateData.ExternalIDs[u.sisIDKey]; ok && id != "" {
		return &id
	}

	return nil
}

// SisLogin returns the SIS login or nil when not linked.
func (u *User) SisLogin() *string {
	if login, ok := u.data.PrivateData.ExternalIDs[u.sisLoginKey]; ok && login != "" {
		return &login
	}

	return nil
}

// Email returns the user's email address.
func (u *User) Email() string {
	return u.data.PrivateData.Email
}

// Role returns the ReCodEx role of the user.
func (u *User) Role() string {
	return u.data.PrivateData.Role
}

// DefaultLanguage returns the preferred locale, 'en' when unset.
func (u *User) DefaultLanguage() string {
	if lang := u.data.PrivateData.Settings.DefaultLanguage; lang != "" {
		return lang
	}

	return "en"
}

// BelongsToInstance checks whether the user is a member of the given ReCodEx instance.
func (u *User) BelongsToInstance(instanceID string) bool {
	for _, id := range u.data.PrivateData.InstanceIDs {
		if id == instanceID {
			return true
		}
	}

	return false
}

// validate performs basic sanity checks of the user view.
func (u *User) validate() error {
	if u.data.ID == "" {
		return newAPIError("user ID missing in the ReCodEx user view response", 0, "")
	}
	if u.data.PrivateData.Email == "" {
		return newAPIError("user email is missing", 0, "")
	}
	if u.data.PrivateData.Role == "" {
		return newAPIError("user role is missing", 0, "")
	}

	return nil
}

// NewLocalUser creates a new cached user entity from the ReCodEx view.
// The returned entity is not persisted.
func (u *User) NewLocalUser(instanceID string) (*models.User, error) {
	if !u.BelongsToInstance(instanceID) {
		return nil, newAPIError("the user does not belong into the given ReCodEx instance", 0, "")
	}

	user := &models.User{
		ID:               u.ID(),
		InstanceID:       instanceID,
		SisID:            u.SisID(),
		SisLogin:         u.SisLogin(),
		TitlesBeforeName: u.data.Name.TitlesBeforeName,
		FirstName:        u.data.Name.FirstName,
		LastName:         u.data.Name.LastName,
		TitlesAfterName:  u.data.Name.TitlesAfterName,
		Email:            u.Email(),
		Role:             u.Role(),
		DefaultLanguage:  u.DefaultLanguage(),
	}

	return user, nil
}

// ApplyTo overrides any fields of the cached user entity that differ from the
// ReCodEx view. Returns true when at least one field was changed.
func (u *User) ApplyTo(user *models.User) (bool, error) {
	if user.ID != u.ID() {
		return false, newAPIError("user ID mismatch", 0, "")
	}
	if !u.BelongsToInstance(user.InstanceID) {
		return false, newAPIError("user instance ID mismatch", 0, "")
	}

	changed := false

	applyString := func(target *string, value string) {
		if *target != value {
			*target = value
			changed = true
		}
	}
	applyNullable := func(target **string, value *string) {
		current, next := "", ""
		if *target != nil {
			current = **target
		}
		if value != nil {
			next = *value
		}
		if current != next {
			*target = value
			changed = true
		}
	}

	applyNullable(&user.SisID, u.SisID())
	applyNullable(&user.SisLogin, u.SisLogin())
	applyString(&user.Email, u.Email())
	applyString(&user.TitlesBeforeName, u.data.Name.TitlesBeforeName)
	applyString(&user.FirstName, u.data.Name.FirstName)
	applyString(&user.LastName, u.data.Name.LastName)
	applyString(&user.TitlesAfterName, u.data.Name.TitlesAfterName)
	applyString(&user.Role, u.Role())
	applyString(&user.DefaultLanguage, u.DefaultLanguage())

	return changed, nil
}
