package sync

import (
	"context"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/recodex/sis-binding/internal/db/controller/changelogs"
	"github.com/recodex/sis-binding/internal/db/controller/users"
	"github.com/recodex/sis-binding/internal/db/models"
	"github.com/recodex/sis-binding/internal/recodex"
)

// ProfileResult is the outcome of pushing SIS personal data to ReCodEx.
// Canceled means the ReCodEx profile drifted from our cache; the cache was
// refreshed and the push must be re-evaluated with the new data.
type ProfileResult struct {
	Canceled bool
	Updated  bool
	Diff     map[string]FieldDiff
}

// SyncProfile pushes the cached SIS personal data of the user to ReCodEx.
//
// The ReCodEx profile is fetched first; when it differs from our cache, the
// sync is canceled and only the cache is refreshed, so a diff computed from
// stale data is never pushed. Otherwise the differing fields are written to
// ReCodEx (profile fields and the login external ID separately), the response
// is folded back into the cache, and the diff is recorded in the changelog.
func SyncProfile(
	ctx context.Context, db *gorm.DB, client *recodex.Client, token string,
	user *models.User, sisUser *models.SisUser,
) (*ProfileResult, error) {
	result := &ProfileResult{}

	recodexUser, err := client.User(ctx, token, user.ID)
	if err != nil {
		return nil, err
	}
	changed, err := recodexUser.ApplyTo(user)
	if err != nil {
		return nil, err
	}
	if changed {
		if err := users.Save(db, user); err != nil {
			return nil, err
		}
		result.Canceled = true

		return result, nil
	}

	diff := DiffUser(user, sisUser)
	if len(diff) == 0 {
		return result, nil
	}
	result.Diff = diff

	_, updateLogin := diff["login"]
	updateProfile := !updateLogin || len(diff) > 1
	UpdateUser(user, sisUser)

	if updateProfile {
		recodexUser, err = client.UpdateUser(ctx, token, user)
		if err != nil {
			return nil, err
		}
	}
	if updateLogin {
		service := client.SisLoginKey()
		if user.SisLogin != nil {
			recodexUser, err = client.SetExternalID(ctx, token, user.ID, service, *user.SisLogin)
		} else {
			recodexUser, err = client.RemoveExternalID(ctx, token, user.ID, service)
		}
		if err != nil {
			return nil, err
		}
	}

	// fold the authoritative response back into the cache
	if _, err := recodexUser.ApplyTo(user); err != nil {
		return nil, err
	}
	if err := users.Save(db, user); err != nil {
		return nil, err
	}

	if err := changelogs.Append(db, user, diff); err != nil {
		return nil, err
	}

	log.Info().Str("user", user.ID).Int("fields", len(diff)).Msg("user profile synced to ReCodEx")
	result.Updated = true

	return result, nil
}
