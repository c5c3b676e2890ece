package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/recodex/sis-binding/internal/db/controller/affiliations"
	"github.com/recodex/sis-binding/internal/db/controller/courses"
	"github.com/recodex/sis-binding/internal/db/controller/events"
	"github.com/recodex/sis-binding/internal/db/controller/sisusers"
	"github.com/recodex/sis-binding/internal/db/controller/terms"
	"github.com/recodex/sis-binding/internal/db/controller/users"
	"github.com/recodex/sis-binding/internal/db/models"
	"github.com/recodex/sis-binding/internal/sis"
)

// eventLength is the scheduled slot length in minutes. The SIS does not
// report it, all relevant events take a double lesson.
const eventLength = 90

var (
	// ErrEventCourseMismatch reports a cached event whose course no longer
	// matches the SIS record. Courses of existing events never change; this
	// means the local cache or the SIS data is corrupted.
	ErrEventCourseMismatch = errors.New("event course does not match the course in the SIS record")

	// ErrEventTermMismatch reports a cached event claimed by a different term.
	ErrEventTermMismatch = errors.New("event term does not match the term in the SIS record")
)

// UpdateLocalCourseAndAffiliations upserts the course, the scheduling event,
// and the affiliation of the record's owner from one SIS record. Users not
// cached locally get their affiliations skipped; they never went through the
// authentication flow, so nothing can reference them. Records with an
// untracked affiliation type skip the affiliation too, the course and event
// caching must not depend on it.
func UpdateLocalCourseAndAffiliations(
	db *gorm.DB, record *sis.CourseRecord, term *models.Term,
) error {
	captionCs, err := record.Caption("cs")
	if err != nil {
		return err
	}
	captionEn, err := record.Caption("en")
	if err != nil {
		return err
	}

	// upsert the course
	course, err := courses.FindByCode(db, record.CourseID)
	if err != nil {
		return err
	}
	if course != nil {
		course.CaptionCs = captionCs
		course.CaptionEn = captionEn
	} else {
		course = &models.Course{
			ID:        uuid.NewString(),
			Code:      record.CourseID,
			CaptionCs: captionCs,
			CaptionEn: captionEn,
		}
	}
	if err := courses.Save(db, course); err != nil {
		return err
	}

	// upsert the scheduling event
	event, err := events.FindBySisID(db, record.Code)
	if err != nil {
		return err
	}
	if event != nil {
		if event.CourseID != course.ID {
			return errors.Wrapf(ErrEventCourseMismatch, "event %s", record.Code)
		}
		if event.TermID != term.ID {
			return errors.Wrapf(ErrEventTermMismatch, "event %s", record.Code)
		}
		event.Type = record.Type
	} else {
		event = &models.ScheduleEvent{
			ID:       uuid.NewString(),
			SisID:    record.Code,
			TermID:   term.ID,
			CourseID: course.ID,
			Type:     record.Type,
		}
	}
	event.SetSchedule(record.DayOfWeek, record.FirstWeek, record.Time, eventLength, record.Room, record.Fortnightly)
	if err := events.Save(db, event); err != nil {
		return err
	}

	// upsert the affiliation of the record's owner (when cached locally)
	user, err := users.GetBySisID(db, record.SisUserID)
	if err != nil || user == nil {
		return err
	}

	if !record.AffiliationKnown {
		// untracked affiliation; the course and the event are cached anyway
		log.Debug().Str("event", record.Code).Str("user", user.ID).Msg("skipping untracked affiliation")
	} else {
		affiliation, err := affiliations.Get(db, event, user)
		if err != nil {
			return err
		}
		if affiliation != nil {
			affiliation.Type = record.Affiliation
		} else {
			affiliation = &models.Affiliation{
				UserID:  user.ID,
				EventID: event.ID,
				TermID:  term.ID,
				Type:    record.Affiliation,
			}
		}
		if err := affiliations.Save(db, affiliation); err != nil {
			return err
		}
	}

	now := time.Now()
	user.SisEventsLoaded = &now

	return users.Save(db, user)
}

// RefetchNeeded decides whether cached data with the given load stamp is
// stale. A nil expiration disables refetching entirely, zero forces it, a
// positive value is the tolerated age in days.
func RefetchNeeded(loaded *time.Time, expiration *int, now time.Time) bool {
	if expiration == nil {
		return false
	}

	threshold := now
	if *expiration > 0 {
		threshold = now.AddDate(0, 0, -*expiration)
	}

	return loaded == nil || loaded.Before(threshold)
}

// RefetchCourses reloads the user's scheduling events of all active terms
// from the SIS. Affiliations of the user in those terms are cleared first so
// unenrollments are reflected; records of inactive terms the SIS sends along
// are skipped.
func RefetchCourses(ctx context.Context, db *gorm.DB, client *sis.Client, user *models.User) error {
	activeTerms, err := terms.FindAllActive(db, time.Now())
	if err != nil {
		return err
	}

	termIndex := make(map[string]*models.Term, len(activeTerms))
	termKeys := make([]string, 0, len(activeTerms))
	for i := range activeTerms {
		term := &activeTerms[i]
		termIndex[term.YearTermKey()] = term
		termKeys = append(termKeys, term.YearTermKey())

		if err := affiliations.Clear(db, user, term); err != nil {
			return err
		}
	}

	records, err := client.Courses(ctx, user.SisIDValue(), termKeys)
	if err != nil {
		return err
	}

	for _, record := range records {
		term, ok := termIndex[record.TermKey()]
		if !ok {
			// superfluous data sent over from the SIS
			continue
		}
		if err := UpdateLocalCourseAndAffiliations(db, record, term); err != nil {
			return err
		}
	}

	now := time.Now()
	user.SisEventsLoaded = &now

	return users.Save(db, user)
}

// SisUserResult is the outcome of a cached SIS user lookup with an optional
// refresh. Failed is set when the SIS could not be reached; the stale cached
// record is still returned in that case.
type SisUserResult struct {
	SisUser *models.SisUser
	Updated bool
	Failed  bool
}

// FetchSisUser returns the cached SIS record of the user and refreshes it
// from the SIS when the expiration demands it. A SIS outage degrades to the
// cached data instead of failing the whole operation.
func FetchSisUser(
	ctx context.Context, db *gorm.DB, client *sis.Client, user *models.User, expiration *int,
) (*SisUserResult, error) {
	result := &SisUserResult{}
	log.Debug().Str("user", user.ID).Str("expiration", formatExpiration(expiration)).Msg("SIS user lookup")

	sisUser, err := sisusers.Get(db, user.SisIDValue())
	if err != nil {
		return nil, err
	}
	result.SisUser = sisUser

	var loaded *time.Time
	if sisUser != nil {
		loaded = &sisUser.UpdatedAt
	}
	if !RefetchNeeded(loaded, expiration, time.Now()) {
		return result, nil
	}

	record, err := client.UserRecord(ctx, user.SisIDValue())
	if err != nil {
		log.Error().Err(err).Str("ukco", user.SisIDValue()).Msg("SIS user record fetch failed")
		result.Failed = true

		return result, nil
	}

	if sisUser == nil {
		sisUser = record.NewLocalUser()
	} else if _, err := record.ApplyTo(sisUser); err != nil {
		return nil, err
	}
	if err := sisusers.Save(db, sisUser); err != nil {
		return nil, err
	}

	now := time.Now()
	user.SisUserLoaded = &now
	if err := users.Save(db, user); err != nil {
		return nil, err
	}

	result.SisUser = sisUser
	result.Updated = true

	return result, nil
}

// formatExpiration is a log helper.
func formatExpiration(expiration *int) string {
	if expiration == nil {
		return "none"
	}

	return fmt.Sprintf("%d", *expiration)
}
