// Package policy decides who may touch which group, event, or term. All
// decisions combine the ReCodEx group hierarchy (memberships, attributes)
// with the locally cached SIS affiliations.
package policy

import (
	"time"

	"gorm.io/gorm"

	"github.com/recodex/sis-binding/internal/db/controller/affiliations"
	"github.com/recodex/sis-binding/internal/db/controller/events"
	"github.com/recodex/sis-binding/internal/db/models"
	"github.com/recodex/sis-binding/internal/recodex"
)

// GroupSuitableForEvent verifies that a group may host (or be bound to) the
// given scheduling event. The group must lie under the event's course and
// under the event's term; either attribute may sit on the group itself or on
// any of its ancestors. The event must have its Course and Term loaded.
func GroupSuitableForEvent(groups map[string]*recodex.Group, groupID string, event *models.ScheduleEvent) error {
	group, ok := groups[groupID]
	if !ok {
		return NotFound("group %s does not exist or is not accessible by the user", groupID)
	}

	courseID := event.Course.Code
	termKey := event.Term.YearTermKey()
	courseCheck, termCheck := false, false

	// walk up while either check is still unsatisfied; the attributes may sit
	// on different ancestors
	visited := map[string]bool{group.ID: true}
	for group != nil && (!courseCheck || !termCheck) {
		courseCheck = courseCheck || group.HasCourseAttribute(courseID)
		termCheck = termCheck || group.HasTermAttribute(termKey)
		if group.ParentGroupID == "" {
			break
		}
		if visited[group.ParentGroupID] {
			return recodex.ErrGroupCycle
		}
		visited[group.ParentGroupID] = true
		group = groups[group.ParentGroupID]
	}

	if !courseCheck || !termCheck {
		return Forbidden("group %s is not located under the required course or term", groupID)
	}

	return nil
}

// GroupSuitableForTerm verifies that a new term group may be created under
// the given group. The target must be a course group (it carries a course
// attribute) that does not cover the term yet, neither itself nor through a
// direct child.
func GroupSuitableForTerm(groups map[string]*recodex.Group, groupID, termKey string) error {
	group, ok := groups[groupID]
	if !ok {
		return NotFound("group %s does not exist or is not accessible by the user", groupID)
	}

	if !group.HasCourseAttribute() {
		return Forbidden("group %s is not a course group", groupID)
	}
	if group.HasTermAttribute(termKey) {
		return BadRequest("group %s already covers term %s", groupID, termKey)
	}

	for _, child := range groups {
		if child.ParentGroupID == groupID && child.HasTermAttribute(termKey) {
			return BadRequest("group %s already has a child group for term %s", groupID, termKey)
		}
	}

	return nil
}

// CanAdministrateGroup verifies that the requesting user (whose membership
// relation is baked into the groups) may administrate the given group. Direct
// supervisors qualify; admin membership is inherited from ancestors.
func CanAdministrateGroup(groups map[string]*recodex.Group, groupID string) error {
	group, ok := groups[groupID]
	if !ok {
		return NotFound("group %s does not exist or is not accessible by the user", groupID)
	}

	if group.Membership == recodex.MembershipSupervisor {
		return nil
	}

	visited := map[string]bool{group.ID: true}
	for group != nil {
		if group.Membership == recodex.MembershipAdmin {
			return nil
		}
		if group.ParentGroupID == "" {
			break
		}
		if visited[group.ParentGroupID] {
			return recodex.ErrGroupCycle
		}
		visited[group.ParentGroupID] = true
		group = groups[group.ParentGroupID]
	}

	return Forbidden("you do not have permissions to administrate group %s", groupID)
}

// UserEnrolledFor checks a cached student affiliation between the user and the event.
func UserEnrolledFor(db *gorm.DB, user *models.User, event *models.ScheduleEvent) (bool, error) {
	affiliation, err := affiliations.Get(db, event, user)
	if err != nil {
		return false, err
	}

	return affiliation != nil && affiliation.Type == models.AffiliationStudent, nil
}

// UserTeacherOf checks a cached supervisor affiliation (teacher or guarantor)
// between the user and the event.
func UserTeacherOf(db *gorm.DB, user *models.User, event *models.ScheduleEvent) (bool, error) {
	affiliation, err := affiliations.Get(db, event, user)
	if err != nil {
		return false, err
	}

	return affiliation != nil && affiliation.Type != models.AffiliationStudent, nil
}

// CanJoinGroupForEvent allows students enrolled for the event to join its
// groups while the term is advertised to students. The event must have its
// Term loaded.
func CanJoinGroupForEvent(db *gorm.DB, user *models.User, event *models.ScheduleEvent, now time.Time) (bool, error) {
	if !event.Term.AdvertisedForStudents(now) {
		return false, nil
	}

	return UserEnrolledFor(db, user, event)
}

// CanManageGroupsForEvent allows teachers of the event to create and (un)bind
// groups while the term is advertised to teachers. The event must have its
// Term loaded.
func CanManageGroupsForEvent(db *gorm.DB, user *models.User, event *models.ScheduleEvent, now time.Time) (bool, error) {
	if !event.Term.AdvertisedForTeachers(now) {
		return false, nil
	}

	return UserTeacherOf(db, user, event)
}

// CheckJoin verifies that the user may join the given group as a student.
// The user must not be related to the group yet and the group must be bound
// to at least one scheduling event the user may join. Bound events unknown to
// the local cache are skipped.
func CheckJoin(
	db *gorm.DB, groups map[string]*recodex.Group, groupID string, user *models.User, now time.Time,
) error {
	group, ok := groups[groupID]
	if !ok {
		return NotFound("group %s does not exist or is not accessible by the user", groupID)
	}

	if group.Membership != recodex.MembershipNone {
		return BadRequest("user is already a member (%s) of group %s", group.Membership, groupID)
	}

	for _, eventSisID := range group.Attributes[recodex.AttrGroupKey] {
		event, err := events.FindBySisID(db, eventSisID)
		if err != nil {
			return err
		}
		if event == nil {
			continue
		}

		allowed, err := CanJoinGroupForEvent(db, user, event, now)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}
	}

	return Forbidden("group %s does not correspond to any of SIS events you are enrolled for", groupID)
}
