package policy

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/recodex/sis-binding/internal/db/models"
	"github.com/recodex/sis-binding/internal/recodex"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "failed to create test database")

	// Migrate the schema
	err = db.AutoMigrate(
		&models.User{}, &models.Course{}, &models.Term{},
		&models.ScheduleEvent{}, &models.Affiliation{},
	)
	require.NoError(t, err, "failed to migrate test database")

	return db
}

func policyGroup(id, parentID string, attrs map[string][]string) *recodex.Group {
	if attrs == nil {
		attrs = map[string][]string{}
	}

	return &recodex.Group{
		ID:            id,
		ParentGroupID: parentID,
		Name:          map[string]string{"en": id},
		Attributes:    attrs,
	}
}

// policyForest builds course-a (course: NPRG041) -> term-a (term: 2021-1) -> lab-a.
func policyForest() map[string]*recodex.Group {
	return map[string]*recodex.Group{
		"course-a": policyGroup("course-a", "", map[string][]string{recodex.AttrCourseKey: {"NPRG041"}}),
		"term-a":   policyGroup("term-a", "course-a", map[string][]string{recodex.AttrTermKey: {"2021-1"}}),
		"lab-a":    policyGroup("lab-a", "term-a", nil),
	}
}

func testEvent(courseCode string, year, term int) *models.ScheduleEvent {
	return &models.ScheduleEvent{
		SisID:  "21a" + courseCode + "x01",
		Course: models.Course{Code: courseCode},
		Term:   models.Term{Year: year, Term: term},
	}
}

func assertPolicyStatus(t *testing.T, err error, status int) {
	t.Helper()
	var policyErr *Error
	require.ErrorAs(t, err, &policyErr)
	assert.Equal(t, status, policyErr.Status)
}

func TestGroupSuitableForEvent(t *testing.T) {
	event := testEvent("NPRG041", 2021, 1)

	tests := []struct {
		name    string
		groupID string
		status  int // 0 = allowed
	}{
		{name: "attributes inherited from different ancestors", groupID: "lab-a"},
		{name: "term group inherits the course attribute", groupID: "term-a"},
		{name: "course group lacks the term attribute", groupID: "course-a", status: 403},
		{name: "unknown group", groupID: "nonexistent", status: 404},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := GroupSuitableForEvent(policyForest(), test.groupID, event)
			if test.status == 0 {
				assert.NoError(t, err)
			} else {
				assertPolicyStatus(t, err, test.status)
			}
		})
	}
}

func TestGroupSuitableForEventWrongCourse(t *testing.T) {
	err := GroupSuitableForEvent(policyForest(), "lab-a", testEvent("NSWI000", 2021, 1))
	assertPolicyStatus(t, err, 403)

	err = GroupSuitableForEvent(policyForest(), "lab-a", testEvent("NPRG041", 2022, 1))
	assertPolicyStatus(t, err, 403)
}

func TestGroupSuitableForEventBothAttributesOnOneGroup(t *testing.T) {
	groups := map[string]*recodex.Group{
		"g": policyGroup("g", "", map[string][]string{
			recodex.AttrCourseKey: {"NPRG041"},
			recodex.AttrTermKey:   {"2021-1"},
		}),
	}

	assert.NoError(t, GroupSuitableForEvent(groups, "g", testEvent("NPRG041", 2021, 1)))
}

func TestGroupSuitableForTerm(t *testing.T) {
	tests := []struct {
		name    string
		groups  map[string]*recodex.Group
		groupID string
		status  int
	}{
		{
			name:    "course group without the term",
			groups:  policyForest(),
			groupID: "course-a",
			status:  0,
		},
		{
			name:    "not a course group",
			groups:  policyForest(),
			groupID: "lab-a",
			status:  403,
		},
		{
			name:    "unknown group",
			groups:  policyForest(),
			groupID: "nonexistent",
			status:  404,
		},
		{
			name: "group covers the term itself",
			groups: map[string]*recodex.Group{
				"g": policyGroup("g", "", map[string][]string{
					recodex.AttrCourseKey: {"NPRG041"},
					recodex.AttrTermKey:   {"2022-1"},
				}),
			},
			groupID: "g",
			status:  400,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := GroupSuitableForTerm(test.groups, test.groupID, "2022-1")
			if test.status == 0 {
				assert.NoError(t, err)
			} else {
				assertPolicyStatus(t, err, test.status)
			}
		})
	}
}

func TestGroupSuitableForTermChildCoverage(t *testing.T) {
	groups := policyForest()

	// term-a already covers 2021-1 under course-a
	err := GroupSuitableForTerm(groups, "course-a", "2021-1")
	assertPolicyStatus(t, err, 400)

	assert.NoError(t, GroupSuitableForTerm(groups, "course-a", "2021-2"))
}

func TestCanAdministrateGroup(t *testing.T) {
	tests := []struct {
		name        string
		memberships map[string]recodex.Membership
		groupID     string
		status      int
	}{
		{
			name:        "direct supervisor",
			memberships: map[string]recodex.Membership{"lab-a": recodex.MembershipSupervisor},
			groupID:     "lab-a",
		},
		{
			name:        "direct admin",
			memberships: map[string]recodex.Membership{"lab-a": recodex.MembershipAdmin},
			groupID:     "lab-a",
		},
		{
			name:        "admin inherited from the course root",
			memberships: map[string]recodex.Membership{"course-a": recodex.MembershipAdmin},
			groupID:     "lab-a",
		},
		{
			name:        "supervisor rights are not inherited",
			memberships: map[string]recodex.Membership{"course-a": recodex.MembershipSupervisor},
			groupID:     "lab-a",
			status:      403,
		},
		{
			name:        "student membership is not enough",
			memberships: map[string]recodex.Membership{"lab-a": recodex.MembershipStudent},
			groupID:     "lab-a",
			status:      403,
		},
		{
			name:    "unknown group",
			groupID: "nonexistent",
			status:  404,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			groups := policyForest()
			for id, membership := range test.memberships {
				groups[id].Membership = membership
			}

			err := CanAdministrateGroup(groups, test.groupID)
			if test.status == 0 {
				assert.NoError(t, err)
			} else {
				assertPolicyStatus(t, err, test.status)
			}
		})
	}
}

func TestAncestorWalksRejectCyclicChains(t *testing.T) {
	// a malformed snapshot where two groups claim each other as parent
	groups := map[string]*recodex.Group{
		"a": policyGroup("a", "b", nil),
		"b": policyGroup("b", "a", nil),
	}

	err := CanAdministrateGroup(groups, "a")
	assert.ErrorIs(t, err, recodex.ErrGroupCycle)

	err = GroupSuitableForEvent(groups, "a", testEvent("NPRG041", 2021, 1))
	assert.ErrorIs(t, err, recodex.ErrGroupCycle)
}

// joinFixtures caches one advertised term, its course, one event, and a user.
func joinFixtures(t *testing.T, db *gorm.DB, affiliation models.AffiliationType) (*models.User, *models.ScheduleEvent) {
	t.Helper()

	now := time.Now()
	term := &models.Term{
		ID: "term-1", Year: 2021, Term: 1,
		StudentsFrom: now.Add(-time.Hour), StudentsUntil: now.Add(time.Hour),
		TeachersFrom: now.Add(-time.Hour), TeachersUntil: now.Add(time.Hour),
	}
	require.NoError(t, db.Create(term).Error)

	course := &models.Course{ID: "course-1", Code: "NPRG041", CaptionCs: "C++", CaptionEn: "C++"}
	require.NoError(t, db.Create(course).Error)

	event := &models.ScheduleEvent{
		ID: "event-1", SisID: "21aNPRG041x01", TermID: term.ID, CourseID: course.ID,
		Type: models.EventTypeLabs, FirstWeek: 1, Length: 90,
	}
	require.NoError(t, db.Create(event).Error)

	sisID := "12345678"
	user := &models.User{ID: "user-1", InstanceID: "instance-1", SisID: &sisID,
		FirstName: "John", LastName: "Smith", Email: "john@example.org", Role: "student"}
	require.NoError(t, db.Create(user).Error)

	require.NoError(t, db.Create(&models.Affiliation{
		UserID: user.ID, EventID: event.ID, TermID: term.ID, Type: affiliation,
	}).Error)

	return user, event
}

func TestCheckJoin(t *testing.T) {
	db := setupTestDB(t)
	user, event := joinFixtures(t, db, models.AffiliationStudent)

	groups := map[string]*recodex.Group{
		"bound": policyGroup("bound", "", map[string][]string{
			recodex.AttrGroupKey: {event.SisID},
		}),
		"unbound": policyGroup("unbound", "", nil),
		"stale": policyGroup("stale", "", map[string][]string{
			recodex.AttrGroupKey: {"no-such-event"},
		}),
	}

	assert.NoError(t, CheckJoin(db, groups, "bound", user, time.Now()))

	assertPolicyStatus(t, CheckJoin(db, groups, "unbound", user, time.Now()), 403)
	assertPolicyStatus(t, CheckJoin(db, groups, "stale", user, time.Now()), 403)
	assertPolicyStatus(t, CheckJoin(db, groups, "nonexistent", user, time.Now()), 404)

	// existing membership blocks the join
	groups["bound"].Membership = recodex.MembershipStudent
	assertPolicyStatus(t, CheckJoin(db, groups, "bound", user, time.Now()), 400)
}

func TestCheckJoinRequiresStudentAffiliation(t *testing.T) {
	db := setupTestDB(t)
	user, event := joinFixtures(t, db, models.AffiliationTeacher)

	groups := map[string]*recodex.Group{
		"bound": policyGroup("bound", "", map[string][]string{
			recodex.AttrGroupKey: {event.SisID},
		}),
	}

	assertPolicyStatus(t, CheckJoin(db, groups, "bound", user, time.Now()), 403)
}

func TestCheckJoinOutsideAdvertisementWindow(t *testing.T) {
	db := setupTestDB(t)
	user, event := joinFixtures(t, db, models.AffiliationStudent)

	groups := map[string]*recodex.Group{
		"bound": policyGroup("bound", "", map[string][]string{
			recodex.AttrGroupKey: {event.SisID},
		}),
	}

	future := time.Now().Add(48 * time.Hour)
	assertPolicyStatus(t, CheckJoin(db, groups, "bound", user, future), 403)
}

func TestEventAffiliationChecks(t *testing.T) {
	db := setupTestDB(t)
	user, event := joinFixtures(t, db, models.AffiliationGuarantor)

	// reload with associations the way the web layer gets them
	var loaded models.ScheduleEvent
	require.NoError(t, db.Preload("Term").Preload("Course").First(&loaded, "id = ?", event.ID).Error)

	enrolled, err := UserEnrolledFor(db, user, &loaded)
	require.NoError(t, err)
	assert.False(t, enrolled)

	teacher, err := UserTeacherOf(db, user, &loaded)
	require.NoError(t, err)
	assert.True(t, teacher)

	allowed, err := CanManageGroupsForEvent(db, user, &loaded, time.Now())
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = CanJoinGroupForEvent(db, user, &loaded, time.Now())
	require.NoError(t, err)
	assert.False(t, allowed)
}
