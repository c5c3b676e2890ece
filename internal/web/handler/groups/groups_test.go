package groups

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/recodex/sis-binding/internal/auth"
	"github.com/recodex/sis-binding/internal/config"
	"github.com/recodex/sis-binding/internal/db/models"
	"github.com/recodex/sis-binding/internal/recodex"
	"github.com/recodex/sis-binding/internal/web/handler"
)

const (
	testSecret = "test-secret"
	eventSisID = "25aNPRG041x01"
)

// wireGroup builds a group record in the shape the ReCodEx API serves.
func wireGroup(id, parent, membership string, attrs map[string][]string) map[string]any {
	if attrs == nil {
		attrs = map[string][]string{}
	}
	var member any
	if membership != "" {
		member = membership
	}

	return map[string]any{
		"id":            id,
		"parentGroupId": parent,
		"admins":        map[string]any{},
		"localizedTexts": []map[string]any{
			{"locale": "en", "name": "Group " + id, "description": ""},
		},
		"organizational": false,
		"exam":           false,
		"public":         false,
		"detaining":      true,
		"archived":       false,
		"attributes":     map[string]any{"sis-cuni": attrs},
		"membership":     member,
	}
}

type callLog struct {
	calls []string
}

func (l *callLog) has(call string) bool {
	for _, c := range l.calls {
		if c == call {
			return true
		}
	}

	return false
}

// newGroupsApp wires the handler against a stub ReCodEx serving the given
// hierarchy snapshot and recording all mutation calls.
func newGroupsApp(t *testing.T, hierarchy []map[string]any) (*fiber.App, *callLog) {
	t.Helper()

	log := &callLog{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writePayload := func(payload any) {
			w.Header().Set("Content-Type", "application/json")
			raw, err := json.Marshal(map[string]any{"success": true, "code": 200, "payload": payload})
			require.NoError(t, err)
			_, _ = w.Write(raw)
		}

		if r.Method == http.MethodGet && r.URL.Path == "/v1/group-attributes" {
			writePayload(hierarchy)
			return
		}

		log.calls = append(log.calls, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodPost && r.URL.Path == "/v1/groups" {
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			writePayload(wireGroup("new-group", body["parentGroupId"].(string), "", nil))
			return
		}
		writePayload("OK")
	}))
	t.Cleanup(server.Close)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "failed to create test database")
	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.Term{}, &models.Course{}, &models.ScheduleEvent{}, &models.Affiliation{},
	))

	cfg := &config.Config{
		Webserver: config.Webserver{TokenSecret: testSecret, TokenExpiryHours: 1},
		Recodex: config.Recodex{
			APIBase:     server.URL + "/",
			ExtensionID: "sis-cuni",
			SisIDKey:    "cas-uk",
			SisLoginKey: "ldap-uk",
		},
	}

	app := fiber.New(fiber.Config{ErrorHandler: handler.SendError})
	service := Service{}
	require.NoError(t, service.Init(app, cfg, db, &handler.Clients{Recodex: recodex.New(cfg.Recodex)}))

	seedEventFixtures(t, db)

	return app, log
}

// seedEventFixtures caches one advertised term with a course and one
// scheduling event, plus a student and a teacher affiliated with the event.
func seedEventFixtures(t *testing.T, db *gorm.DB) {
	t.Helper()

	now := time.Now()
	term := &models.Term{
		ID: "term-1", Year: 2025, Term: 1,
		StudentsFrom: now.Add(-time.Hour), StudentsUntil: now.Add(time.Hour),
		TeachersFrom: now.Add(-time.Hour), TeachersUntil: now.Add(time.Hour),
	}
	require.NoError(t, db.Create(term).Error)

	course := &models.Course{ID: "course-1", Code: "NPRG041", CaptionCs: "C++", CaptionEn: "C++"}
	require.NoError(t, db.Create(course).Error)

	event := &models.ScheduleEvent{
		ID: "event-1", SisID: eventSisID, TermID: term.ID, CourseID: course.ID,
		Type: models.EventTypeLabs, FirstWeek: 1, Length: 90,
	}
	require.NoError(t, db.Create(event).Error)

	for _, fixture := range []struct {
		id          string
		role        string
		affiliation models.AffiliationType
	}{
		{id: "student-1", role: "student", affiliation: models.AffiliationStudent},
		{id: "teacher-1", role: "supervisor", affiliation: models.AffiliationTeacher},
	} {
		require.NoError(t, db.Create(&models.User{
			ID: fixture.id, InstanceID: "instance-1", FirstName: "John", LastName: "Smith",
			Email: fixture.id + "@example.org", Role: fixture.role, DefaultLanguage: "en",
			TokenPrefix: "rex-prefix-",
		}).Error)
		require.NoError(t, db.Create(&models.Affiliation{
			UserID: fixture.id, EventID: event.ID, TermID: term.ID, Type: fixture.affiliation,
		}).Error)
	}
}

func issueToken(t *testing.T, userID string) string {
	t.Helper()
	token, err := auth.Issue(testSecret, userID, "suffix", []string{auth.ScopeMaster}, time.Hour)
	require.NoError(t, err)

	return token
}

// hierarchy: a course root, a term group under it, and one bound lab group.
func testHierarchy(courseMembership, labMembership string) []map[string]any {
	return []map[string]any{
		wireGroup("course-a", "", courseMembership, map[string][]string{recodex.AttrCourseKey: {"NPRG041"}}),
		wireGroup("term-a", "course-a", "", map[string][]string{recodex.AttrTermKey: {"2025-1"}}),
		wireGroup("lab-a", "term-a", labMembership, map[string][]string{recodex.AttrGroupKey: {eventSisID}}),
		wireGroup("lab-b", "term-a", "", nil),
		wireGroup("other-root", "", "", nil),
	}
}

func doRequest(t *testing.T, app *fiber.App, method, path, token, body string) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+token)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	require.NoError(t, err)

	return resp
}

func decodeRoots(t *testing.T, resp *http.Response) []recodex.Group {
	t.Helper()

	var envelope struct {
		Success bool            `json:"success"`
		Payload []recodex.Group `json:"payload"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.True(t, envelope.Success)

	return envelope.Payload
}

func TestGroupsStudentListing(t *testing.T) {
	app, _ := newGroupsApp(t, testHierarchy("", ""))
	token := issueToken(t, "student-1")

	resp := doRequest(t, app, "GET", "/groups/student?eventIds="+eventSisID, token, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	roots := decodeRoots(t, resp)
	require.Len(t, roots, 1)
	assert.Equal(t, "course-a", roots[0].ID)
	require.Len(t, roots[0].Children, 1)
	assert.Equal(t, "term-a", roots[0].Children[0].ID)
	require.Len(t, roots[0].Children[0].Children, 1)
	assert.Equal(t, "lab-a", roots[0].Children[0].Children[0].ID)
}

func TestGroupsTeacherListing(t *testing.T) {
	app, _ := newGroupsApp(t, testHierarchy("", ""))
	token := issueToken(t, "teacher-1")

	resp := doRequest(t, app, "GET", "/groups/teacher?courseIds=NPRG041", token, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	roots := decodeRoots(t, resp)
	require.Len(t, roots, 1)
	assert.Equal(t, "course-a", roots[0].ID)
	require.Len(t, roots[0].Children, 1)
	// descendants of the selected course group are included as possible targets
	assert.Len(t, roots[0].Children[0].Children, 2)
}

func TestGroupJoin(t *testing.T) {
	app, calls := newGroupsApp(t, testHierarchy("", ""))
	token := issueToken(t, "student-1")

	resp := doRequest(t, app, "POST", "/groups/lab-a/join", token, "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.True(t, calls.has("POST /v1/groups/lab-a/students/student-1"))

	// lab-b is not bound to any event the student is enrolled for
	resp = doRequest(t, app, "POST", "/groups/lab-b/join", token, "")
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = doRequest(t, app, "POST", "/groups/nonexistent/join", token, "")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestGroupJoinAlreadyMember(t *testing.T) {
	app, calls := newGroupsApp(t, testHierarchy("", "student"))
	token := issueToken(t, "student-1")

	resp := doRequest(t, app, "POST", "/groups/lab-a/join", token, "")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, calls.calls, "no mutation should be proxied")
}

func TestGroupCreate(t *testing.T) {
	app, calls := newGroupsApp(t, testHierarchy("", ""))
	token := issueToken(t, "teacher-1")

	body := fmt.Sprintf(`{"parentId": "term-a", "eventId": "%s"}`, eventSisID)
	resp := doRequest(t, app, "POST", "/groups", token, body)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	assert.True(t, calls.has("POST /v1/groups"))
	assert.True(t, calls.has("POST /v1/group-attributes/new-group"))
	assert.True(t, calls.has("POST /v1/groups/new-group/members/teacher-1"))
}

func TestGroupCreateRejections(t *testing.T) {
	app, calls := newGroupsApp(t, testHierarchy("", ""))
	teacher := issueToken(t, "teacher-1")
	student := issueToken(t, "student-1")

	tests := []struct {
		name   string
		token  string
		body   string
		status int
	}{
		{
			name:   "students cannot create groups",
			token:  student,
			body:   fmt.Sprintf(`{"parentId": "term-a", "eventId": "%s"}`, eventSisID),
			status: fiber.StatusForbidden,
		},
		{
			name:   "parent outside the course subtree",
			token:  teacher,
			body:   fmt.Sprintf(`{"parentId": "other-root", "eventId": "%s"}`, eventSisID),
			status: fiber.StatusForbidden,
		},
		{
			name:   "unknown event",
			token:  teacher,
			body:   `{"parentId": "term-a", "eventId": "no-such-event"}`,
			status: fiber.StatusNotFound,
		},
		{
			name:   "missing parent",
			token:  teacher,
			body:   fmt.Sprintf(`{"eventId": "%s"}`, eventSisID),
			status: fiber.StatusBadRequest,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			resp := doRequest(t, app, "POST", "/groups", test.token, test.body)
			assert.Equal(t, test.status, resp.StatusCode)
		})
	}
	assert.Empty(t, calls.calls, "no mutation should be proxied")
}

func TestGroupBind(t *testing.T) {
	app, calls := newGroupsApp(t, testHierarchy("", ""))
	token := issueToken(t, "teacher-1")
	body := fmt.Sprintf(`{"eventId": "%s"}`, eventSisID)

	resp := doRequest(t, app, "POST", "/groups/lab-b/bind", token, body)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.True(t, calls.has("POST /v1/group-attributes/lab-b"))

	// lab-a already carries the event binding
	resp = doRequest(t, app, "POST", "/groups/lab-a/bind", token, body)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestGroupUnbind(t *testing.T) {
	// admin membership on the course root is inherited by the whole subtree
	app, calls := newGroupsApp(t, testHierarchy("admin", ""))
	token := issueToken(t, "teacher-1")
	body := fmt.Sprintf(`{"eventId": "%s"}`, eventSisID)

	resp := doRequest(t, app, "POST", "/groups/lab-a/unbind", token, body)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.True(t, calls.has("DELETE /v1/group-attributes/lab-a"))

	resp = doRequest(t, app, "POST", "/groups/lab-b/unbind", token, body)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestGroupUnbindRequiresAdmin(t *testing.T) {
	app, calls := newGroupsApp(t, testHierarchy("", ""))
	token := issueToken(t, "teacher-1")
	body := fmt.Sprintf(`{"eventId": "%s"}`, eventSisID)

	resp := doRequest(t, app, "POST", "/groups/lab-a/unbind", token, body)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Empty(t, calls.calls, "no mutation should be proxied")
}

func TestGroupAttributeEdit(t *testing.T) {
	app, calls := newGroupsApp(t, testHierarchy("admin", ""))
	token := issueToken(t, "teacher-1")
	body := fmt.Sprintf(`{"key": "%s", "value": "25bNPRG041x01"}`, recodex.AttrGroupKey)

	resp := doRequest(t, app, "POST", "/groups/lab-b/attributes", token, body)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.True(t, calls.has("POST /v1/group-attributes/lab-b"))

	resp = doRequest(t, app, "DELETE", "/groups/lab-a/attributes", token,
		fmt.Sprintf(`{"key": "%s", "value": "%s"}`, recodex.AttrGroupKey, eventSisID))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.True(t, calls.has("DELETE /v1/group-attributes/lab-a"))
}

func TestGroupAttributeEditRejections(t *testing.T) {
	app, calls := newGroupsApp(t, testHierarchy("", ""))
	token := issueToken(t, "student-1")
	body := fmt.Sprintf(`{"key": "%s", "value": "25bNPRG041x01"}`, recodex.AttrGroupKey)

	// no administration rights on the group
	resp := doRequest(t, app, "POST", "/groups/lab-a/attributes", token, body)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	// incomplete request body
	resp = doRequest(t, app, "POST", "/groups/lab-a/attributes", token, `{"key": "group"}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	assert.Empty(t, calls.calls, "no mutation should be proxied")
}

func TestGroupArchive(t *testing.T) {
	app, calls := newGroupsApp(t, testHierarchy("admin", ""))
	token := issueToken(t, "teacher-1")

	resp := doRequest(t, app, "POST", "/groups/lab-a/archived", token, "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.True(t, calls.has("POST /v1/groups/lab-a/archived"))

	resp = doRequest(t, app, "DELETE", "/groups/lab-a/archived", token, "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.True(t, calls.has("DELETE /v1/groups/lab-a/archived"))
}

func TestGroupArchiveForbidden(t *testing.T) {
	app, calls := newGroupsApp(t, testHierarchy("", ""))
	token := issueToken(t, "student-1")

	resp := doRequest(t, app, "POST", "/groups/lab-a/archived", token, "")
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Empty(t, calls.calls, "no mutation should be proxied")
}
