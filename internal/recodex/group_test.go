package recodex

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testGroupJSON = `{
	"id": "g1",
	"parentGroupId": "g0",
	"admins": {
		"u1": {
			"titlesBeforeName": "doc.",
			"firstName": "Jane",
			"lastName": "Doe",
			"titlesAfterName": "Ph.D.",
			"email": "jane@example.org"
		}
	},
	"localizedTexts": [
		{"locale": "en", "name": "Labs 101", "description": "Monday labs"},
		{"locale": "cs", "name": "Cviceni 101", "description": "Pondelni cviceni"}
	],
	"organizational": false,
	"exam": false,
	"public": true,
	"detaining": false,
	"archived": false,
	"attributes": {
		"sis-cuni": {"group": ["21aMOCK001x01"], "term": []},
		"other-ext": {"group": ["should-not-leak"]}
	},
	"membership": "student"
}`

func TestParseGroup(t *testing.T) {
	group, err := parseGroup(json.RawMessage(testGroupJSON), "sis-cuni")
	require.NoError(t, err)

	assert.Equal(t, "g1", group.ID)
	assert.Equal(t, "g0", group.ParentGroupID)
	assert.Equal(t, "Labs 101", group.Name["en"])
	assert.Equal(t, "Pondelni cviceni", group.Description["cs"])
	assert.True(t, group.Public)
	assert.False(t, group.Organizational)
	assert.Equal(t, MembershipStudent, group.Membership)

	require.Contains(t, group.Admins, "u1")
	assert.Equal(t, "Jane", group.Admins["u1"].FirstName)

	// attributes of other extensions must not leak in
	assert.True(t, group.HasGroupAttribute("21aMOCK001x01"))
	assert.False(t, group.HasGroupAttribute("should-not-leak"))
	assert.False(t, group.HasTermAttribute())
}

func TestParseGroupNullMembership(t *testing.T) {
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(json.RawMessage(testGroupJSON), &raw))
	raw["membership"] = json.RawMessage("null")
	raw["parentGroupId"] = json.RawMessage("null")
	data, err := json.Marshal(raw)
	require.NoError(t, err)

	group, err := parseGroup(data, "sis-cuni")
	require.NoError(t, err)
	assert.Equal(t, MembershipNone, group.Membership)
	assert.Equal(t, "", group.ParentGroupID)
}

func TestParseGroupUnknownService(t *testing.T) {
	group, err := parseGroup(json.RawMessage(testGroupJSON), "unknown-ext")
	require.NoError(t, err)
	assert.Empty(t, group.Attributes)
	assert.False(t, group.HasCourseAttribute())
}

func TestParseGroupMissingKeys(t *testing.T) {
	for _, key := range requiredGroupKeys {
		t.Run(key, func(t *testing.T) {
			var raw map[string]json.RawMessage
			require.NoError(t, json.Unmarshal(json.RawMessage(testGroupJSON), &raw))
			delete(raw, key)
			data, err := json.Marshal(raw)
			require.NoError(t, err)

			_, err = parseGroup(data, "sis-cuni")
			require.Error(t, err)
			assert.Contains(t, err.Error(), fmt.Sprintf("'%s'", key))
		})
	}
}

func TestParseGroupMissingAdminKey(t *testing.T) {
	data := json.RawMessage(`{
		"id": "g1", "parentGroupId": null,
		"admins": {"u1": {"firstName": "Jane"}},
		"localizedTexts": [],
		"organizational": false, "exam": false, "public": false, "detaining": false,
		"attributes": {}, "membership": null
	}`)

	_, err := parseGroup(data, "sis-cuni")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "u1")
}

func TestParseGroupMissingLocalizedTextKey(t *testing.T) {
	data := json.RawMessage(`{
		"id": "g1", "parentGroupId": null, "admins": {},
		"localizedTexts": [{"locale": "en", "name": "No description"}],
		"organizational": false, "exam": false, "public": false, "detaining": false,
		"attributes": {}, "membership": null
	}`)

	_, err := parseGroup(data, "sis-cuni")
	require.Error(t, err)
}

func TestHasAttribute(t *testing.T) {
	group := &Group{
		Attributes: map[string][]string{
			AttrCourseKey: {"NPRG041", "NPRG042"},
			AttrTermKey:   {},
		},
	}

	assert.True(t, group.HasAttribute(AttrCourseKey))
	assert.True(t, group.HasCourseAttribute("NPRG042"))
	assert.True(t, group.HasCourseAttribute("NSWI000", "NPRG041"))
	assert.False(t, group.HasCourseAttribute("NSWI000"))
	assert.False(t, group.HasTermAttribute(), "empty value list is not an attribute")
	assert.False(t, group.HasGroupAttribute())
}

func TestDisplayName(t *testing.T) {
	group := &Group{Name: map[string]string{"cs": "Cviceni"}}
	assert.Equal(t, "Cviceni", group.DisplayName())

	group.Name["en"] = "Labs"
	assert.Equal(t, "Labs", group.DisplayName())
}
