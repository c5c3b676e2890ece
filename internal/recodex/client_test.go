package recodex

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recodex/sis-binding/internal/config"
	"github.com/recodex/sis-binding/internal/db/models"
)

const testUserJSON = `{
	"id": "user-1",
	"name": {
		"titlesBeforeName": "Bc.",
		"firstName": "John",
		"lastName": "Smith",
		"titlesAfterName": ""
	},
	"privateData": {
		"email": "john@example.org",
		"role": "student",
		"instanceIds": ["instance-1"],
		"externalIds": {"cas-uk": "12345678", "ldap-uk": "smithj"},
		"settings": {"defaultLanguage": "cs"}
	}
}`

// newTestClient spins up a stub API server and a client pointed at it.
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return New(config.Recodex{
		APIBase:     server.URL + "/",
		ExtensionID: "sis-cuni",
		SisIDKey:    "cas-uk",
		SisLoginKey: "ldap-uk",
	})
}

func writeEnvelope(w http.ResponseWriter, payload string) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"success": true, "code": 200, "payload": %s}`, payload)
}

func TestClientUser(t *testing.T) {
	var capturedPath, capturedAuth string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		capturedPath = r.URL.Path
		capturedAuth = r.Header.Get("Authorization")
		writeEnvelope(w, testUserJSON)
	})

	user, err := client.User(context.Background(), "tok", "user-1")
	require.NoError(t, err)

	assert.Equal(t, "/v1/users/user-1", capturedPath)
	assert.Equal(t, "Bearer tok", capturedAuth)
	assert.Equal(t, "user-1", user.ID())
	require.NotNil(t, user.SisID())
	assert.Equal(t, "12345678", *user.SisID())
	require.NotNil(t, user.SisLogin())
	assert.Equal(t, "smithj", *user.SisLogin())
	assert.Equal(t, "cs", user.DefaultLanguage())
	assert.True(t, user.BelongsToInstance("instance-1"))
	assert.False(t, user.BelongsToInstance("instance-2"))
}

func TestClientErrorResponses(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		expected string
	}{
		{
			name: "non-200 status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			expected: "HTTP request failed (response 500)",
		},
		{
			name: "non-JSON content type",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/html")
				fmt.Fprint(w, "<html></html>")
			},
			expected: "JSON body was expected",
		},
		{
			name: "envelope error message",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{"success": false, "code": 403, "error": {"message": "forbidden by policy"}}`)
			},
			expected: "forbidden by policy",
		},
		{
			name: "envelope error without message",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{"success": false, "code": 451}`)
			},
			expected: "API responded with error code 451",
		},
		{
			name: "malformed envelope",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, "{truncated")
			},
			expected: "malformed JSON envelope",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			client := newTestClient(t, test.handler)

			_, err := client.User(context.Background(), "tok", "user-1")
			require.Error(t, err)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Contains(t, apiErr.Message, test.expected)
		})
	}
}

func TestClientTokenAndUser(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/extensions/sis-cuni", r.URL.Path)
		assert.Equal(t, "Bearer tmp-token", r.Header.Get("Authorization"))
		writeEnvelope(w, fmt.Sprintf(`{"accessToken": "full-token", "user": %s}`, testUserJSON))
	})

	token, user, err := client.TokenAndUser(context.Background(), "tmp-token")
	require.NoError(t, err)
	assert.Equal(t, "full-token", token)
	assert.Equal(t, "user-1", user.ID())
}

func TestClientRefreshToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/login/refresh", r.URL.Path)
		assert.Equal(t, "Bearer old-token", r.Header.Get("Authorization"))
		writeEnvelope(w, `{"accessToken": "renewed-token"}`)
	})

	token, err := client.RefreshToken(context.Background(), "old-token")
	require.NoError(t, err)
	assert.Equal(t, "renewed-token", token)
}

func TestClientUpdateUser(t *testing.T) {
	var capturedBody map[string]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&capturedBody))
		writeEnvelope(w, fmt.Sprintf(`{"user": %s}`, testUserJSON))
	})

	local := &models.User{
		ID:        "user-1",
		FirstName: "John",
		LastName:  "Smith",
		Email:     "john@example.org",
	}
	updated, err := client.UpdateUser(context.Background(), "tok", local)
	require.NoError(t, err)

	assert.Equal(t, "John", capturedBody["firstName"])
	assert.Equal(t, "john@example.org", capturedBody["email"])
	assert.Equal(t, "user-1", updated.ID())
}

func TestClientGroups(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/group-attributes", r.URL.Path)
		query := r.URL.Query()
		assert.Equal(t, "instance-1", query.Get("instance"))
		assert.Equal(t, "sis-cuni", query.Get("service"))
		assert.Equal(t, "user-1", query.Get("user"))
		writeEnvelope(w, fmt.Sprintf("[%s]", testGroupJSON))
	})

	user := &models.User{ID: "user-1", InstanceID: "instance-1"}
	groups, err := client.Groups(context.Background(), "tok", user)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Contains(t, groups, "g1")
	assert.Equal(t, MembershipStudent, groups["g1"].Membership)
}

func TestClientExternalIDs(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/users/user-1/external-login/ldap-uk", r.URL.Path)
		writeEnvelope(w, testUserJSON)
	})

	updated, err := client.SetExternalID(context.Background(), "tok", "user-1", "ldap-uk", "smithj")
	require.NoError(t, err)
	assert.Equal(t, "user-1", updated.ID())

	updated, err = client.RemoveExternalID(context.Background(), "tok", "user-1", "ldap-uk")
	require.NoError(t, err)
	assert.Equal(t, "user-1", updated.ID())
}

// fakeJWT builds an unsigned token with the given payload claims.
func fakeJWT(t *testing.T, claims map[string]any) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	payload, err := json.Marshal(claims)
	require.NoError(t, err)

	return header + "." + base64.RawURLEncoding.EncodeToString(payload) + ".c2ln"
}

func TestTempTokenInstance(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})

	tests := []struct {
		name     string
		token    string
		instance string
		wantErr  bool
	}{
		{
			name:     "valid token",
			token:    fakeJWT(t, map[string]any{"instance": "instance-1", "extension": "sis-cuni"}),
			instance: "instance-1",
		},
		{
			name:    "different extension",
			token:   fakeJWT(t, map[string]any{"instance": "instance-1", "extension": "other"}),
			wantErr: true,
		},
		{
			name:    "missing instance",
			token:   fakeJWT(t, map[string]any{"extension": "sis-cuni"}),
			wantErr: true,
		},
		{
			name:    "garbage",
			token:   "not-a-jwt",
			wantErr: true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			instance, err := client.TempTokenInstance(test.token)
			if test.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, test.instance, instance)
			}
		})
	}
}

func TestUserApplyTo(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, testUserJSON)
	})
	user, err := client.User(context.Background(), "tok", "user-1")
	require.NoError(t, err)

	local, err := user.NewLocalUser("instance-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", local.ID)
	assert.Equal(t, "12345678", local.SisIDValue())

	// applying the same view again must be a no-op
	changed, err := user.ApplyTo(local)
	require.NoError(t, err)
	assert.False(t, changed)

	// a drifted field gets overridden
	local.Email = "old@example.org"
	changed, err = user.ApplyTo(local)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "john@example.org", local.Email)

	// mismatched identity is rejected
	local.ID = "someone-else"
	_, err = user.ApplyTo(local)
	assert.Error(t, err)

	_, err = user.NewLocalUser("instance-2")
	assert.Error(t, err)
}
