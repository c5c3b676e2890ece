package recodex

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/recodex/sis-binding/internal/config"
	"github.com/recodex/sis-binding/internal/db/models"
)

const (
	defaultTimeout = 30 * time.Second
)

// Client wraps the ReCodEx REST API. The client holds no authentication
// state; the caller passes the access token with every call.
type Client struct {
	apiBase     string
	extensionID string
	sisIDKey    string
	sisLoginKey string
	http        *http.Client
}

// New creates a ReCodEx API client from the configuration.
func New(cfg config.Recodex) *Client {
	transport := http.DefaultTransport
	if !cfg.Verify() {
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec
		}
	}

	return &Client{
		apiBase:     cfg.APIBase + "v1/",
		extensionID: cfg.ExtensionID,
		sisIDKey:    cfg.SisIDKey,
		sisLoginKey: cfg.SisLoginKey,
		http: &http.Client{
			Timeout:   defaultTimeout,
			Transport: transport,
		},
	}
}

// ExtensionID returns the identifier of this extension in the ReCodEx config.
func (c *Client) ExtensionID() string {
	return c.extensionID
}

// SisIDKey returns the external-login key under which ReCodEx keeps the
// university personal identifier.
func (c *Client) SisIDKey() string {
	return c.sisIDKey
}

// SisLoginKey returns the external-login key under which ReCodEx keeps the
// SIS login.
func (c *Client) SisLoginKey() string {
	return c.sisLoginKey
}

// request performs an API call and unwraps the JSON envelope, returning the payload.
func (c *Client) request(
	ctx context.Context, method, path, token string, query url.Values, body any,
) (json.RawMessage, error) {
	target := c.apiBase + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close response body")
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return processEnvelope(resp, raw)
}

// processEnvelope verifies the response and extracts the envelope payload.
func processEnvelope(resp *http.Response, raw []byte) (json.RawMessage, error) {
	if resp.StatusCode != http.StatusOK {
		return nil, newAPIError(
			fmt.Sprintf("HTTP request failed (response %d)", resp.StatusCode),
			resp.StatusCode, string(raw))
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		return nil, newAPIError(
			fmt.Sprintf("JSON body was expected but '%s' returned instead", contentType),
			resp.StatusCode, string(raw))
	}

	var envelope struct {
		Success bool            `json:"success"`
		Code    int             `json:"code"`
		Payload json.RawMessage `json:"payload"`
		Error   struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, newAPIError("malformed JSON envelope in the API response", resp.StatusCode, string(raw))
	}

	if !envelope.Success {
		message := envelope.Error.Message
		if message == "" {
			message = fmt.Sprintf("API responded with error code %d", envelope.Code)
		}

		return nil, newAPIError(message, resp.StatusCode, string(raw))
	}

	return envelope.Payload, nil
}

func (c *Client) get(ctx context.Context, path, token string, query url.Values) (json.RawMessage, error) {
	return c.request(ctx, http.MethodGet, path, token, query, nil)
}

func (c *Client) post(ctx context.Context, path, token string, query url.Values, body any) (json.RawMessage, error) {
	return c.request(ctx, http.MethodPost, path, token, query, body)
}

func (c *Client) delete(ctx context.Context, path, token string, query url.Values) (json.RawMessage, error) {
	return c.request(ctx, http.MethodDelete, path, token, query, nil)
}

// TempTokenInstance parses the temporary JWT without verifying its signature
// and returns the instance ID from the payload. The signature is verified by
// ReCodEx when the token is exchanged for a full one.
func (c *Client) TempTokenInstance(token string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", newAPIError("invalid temporary JWT given", 0, "")
	}

	instance, _ := claims["instance"].(string)
	if instance == "" {
		return "", newAPIError("invalid temporary JWT given", 0, "")
	}

	extension, _ := claims["extension"].(string)
	if extension != c.extensionID {
		return "", newAPIError("temporary JWT is designated for a different extension", 0, "")
	}

	return instance, nil
}

// TokenAndUser completes the authentication process. The temporary token is
// exchanged for a full access token and the authenticated user's data.
func (c *Client) TokenAndUser(ctx context.Context, tmpToken string) (string, *User, error) {
	payload, err := c.post(ctx, "extensions/"+c.extensionID, tmpToken, nil, nil)
	if err != nil {
		return "", nil, err
	}

	var body struct {
		AccessToken string          `json:"accessToken"`
		User        json.RawMessage `json:"user"`
	}
	if err := json.Unmarshal(payload, &body); err != nil || body.AccessToken == "" || len(body.User) == 0 {
		return "", nil, newAPIError("unexpected ReCodEx API response from extension token endpoint", 0, string(payload))
	}

	user, err := c.parseUser(body.User)
	if err != nil {
		return "", nil, err
	}

	return body.AccessToken, user, nil
}

// RefreshToken exchanges a still valid delegated token for a fresh one with a
// renewed expiration.
func (c *Client) RefreshToken(ctx context.Context, token string) (string, error) {
	payload, err := c.post(ctx, "login/refresh", token, nil, nil)
	if err != nil {
		return "", err
	}

	var body struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(payload, &body); err != nil || body.AccessToken == "" {
		return "", newAPIError("unexpected ReCodEx API response from token refresh endpoint", 0, string(payload))
	}

	return body.AccessToken, nil
}

// User retrieves fresh data of the given user.
func (c *Client) User(ctx context.Context, token, id string) (*User, error) {
	payload, err := c.get(ctx, "users/"+id, token, nil)
	if err != nil {
		return nil, err
	}

	return c.parseUser(payload)
}

// UpdateUser posts the name parts and email of the cached user entity to
// ReCodEx and returns the updated user data.
func (c *Client) UpdateUser(ctx context.Context, token string, user *models.User) (*User, error) {
	body := map[string]string{
		"titlesBeforeName": user.TitlesBeforeName,
		"firstName":        user.FirstName,
		"lastName":         user.LastName,
		"titlesAfterName":  user.TitlesAfterName,
		"email":            user.Email,
	}

	payload, err := c.post(ctx, "users/"+user.ID, token, nil, body)
	if err != nil {
		return nil, err
	}

	var res struct {
		User json.RawMessage `json:"user"`
	}
	if err := json.Unmarshal(payload, &res); err != nil || len(res.User) == 0 {
		return nil, newAPIError("unexpected ReCodEx API response from update user's profile endpoint",
			0, string(payload))
	}

	updated, err := c.parseUser(res.User)
	if err != nil {
		return nil, err
	}
	if updated.ID() != user.ID {
		return nil, newAPIError("unexpected ReCodEx API response from update user's profile endpoint",
			0, string(payload))
	}

	return updated, nil
}

// SetExternalID sets or updates the external ID of the user for the given
// authentication service.
func (c *Client) SetExternalID(ctx context.Context, token, userID, service, externalID string) (*User, error) {
	body := map[string]string{"externalId": externalID}

	payload, err := c.post(ctx, "users/"+userID+"/external-login/"+service, token, nil, body)
	if err != nil {
		return nil, err
	}

	updated, err := c.parseUser(payload)
	if err != nil || updated.ID() != userID {
		return nil, newAPIError("unexpected ReCodEx API response from update user's external ID endpoint",
			0, string(payload))
	}

	return updated, nil
}

// RemoveExternalID removes the external ID of the user for the given
// authentication service.
func (c *Client) RemoveExternalID(ctx context.Context, token, userID, service string) (*User, error) {
	payload, err := c.delete(ctx, "users/"+userID+"/external-login/"+service, token, nil)
	if err != nil {
		return nil, err
	}

	updated, err := c.parseUser(payload)
	if err != nil || updated.ID() != userID {
		return nil, newAPIError("unexpected ReCodEx API response from remove user's external ID endpoint",
			0, string(payload))
	}

	return updated, nil
}

// Groups fetches all non-archived groups with attributes of this extension
// and the membership relation of the given user. Groups are indexed by ID.
func (c *Client) Groups(ctx context.Context, token string, user *models.User) (map[string]*Group, error) {
	query := url.Values{}
	query.Set("instance", user.InstanceID)
	query.Set("service", c.extensionID)
	query.Set("user", user.ID)

	payload, err := c.get(ctx, "group-attributes", token, query)
	if err != nil {
		return nil, err
	}

	var items []json.RawMessage
	if err := json.Unmarshal(payload, &items); err != nil {
		return nil, newAPIError("unexpected ReCodEx API response from group-attributes endpoint", 0, string(payload))
	}

	groups := make(map[string]*Group, len(items))
	for _, item := range items {
		group, err := parseGroup(item, c.extensionID)
		if err != nil {
			return nil, err
		}
		groups[group.ID] = group
	}

	return groups, nil
}

// CreateGroupRequest holds parameters for a new ReCodEx group.
type CreateGroupRequest struct {
	InstanceID     string
	ParentGroupID  string
	Names          map[string]string // locale -> name
	Descriptions   map[string]string // locale -> description
	Organizational bool
	Public         bool
	Detaining      bool
}

// CreateGroup creates a new group under the given parent.
func (c *Client) CreateGroup(ctx context.Context, token string, req CreateGroupRequest) (*Group, error) {
	type localizedText struct {
		Locale      string `json:"locale"`
		Name        string `json:"name"`
		Description string `json:"description"`
	}

	texts := make([]localizedText, 0, len(req.Names))
	for locale, name := range req.Names {
		texts = append(texts, localizedText{
			Locale:      locale,
			Name:        name,
			Description: req.Descriptions[locale],
		})
	}

	body := map[string]any{
		"instanceId":       req.InstanceID,
		"parentGroupId":    req.ParentGroupID,
		"localizedTexts":   texts,
		"isOrganizational": req.Organizational,
		"isPublic":         req.Public,
		"detaining":        req.Detaining,
		"noAdmin":          true,
	}

	payload, err := c.post(ctx, "groups", token, nil, body)
	if err != nil {
		return nil, err
	}

	return parseGroup(payload, c.extensionID)
}

// AddGroupAttribute attaches a key-value attribute of this extension to the group.
func (c *Client) AddGroupAttribute(ctx context.Context, token, groupID, key, value string) error {
	query := url.Values{}
	query.Set("service", c.extensionID)
	body := map[string]string{"key": key, "value": value}

	_, err := c.post(ctx, "group-attributes/"+groupID, token, query, body)

	return err
}

// RemoveGroupAttribute detaches a key-value attribute of this extension from the group.
func (c *Client) RemoveGroupAttribute(ctx context.Context, token, groupID, key, value string) error {
	query := url.Values{}
	query.Set("service", c.extensionID)
	query.Set("key", key)
	query.Set("value", value)

	_, err := c.delete(ctx, "group-attributes/"+groupID, token, query)

	return err
}

// AddStudent adds the user into the group as a student member.
func (c *Client) AddStudent(ctx context.Context, token, groupID, userID string) error {
	_, err := c.post(ctx, "groups/"+groupID+"/students/"+userID, token, nil, nil)

	return err
}

// RemoveStudent removes the user from the student members of the group.
func (c *Client) RemoveStudent(ctx context.Context, token, groupID, userID string) error {
	_, err := c.delete(ctx, "groups/"+groupID+"/students/"+userID, token, nil)

	return err
}

// AddAdmin promotes the user to a group administrator.
func (c *Client) AddAdmin(ctx context.Context, token, groupID, userID string) error {
	body := map[string]string{"type": "admin"}
	_, err := c.post(ctx, "groups/"+groupID+"/members/"+userID, token, nil, body)

	return err
}

// RemoveAdmin removes the user from the group administrators.
func (c *Client) RemoveAdmin(ctx context.Context, token, groupID, userID string) error {
	_, err := c.delete(ctx, "groups/"+groupID+"/members/"+userID, token, nil)

	return err
}

// SetArchived sets or removes the archived flag of the group.
func (c *Client) SetArchived(ctx context.Context, token, groupID string, archived bool) error {
	var err error
	if archived {
		_, err = c.post(ctx, "groups/"+groupID+"/archived", token, nil, nil)
	} else {
		_, err = c.delete(ctx, "groups/"+groupID+"/archived", token, nil)
	}

	return err
}

// parseUser decodes and validates a ReCodEx user view.
func (c *Client) parseUser(data json.RawMessage) (*User, error) {
	user := &User{
		sisIDKey:    c.sisIDKey,
		sisLoginKey: c.sisLoginKey,
	}
	if err := json.Unmarshal(data, &user.data); err != nil {
		return nil, newAPIError("malformed ReCodEx user view in the API response", 0, string(data))
	}
	if err := user.validate(); err != nil {
		return nil, err
	}

	return user, nil
}
