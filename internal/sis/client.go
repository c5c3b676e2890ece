// Package sis implements a read-only client for the SIS REST modules.
// The rozvrhng module serves scheduling data, the kdojekdo module serves
// personal records. Both use salted SHA-256 tokens derived from shared
// secrets instead of regular authentication.
package sis

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/recodex/sis-binding/internal/config"
)

const (
	defaultTimeout = 30 * time.Second

	moduleRozvrhng = "rozvrhng"
	moduleKdojekdo = "kdojekdo"
)

// Client wraps the SIS REST modules.
type Client struct {
	apiBase        string
	faculty        string
	secretRozvrhng string
	secretKdojekdo string
	http           *http.Client
	now            func() time.Time
}

// New creates a SIS API client from the configuration.
func New(cfg config.Sis) *Client {
	transport := http.DefaultTransport
	if !cfg.Verify() {
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec
		}
	}

	return &Client{
		apiBase:        cfg.APIBase,
		faculty:        cfg.Faculty,
		secretRozvrhng: cfg.SecretRozvrhng,
		secretKdojekdo: cfg.SecretKdojekdo,
		http: &http.Client{
			Timeout:   defaultTimeout,
			Transport: transport,
		},
		now: time.Now,
	}
}

// saltedToken builds a '<salt>$sha256(<salt>,<secret>)' token.
func saltedToken(salt, secret string) string {
	hash := sha256.Sum256([]byte(salt + "," + secret))

	return salt + "$" + hex.EncodeToString(hash[:])
}

// kdojekdoToken uses the current timestamp as salt.
func (c *Client) kdojekdoToken() string {
	salt := strconv.FormatInt(c.now().Unix(), 10)

	return saltedToken(salt, c.secretKdojekdo)
}

// rozvrhngToken salts the hash with the timestamp, faculty, and the queried user.
func (c *Client) rozvrhngToken(ukco string) string {
	salt := fmt.Sprintf("%d,%s,%s", c.now().Unix(), c.faculty, ukco)

	return saltedToken(salt, c.secretRozvrhng)
}

// get performs a module call and returns the raw response body.
func (c *Client) get(ctx context.Context, module string, query url.Values) ([]byte, error) {
	target := c.apiBase + module + "/rest.php?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, newAPIError(module, "API call failed: "+err.Error(), "")
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close response body")
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newAPIError(module, "reading the response failed: "+err.Error(), "")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, newAPIError(module,
			fmt.Sprintf("API call failed (response %d)", resp.StatusCode), string(raw))
	}

	return raw, nil
}

// UserRecord fetches the personal record of the given user from the kdojekdo module.
func (c *Client) UserRecord(ctx context.Context, ukco string) (*UserRecord, error) {
	query := url.Values{}
	query.Add("oidos[]", ukco)
	query.Set("response_fmt", "json")
	query.Set("do", "osoba")
	query.Set("token", c.kdojekdoToken())

	log.Debug().Str("ukco", ukco).Msg("SIS kdojekdo personal record lookup")

	raw, err := c.get(ctx, moduleKdojekdo, query)
	if err != nil {
		return nil, err
	}

	var body struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
		Errors json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || body.Status != "OK" {
		if len(body.Errors) > 0 {
			return nil, newAPIError(moduleKdojekdo,
				"API call returned error: "+string(body.Errors), string(raw))
		}

		return nil, newAPIError(moduleKdojekdo, "API call returned malformed answer", string(raw))
	}

	record, err := singleRecord(body.Data)
	if err != nil {
		return nil, newAPIError(moduleKdojekdo, err.Error(), string(raw))
	}

	return parseUserRecord(ukco, record)
}

// singleRecord extracts exactly one record from the data field, which is
// either a list or an object keyed by the personal number.
func singleRecord(data json.RawMessage) (json.RawMessage, error) {
	var asList []json.RawMessage
	if err := json.Unmarshal(data, &asList); err == nil {
		if len(asList) != 1 {
			return nil, fmt.Errorf("API call returned %d records instead of one", len(asList))
		}

		return asList[0], nil
	}

	var asMap map[string]json.RawMessage
	if err := json.Unmarshal(data, &asMap); err != nil || len(asMap) != 1 {
		return nil, fmt.Errorf("API call returned malformed answer")
	}
	for _, record := range asMap {
		return record, nil
	}

	return nil, fmt.Errorf("API call returned malformed answer")
}

// Courses fetches scheduling events of the given user from the rozvrhng
// module. Terms are given as '<year>-<term>' strings; an empty list fetches
// all terms the SIS is willing to serve.
func (c *Client) Courses(ctx context.Context, ukco string, terms []string) ([]*CourseRecord, error) {
	query := url.Values{}
	query.Set("endpoint", "muj_rozvrh")
	query.Set("ukco", ukco)
	query.Set("auth_token", c.rozvrhngToken(ukco))
	query.Set("fak", c.faculty)
	query.Add("extras[]", "annotations")
	for _, term := range terms {
		query.Add("semesters[]", term)
	}

	log.Debug().Str("ukco", ukco).Strs("terms", terms).Msg("SIS rozvrhng schedule lookup")

	raw, err := c.get(ctx, moduleRozvrhng, query)
	if err != nil {
		return nil, err
	}

	var body struct {
		Events []json.RawMessage `json:"events"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, newAPIError(moduleRozvrhng, "API call returned malformed answer", string(raw))
	}

	records := make([]*CourseRecord, 0, len(body.Events))
	for _, event := range body.Events {
		record, err := parseCourseRecord(ukco, event)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, nil
}
