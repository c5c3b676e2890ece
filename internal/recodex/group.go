// Package recodex implements a thin typed client for the ReCodEx REST API
// and the in-memory model of its group hierarchy.
package recodex

import (
	"encoding/json"
	"fmt"
)

// Attribute keys owned by this extension.
const (
	// AttrCourseKey holds course identifiers on top-level ReCodEx groups.
	AttrCourseKey = "course"
	// AttrTermKey holds term identifiers on 2nd-level (semester) groups.
	AttrTermKey = "term"
	// AttrGroupKey holds bindings to SIS student groups (scheduling event codes).
	AttrGroupKey = "group"
)

// Membership describes the relation of the requesting user to a group.
type Membership string

// Membership values as reported by ReCodEx; MembershipNone stands for the
// wire-level null (no relation).
const (
	MembershipNone       Membership = ""
	MembershipAdmin      Membership = "admin"
	MembershipSupervisor Membership = "supervisor"
	MembershipObserver   Membership = "observer"
	MembershipStudent    Membership = "student"
)

// GroupAdmin is a lightweight person record attached to a group.
type GroupAdmin struct {
	TitlesBeforeName string `json:"titlesBeforeName"`
	FirstName        string `json:"firstName"`
	LastName         string `json:"lastName"`
	TitlesAfterName  string `json:"titlesAfterName"`
	Email            string `json:"email"`
}

// Group is a node of the ReCodEx group hierarchy with the extension-owned
// attributes already scoped to this service. The hierarchy is fetched fresh
// on every read; no persistent copy is kept.
type Group struct {
	// ID is the ReCodEx group identifier.
	ID string `json:"id"`
	// ParentGroupID is empty for root groups.
	ParentGroupID string `json:"parentGroupId"`
	// Admins maps ReCodEx user IDs to lightweight person records.
	Admins map[string]GroupAdmin `json:"admins"`
	// Name holds group names indexed by locale.
	Name map[string]string `json:"name"`
	// Description holds group descriptions indexed by locale.
	Description map[string]string `json:"description"`
	// Organizational groups do not have assignments.
	Organizational bool `json:"organizational"`
	// Exam marks exam groups.
	Exam bool `json:"exam"`
	// Public marks publicly visible groups.
	Public bool `json:"public"`
	// Detaining groups do not let students leave on their own.
	Detaining bool `json:"detaining"`
	// Archived groups are read-only in ReCodEx.
	Archived bool `json:"archived"`
	// Attributes owned by this extension (key to set of values).
	Attributes map[string][]string `json:"attributes"`
	// Membership of the requesting user, MembershipNone when unrelated.
	Membership Membership `json:"membership"`
	// Children is populated by PopulateChildren, it is not part of wire data.
	Children []*Group `json:"children,omitempty"`
}

// groupWire is the shape of a group record in API responses.
type groupWire struct {
	ID             *string                        `json:"id"`
	ParentGroupID  *string                        `json:"parentGroupId"`
	Admins         map[string]json.RawMessage     `json:"admins"`
	LocalizedTexts []localizedTextWire            `json:"localizedTexts"`
	Organizational *bool                          `json:"organizational"`
	Exam           *bool                          `json:"exam"`
	Public         *bool                          `json:"public"`
	Detaining      *bool                          `json:"detaining"`
	Archived       bool                           `json:"archived"`
	Attributes     map[string]map[string][]string `json:"attributes"`
	Membership     *string                        `json:"membership"`

	raw map[string]json.RawMessage
}

type localizedTextWire struct {
	Locale      *string `json:"locale"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// requiredGroupKeys must all be present in a group API response.
var requiredGroupKeys = []string{
	"id", "parentGroupId", "admins", "localizedTexts",
	"organizational", "exam", "public", "detaining", "attributes", "membership",
}

// requiredAdminKeys must all be present in every admin record.
var requiredAdminKeys = []string{"titlesBeforeName", "firstName", "lastName", "titlesAfterName", "email"}

// parseGroup validates a raw group record and scopes its attributes to the
// given attribute service (this extension's namespace in ReCodEx).
func parseGroup(data json.RawMessage, attributesService string) (*Group, error) {
	var wire groupWire
	if err := json.Unmarshal(data, &wire.raw); err != nil {
		return nil, newAPIError("malformed group record: "+err.Error(), 0, string(data))
	}

	for _, key := range requiredGroupKeys {
		if _, ok := wire.raw[key]; !ok {
			return nil, newAPIError(fmt.Sprintf("missing required key '%s' in group API response", key), 0, string(data))
		}
	}

	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, newAPIError("malformed group record: "+err.Error(), 0, string(data))
	}

	group := &Group{
		ID:             stringOrEmpty(wire.ID),
		ParentGroupID:  stringOrEmpty(wire.ParentGroupID),
		Admins:         map[string]GroupAdmin{},
		Name:           map[string]string{},
		Description:    map[string]string{},
		Organizational: boolOrFalse(wire.Organizational),
		Exam:           boolOrFalse(wire.Exam),
		Public:         boolOrFalse(wire.Public),
		Detaining:      boolOrFalse(wire.Detaining),
		Archived:       wire.Archived,
		Attributes:     wire.Attributes[attributesService],
		Membership:     Membership(stringOrEmpty(wire.Membership)),
	}

	if group.Attributes == nil {
		group.Attributes = map[string][]string{}
	}

	for adminID, raw := range wire.Admins {
		var keys map[string]json.RawMessage
		if err := json.Unmarshal(raw, &keys); err != nil {
			return nil, newAPIError(
				fmt.Sprintf("admin with ID '%s' must be an object", adminID), 0, string(data))
		}
		for _, key := range requiredAdminKeys {
			if _, ok := keys[key]; !ok {
				return nil, newAPIError(
					fmt.Sprintf("admin with ID '%s' is missing required key '%s'", adminID, key), 0, string(data))
			}
		}

		var admin GroupAdmin
		if err := json.Unmarshal(raw, &admin); err != nil {
			return nil, newAPIError(
				fmt.Sprintf("admin with ID '%s' must be an object", adminID), 0, string(data))
		}
		group.Admins[adminID] = admin
	}

	for i, text := range wire.LocalizedTexts {
		if text.Locale == nil || text.Name == nil || text.Description == nil {
			return nil, newAPIError(
				fmt.Sprintf("localizedText at index %d is missing a required key", i), 0, string(data))
		}
		group.Name[*text.Locale] = *text.Name
		group.Description[*text.Locale] = *text.Description
	}

	return group, nil
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}

func boolOrFalse(b *bool) bool {
	return b != nil && *b
}

// HasAttribute checks the attribute multimap. With no values given it is an
// existence check for the key; otherwise it checks whether any of the given
// values is present under the key.
func (g *Group) HasAttribute(key string, values ...string) bool {
	attrValues, ok := g.Attributes[key]
	if !ok || len(attrValues) == 0 {
		return false
	}
	if len(values) == 0 {
		return true
	}

	for _, value := range values {
		for _, attrValue := range attrValues {
			if attrValue == value {
				return true
			}
		}
	}

	return false
}

// HasCourseAttribute checks the 'course' attribute key.
func (g *Group) HasCourseAttribute(values ...string) bool {
	return g.HasAttribute(AttrCourseKey, values...)
}

// HasTermAttribute checks the 'term' attribute key.
func (g *Group) HasTermAttribute(values ...string) bool {
	return g.HasAttribute(AttrTermKey, values...)
}

// HasGroupAttribute checks the 'group' attribute key (SIS event bindings).
func (g *Group) HasGroupAttribute(values ...string) bool {
	return g.HasAttribute(AttrGroupKey, values...)
}

// DisplayName returns the group name in English with Czech as fallback.
func (g *Group) DisplayName() string {
	if name, ok := g.Name["en"]; ok {
		return name
	}

	return g.Name["cs"]
}
