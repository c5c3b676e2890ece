package sis

import (
	"encoding/json"
	"fmt"

	"github.com/recodex/sis-binding/internal/db/models"
)

// eventTypeMap translates rozvrhng event type codes; anything unlisted is unknown.
var eventTypeMap = map[string]models.EventType{
	"P": models.EventTypeLecture,
	"X": models.EventTypeLabs,
}

// CourseRecord is a parsed scheduling event record from the rozvrhng module.
// One record describes a single event of a course together with the queried
// user's affiliation to it.
type CourseRecord struct {
	// Code is the SIS identifier of the scheduling event.
	Code string
	// CourseID is the SIS course code (e.g. NPRG041).
	CourseID string
	// Affiliation of the queried user to the event. Empty when the SIS
	// reported an affiliation this service does not track; the event is
	// still cached in that case, only the enrollment is not.
	Affiliation models.AffiliationType
	// AffiliationKnown is false for untracked affiliation strings.
	AffiliationKnown bool
	// Year and Term identify the semester.
	Year int
	Term int
	// SisUserID is the personal number the schedule was fetched for.
	SisUserID string
	// DayOfWeek is zero-based (0 = Sunday), nil for irregular events.
	DayOfWeek *int
	// Time is the number of minutes from midnight, nil for irregular events.
	Time *int
	// Room name as reported by the SIS.
	Room string
	// Fortnightly events are held once every two weeks.
	Fortnightly bool
	// FirstWeek is the first logical week the event takes place
	// (usually 1 = the first week of the semester).
	FirstWeek int
	// Type of the event (lecture, labs).
	Type models.EventType

	// Captions and Annotations are indexed by locale (cs, en).
	Captions    map[string]string
	Annotations map[string]string
}

type courseRecordWire struct {
	ID           flexString `json:"id"`
	Course       flexString `json:"course"`
	Affiliation  string     `json:"affiliation"`
	Year         flexInt    `json:"year"`
	Semester     flexInt    `json:"semester"`
	DayOfWeek    *flexInt   `json:"day_of_week"`
	Time         *flexInt   `json:"time"`
	Room         flexString `json:"room"`
	Fortnight    flexBool   `json:"fortnight"`
	FirstWeek    flexInt    `json:"firstweek"`
	Type         string     `json:"type"`
	CaptionCs    string     `json:"caption_cs"`
	CaptionEn    string     `json:"caption_en"`
	AnnotationCs string     `json:"annotation_cs"`
	AnnotationEn string     `json:"annotation_en"`
}

// parseCourseRecord decodes and validates a single scheduling event record.
func parseCourseRecord(sisUserID string, data json.RawMessage) (*CourseRecord, error) {
	var wire courseRecordWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, newAPIError(moduleRozvrhng, "malformed event record: "+err.Error(), string(data))
	}

	if wire.ID == "" || wire.Course == "" {
		return nil, newAPIError(moduleRozvrhng, "event record is missing its identification", string(data))
	}

	affiliation, known := models.ParseAffiliationType(wire.Affiliation)

	record := &CourseRecord{
		Code:             string(wire.ID),
		CourseID:         string(wire.Course),
		Affiliation:      affiliation,
		AffiliationKnown: known,
		Year:             int(wire.Year),
		Term:             int(wire.Semester),
		SisUserID:        sisUserID,
		Room:             string(wire.Room),
		Fortnightly:      bool(wire.Fortnight),
		FirstWeek:        int(wire.FirstWeek),
		Type:             models.EventTypeUnknown,
		Captions: map[string]string{
			"cs": wire.CaptionCs,
			"en": wire.CaptionEn,
		},
		Annotations: map[string]string{
			"cs": wire.AnnotationCs,
			"en": wire.AnnotationEn,
		},
	}

	if eventType, ok := eventTypeMap[wire.Type]; ok {
		record.Type = eventType
	}

	// the SIS counts week days from one
	if wire.DayOfWeek != nil {
		day := int(*wire.DayOfWeek) - 1
		record.DayOfWeek = &day
	}
	if wire.Time != nil {
		minutes := int(*wire.Time)
		record.Time = &minutes
	}

	return record, nil
}

// TermKey returns the '<year>-<term>' identifier of the record's semester.
func (r *CourseRecord) TermKey() string {
	return fmt.Sprintf("%d-%d", r.Year, r.Term)
}

// OwnerStudent checks whether the queried user attends the event as a student.
func (r *CourseRecord) OwnerStudent() bool {
	return r.Affiliation == models.AffiliationStudent
}

// OwnerSupervisor checks whether the queried user teaches or guarantees the event.
func (r *CourseRecord) OwnerSupervisor() bool {
	return r.Affiliation.Supervisor()
}

// Caption returns the course caption in the given locale.
func (r *CourseRecord) Caption(locale string) (string, error) {
	caption, ok := r.Captions[locale]
	if !ok {
		return "", fmt.Errorf("caption for language '%s' does not exist", locale)
	}

	return caption, nil
}

// Annotation returns the course annotation in the given locale, empty when
// the SIS has none.
func (r *CourseRecord) Annotation(locale string) (string, error) {
	annotation, ok := r.Annotations[locale]
	if !ok {
		return "", fmt.Errorf("annotation for language '%s' does not exist", locale)
	}

	return annotation, nil
}
