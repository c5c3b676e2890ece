package models

import "time"

// EventType classifies a scheduling event.
type EventType string

const (
	// EventTypeLecture marks a lecture scheduling event (SIS type 'P').
	EventTypeLecture EventType = "lecture"
	// EventTypeLabs marks a lab/seminar scheduling event (SIS type 'X').
	EventTypeLabs EventType = "labs"
	// EventTypeUnknown marks a scheduling event of an unrecognized SIS type.
	EventTypeUnknown EventType = "unknown"
)

// ScheduleEvent caches one timetable entry (scheduling ticket) from SIS,
// identified by a stable SIS-assigned code (denoted 'GL' in SIS).
type ScheduleEvent struct {
	// ID is a locally generated UUID.
	ID string `gorm:"primaryKey;size:36"`
	// SisID is the stable SIS code of the scheduling event.
	SisID string `gorm:"uniqueIndex;size:32;not null"`
	// TermID links the event to its term; never changes once created.
	TermID string `gorm:"size:36;not null"`
	// Term is the associated term.
	Term Term `gorm:"foreignKey:TermID;references:ID;constraint:OnDelete:CASCADE"`
	// CourseID links the event to its course; never changes once created.
	CourseID string `gorm:"size:36;not null"`
	// Course is the associated course.
	Course Course `gorm:"foreignKey:CourseID;references:ID;constraint:OnDelete:CASCADE"`
	// Type is one of the EventType values.
	Type EventType `gorm:"type:varchar(16);not null"`
	// DayOfWeek is 0=Sunday ... 6=Saturday, nil for unscheduled events.
	DayOfWeek *int
	// FirstWeek is the first logical week of the semester when the event takes place.
	FirstWeek int
	// Time is the start of the event expressed as minutes from midnight, nil for unscheduled events.
	Time *int
	// Length of the event in minutes.
	Length int
	// Room names where the event is located.
	Room string `gorm:"size:64"`
	// Fortnight is true when the event takes place once every two weeks.
	Fortnight bool `gorm:"not null"`
	// CreatedAt is the timestamp of the first sighting (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is bumped on every sync that touches the event (managed by GORM).
	UpdatedAt time.Time
}

// SetSchedule overwrites all scheduling fields from a fresh SIS record.
// Schedule data are never merged, the latest SIS record wins.
func (e *ScheduleEvent) SetSchedule(dayOfWeek *int, firstWeek int, tm *int, length int, room string, fortnight bool) {
	e.DayOfWeek = dayOfWeek
	e.FirstWeek = firstWeek
	e.Time = tm
	e.Length = length
	e.Room = room
	e.Fortnight = fortnight
}
