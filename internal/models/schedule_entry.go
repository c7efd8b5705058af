package models

import (
	"time"

	"github.com/lib/pq"
)

// EntryFormat distinguishes on-site sessions from online ones.
type EntryFormat string

const (
	EntryFormatStacjonarny EntryFormat = "stacjonarny"
	EntryFormatOnline      EntryFormat = "online"
)

// Valid reports whether the format is recognised.
func (f EntryFormat) Valid() bool {
	return f == EntryFormatStacjonarny || f == EntryFormatOnline
}

// ScheduleEntry is one placed class session inside a timetable. An entry with
// an empty Dates list recurs every matching weekday; a non-empty list pins it
// to those ISO calendar dates only.
type ScheduleEntry struct {
	ID                string         `db:"id" json:"id"`
	TimetableID       string         `db:"timetable_id" json:"timetable_id"`
	DayOfWeek         string         `db:"day_of_week" json:"day_of_week"`
	StartTime         string         `db:"start_time" json:"start_time"`
	EndTime           string         `db:"end_time" json:"end_time"`
	SubjectID         string         `db:"subject_id" json:"subject_id"`
	SubjectName       string         `db:"subject_name" json:"subject_name"`
	SubjectRef        string         `db:"subject_ref" json:"subject_ref"`
	LecturerID        string         `db:"lecturer_id" json:"lecturer_id"`
	LecturerName      string         `db:"lecturer_name" json:"lecturer_name"`
	SessionType       string         `db:"session_type" json:"session_type"`
	RoomID            string         `db:"room_id" json:"room_id"`
	RoomName          string         `db:"room_name" json:"room_name"`
	GroupIDs          pq.StringArray `db:"group_ids" json:"group_ids"`
	GroupNames        pq.StringArray `db:"group_names" json:"group_names"`
	SpecializationIDs pq.StringArray `db:"specialization_ids" json:"specialization_ids,omitempty"`
	Dates             pq.StringArray `db:"dates" json:"dates,omitempty"`
	Format            *EntryFormat   `db:"format" json:"format,omitempty"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at" json:"updated_at"`
}

// Weekly reports whether the entry recurs every week on its weekday.
func (e *ScheduleEntry) Weekly() bool {
	return len(e.Dates) == 0
}

// SharesDate reports whether both entries are pinned to at least one common
// calendar date. ISO string comparison.
func (e *ScheduleEntry) SharesDate(other *ScheduleEntry) bool {
	for _, a := range e.Dates {
		for _, b := range other.Dates {
			if a == b {
				return true
			}
		}
	}
	return false
}

// GroupsIntersect reports whether the two entries share any student group.
func (e *ScheduleEntry) GroupsIntersect(other *ScheduleEntry) bool {
	for _, a := range e.GroupIDs {
		for _, b := range other.GroupIDs {
			if a == b {
				return true
			}
		}
	}
	return false
}

// ConflictKind labels the collision nature reported to the user.
type ConflictKind string

const (
	ConflictKindRecurring    ConflictKind = "RECURRING"
	ConflictKindSpecificDate ConflictKind = "SPECIFIC_DATE"
)

// Conflict resource dimensions.
const (
	ConflictDimensionLecturer = "LECTURER"
	ConflictDimensionRoom     = "ROOM"
	ConflictDimensionGroup    = "GROUP"
)

// EntryConflict describes the existing entry that blocks a placement.
type EntryConflict struct {
	EntryID      string `json:"entry_id"`
	TimetableID  string `json:"timetable_id"`
	DayOfWeek    string `json:"day_of_week"`
	StartTime    string `json:"start_time"`
	Dimension    string `json:"dimension"`
	ResourceName string `json:"resource_name"`
}

// EntryConflictError is returned when a placement collides with an existing
// entry. Kind separates recurring collisions from specific-date ones.
type EntryConflictError struct {
	Kind     ConflictKind  `json:"kind"`
	Message  string        `json:"message"`
	Conflict EntryConflict `json:"conflict"`
}

// Error implements the error interface for conflict errors.
func (e *EntryConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}
