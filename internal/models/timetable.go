package models

import (
	"time"

	"github.com/lib/pq"
)

// TimetableStatus represents the lifecycle state of a timetable.
type TimetableStatus string

const (
	TimetableStatusDraft     TimetableStatus = "draft"
	TimetableStatusPublished TimetableStatus = "published"
	TimetableStatusArchived  TimetableStatus = "archived"
)

// Valid reports whether the status is one of the known lifecycle states.
func (s TimetableStatus) Valid() bool {
	switch s {
	case TimetableStatusDraft, TimetableStatusPublished, TimetableStatusArchived:
		return true
	}
	return false
}

// StudyMode tags a timetable with the program's attendance mode.
type StudyMode string

const (
	StudyModeStacjonarne    StudyMode = "stacjonarne"
	StudyModeNiestacjonarne StudyMode = "niestacjonarne"
	StudyModePodyplomowe    StudyMode = "podyplomowe"
	StudyModeAnglojezyczne  StudyMode = "anglojęzyczne"
)

// Valid reports whether the mode is a known study mode.
func (m StudyMode) Valid() bool {
	switch m {
	case StudyModeStacjonarne, StudyModeNiestacjonarne, StudyModePodyplomowe, StudyModeAnglojezyczne:
		return true
	}
	return false
}

// SessionBased reports whether the mode schedules on specific session dates
// rather than on a weekly cycle.
func (m StudyMode) SessionBased() bool {
	return m == StudyModeNiestacjonarne || m == StudyModePodyplomowe
}

// Cadence describes the recurrence rhythm of a cyclic timetable.
type Cadence string

const (
	CadenceWeekly   Cadence = "weekly"
	CadenceBiWeekly Cadence = "bi-weekly"
	CadenceMonthly  Cadence = "monthly"
)

// Valid reports whether the cadence is recognised.
func (c Cadence) Valid() bool {
	switch c {
	case CadenceWeekly, CadenceBiWeekly, CadenceMonthly:
		return true
	}
	return false
}

// Timetable is one scheduling plan: exactly one curriculum and one semester,
// owning a set of schedule entries that are removed together with it.
type Timetable struct {
	ID           string          `db:"id" json:"id"`
	Name         string          `db:"name" json:"name"`
	Status       TimetableStatus `db:"status" json:"status"`
	CurriculumID string          `db:"curriculum_id" json:"curriculum_id"`
	SemesterID   string          `db:"semester_id" json:"semester_id"`
	GroupIDs     pq.StringArray  `db:"group_ids" json:"group_ids"`
	StudyMode    StudyMode       `db:"study_mode" json:"study_mode"`
	Cadence      *Cadence        `db:"cadence" json:"cadence,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// TimetableFilter describes query params for listing timetables.
type TimetableFilter struct {
	SemesterID string
	StudyMode  StudyMode
	Status     TimetableStatus
	Search     string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// TimetableStatusRef pairs a timetable id with its lifecycle status; used by
// the batched status lookup during conflict scans.
type TimetableStatusRef struct {
	ID     string          `db:"id" json:"id"`
	Status TimetableStatus `db:"status" json:"status"`
}
