package models

import "time"

// Curriculum is a program's multi-semester subject plan. Reference data: the
// scheduling core reads it, never mutates it.
type Curriculum struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	ProgramCode string    `db:"program_code" json:"program_code"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// CurriculumSubjectRow is one required (subject, lecturer, type, hours)
// tuple inside a curriculum's semester entry.
type CurriculumSubjectRow struct {
	ID           string  `db:"id" json:"id"`
	CurriculumID string  `db:"curriculum_id" json:"curriculum_id"`
	SemesterID   string  `db:"semester_id" json:"semester_id"`
	SubjectID    string  `db:"subject_id" json:"subject_id"`
	LecturerID   string  `db:"lecturer_id" json:"lecturer_id"`
	SessionType  string  `db:"session_type" json:"session_type"`
	Hours        float64 `db:"hours" json:"hours"`
	Credits      float64 `db:"credits" json:"credits"`
	Position     int     `db:"position" json:"position"`
}

// CurriculumSubject is one resolved row of the unplaced-assignment pool:
// the semester tuple joined with subject and lecturer display names. Ref is
// a stable composite of subject id, session type and position so duplicate
// subject/type pairs remain distinguishable.
type CurriculumSubject struct {
	Ref            string  `json:"ref"`
	SubjectID      string  `json:"subject_id"`
	SubjectName    string  `json:"subject_name"`
	LecturerID     string  `json:"lecturer_id"`
	LecturerName   string  `json:"lecturer_name"`
	SessionType    string  `json:"session_type"`
	RequiredHours  float64 `json:"required_hours"`
	Credits        float64 `json:"credits"`
	ScheduledHours float64 `json:"scheduled_hours"`
	FullyScheduled bool    `json:"fully_scheduled"`
}
