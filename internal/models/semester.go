package models

import "time"

// Semester identifies one academic term within a curriculum.
type Semester struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	AcademicYear string    `db:"academic_year" json:"academic_year"`
	StartDate    time.Time `db:"start_date" json:"start_date"`
	EndDate      time.Time `db:"end_date" json:"end_date"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// SemesterDate is one calendar date belonging to a semester, used by
// session-based programs. Dates are stored as ISO strings and grouped into
// session blocks for scheduling and display.
type SemesterDate struct {
	ID         string      `db:"id" json:"id"`
	SemesterID string      `db:"semester_id" json:"semester_id"`
	Date       string      `db:"date" json:"date"`
	Format     EntryFormat `db:"format" json:"format"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
}
