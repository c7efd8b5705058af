package models

import "time"

// LecturerAvailability marks one weekly slot during which a lecturer may be
// scheduled. Advisory: used to highlight candidate drop targets, not to
// hard-block placements.
type LecturerAvailability struct {
	ID         string    `db:"id" json:"id"`
	LecturerID string    `db:"lecturer_id" json:"lecturer_id"`
	DayOfWeek  string    `db:"day_of_week" json:"day_of_week"`
	StartTime  string    `db:"start_time" json:"start_time"`
	EndTime    string    `db:"end_time" json:"end_time"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// AvailabilityOverlay combines a lecturer's declared availability with the
// sessions already occupying their calendar (archived plans excluded).
type AvailabilityOverlay struct {
	LecturerID string                 `json:"lecturer_id"`
	Slots      []LecturerAvailability `json:"slots"`
	Occupied   []ScheduleEntry        `json:"occupied"`
}
