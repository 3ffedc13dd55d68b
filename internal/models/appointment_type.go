package models

import "time"

// AppointmentType describes a category of dock appointment (live unload,
// drop trailer, LTL pickup, ...) offered by a facility.
//
// AllowSpanningBreak is the break transit policy: when true, an appointment
// whose occupied interval overlaps a facility break is still offered, with an
// informational reason, because the operation tolerates working through the
// break. When false any overlap blocks the slot.
type AppointmentType struct {
	ID                 string    `db:"id" json:"id"`
	FacilityID         string    `db:"facility_id" json:"facility_id"`
	Name               string    `db:"name" json:"name"`
	DurationMinutes    int       `db:"duration_minutes" json:"duration_minutes"`
	AllowSpanningBreak bool      `db:"allow_spanning_break" json:"allow_spanning_break"`
	Active             bool      `db:"active" json:"active"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}
