package models

import "time"

// BookingStatus captures the booking lifecycle.
type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCheckedIn BookingStatus = "checked_in"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusNoShow    BookingStatus = "no_show"
)

// Booking is a confirmed dock appointment. Start and end are absolute
// instants; the facility wall-clock view is derived, never stored.
type Booking struct {
	ID                string        `db:"id" json:"id"`
	FacilityID        string        `db:"facility_id" json:"facility_id"`
	AppointmentTypeID string        `db:"appointment_type_id" json:"appointment_type_id"`
	Reference         string        `db:"reference" json:"reference"`
	CarrierName       string        `db:"carrier_name" json:"carrier_name"`
	StartsAt          time.Time     `db:"starts_at" json:"starts_at"`
	EndsAt            time.Time     `db:"ends_at" json:"ends_at"`
	Status            BookingStatus `db:"status" json:"status"`
	CreatedBy         string        `db:"created_by" json:"created_by"`
	CreatedAt         time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time     `db:"updated_at" json:"updated_at"`
}

// CountsAgainstCapacity reports whether the booking still occupies a dock
// slot. Cancelled bookings free their capacity immediately.
func (b Booking) CountsAgainstCapacity() bool {
	return b.Status != BookingStatusCancelled
}

// Overlaps reports whether the booking's occupied interval intersects
// [start, end). Both intervals are half-open.
func (b Booking) Overlaps(start, end time.Time) bool {
	return b.StartsAt.Before(end) && start.Before(b.EndsAt)
}
