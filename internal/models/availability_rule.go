package models

import (
	"time"

	"github.com/dockwise/dockwise-api/pkg/walltime"
)

// DateRange is an inclusive calendar span used by holiday/seasonal overrides.
type DateRange struct {
	Start walltime.Date `json:"start"`
	End   walltime.Date `json:"end"`
}

// Contains reports whether the date falls inside the inclusive range.
func (r DateRange) Contains(d walltime.Date) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

// AvailabilityRule declares when a facility/appointment-type combination is
// open for booking. A rule is either recurring-weekly (Weekday set) or
// date-scoped (DateRange set), never both; date-scoped rules override
// recurring ones for the dates they cover.
//
// AppointmentTypeID nil means the rule applies to every type at the facility.
type AvailabilityRule struct {
	ID                 string              `json:"id"`
	FacilityID         string              `json:"facility_id"`
	AppointmentTypeID  *string             `json:"appointment_type_id,omitempty"`
	Weekday            *time.Weekday       `json:"weekday,omitempty"`
	DateRange          *DateRange          `json:"date_range,omitempty"`
	Open               walltime.TimeOfDay  `json:"open"`
	Close              walltime.TimeOfDay  `json:"close"`
	IsActive           bool                `json:"is_active"`
	MaxConcurrent      int                 `json:"max_concurrent"`
	MaxPerDay          *int                `json:"max_per_day,omitempty"`
	BufferMinutes      int                 `json:"buffer_minutes"`
	GracePeriodMinutes int                 `json:"grace_period_minutes"`
}

// DateScoped reports whether the rule is a date-range override rather than a
// recurring weekly rule.
func (r AvailabilityRule) DateScoped() bool {
	return r.DateRange != nil
}

// AppliesOn reports whether the rule covers the given calendar date.
func (r AvailabilityRule) AppliesOn(d walltime.Date) bool {
	if !r.IsActive {
		return false
	}
	if r.DateRange != nil {
		return r.DateRange.Contains(d)
	}
	if r.Weekday != nil {
		return *r.Weekday == d.Weekday()
	}
	return false
}
