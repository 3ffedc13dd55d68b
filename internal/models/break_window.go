package models

import (
	"time"

	"github.com/dockwise/dockwise-api/pkg/walltime"
)

// BreakWindow is a recurring closed interval inside otherwise-open hours,
// e.g. a lunch break or a shift change. An empty Days set means the window
// applies every day of the week.
type BreakWindow struct {
	ID         string             `json:"id"`
	FacilityID string             `json:"facility_id"`
	Start      walltime.TimeOfDay `json:"start"`
	End        walltime.TimeOfDay `json:"end"`
	Days       []time.Weekday     `json:"days,omitempty"`
}

// AppliesOn reports whether the window is in effect on the given weekday.
func (b BreakWindow) AppliesOn(wd time.Weekday) bool {
	if len(b.Days) == 0 {
		return true
	}
	for _, d := range b.Days {
		if d == wd {
			return true
		}
	}
	return false
}
