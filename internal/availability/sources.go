package availability

import (
	"context"
	"time"

	"github.com/dockwise/dockwise-api/internal/models"
)

// RuleSource supplies the availability rules and break windows the engine
// evaluates. The engine never mutates rules.
type RuleSource interface {
	GetActiveRules(ctx context.Context, facilityID, appointmentTypeID string) ([]models.AvailabilityRule, error)
	GetBreakWindows(ctx context.Context, facilityID string) ([]models.BreakWindow, error)
}

// BookingSource supplies existing bookings whose occupied interval overlaps
// [start, end). Implementations must already exclude cancelled bookings.
type BookingSource interface {
	GetOverlappingBookings(ctx context.Context, facilityID, appointmentTypeID string, start, end time.Time) ([]models.Booking, error)
}
