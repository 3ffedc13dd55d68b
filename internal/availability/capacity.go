package availability

import (
	"time"

	"github.com/dockwise/dockwise-api/internal/models"
)

// capacityChecker computes remaining capacity for candidates of one facility
// day from the day's existing bookings. Overlap is true interval overlap on
// half-open intervals, not same-start-time matching.
type capacityChecker struct {
	bookings []models.Booking
	dayStart time.Time
	dayEnd   time.Time
}

func newCapacityChecker(bookings []models.Booking, dayStart, dayEnd time.Time) *capacityChecker {
	kept := make([]models.Booking, 0, len(bookings))
	for _, b := range bookings {
		if b.CountsAgainstCapacity() {
			kept = append(kept, b)
		}
	}
	return &capacityChecker{bookings: kept, dayStart: dayStart, dayEnd: dayEnd}
}

func (c *capacityChecker) overlapping(start, end time.Time) int {
	n := 0
	for _, b := range c.bookings {
		if b.Overlaps(start, end) {
			n++
		}
	}
	return n
}

// dayCount is the total booking count for the day, used against the
// per-day ceiling independent of per-slot concurrency.
func (c *capacityChecker) dayCount() int {
	n := 0
	for _, b := range c.bookings {
		if !b.StartsAt.Before(c.dayStart) && b.StartsAt.Before(c.dayEnd) {
			n++
		}
	}
	return n
}

// Remaining returns the capacity still open for a candidate accepted by the
// given rule, and whether the slot survives the check. A slot with no room
// left is downgraded to closed regardless of the rule verdict.
func (c *capacityChecker) Remaining(rule *models.AvailabilityRule, start, end time.Time) (int, bool) {
	if rule.MaxPerDay != nil && c.dayCount() >= *rule.MaxPerDay {
		return 0, false
	}
	remaining := rule.MaxConcurrent - c.overlapping(start, end)
	if remaining <= 0 {
		return 0, false
	}
	return remaining, true
}
