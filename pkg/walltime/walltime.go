package walltime

import (
	"fmt"
	"time"

	appErrors "github.com/dockwise/dockwise-api/pkg/errors"
)

// TimeOfDay is a wall-clock time without a date or zone attached.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// Date is a calendar date without a zone attached.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseTimeOfDay parses the canonical zero-padded 24-hour "HH:MM" shape.
// Anything else is rejected rather than coerced; feeding a half-parsed
// time into instant arithmetic is the bug class this guards against.
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	if len(raw) != 5 || raw[2] != ':' {
		return TimeOfDay{}, appErrors.Clone(appErrors.ErrInvalidInput, fmt.Sprintf("invalid time %q, expected HH:MM", raw))
	}
	hour, ok1 := twoDigits(raw[0], raw[1])
	minute, ok2 := twoDigits(raw[3], raw[4])
	if !ok1 || !ok2 || hour > 23 || minute > 59 {
		return TimeOfDay{}, appErrors.Clone(appErrors.ErrInvalidInput, fmt.Sprintf("invalid time %q, expected HH:MM", raw))
	}
	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

// ParseDate parses the canonical zero-padded "YYYY-MM-DD" shape.
func ParseDate(raw string) (Date, error) {
	if len(raw) != 10 || raw[4] != '-' || raw[7] != '-' {
		return Date{}, appErrors.Clone(appErrors.ErrInvalidInput, fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", raw))
	}
	parsed, err := time.ParseInLocation("2006-01-02", raw, time.UTC)
	if err != nil {
		return Date{}, appErrors.Clone(appErrors.ErrInvalidInput, fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", raw))
	}
	return Date{Year: parsed.Year(), Month: parsed.Month(), Day: parsed.Day()}, nil
}

// String renders the zero-padded HH:MM form.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// MinuteOfDay returns minutes since midnight, the natural ordering key.
func (t TimeOfDay) MinuteOfDay() int {
	return t.Hour*60 + t.Minute
}

// Before reports whether t is strictly earlier than other.
func (t TimeOfDay) Before(other TimeOfDay) bool {
	return t.MinuteOfDay() < other.MinuteOfDay()
}

// String renders the zero-padded YYYY-MM-DD form.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Weekday returns the day of week for the calendar date.
func (d Date) Weekday() time.Weekday {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).Weekday()
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool {
	if d.Year != other.Year {
		return d.Year < other.Year
	}
	if d.Month != other.Month {
		return d.Month < other.Month
	}
	return d.Day < other.Day
}

// After reports whether d is strictly later than other.
func (d Date) After(other Date) bool {
	return other.Before(d)
}

// LoadLocation resolves an IANA timezone identifier.
func LoadLocation(name string) (*time.Location, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidInput, fmt.Sprintf("unknown timezone %q", name))
	}
	return loc, nil
}

// Instant converts a local wall-clock (date, time-of-day) in loc to the
// absolute instant. All duration arithmetic downstream happens on the
// returned instant; wall-clock strings are never added together, which
// keeps slot end times correct across DST transitions.
func Instant(d Date, t TimeOfDay, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, t.Hour, t.Minute, 0, 0, loc)
}

// Clock converts an absolute instant back to the local wall-clock in loc,
// together with the zone abbreviation in effect at that instant.
func Clock(instant time.Time, loc *time.Location) (Date, TimeOfDay, string) {
	local := instant.In(loc)
	zone, _ := local.Zone()
	d := Date{Year: local.Year(), Month: local.Month(), Day: local.Day()}
	t := TimeOfDay{Hour: local.Hour(), Minute: local.Minute()}
	return d, t, zone
}

// FormatDual renders an instant in two zones for display, e.g.
// "08:00 EST / 05:00 PST". Facility time always comes first.
func FormatDual(instant time.Time, facility, viewer *time.Location) string {
	_, ft, fz := Clock(instant, facility)
	if viewer == nil || viewer == facility {
		return fmt.Sprintf("%s %s", ft, fz)
	}
	_, vt, vz := Clock(instant, viewer)
	if fz == vz {
		return fmt.Sprintf("%s %s", ft, fz)
	}
	return fmt.Sprintf("%s %s / %s %s", ft, fz, vt, vz)
}

func twoDigits(a, b byte) (int, bool) {
	if a < '0' || a > '9' || b < '0' || b > '9' {
		return 0, false
	}
	return int(a-'0')*10 + int(b-'0'), true
}
