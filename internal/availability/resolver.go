package availability

import (
	"context"
	"time"

	"github.com/dockwise/dockwise-api/internal/models"
	appErrors "github.com/dockwise/dockwise-api/pkg/errors"
	"github.com/dockwise/dockwise-api/pkg/walltime"
)

// Resolver is the availability engine entry point. It is a pure read
// computation over the injected collaborators and is safe for concurrent
// use; validate-then-book atomicity is the caller's responsibility.
type Resolver struct {
	rules    RuleSource
	bookings BookingSource
	clock    Clock
}

// NewResolver wires the engine to its collaborators. A nil clock falls back
// to the system clock.
func NewResolver(rules RuleSource, bookings BookingSource, clock Clock) *Resolver {
	if clock == nil {
		clock = SystemClock()
	}
	return &Resolver{rules: rules, bookings: bookings, clock: clock}
}

// ListRequest describes one day's slot listing. Location is the facility's
// timezone; ViewerLocation, when set and different, adds a dual-timezone
// display string to each slot. AllowSpanningBreak is the appointment type's
// break transit policy, resolved by the caller.
type ListRequest struct {
	FacilityID         string
	AppointmentTypeID  string
	Date               walltime.Date
	DurationMinutes    int
	GranularityMinutes int
	AllowSpanningBreak bool
	Location           *time.Location
	ViewerLocation     *time.Location
}

// ValidateRequest describes the single-slot recheck performed immediately
// before a booking is persisted.
type ValidateRequest struct {
	FacilityID         string
	AppointmentTypeID  string
	Date               walltime.Date
	Start              walltime.TimeOfDay
	DurationMinutes    int
	AllowSpanningBreak bool
	Location           *time.Location
}

// ValidateResult reports whether a slot may be booked. A filled-up or closed
// slot is a normal result, not an error; Message carries the reason. Valid
// slots may still carry an informational message such as the spanning-break
// notice.
type ValidateResult struct {
	Valid     bool   `json:"valid"`
	Message   string `json:"message,omitempty"`
	Remaining int    `json:"remaining"`

	// Rule is the rule that accepted the slot, nil under the no-rules
	// fallback. Carried for the booking path, not serialized.
	Rule *models.AvailabilityRule `json:"-"`
}

// ListSlots returns every candidate in the day's grid, ascending, each
// tagged available or unavailable with a reason and the remaining capacity.
// Unavailable slots are included so callers can explain why a time is
// blocked. A facility with no configured rules yields a fully open grid.
func (r *Resolver) ListSlots(ctx context.Context, req ListRequest) ([]models.Slot, error) {
	if err := validateCommon(req.FacilityID, req.DurationMinutes, req.Location); err != nil {
		return nil, err
	}

	ev, cc, err := r.prepareDay(ctx, req.FacilityID, req.AppointmentTypeID, req.Date,
		req.DurationMinutes, req.AllowSpanningBreak, req.Location)
	if err != nil {
		return nil, err
	}

	duration := time.Duration(req.DurationMinutes) * time.Minute
	candidates := Grid(req.GranularityMinutes)
	slots := make([]models.Slot, 0, len(candidates))
	for _, t := range candidates {
		verdict := ev.Evaluate(t, duration)
		slot := models.Slot{Time: t.String(), Reason: verdict.Reason}
		start := walltime.Instant(req.Date, t, req.Location)
		if req.ViewerLocation != nil {
			slot.Display = walltime.FormatDual(start, req.Location, req.ViewerLocation)
		}
		if verdict.Open {
			slot.Available, slot.Remaining = r.applyCapacity(cc, verdict.Rule, start, duration)
			if !slot.Available {
				slot.Reason = models.ReasonNoCapacity
			}
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

// ValidateSlot is the authoritative recheck before persisting a booking. It
// re-runs the same evaluation and capacity check as ListSlots for one
// candidate, and additionally rejects any start instant already in the past,
// independent of buffer rules.
func (r *Resolver) ValidateSlot(ctx context.Context, req ValidateRequest) (ValidateResult, error) {
	if err := validateCommon(req.FacilityID, req.DurationMinutes, req.Location); err != nil {
		return ValidateResult{}, err
	}

	start := walltime.Instant(req.Date, req.Start, req.Location)
	if start.Before(r.clock.Now()) {
		return ValidateResult{Valid: false, Message: models.ReasonPast}, nil
	}

	ev, cc, err := r.prepareDay(ctx, req.FacilityID, req.AppointmentTypeID, req.Date,
		req.DurationMinutes, req.AllowSpanningBreak, req.Location)
	if err != nil {
		return ValidateResult{}, err
	}

	duration := time.Duration(req.DurationMinutes) * time.Minute
	verdict := ev.Evaluate(req.Start, duration)
	if !verdict.Open {
		return ValidateResult{Valid: false, Message: verdict.Reason}, nil
	}

	available, remaining := r.applyCapacity(cc, verdict.Rule, start, duration)
	if !available {
		return ValidateResult{Valid: false, Message: models.ReasonNoCapacity, Rule: verdict.Rule}, nil
	}
	return ValidateResult{Valid: true, Message: verdict.Reason, Remaining: remaining, Rule: verdict.Rule}, nil
}

// prepareDay fetches the day's rules, breaks, and bookings and builds the
// per-day evaluator and capacity checker. Collaborator failures abort the
// request; the resolver never guesses availability from partial data.
func (r *Resolver) prepareDay(
	ctx context.Context,
	facilityID, appointmentTypeID string,
	date walltime.Date,
	durationMinutes int,
	allowSpanningBreak bool,
	loc *time.Location,
) (*dayEvaluator, *capacityChecker, error) {
	rules, err := r.rules.GetActiveRules(ctx, facilityID, appointmentTypeID)
	if err != nil {
		return nil, nil, err
	}
	breaks, err := r.rules.GetBreakWindows(ctx, facilityID)
	if err != nil {
		return nil, nil, err
	}

	dayStart := walltime.Instant(date, walltime.TimeOfDay{}, loc)
	dayEnd := time.Date(date.Year, date.Month, date.Day+1, 0, 0, 0, 0, loc)
	// Candidates late in the day occupy intervals past midnight, so the
	// booking fetch window extends by one duration.
	fetchEnd := dayEnd.Add(time.Duration(durationMinutes) * time.Minute)
	bookings, err := r.bookings.GetOverlappingBookings(ctx, facilityID, appointmentTypeID, dayStart, fetchEnd)
	if err != nil {
		return nil, nil, err
	}

	ev := newDayEvaluator(date, loc, rules, breaks, allowSpanningBreak, r.clock.Now())
	cc := newCapacityChecker(bookings, dayStart, dayEnd)
	return ev, cc, nil
}

// applyCapacity resolves remaining capacity for an open verdict. The no-rules
// fallback has no capacity ceiling; such slots report a single opening.
func (r *Resolver) applyCapacity(cc *capacityChecker, rule *models.AvailabilityRule, start time.Time, duration time.Duration) (bool, int) {
	if rule == nil {
		return true, 1
	}
	remaining, ok := cc.Remaining(rule, start, start.Add(duration))
	return ok, remaining
}

func validateCommon(facilityID string, durationMinutes int, loc *time.Location) error {
	if facilityID == "" {
		return appErrors.Clone(appErrors.ErrInvalidInput, "facility id is required")
	}
	if durationMinutes <= 0 {
		return appErrors.Clone(appErrors.ErrInvalidInput, "duration must be a positive number of minutes")
	}
	if loc == nil {
		return appErrors.Clone(appErrors.ErrInvalidInput, "facility timezone is required")
	}
	return nil
}
