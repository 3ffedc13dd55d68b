package availability

import (
	"time"

	"github.com/dockwise/dockwise-api/internal/models"
	"github.com/dockwise/dockwise-api/pkg/walltime"
)

// Verdict is the rule evaluator's answer for one candidate start time. Rule
// is the rule that accepted the slot; nil when the verdict came from a
// fallback or denial path, in which case no capacity ceiling applies.
type Verdict struct {
	Open   bool
	Reason string
	Rule   *models.AvailabilityRule
}

// dayEvaluator applies the rule set to candidates of a single facility day.
// Applicable-rule selection and break filtering happen once at construction;
// per-candidate evaluation is then pure interval arithmetic on instants.
type dayEvaluator struct {
	date               walltime.Date
	loc                *time.Location
	rules              []models.AvailabilityRule
	breaks             []models.BreakWindow
	allowSpanningBreak bool
	noRulesAnywhere    bool
	now                time.Time
}

func newDayEvaluator(
	date walltime.Date,
	loc *time.Location,
	allRules []models.AvailabilityRule,
	breaks []models.BreakWindow,
	allowSpanningBreak bool,
	now time.Time,
) *dayEvaluator {
	ev := &dayEvaluator{
		date:               date,
		loc:                loc,
		allowSpanningBreak: allowSpanningBreak,
		noRulesAnywhere:    len(allRules) == 0,
		now:                now,
	}

	// Date-scoped rules override recurring rules for the dates they cover:
	// if any date-scoped rule applies, recurring rules are ignored entirely.
	var recurring, dateScoped []models.AvailabilityRule
	for _, r := range allRules {
		if !r.AppliesOn(date) {
			continue
		}
		if r.DateScoped() {
			dateScoped = append(dateScoped, r)
		} else {
			recurring = append(recurring, r)
		}
	}
	if len(dateScoped) > 0 {
		ev.rules = dateScoped
	} else {
		ev.rules = recurring
	}

	weekday := date.Weekday()
	for _, b := range breaks {
		if b.AppliesOn(weekday) {
			ev.breaks = append(ev.breaks, b)
		}
	}
	return ev
}

// Evaluate decides open/closed for a candidate occupying
// [start, start+duration). End times are computed by adding the duration to
// the start instant, never by wall-clock addition, so slots stay correct
// across DST transitions.
//
// Two distinct no-rule conditions exist and must not be collapsed: a facility
// with zero rules anywhere is open by default on the whole grid, while a
// facility whose rules simply do not cover this date is closed for the day.
func (ev *dayEvaluator) Evaluate(start walltime.TimeOfDay, duration time.Duration) Verdict {
	if ev.noRulesAnywhere {
		return Verdict{Open: true, Reason: models.ReasonNoRulesConfigured}
	}
	if len(ev.rules) == 0 {
		return Verdict{Open: false, Reason: models.ReasonNoRulesForDate}
	}

	slotStart := walltime.Instant(ev.date, start, ev.loc)
	slotEnd := slotStart.Add(duration)

	// Containment is inclusive at open and exclusive-at-boundary at close:
	// open <= slotStart and slotEnd <= close. Service may not still be
	// running after closing time.
	var accepted *models.AvailabilityRule
	for i := range ev.rules {
		r := &ev.rules[i]
		opensAt := walltime.Instant(ev.date, r.Open, ev.loc)
		closesAt := walltime.Instant(ev.date, r.Close, ev.loc)
		if !slotStart.Before(opensAt) && !slotEnd.After(closesAt) {
			accepted = r
			break
		}
	}
	if accepted == nil {
		return Verdict{Open: false, Reason: models.ReasonOutsideHours}
	}

	if accepted.BufferMinutes > 0 {
		lead := time.Duration(accepted.BufferMinutes) * time.Minute
		if slotStart.Before(ev.now.Add(lead)) {
			return Verdict{Open: false, Reason: models.ReasonBuffer, Rule: accepted}
		}
	}

	for _, b := range ev.breaks {
		breakStart := walltime.Instant(ev.date, b.Start, ev.loc)
		breakEnd := walltime.Instant(ev.date, b.End, ev.loc)
		if slotStart.Before(breakEnd) && breakStart.Before(slotEnd) {
			if ev.allowSpanningBreak {
				return Verdict{Open: true, Reason: models.ReasonSpansBreak, Rule: accepted}
			}
			return Verdict{Open: false, Reason: models.ReasonBreak, Rule: accepted}
		}
	}

	return Verdict{Open: true, Rule: accepted}
}
