package availability

import "github.com/dockwise/dockwise-api/pkg/walltime"

// DefaultGranularityMinutes is the slot grid step when the caller does not
// override it: 96 candidates per day.
const DefaultGranularityMinutes = 15

// Grid returns every candidate start time in a day at the given granularity,
// in ascending order. The grid is independent of any rule: it answers "what
// times could possibly be offered", and the evaluator decides which of those
// are actually open. A day with zero configured rules still enumerates the
// full grid.
func Grid(granularityMinutes int) []walltime.TimeOfDay {
	if granularityMinutes <= 0 {
		granularityMinutes = DefaultGranularityMinutes
	}
	candidates := make([]walltime.TimeOfDay, 0, 24*60/granularityMinutes)
	for minute := 0; minute < 24*60; minute += granularityMinutes {
		candidates = append(candidates, walltime.TimeOfDay{Hour: minute / 60, Minute: minute % 60})
	}
	return candidates
}
