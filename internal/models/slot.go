package models

// Slot reasons surfaced to the booking UI. The UI renders these verbatim,
// so the strings are part of the wire contract.
const (
	ReasonNoRulesConfigured = "No rules configured"
	ReasonNoRulesForDate    = "No availability rules found for this date"
	ReasonOutsideHours      = "The selected time is outside of available hours"
	ReasonBreak             = "Break Time"
	ReasonSpansBreak        = "Spans through break time"
	ReasonNoCapacity        = "No Capacity"
	ReasonBuffer            = "Buffer Time"
	ReasonPast              = "The selected time has already passed"
)

// Slot is one candidate start time in a facility's day, tagged with the
// outcome of availability resolution. Slots are computed per request and
// never persisted; remaining capacity depends on the live booking count.
//
// Invariants: Available implies Remaining > 0; !Available implies Reason set.
type Slot struct {
	Time      string `json:"time"`
	Display   string `json:"display,omitempty"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
	Remaining int    `json:"remaining"`
}
