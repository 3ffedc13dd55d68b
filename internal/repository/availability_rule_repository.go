package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/dockwise/dockwise-api/internal/models"
	"github.com/dockwise/dockwise-api/pkg/walltime"
)

// AvailabilityRuleRepository reads the availability rules and break windows
// the engine evaluates. Rules are authored elsewhere; this repository never
// writes them.
type AvailabilityRuleRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRuleRepository constructs an AvailabilityRuleRepository.
func NewAvailabilityRuleRepository(db *sqlx.DB) *AvailabilityRuleRepository {
	return &AvailabilityRuleRepository{db: db}
}

// availabilityRuleRow is the flat scan target; opens_at/closes_at are stored
// as canonical HH:MM text and parsed on the way out so a malformed row fails
// loudly here instead of corrupting slot arithmetic later.
type availabilityRuleRow struct {
	ID                 string     `db:"id"`
	FacilityID         string     `db:"facility_id"`
	AppointmentTypeID  *string    `db:"appointment_type_id"`
	DayOfWeek          *int       `db:"day_of_week"`
	StartsOn           *time.Time `db:"starts_on"`
	EndsOn             *time.Time `db:"ends_on"`
	OpensAt            string     `db:"opens_at"`
	ClosesAt           string     `db:"closes_at"`
	IsActive           bool       `db:"is_active"`
	MaxConcurrent      int        `db:"max_concurrent"`
	MaxPerDay          *int       `db:"max_per_day"`
	BufferMinutes      int        `db:"buffer_minutes"`
	GracePeriodMinutes int        `db:"grace_period_minutes"`
}

func (row availabilityRuleRow) toModel() (models.AvailabilityRule, error) {
	open, err := walltime.ParseTimeOfDay(row.OpensAt)
	if err != nil {
		return models.AvailabilityRule{}, fmt.Errorf("rule %s opens_at: %w", row.ID, err)
	}
	closeAt, err := walltime.ParseTimeOfDay(row.ClosesAt)
	if err != nil {
		return models.AvailabilityRule{}, fmt.Errorf("rule %s closes_at: %w", row.ID, err)
	}

	rule := models.AvailabilityRule{
		ID:                 row.ID,
		FacilityID:         row.FacilityID,
		AppointmentTypeID:  row.AppointmentTypeID,
		Open:               open,
		Close:              closeAt,
		IsActive:           row.IsActive,
		MaxConcurrent:      row.MaxConcurrent,
		MaxPerDay:          row.MaxPerDay,
		BufferMinutes:      row.BufferMinutes,
		GracePeriodMinutes: row.GracePeriodMinutes,
	}
	if row.StartsOn != nil && row.EndsOn != nil {
		rule.DateRange = &models.DateRange{
			Start: walltime.Date{Year: row.StartsOn.Year(), Month: row.StartsOn.Month(), Day: row.StartsOn.Day()},
			End:   walltime.Date{Year: row.EndsOn.Year(), Month: row.EndsOn.Month(), Day: row.EndsOn.Day()},
		}
	} else if row.DayOfWeek != nil {
		wd := time.Weekday(*row.DayOfWeek)
		rule.Weekday = &wd
	}
	return rule, nil
}

// GetActiveRules returns the active rules for a facility that apply to the
// given appointment type, including facility-wide rules with no type bound.
func (r *AvailabilityRuleRepository) GetActiveRules(ctx context.Context, facilityID, appointmentTypeID string) ([]models.AvailabilityRule, error) {
	const query = `SELECT id, facility_id, appointment_type_id, day_of_week, starts_on, ends_on, opens_at, closes_at,
        is_active, max_concurrent, max_per_day, buffer_minutes, grace_period_minutes
FROM availability_rules
WHERE facility_id = $1 AND is_active = true AND (appointment_type_id IS NULL OR appointment_type_id = $2)
ORDER BY starts_on ASC NULLS LAST, opens_at ASC`
	var rows []availabilityRuleRow
	if err := r.db.SelectContext(ctx, &rows, query, facilityID, appointmentTypeID); err != nil {
		return nil, fmt.Errorf("get active rules: %w", err)
	}

	rules := make([]models.AvailabilityRule, 0, len(rows))
	for _, row := range rows {
		rule, err := row.toModel()
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

type breakWindowRow struct {
	ID         string        `db:"id"`
	FacilityID string        `db:"facility_id"`
	StartsAt   string        `db:"starts_at"`
	EndsAt     string        `db:"ends_at"`
	Days       pq.Int64Array `db:"days_applicable"`
}

// GetBreakWindows returns the facility's break windows. An empty
// days_applicable array means the window applies every day.
func (r *AvailabilityRuleRepository) GetBreakWindows(ctx context.Context, facilityID string) ([]models.BreakWindow, error) {
	const query = `SELECT id, facility_id, starts_at, ends_at, days_applicable
FROM break_windows WHERE facility_id = $1 ORDER BY starts_at ASC`
	var rows []breakWindowRow
	if err := r.db.SelectContext(ctx, &rows, query, facilityID); err != nil {
		return nil, fmt.Errorf("get break windows: %w", err)
	}

	windows := make([]models.BreakWindow, 0, len(rows))
	for _, row := range rows {
		start, err := walltime.ParseTimeOfDay(row.StartsAt)
		if err != nil {
			return nil, fmt.Errorf("break %s starts_at: %w", row.ID, err)
		}
		end, err := walltime.ParseTimeOfDay(row.EndsAt)
		if err != nil {
			return nil, fmt.Errorf("break %s ends_at: %w", row.ID, err)
		}
		window := models.BreakWindow{ID: row.ID, FacilityID: row.FacilityID, Start: start, End: end}
		for _, d := range row.Days {
			window.Days = append(window.Days, time.Weekday(d))
		}
		windows = append(windows, window)
	}
	return windows, nil
}
