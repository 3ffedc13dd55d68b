package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRuleMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestAvailabilityRuleRepositoryGetActiveRules(t *testing.T) {
	db, mock, cleanup := newRuleMock(t)
	defer cleanup()
	repo := NewAvailabilityRuleRepository(db)

	monday := 1
	columns := []string{"id", "facility_id", "appointment_type_id", "day_of_week", "starts_on", "ends_on", "opens_at", "closes_at", "is_active", "max_concurrent", "max_per_day", "buffer_minutes", "grace_period_minutes"}
	rows := sqlmock.NewRows(columns).
		AddRow("rule-1", "fac-1", nil, monday, nil, nil, "09:00", "17:00", true, 2, nil, 0, 0).
		AddRow("rule-2", "fac-1", "type-1", nil, time.Date(2025, 12, 24, 0, 0, 0, 0, time.UTC), time.Date(2025, 12, 26, 0, 0, 0, 0, time.UTC), "10:00", "14:00", true, 1, nil, 0, 0)
	mock.ExpectQuery("SELECT id, facility_id, appointment_type_id, day_of_week").
		WithArgs("fac-1", "type-1").
		WillReturnRows(rows)

	rules, err := repo.GetActiveRules(context.Background(), "fac-1", "type-1")
	require.NoError(t, err)
	require.Len(t, rules, 2)

	require.NotNil(t, rules[0].Weekday)
	assert.Equal(t, time.Monday, *rules[0].Weekday)
	assert.Nil(t, rules[0].DateRange)
	assert.Equal(t, "09:00", rules[0].Open.String())
	assert.Equal(t, 2, rules[0].MaxConcurrent)

	require.NotNil(t, rules[1].DateRange)
	assert.Nil(t, rules[1].Weekday)
	assert.Equal(t, "2025-12-24", rules[1].DateRange.Start.String())
	assert.Equal(t, "2025-12-26", rules[1].DateRange.End.String())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityRuleRepositoryRejectsMalformedTimes(t *testing.T) {
	db, mock, cleanup := newRuleMock(t)
	defer cleanup()
	repo := NewAvailabilityRuleRepository(db)

	columns := []string{"id", "facility_id", "appointment_type_id", "day_of_week", "starts_on", "ends_on", "opens_at", "closes_at", "is_active", "max_concurrent", "max_per_day", "buffer_minutes", "grace_period_minutes"}
	rows := sqlmock.NewRows(columns).
		AddRow("rule-1", "fac-1", nil, 1, nil, nil, "9:00", "17:00", true, 2, nil, 0, 0)
	mock.ExpectQuery("SELECT id, facility_id, appointment_type_id, day_of_week").
		WithArgs("fac-1", "type-1").
		WillReturnRows(rows)

	_, err := repo.GetActiveRules(context.Background(), "fac-1", "type-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "opens_at")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityRuleRepositoryGetBreakWindows(t *testing.T) {
	db, mock, cleanup := newRuleMock(t)
	defer cleanup()
	repo := NewAvailabilityRuleRepository(db)

	rows := sqlmock.NewRows([]string{"id", "facility_id", "starts_at", "ends_at", "days_applicable"}).
		AddRow("brk-1", "fac-1", "12:00", "13:00", "{}").
		AddRow("brk-2", "fac-1", "15:00", "15:30", "{5}")
	mock.ExpectQuery("SELECT id, facility_id, starts_at, ends_at, days_applicable").
		WithArgs("fac-1").
		WillReturnRows(rows)

	windows, err := repo.GetBreakWindows(context.Background(), "fac-1")
	require.NoError(t, err)
	require.Len(t, windows, 2)

	assert.Empty(t, windows[0].Days)
	assert.True(t, windows[0].AppliesOn(time.Wednesday))

	require.Len(t, windows[1].Days, 1)
	assert.Equal(t, time.Friday, windows[1].Days[0])
	assert.False(t, windows[1].AppliesOn(time.Monday))

	assert.NoError(t, mock.ExpectationsWereMet())
}
