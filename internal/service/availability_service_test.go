package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dockwise/dockwise-api/internal/models"
	appErrors "github.com/dockwise/dockwise-api/pkg/errors"
	"github.com/dockwise/dockwise-api/pkg/walltime"
)

type facilityRepoStub struct {
	facility        *models.Facility
	facilityErr     error
	appointmentType *models.AppointmentType
	typeErr         error
	types           []models.AppointmentType
	typesErr        error
}

func (s *facilityRepoStub) FindByID(ctx context.Context, id string) (*models.Facility, error) {
	if s.facilityErr != nil {
		return nil, s.facilityErr
	}
	return s.facility, nil
}

func (s *facilityRepoStub) FindAppointmentType(ctx context.Context, facilityID, typeID string) (*models.AppointmentType, error) {
	if s.typeErr != nil {
		return nil, s.typeErr
	}
	return s.appointmentType, nil
}

func (s *facilityRepoStub) ListAppointmentTypes(ctx context.Context, facilityID string) ([]models.AppointmentType, error) {
	if s.typesErr != nil {
		return nil, s.typesErr
	}
	return s.types, nil
}

type ruleSourceStub struct {
	rules    []models.AvailabilityRule
	rulesErr error
	breaks   []models.BreakWindow
}

func (s *ruleSourceStub) GetActiveRules(ctx context.Context, facilityID, appointmentTypeID string) ([]models.AvailabilityRule, error) {
	return s.rules, s.rulesErr
}

func (s *ruleSourceStub) GetBreakWindows(ctx context.Context, facilityID string) ([]models.BreakWindow, error) {
	return s.breaks, nil
}

type bookingSourceStub struct {
	bookings []models.Booking
	err      error
}

func (s *bookingSourceStub) GetOverlappingBookings(ctx context.Context, facilityID, appointmentTypeID string, start, end time.Time) ([]models.Booking, error) {
	return s.bookings, s.err
}

type fixedClockStub struct {
	now time.Time
}

func (c fixedClockStub) Now() time.Time {
	return c.now
}

func tod(t *testing.T, raw string) walltime.TimeOfDay {
	t.Helper()
	value, err := walltime.ParseTimeOfDay(raw)
	require.NoError(t, err)
	return value
}

func mondayRule(t *testing.T, maxConcurrent int) models.AvailabilityRule {
	t.Helper()
	weekday := time.Monday
	return models.AvailabilityRule{
		ID:            "rule-1",
		FacilityID:    "fac-1",
		Weekday:       &weekday,
		Open:          tod(t, "09:00"),
		Close:         tod(t, "16:00"),
		IsActive:      true,
		MaxConcurrent: maxConcurrent,
	}
}

func testFacilityRepo() *facilityRepoStub {
	return &facilityRepoStub{
		facility: &models.Facility{ID: "fac-1", Name: "North Dock", Timezone: "America/New_York", Active: true},
		appointmentType: &models.AppointmentType{
			ID:              "type-1",
			FacilityID:      "fac-1",
			Name:            "Live Load",
			DurationMinutes: 30,
			Active:          true,
		},
		types: []models.AppointmentType{{ID: "type-1", Name: "Live Load"}},
	}
}

func newAvailabilityServiceForTest(facilities *facilityRepoStub, rules *ruleSourceStub, bookings *bookingSourceStub, now time.Time) *AvailabilityService {
	return NewAvailabilityService(facilities, rules, bookings, fixedClockStub{now: now}, nil, nil, nil, nil, 15, 0)
}

// 2025-06-09 is a Monday; the clock sits a week earlier so nothing is in
// the past.
var serviceTestNow = time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

func TestAvailabilityServiceListSlots(t *testing.T) {
	rules := &ruleSourceStub{rules: []models.AvailabilityRule{mondayRule(t, 2)}}
	svc := newAvailabilityServiceForTest(testFacilityRepo(), rules, &bookingSourceStub{}, serviceTestNow)

	resp, err := svc.ListSlots(context.Background(), ListSlotsRequest{
		FacilityID:        "fac-1",
		AppointmentTypeID: "type-1",
		Date:              "2025-06-09",
	})
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", resp.Timezone)
	assert.Equal(t, 30, resp.DurationMinutes)
	assert.Len(t, resp.Slots, 96)

	bySlot := make(map[string]models.Slot, len(resp.Slots))
	for _, slot := range resp.Slots {
		bySlot[slot.Time] = slot
	}
	assert.True(t, bySlot["09:00"].Available)
	assert.Equal(t, 2, bySlot["09:00"].Remaining)
	assert.False(t, bySlot["08:00"].Available)
}

func TestAvailabilityServiceListSlotsFacilityNotFound(t *testing.T) {
	facilities := testFacilityRepo()
	facilities.facilityErr = sql.ErrNoRows
	svc := newAvailabilityServiceForTest(facilities, &ruleSourceStub{}, &bookingSourceStub{}, serviceTestNow)

	_, err := svc.ListSlots(context.Background(), ListSlotsRequest{
		FacilityID:        "missing",
		AppointmentTypeID: "type-1",
		Date:              "2025-06-09",
	})
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestAvailabilityServiceListSlotsRejectsMissingDate(t *testing.T) {
	svc := newAvailabilityServiceForTest(testFacilityRepo(), &ruleSourceStub{}, &bookingSourceStub{}, serviceTestNow)

	_, err := svc.ListSlots(context.Background(), ListSlotsRequest{
		FacilityID:        "fac-1",
		AppointmentTypeID: "type-1",
	})
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestAvailabilityServiceListSlotsDualTimezone(t *testing.T) {
	rules := &ruleSourceStub{rules: []models.AvailabilityRule{mondayRule(t, 1)}}
	svc := newAvailabilityServiceForTest(testFacilityRepo(), rules, &bookingSourceStub{}, serviceTestNow)

	resp, err := svc.ListSlots(context.Background(), ListSlotsRequest{
		FacilityID:        "fac-1",
		AppointmentTypeID: "type-1",
		Date:              "2025-06-09",
		ViewerTimezone:    "America/Los_Angeles",
	})
	require.NoError(t, err)
	for _, slot := range resp.Slots {
		if slot.Time == "09:00" {
			assert.Equal(t, "09:00 EDT / 06:00 PDT", slot.Display)
		}
	}
}

func TestAvailabilityServiceListSlotsRejectsBadViewerTimezone(t *testing.T) {
	svc := newAvailabilityServiceForTest(testFacilityRepo(), &ruleSourceStub{}, &bookingSourceStub{}, serviceTestNow)

	_, err := svc.ListSlots(context.Background(), ListSlotsRequest{
		FacilityID:        "fac-1",
		AppointmentTypeID: "type-1",
		Date:              "2025-06-09",
		ViewerTimezone:    "Mars/Olympus",
	})
	require.Error(t, err)
}

func TestAvailabilityServiceValidateSlot(t *testing.T) {
	rules := &ruleSourceStub{rules: []models.AvailabilityRule{mondayRule(t, 2)}}
	svc := newAvailabilityServiceForTest(testFacilityRepo(), rules, &bookingSourceStub{}, serviceTestNow)

	result, err := svc.ValidateSlot(context.Background(), ValidateSlotRequest{
		FacilityID:        "fac-1",
		AppointmentTypeID: "type-1",
		Date:              "2025-06-09",
		Time:              "09:00",
	})
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, 2, result.Remaining)
}

func TestAvailabilityServiceValidateSlotRejectsBadTime(t *testing.T) {
	svc := newAvailabilityServiceForTest(testFacilityRepo(), &ruleSourceStub{}, &bookingSourceStub{}, serviceTestNow)

	_, err := svc.ValidateSlot(context.Background(), ValidateSlotRequest{
		FacilityID:        "fac-1",
		AppointmentTypeID: "type-1",
		Date:              "2025-06-09",
		Time:              "9am",
	})
	require.Error(t, err)
}
