package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dockwise/dockwise-api/internal/models"
	appErrors "github.com/dockwise/dockwise-api/pkg/errors"
)

func newBookingMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestBookingRepositoryGetOverlappingBookings(t *testing.T) {
	db, mock, cleanup := newBookingMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	start := time.Date(2025, 6, 9, 14, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	rows := sqlmock.NewRows([]string{"id", "facility_id", "appointment_type_id", "reference", "carrier_name", "starts_at", "ends_at", "status", "created_by", "created_at", "updated_at"}).
		AddRow("bk-1", "fac-1", "type-1", "REF-1", "Acme Freight", start, end, "confirmed", "user-1", time.Now(), time.Now())
	mock.ExpectQuery("SELECT (.+) FROM bookings").
		WithArgs("fac-1", "type-1", models.BookingStatusCancelled, end, start).
		WillReturnRows(rows)

	bookings, err := repo.GetOverlappingBookings(context.Background(), "fac-1", "type-1", start, end)
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, "bk-1", bookings[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func testBooking(start, end time.Time) *models.Booking {
	return &models.Booking{
		FacilityID:        "fac-1",
		AppointmentTypeID: "type-1",
		Reference:         "REF-9",
		CarrierName:       "Acme Freight",
		StartsAt:          start,
		EndsAt:            end,
		CreatedBy:         "user-1",
	}
}

func TestBookingRepositoryCreateWithCapacityCheck(t *testing.T) {
	db, mock, cleanup := newBookingMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	start := time.Date(2025, 6, 9, 14, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	dayStart := time.Date(2025, 6, 9, 4, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM bookings").
		WithArgs("fac-1", "type-1", models.BookingStatusCancelled, end, start).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectExec("INSERT INTO bookings").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	booking := testBooking(start, end)
	err := repo.CreateWithCapacityCheck(context.Background(), booking, 2, nil, dayStart, dayEnd)
	require.NoError(t, err)
	assert.NotEmpty(t, booking.ID)
	assert.Equal(t, models.BookingStatusConfirmed, booking.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryCreateLosesCapacityRace(t *testing.T) {
	db, mock, cleanup := newBookingMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	start := time.Date(2025, 6, 9, 14, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM bookings").
		WithArgs("fac-1", "type-1", models.BookingStatusCancelled, end, start).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectRollback()

	err := repo.CreateWithCapacityCheck(context.Background(), testBooking(start, end), 2, nil, start, end)
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrSlotUnavailable.Code, appErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryCreateHitsDailyCeiling(t *testing.T) {
	db, mock, cleanup := newBookingMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	start := time.Date(2025, 6, 9, 14, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	dayStart := time.Date(2025, 6, 9, 4, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)
	ceiling := 8

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM bookings").
		WithArgs("fac-1", "type-1", models.BookingStatusCancelled, end, start).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM bookings").
		WithArgs("fac-1", "type-1", models.BookingStatusCancelled, dayStart, dayEnd).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(8))
	mock.ExpectRollback()

	err := repo.CreateWithCapacityCheck(context.Background(), testBooking(start, end), 2, &ceiling, dayStart, dayEnd)
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrSlotUnavailable.Code, appErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
