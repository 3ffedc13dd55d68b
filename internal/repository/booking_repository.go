package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/dockwise/dockwise-api/internal/models"
	appErrors "github.com/dockwise/dockwise-api/pkg/errors"
)

// BookingRepository persists dock appointments and answers the overlap
// queries the availability engine consumes.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository constructs a BookingRepository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

const bookingColumns = `id, facility_id, appointment_type_id, reference, carrier_name, starts_at, ends_at, status, created_by, created_at, updated_at`

// GetOverlappingBookings returns non-cancelled bookings whose occupied
// interval intersects [start, end). Intervals are half-open.
func (r *BookingRepository) GetOverlappingBookings(ctx context.Context, facilityID, appointmentTypeID string, start, end time.Time) ([]models.Booking, error) {
	query := fmt.Sprintf(`SELECT %s FROM bookings
WHERE facility_id = $1 AND appointment_type_id = $2 AND status <> $3 AND starts_at < $4 AND ends_at > $5
ORDER BY starts_at ASC`, bookingColumns)
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, facilityID, appointmentTypeID, models.BookingStatusCancelled, end, start); err != nil {
		return nil, fmt.Errorf("get overlapping bookings: %w", err)
	}
	return bookings, nil
}

// ListForDay returns the facility's non-cancelled bookings starting within
// [dayStart, dayEnd), optionally narrowed to one appointment type. Used by
// the day-sheet export.
func (r *BookingRepository) ListForDay(ctx context.Context, facilityID string, appointmentTypeID *string, dayStart, dayEnd time.Time) ([]models.Booking, error) {
	query := fmt.Sprintf(`SELECT %s FROM bookings
WHERE facility_id = $1 AND status <> $2 AND starts_at >= $3 AND starts_at < $4`, bookingColumns)
	args := []interface{}{facilityID, models.BookingStatusCancelled, dayStart, dayEnd}
	if appointmentTypeID != nil {
		query += " AND appointment_type_id = $5"
		args = append(args, *appointmentTypeID)
	}
	query += " ORDER BY starts_at ASC"

	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, fmt.Errorf("list bookings for day: %w", err)
	}
	return bookings, nil
}

// FindByID fetches a booking by ID.
func (r *BookingRepository) FindByID(ctx context.Context, id string) (*models.Booking, error) {
	query := fmt.Sprintf(`SELECT %s FROM bookings WHERE id = $1`, bookingColumns)
	var booking models.Booking
	if err := r.db.GetContext(ctx, &booking, query, id); err != nil {
		return nil, err
	}
	return &booking, nil
}

// CreateWithCapacityCheck inserts the booking inside a serializable
// transaction that re-counts capacity first, so the second of two racing
// writers observes the first writer's committed row and loses with
// ErrSlotUnavailable rather than overbooking the dock.
//
// maxPerDay nil means no daily ceiling; dayStart/dayEnd bound the booking's
// facility-local day.
func (r *BookingRepository) CreateWithCapacityCheck(ctx context.Context, booking *models.Booking, maxConcurrent int, maxPerDay *int, dayStart, dayEnd time.Time) error {
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = now
	}
	booking.UpdatedAt = now
	if booking.Status == "" {
		booking.Status = models.BookingStatusConfirmed
	}

	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin booking tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const overlapQuery = `SELECT COUNT(*) FROM bookings
WHERE facility_id = $1 AND appointment_type_id = $2 AND status <> $3 AND starts_at < $4 AND ends_at > $5`
	var overlapping int
	if err := tx.GetContext(ctx, &overlapping, overlapQuery,
		booking.FacilityID, booking.AppointmentTypeID, models.BookingStatusCancelled, booking.EndsAt, booking.StartsAt); err != nil {
		return fmt.Errorf("count overlapping bookings: %w", err)
	}
	if overlapping >= maxConcurrent {
		return appErrors.ErrSlotUnavailable
	}

	if maxPerDay != nil {
		const dayQuery = `SELECT COUNT(*) FROM bookings
WHERE facility_id = $1 AND appointment_type_id = $2 AND status <> $3 AND starts_at >= $4 AND starts_at < $5`
		var dayCount int
		if err := tx.GetContext(ctx, &dayCount, dayQuery,
			booking.FacilityID, booking.AppointmentTypeID, models.BookingStatusCancelled, dayStart, dayEnd); err != nil {
			return fmt.Errorf("count day bookings: %w", err)
		}
		if dayCount >= *maxPerDay {
			return appErrors.ErrSlotUnavailable
		}
	}

	const insertQuery = `INSERT INTO bookings (id, facility_id, appointment_type_id, reference, carrier_name, starts_at, ends_at, status, created_by, created_at, updated_at)
VALUES (:id, :facility_id, :appointment_type_id, :reference, :carrier_name, :starts_at, :ends_at, :status, :created_by, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertQuery, booking); err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}

	if err := tx.Commit(); err != nil {
		// 40001 serialization_failure is the losing side of the race.
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "40001" {
			return appErrors.Wrap(err, appErrors.ErrSlotUnavailable.Code, appErrors.ErrSlotUnavailable.Status, appErrors.ErrSlotUnavailable.Message)
		}
		return fmt.Errorf("commit booking tx: %w", err)
	}
	return nil
}
