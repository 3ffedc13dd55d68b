package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/dockwise/dockwise-api/internal/availability"
	"github.com/dockwise/dockwise-api/internal/models"
	appErrors "github.com/dockwise/dockwise-api/pkg/errors"
	"github.com/dockwise/dockwise-api/pkg/walltime"
)

type bookingRepository interface {
	CreateWithCapacityCheck(ctx context.Context, booking *models.Booking, maxConcurrent int, maxPerDay *int, dayStart, dayEnd time.Time) error
	FindByID(ctx context.Context, id string) (*models.Booking, error)
}

// BookingService confirms dock appointments. The availability recheck and
// the insert run as validate-then-book: the engine gives the authoritative
// verdict, then the repository re-counts capacity inside a serializable
// transaction so racing writers cannot overbook.
type BookingService struct {
	availability *AvailabilityService
	bookings     bookingRepository
	validator    *validator.Validate
	logger       *zap.Logger
	metrics      *MetricsService
}

// NewBookingService constructs the service.
func NewBookingService(availabilitySvc *AvailabilityService, bookings bookingRepository, validate *validator.Validate, logger *zap.Logger, metrics *MetricsService) *BookingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingService{
		availability: availabilitySvc,
		bookings:     bookings,
		validator:    validate,
		logger:       logger,
		metrics:      metrics,
	}
}

// CreateBookingRequest describes a booking confirmation payload.
type CreateBookingRequest struct {
	FacilityID        string `json:"-" validate:"required"`
	AppointmentTypeID string `json:"appointment_type_id" validate:"required"`
	Date              string `json:"date" validate:"required"`
	Time              string `json:"time" validate:"required"`
	DurationMinutes   int    `json:"duration_minutes" validate:"omitempty,min=1,max=1440"`
	Reference         string `json:"reference" validate:"required,max=64"`
	CarrierName       string `json:"carrier_name" validate:"required,max=128"`
	CreatedBy         string `json:"-"`
}

// Create books the slot. An unavailable slot comes back as a non-nil
// ValidateResult with Valid=false and no Booking; only infrastructure
// failures surface as errors.
func (s *BookingService) Create(ctx context.Context, req CreateBookingRequest) (*models.Booking, *availability.ValidateResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	result, sc, err := s.availability.validateSlot(ctx, ValidateSlotRequest{
		FacilityID:        req.FacilityID,
		AppointmentTypeID: req.AppointmentTypeID,
		Date:              req.Date,
		Time:              req.Time,
		DurationMinutes:   req.DurationMinutes,
	})
	if err != nil {
		return nil, nil, err
	}
	if !result.Valid {
		if result.Message == models.ReasonPast {
			return nil, nil, appErrors.Clone(appErrors.ErrPastDateTime, result.Message)
		}
		if result.Message == models.ReasonNoCapacity {
			s.metrics.RecordBookingConflict()
		}
		return nil, result, nil
	}

	start, err := walltime.ParseTimeOfDay(req.Time)
	if err != nil {
		return nil, nil, err
	}
	startsAt := walltime.Instant(sc.date, start, sc.location)
	endsAt := startsAt.Add(time.Duration(sc.duration) * time.Minute)
	dayStart := walltime.Instant(sc.date, walltime.TimeOfDay{}, sc.location)
	dayEnd := time.Date(sc.date.Year, sc.date.Month, sc.date.Day+1, 0, 0, 0, 0, sc.location)

	booking := &models.Booking{
		FacilityID:        sc.facility.ID,
		AppointmentTypeID: sc.appointmentType.ID,
		Reference:         req.Reference,
		CarrierName:       req.CarrierName,
		StartsAt:          startsAt,
		EndsAt:            endsAt,
		CreatedBy:         req.CreatedBy,
	}

	maxConcurrent := 1
	var maxPerDay *int
	if result.Rule != nil {
		maxConcurrent = result.Rule.MaxConcurrent
		maxPerDay = result.Rule.MaxPerDay
	}

	if err := s.bookings.CreateWithCapacityCheck(ctx, booking, maxConcurrent, maxPerDay, dayStart, dayEnd); err != nil {
		appErr := appErrors.FromError(err)
		if appErr.Code == appErrors.ErrSlotUnavailable.Code {
			// Lost the race after the read-side check passed.
			s.metrics.RecordBookingConflict()
			return nil, &availability.ValidateResult{Valid: false, Message: models.ReasonNoCapacity}, nil
		}
		return nil, nil, fmt.Errorf("create booking: %w", err)
	}

	s.logger.Info("booking created",
		zap.String("booking_id", booking.ID),
		zap.String("facility_id", booking.FacilityID),
		zap.String("reference", booking.Reference),
		zap.Time("starts_at", booking.StartsAt))

	return booking, result, nil
}

// GetByID fetches a booking.
func (s *BookingService) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	booking, err := s.bookings.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return nil, fmt.Errorf("find booking: %w", err)
	}
	return booking, nil
}
