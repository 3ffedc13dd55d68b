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

type facilityRepository interface {
	FindByID(ctx context.Context, id string) (*models.Facility, error)
	FindAppointmentType(ctx context.Context, facilityID, typeID string) (*models.AppointmentType, error)
}

// cachedRuleSource is a read-through cache in front of the rule repository.
// A cache failure falls through to the database; only the database is
// authoritative.
type cachedRuleSource struct {
	repo  availability.RuleSource
	cache *CacheService
	ttl   time.Duration
}

func (s *cachedRuleSource) GetActiveRules(ctx context.Context, facilityID, appointmentTypeID string) ([]models.AvailabilityRule, error) {
	key := fmt.Sprintf("availability:rules:%s:%s", facilityID, appointmentTypeID)
	var rules []models.AvailabilityRule
	if hit, _ := s.cache.Get(ctx, key, &rules); hit {
		return rules, nil
	}
	rules, err := s.repo.GetActiveRules(ctx, facilityID, appointmentTypeID)
	if err != nil {
		return nil, err
	}
	_ = s.cache.Set(ctx, key, rules, s.ttl)
	return rules, nil
}

func (s *cachedRuleSource) GetBreakWindows(ctx context.Context, facilityID string) ([]models.BreakWindow, error) {
	key := fmt.Sprintf("availability:breaks:%s", facilityID)
	var windows []models.BreakWindow
	if hit, _ := s.cache.Get(ctx, key, &windows); hit {
		return windows, nil
	}
	windows, err := s.repo.GetBreakWindows(ctx, facilityID)
	if err != nil {
		return nil, err
	}
	_ = s.cache.Set(ctx, key, windows, s.ttl)
	return windows, nil
}

// AvailabilityService fronts the resolver for the HTTP layer: it validates
// and parses request strings, resolves facility and appointment type, and
// feeds the engine typed values.
type AvailabilityService struct {
	facilities         facilityRepository
	resolver           *availability.Resolver
	validator          *validator.Validate
	logger             *zap.Logger
	metrics            *MetricsService
	granularityMinutes int
}

// NewAvailabilityService constructs the service. Rule lookups go through the
// read-through cache with the configured TTL; booking lookups are always
// live.
func NewAvailabilityService(
	facilities facilityRepository,
	rules availability.RuleSource,
	bookings availability.BookingSource,
	clock availability.Clock,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	granularityMinutes int,
	ruleCacheTTL time.Duration,
) *AvailabilityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if granularityMinutes <= 0 {
		granularityMinutes = availability.DefaultGranularityMinutes
	}
	ruleSource := availability.RuleSource(&cachedRuleSource{repo: rules, cache: cache, ttl: ruleCacheTTL})
	if cache == nil || !cache.Enabled() || ruleCacheTTL <= 0 {
		ruleSource = rules
	}
	return &AvailabilityService{
		facilities:         facilities,
		resolver:           availability.NewResolver(ruleSource, bookings, clock),
		validator:          validate,
		logger:             logger,
		metrics:            metrics,
		granularityMinutes: granularityMinutes,
	}
}

// ListSlotsRequest describes one day's availability query.
type ListSlotsRequest struct {
	FacilityID         string `validate:"required"`
	AppointmentTypeID  string `validate:"required"`
	Date               string `validate:"required"`
	DurationMinutes    int    `validate:"omitempty,min=1,max=1440"`
	GranularityMinutes int    `validate:"omitempty,min=5,max=240"`
	ViewerTimezone     string
}

// ListSlotsResponse is the slot list envelope payload.
type ListSlotsResponse struct {
	FacilityID        string        `json:"facility_id"`
	AppointmentTypeID string        `json:"appointment_type_id"`
	Date              string        `json:"date"`
	Timezone          string        `json:"timezone"`
	DurationMinutes   int           `json:"duration_minutes"`
	Slots             []models.Slot `json:"slots"`
}

// ValidateSlotRequest describes the single-slot check.
type ValidateSlotRequest struct {
	FacilityID        string `json:"-" validate:"required"`
	AppointmentTypeID string `json:"appointment_type_id" validate:"required"`
	Date              string `json:"date" validate:"required"`
	Time              string `json:"time" validate:"required"`
	DurationMinutes   int    `json:"duration_minutes" validate:"omitempty,min=1,max=1440"`
}

// slotContext is the parsed, looked-up form shared by listing, validation
// and booking.
type slotContext struct {
	facility        *models.Facility
	appointmentType *models.AppointmentType
	date            walltime.Date
	location        *time.Location
	duration        int
}

func (s *AvailabilityService) resolveContext(ctx context.Context, facilityID, typeID, rawDate string, durationMinutes int) (*slotContext, error) {
	facility, err := s.facilities.FindByID(ctx, facilityID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "facility not found")
		}
		return nil, fmt.Errorf("find facility: %w", err)
	}
	appointmentType, err := s.facilities.FindAppointmentType(ctx, facilityID, typeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "appointment type not found")
		}
		return nil, fmt.Errorf("find appointment type: %w", err)
	}

	date, err := walltime.ParseDate(rawDate)
	if err != nil {
		return nil, err
	}
	location, err := walltime.LoadLocation(facility.Timezone)
	if err != nil {
		return nil, fmt.Errorf("facility %s timezone: %w", facility.ID, err)
	}

	if durationMinutes <= 0 {
		durationMinutes = appointmentType.DurationMinutes
	}
	return &slotContext{
		facility:        facility,
		appointmentType: appointmentType,
		date:            date,
		location:        location,
		duration:        durationMinutes,
	}, nil
}

// ListSlots resolves the full-day slot list for a facility, type and date.
func (s *AvailabilityService) ListSlots(ctx context.Context, req ListSlotsRequest) (*ListSlotsResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	sc, err := s.resolveContext(ctx, req.FacilityID, req.AppointmentTypeID, req.Date, req.DurationMinutes)
	if err != nil {
		return nil, err
	}

	var viewer *time.Location
	if req.ViewerTimezone != "" {
		viewer, err = walltime.LoadLocation(req.ViewerTimezone)
		if err != nil {
			return nil, err
		}
	}

	granularity := req.GranularityMinutes
	if granularity <= 0 {
		granularity = s.granularityMinutes
	}

	start := time.Now()
	slots, err := s.resolver.ListSlots(ctx, availability.ListRequest{
		FacilityID:         sc.facility.ID,
		AppointmentTypeID:  sc.appointmentType.ID,
		Date:               sc.date,
		DurationMinutes:    sc.duration,
		GranularityMinutes: granularity,
		AllowSpanningBreak: sc.appointmentType.AllowSpanningBreak,
		Location:           sc.location,
		ViewerLocation:     viewer,
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.ObserveSlotComputation(time.Since(start))
	}

	s.logger.Debug("slots resolved",
		zap.String("facility_id", sc.facility.ID),
		zap.String("date", sc.date.String()),
		zap.Int("slots", len(slots)))

	return &ListSlotsResponse{
		FacilityID:        sc.facility.ID,
		AppointmentTypeID: sc.appointmentType.ID,
		Date:              sc.date.String(),
		Timezone:          sc.facility.Timezone,
		DurationMinutes:   sc.duration,
		Slots:             slots,
	}, nil
}

// ValidateSlot runs the authoritative single-slot check. A closed or full
// slot is a normal {valid:false} result, never an error.
func (s *AvailabilityService) ValidateSlot(ctx context.Context, req ValidateSlotRequest) (*availability.ValidateResult, error) {
	result, _, err := s.validateSlot(ctx, req)
	return result, err
}

func (s *AvailabilityService) validateSlot(ctx context.Context, req ValidateSlotRequest) (*availability.ValidateResult, *slotContext, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	sc, err := s.resolveContext(ctx, req.FacilityID, req.AppointmentTypeID, req.Date, req.DurationMinutes)
	if err != nil {
		return nil, nil, err
	}

	start, err := walltime.ParseTimeOfDay(req.Time)
	if err != nil {
		return nil, nil, err
	}

	result, err := s.resolver.ValidateSlot(ctx, availability.ValidateRequest{
		FacilityID:         sc.facility.ID,
		AppointmentTypeID:  sc.appointmentType.ID,
		Date:               sc.date,
		Start:              start,
		DurationMinutes:    sc.duration,
		AllowSpanningBreak: sc.appointmentType.AllowSpanningBreak,
		Location:           sc.location,
	})
	if err != nil {
		return nil, nil, err
	}
	return &result, sc, nil
}
