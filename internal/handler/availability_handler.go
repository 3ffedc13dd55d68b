package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dockwise/dockwise-api/internal/availability"
	"github.com/dockwise/dockwise-api/internal/service"
	appErrors "github.com/dockwise/dockwise-api/pkg/errors"
	"github.com/dockwise/dockwise-api/pkg/response"
)

type availabilitySlotService interface {
	ListSlots(ctx context.Context, req service.ListSlotsRequest) (*service.ListSlotsResponse, error)
	ValidateSlot(ctx context.Context, req service.ValidateSlotRequest) (*availability.ValidateResult, error)
}

// AvailabilityHandler exposes slot listing and validation endpoints.
type AvailabilityHandler struct {
	service availabilitySlotService
}

// NewAvailabilityHandler constructs the handler.
func NewAvailabilityHandler(service availabilitySlotService) *AvailabilityHandler {
	return &AvailabilityHandler{service: service}
}

// ListSlots godoc
// @Summary List bookable slots for a facility day
// @Tags Availability
// @Produce json
// @Param id path string true "Facility ID"
// @Param type query string true "Appointment type ID"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Param duration query int false "Duration override in minutes"
// @Param granularity query int false "Slot granularity in minutes"
// @Param tz query string false "Viewer timezone for dual display"
// @Success 200 {object} response.Envelope
// @Router /facilities/{id}/slots [get]
func (h *AvailabilityHandler) ListSlots(c *gin.Context) {
	req := service.ListSlotsRequest{
		FacilityID:        c.Param("id"),
		AppointmentTypeID: strings.TrimSpace(c.Query("type")),
		Date:              strings.TrimSpace(c.Query("date")),
		ViewerTimezone:    strings.TrimSpace(c.Query("tz")),
	}
	var err error
	if req.DurationMinutes, err = intQuery(c, "duration"); err != nil {
		response.Error(c, err)
		return
	}
	if req.GranularityMinutes, err = intQuery(c, "granularity"); err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.service.ListSlots(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ValidateSlot godoc
// @Summary Check whether a specific slot can be booked
// @Tags Availability
// @Accept json
// @Produce json
// @Param id path string true "Facility ID"
// @Param payload body service.ValidateSlotRequest true "Slot to check"
// @Success 200 {object} response.Envelope
// @Router /facilities/{id}/slots/validate [post]
func (h *AvailabilityHandler) ValidateSlot(c *gin.Context) {
	var req service.ValidateSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid slot payload"))
		return
	}
	req.FacilityID = c.Param("id")

	result, err := h.service.ValidateSlot(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

func intQuery(c *gin.Context, name string) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, appErrors.Clone(appErrors.ErrValidation, name+" must be an integer")
	}
	return value, nil
}
