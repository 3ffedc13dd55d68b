package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dockwise/dockwise-api/internal/availability"
	"github.com/dockwise/dockwise-api/internal/models"
	"github.com/dockwise/dockwise-api/internal/service"
	appErrors "github.com/dockwise/dockwise-api/pkg/errors"
	"github.com/dockwise/dockwise-api/pkg/response"
)

type bookingService interface {
	Create(ctx context.Context, req service.CreateBookingRequest) (*models.Booking, *availability.ValidateResult, error)
	GetByID(ctx context.Context, id string) (*models.Booking, error)
}

// BookingHandler exposes dock booking endpoints.
type BookingHandler struct {
	service bookingService
}

// NewBookingHandler constructs the handler.
func NewBookingHandler(service bookingService) *BookingHandler {
	return &BookingHandler{service: service}
}

// Create godoc
// @Summary Book a dock appointment slot
// @Tags Bookings
// @Accept json
// @Produce json
// @Param id path string true "Facility ID"
// @Param payload body service.CreateBookingRequest true "Booking details"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /facilities/{id}/bookings [post]
func (h *BookingHandler) Create(c *gin.Context) {
	var req service.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid booking payload"))
		return
	}
	req.FacilityID = c.Param("id")
	if claims := claimsFromContext(c); claims != nil {
		req.CreatedBy = claims.UserID
	}

	booking, result, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if booking == nil {
		// Slot was not bookable: the reason travels in the body, the status
		// code signals the conflict.
		response.JSON(c, http.StatusConflict, result, nil)
		return
	}
	response.Created(c, booking)
}

// Get godoc
// @Summary Get a booking by ID
// @Tags Bookings
// @Produce json
// @Param id path string true "Facility ID"
// @Param bookingId path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Router /facilities/{id}/bookings/{bookingId} [get]
func (h *BookingHandler) Get(c *gin.Context) {
	booking, err := h.service.GetByID(c.Request.Context(), c.Param("bookingId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if booking.FacilityID != c.Param("id") {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "booking not found"))
		return
	}
	response.JSON(c, http.StatusOK, booking, nil)
}
