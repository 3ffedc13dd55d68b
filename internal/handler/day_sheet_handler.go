package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dockwise/dockwise-api/internal/models"
	"github.com/dockwise/dockwise-api/internal/service"
	appErrors "github.com/dockwise/dockwise-api/pkg/errors"
	"github.com/dockwise/dockwise-api/pkg/response"
)

type daySheetService interface {
	CreateJob(ctx context.Context, req service.CreateDaySheetRequest) (*service.DaySheetJobResponse, error)
	GetStatus(ctx context.Context, id string) (*service.DaySheetJobResponse, error)
	ResolveDownload(ctx context.Context, token string) (*service.DaySheetDownload, error)
}

// DaySheetHandler exposes day-sheet export endpoints.
type DaySheetHandler struct {
	service daySheetService
}

// NewDaySheetHandler constructs the handler.
func NewDaySheetHandler(service daySheetService) *DaySheetHandler {
	return &DaySheetHandler{service: service}
}

type createDaySheetPayload struct {
	Date              string  `json:"date" binding:"required"`
	AppointmentTypeID *string `json:"appointment_type_id"`
	Format            string  `json:"format" binding:"required"`
}

// Create godoc
// @Summary Queue a printable day-sheet export
// @Tags DaySheets
// @Accept json
// @Produce json
// @Param id path string true "Facility ID"
// @Param payload body createDaySheetPayload true "Export parameters"
// @Success 202 {object} response.Envelope
// @Router /facilities/{id}/day-sheets [post]
func (h *DaySheetHandler) Create(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "day sheet service not configured"))
		return
	}
	var payload createDaySheetPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid day sheet payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	job, err := h.service.CreateJob(c.Request.Context(), service.CreateDaySheetRequest{
		FacilityID:        c.Param("id"),
		Date:              payload.Date,
		AppointmentTypeID: payload.AppointmentTypeID,
		Format:            models.DaySheetFormat(strings.ToLower(payload.Format)),
		CreatedBy:         claims.UserID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, job, nil)
}

// Status godoc
// @Summary Get day-sheet job status
// @Tags DaySheets
// @Produce json
// @Param jobId path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /day-sheets/{jobId} [get]
func (h *DaySheetHandler) Status(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "day sheet service not configured"))
		return
	}
	job, err := h.service.GetStatus(c.Request.Context(), c.Param("jobId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// Download godoc
// @Summary Download a finished day sheet via signed token
// @Tags DaySheets
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Router /export/{token} [get]
func (h *DaySheetHandler) Download(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "day sheet service not configured"))
		return
	}
	result, err := h.service.ResolveDownload(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.File.Close() //nolint:errcheck

	info, err := result.File.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat day sheet file"))
		return
	}
	contentType := "text/csv"
	if result.Format == models.DaySheetFormatPDF {
		contentType = "application/pdf"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", result.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, info.Size(), contentType, result.File, nil)
}
