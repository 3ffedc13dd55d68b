package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/dockwise/dockwise-api/internal/availability"
	"github.com/dockwise/dockwise-api/internal/models"
	"github.com/dockwise/dockwise-api/internal/service"
)

type availabilityServiceMock struct {
	listResp     *service.ListSlotsResponse
	listErr      error
	listReq      service.ListSlotsRequest
	validateResp *availability.ValidateResult
	validateErr  error
	validateReq  service.ValidateSlotRequest
}

func (m *availabilityServiceMock) ListSlots(ctx context.Context, req service.ListSlotsRequest) (*service.ListSlotsResponse, error) {
	m.listReq = req
	return m.listResp, m.listErr
}

func (m *availabilityServiceMock) ValidateSlot(ctx context.Context, req service.ValidateSlotRequest) (*availability.ValidateResult, error) {
	m.validateReq = req
	return m.validateResp, m.validateErr
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func TestAvailabilityHandlerListSlots(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &availabilityServiceMock{
		listResp: &service.ListSlotsResponse{
			FacilityID: "fac-1",
			Date:       "2025-06-09",
			Timezone:   "America/New_York",
			Slots:      []models.Slot{{Time: "09:00", Available: true, Remaining: 2}},
		},
	}
	h := NewAvailabilityHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/facilities/fac-1/slots?type=type-1&date=2025-06-09&duration=30&tz=America/Chicago", nil)
	c.Params = gin.Params{{Key: "id", Value: "fac-1"}}

	h.ListSlots(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "fac-1", mockSvc.listReq.FacilityID)
	require.Equal(t, "type-1", mockSvc.listReq.AppointmentTypeID)
	require.Equal(t, 30, mockSvc.listReq.DurationMinutes)
	require.Equal(t, "America/Chicago", mockSvc.listReq.ViewerTimezone)
}

func TestAvailabilityHandlerListSlotsRejectsBadDuration(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewAvailabilityHandler(&availabilityServiceMock{})

	c, w := newGinContext(http.MethodGet, "/facilities/fac-1/slots?type=type-1&date=2025-06-09&duration=soon", nil)
	c.Params = gin.Params{{Key: "id", Value: "fac-1"}}

	h.ListSlots(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAvailabilityHandlerValidateSlot(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &availabilityServiceMock{
		validateResp: &availability.ValidateResult{Valid: true, Remaining: 1},
	}
	h := NewAvailabilityHandler(mockSvc)

	payload, _ := json.Marshal(map[string]string{
		"appointment_type_id": "type-1",
		"date":                "2025-06-09",
		"time":                "09:00",
	})
	c, w := newGinContext(http.MethodPost, "/facilities/fac-1/slots/validate", payload)
	c.Params = gin.Params{{Key: "id", Value: "fac-1"}}

	h.ValidateSlot(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "fac-1", mockSvc.validateReq.FacilityID)

	var envelope struct {
		Data availability.ValidateResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.True(t, envelope.Data.Valid)
}

func TestAvailabilityHandlerValidateSlotRejectsBadJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewAvailabilityHandler(&availabilityServiceMock{})

	c, w := newGinContext(http.MethodPost, "/facilities/fac-1/slots/validate", []byte("{not json"))
	c.Params = gin.Params{{Key: "id", Value: "fac-1"}}

	h.ValidateSlot(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
