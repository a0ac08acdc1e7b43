package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gw-connect/connect-api/internal/dto"
	"github.com/gw-connect/connect-api/internal/middleware"
	"github.com/gw-connect/connect-api/internal/models"
	appErrors "github.com/gw-connect/connect-api/pkg/errors"
)

type bookingServiceMock struct {
	createResp *models.AppointmentRequest
	createErr  error
	confirmErr error
	archiveErr error
}

func (m *bookingServiceMock) Create(ctx context.Context, requesterID string, req dto.CreateAppointmentRequest) (*models.AppointmentRequest, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	return m.createResp, nil
}

func (m *bookingServiceMock) Get(ctx context.Context, actorUserID, id string) (*models.AppointmentRequest, error) {
	return &models.AppointmentRequest{ID: id}, nil
}

func (m *bookingServiceMock) List(ctx context.Context, actorUserID string, filter models.AppointmentFilter) ([]models.AppointmentRequest, int, error) {
	return []models.AppointmentRequest{}, 0, nil
}

func (m *bookingServiceMock) Confirm(ctx context.Context, actorUserID, id string) (*models.AppointmentRequest, error) {
	if m.confirmErr != nil {
		return nil, m.confirmErr
	}
	return &models.AppointmentRequest{ID: id, Status: models.AppointmentConfirmed}, nil
}

func (m *bookingServiceMock) Decline(ctx context.Context, actorUserID, id string) (*models.AppointmentRequest, error) {
	return &models.AppointmentRequest{ID: id, Status: models.AppointmentDeclined}, nil
}

func (m *bookingServiceMock) Cancel(ctx context.Context, actorUserID, id string) (*models.AppointmentRequest, error) {
	return &models.AppointmentRequest{ID: id, Status: models.AppointmentCancelled}, nil
}

func (m *bookingServiceMock) Complete(ctx context.Context, actorUserID, id string) (*models.AppointmentRequest, error) {
	return &models.AppointmentRequest{ID: id, Status: models.AppointmentCompleted}, nil
}

func (m *bookingServiceMock) Reschedule(ctx context.Context, actorUserID, id string, req dto.RescheduleAppointmentRequest) (*models.AppointmentRequest, error) {
	return &models.AppointmentRequest{Status: models.AppointmentRequested}, nil
}

func (m *bookingServiceMock) Archive(ctx context.Context, actorUserID, id string) error {
	return m.archiveErr
}

func testIdentity() *models.Identity {
	return &models.Identity{UserID: "user-1", Role: models.RoleStudent}
}

func TestBookingHandlerCreateInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewBookingHandler(&bookingServiceMock{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/appointments", bytes.NewReader([]byte(`invalid`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, testIdentity())

	handler.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBookingHandlerCreateUnauthenticated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewBookingHandler(&bookingServiceMock{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/appointments", bytes.NewReader(nil))
	c.Request = req

	handler.Create(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBookingHandlerCreateConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewBookingHandler(&bookingServiceMock{
		createErr: appErrors.Clone(appErrors.ErrSlotConflict, "slot is not offered"),
	})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(dto.CreateAppointmentRequest{
		PersonID:    "person-1",
		Date:        "2026-09-07",
		StartMinute: 840,
		EndMinute:   870,
		Format:      models.FormatVirtual,
		Topic:       "Office hours",
	})
	req, _ := http.NewRequest(http.MethodPost, "/appointments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, testIdentity())

	handler.Create(c)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestBookingHandlerConfirm(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewBookingHandler(&bookingServiceMock{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/appointments/appt-1/confirm", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "appt-1"}}
	c.Set(middleware.ContextUserKey, testIdentity())

	handler.Confirm(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"confirmed"`)
}

func TestBookingHandlerListRejectsUnknownStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewBookingHandler(&bookingServiceMock{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/appointments?status=bogus", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, testIdentity())

	handler.List(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBookingHandlerArchive(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewBookingHandler(&bookingServiceMock{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodDelete, "/appointments/appt-1", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "appt-1"}}
	c.Set(middleware.ContextUserKey, testIdentity())

	handler.Archive(c)
	c.Writer.WriteHeaderNow()
	require.Equal(t, http.StatusNoContent, w.Code)
}
