package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gw-connect/connect-api/internal/dto"
	"github.com/gw-connect/connect-api/internal/models"
	appErrors "github.com/gw-connect/connect-api/pkg/errors"
	"github.com/gw-connect/connect-api/pkg/response"
)

type bookingService interface {
	Create(ctx context.Context, requesterID string, req dto.CreateAppointmentRequest) (*models.AppointmentRequest, error)
	Get(ctx context.Context, actorUserID, id string) (*models.AppointmentRequest, error)
	List(ctx context.Context, actorUserID string, filter models.AppointmentFilter) ([]models.AppointmentRequest, int, error)
	Confirm(ctx context.Context, actorUserID, id string) (*models.AppointmentRequest, error)
	Decline(ctx context.Context, actorUserID, id string) (*models.AppointmentRequest, error)
	Cancel(ctx context.Context, actorUserID, id string) (*models.AppointmentRequest, error)
	Complete(ctx context.Context, actorUserID, id string) (*models.AppointmentRequest, error)
	Reschedule(ctx context.Context, actorUserID, id string, req dto.RescheduleAppointmentRequest) (*models.AppointmentRequest, error)
	Archive(ctx context.Context, actorUserID, id string) error
}

// BookingHandler exposes the appointment request lifecycle endpoints.
type BookingHandler struct {
	service bookingService
}

// NewBookingHandler builds a new handler.
func NewBookingHandler(service bookingService) *BookingHandler {
	return &BookingHandler{service: service}
}

// Create godoc
// @Summary Request an appointment
// @Tags Appointments
// @Accept json
// @Produce json
// @Param payload body dto.CreateAppointmentRequest true "Appointment payload"
// @Success 201 {object} response.Envelope
// @Router /appointments [post]
func (h *BookingHandler) Create(c *gin.Context) {
	identity := identityFromContext(c)
	if identity == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid appointment payload"))
		return
	}
	appt, err := h.service.Create(c.Request.Context(), identity.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, appt)
}

// List godoc
// @Summary List appointments for the caller
// @Tags Appointments
// @Produce json
// @Param person_id query string false "List as target person (owner only)"
// @Param status query string false "Filter by status"
// @Success 200 {object} response.Envelope
// @Router /appointments [get]
func (h *BookingHandler) List(c *gin.Context) {
	identity := identityFromContext(c)
	if identity == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	filter := models.AppointmentFilter{
		PersonID: c.Query("person_id"),
		Page:     queryInt(c, "page"),
		PageSize: queryInt(c, "page_size"),
	}
	if raw := c.Query("status"); raw != "" {
		status := models.AppointmentStatus(raw)
		if !status.Valid() {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown status"))
			return
		}
		filter.Status = &status
	}
	if raw := c.Query("from"); raw != "" {
		from, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from must be YYYY-MM-DD"))
			return
		}
		filter.DateFrom = &from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "to must be YYYY-MM-DD"))
			return
		}
		filter.DateTo = &to
	}

	appts, total, err := h.service.List(c.Request.Context(), identity.UserID, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appts, paginationFor(filter.Page, filter.PageSize, total))
}

// Get godoc
// @Summary Get one appointment
// @Tags Appointments
// @Produce json
// @Param id path string true "Appointment id"
// @Success 200 {object} response.Envelope
// @Router /appointments/{id} [get]
func (h *BookingHandler) Get(c *gin.Context) {
	identity := identityFromContext(c)
	if identity == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	appt, err := h.service.Get(c.Request.Context(), identity.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appt, nil)
}

// Confirm godoc
// @Summary Confirm a requested appointment
// @Tags Appointments
// @Produce json
// @Param id path string true "Appointment id"
// @Success 200 {object} response.Envelope
// @Router /appointments/{id}/confirm [post]
func (h *BookingHandler) Confirm(c *gin.Context) {
	h.transition(c, h.service.Confirm)
}

// Decline godoc
// @Summary Decline a requested appointment
// @Tags Appointments
// @Produce json
// @Param id path string true "Appointment id"
// @Success 200 {object} response.Envelope
// @Router /appointments/{id}/decline [post]
func (h *BookingHandler) Decline(c *gin.Context) {
	h.transition(c, h.service.Decline)
}

// Cancel godoc
// @Summary Cancel a confirmed appointment before it starts
// @Tags Appointments
// @Produce json
// @Param id path string true "Appointment id"
// @Success 200 {object} response.Envelope
// @Router /appointments/{id}/cancel [post]
func (h *BookingHandler) Cancel(c *gin.Context) {
	h.transition(c, h.service.Cancel)
}

// Complete godoc
// @Summary Mark a confirmed appointment completed
// @Tags Appointments
// @Produce json
// @Param id path string true "Appointment id"
// @Success 200 {object} response.Envelope
// @Router /appointments/{id}/complete [post]
func (h *BookingHandler) Complete(c *gin.Context) {
	h.transition(c, h.service.Complete)
}

// Reschedule godoc
// @Summary Reschedule a confirmed appointment to a new slot
// @Tags Appointments
// @Accept json
// @Produce json
// @Param id path string true "Appointment id"
// @Param payload body dto.RescheduleAppointmentRequest true "New slot"
// @Success 201 {object} response.Envelope
// @Router /appointments/{id}/reschedule [post]
func (h *BookingHandler) Reschedule(c *gin.Context) {
	identity := identityFromContext(c)
	if identity == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.RescheduleAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reschedule payload"))
		return
	}
	replacement, err := h.service.Reschedule(c.Request.Context(), identity.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, replacement)
}

// Archive godoc
// @Summary Archive a terminal appointment
// @Tags Appointments
// @Param id path string true "Appointment id"
// @Success 204
// @Router /appointments/{id} [delete]
func (h *BookingHandler) Archive(c *gin.Context) {
	identity := identityFromContext(c)
	if identity == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Archive(c.Request.Context(), identity.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func (h *BookingHandler) transition(c *gin.Context, action func(context.Context, string, string) (*models.AppointmentRequest, error)) {
	identity := identityFromContext(c)
	if identity == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	appt, err := action(c.Request.Context(), identity.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appt, nil)
}

func queryInt(c *gin.Context, key string) int {
	value, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return value
}

func paginationFor(page, size, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return &models.Pagination{Page: page, PageSize: size, TotalCount: total}
}
