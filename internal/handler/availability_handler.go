package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gw-connect/connect-api/internal/dto"
	"github.com/gw-connect/connect-api/internal/models"
	appErrors "github.com/gw-connect/connect-api/pkg/errors"
	"github.com/gw-connect/connect-api/pkg/response"
)

type availabilityService interface {
	GetPerson(ctx context.Context, personID string) (*models.Person, error)
	GetPersonByUser(ctx context.Context, userID string) (*models.Person, error)
	ListWindows(ctx context.Context, personID string) ([]models.AvailabilityWindow, error)
	ReplaceWindows(ctx context.Context, actorUserID, personID string, req dto.UpsertAvailabilityRequest) ([]models.AvailabilityWindow, error)
	ImportWindows(ctx context.Context, actorUserID, personID string, req dto.ImportAvailabilityRequest) ([]models.AvailabilityWindow, error)
	UpdatePolicy(ctx context.Context, actorUserID, personID string, req dto.UpdateBookingPolicyRequest) (*models.Person, error)
	GenerateSlots(ctx context.Context, personID string, date time.Time) ([]dto.Slot, error)
}

// AvailabilityHandler exposes availability windows, booking policy and slot
// generation endpoints.
type AvailabilityHandler struct {
	service availabilityService
}

// NewAvailabilityHandler builds a new handler.
func NewAvailabilityHandler(service availabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{service: service}
}

// GetPerson godoc
// @Summary Get a bookable person
// @Tags Availability
// @Produce json
// @Param id path string true "Person id"
// @Success 200 {object} response.Envelope
// @Router /people/{id} [get]
func (h *AvailabilityHandler) GetPerson(c *gin.Context) {
	person, err := h.service.GetPerson(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, person, nil)
}

// Me resolves the caller's own bookable profile.
func (h *AvailabilityHandler) Me(c *gin.Context) {
	identity := identityFromContext(c)
	if identity == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	person, err := h.service.GetPersonByUser(c.Request.Context(), identity.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, person, nil)
}

// ListWindows godoc
// @Summary List availability windows
// @Tags Availability
// @Produce json
// @Param id path string true "Person id"
// @Success 200 {object} response.Envelope
// @Router /people/{id}/windows [get]
func (h *AvailabilityHandler) ListWindows(c *gin.Context) {
	windows, err := h.service.ListWindows(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, windows, nil)
}

// ReplaceWindows godoc
// @Summary Replace availability windows
// @Tags Availability
// @Accept json
// @Produce json
// @Param id path string true "Person id"
// @Param payload body dto.UpsertAvailabilityRequest true "Windows payload"
// @Success 200 {object} response.Envelope
// @Router /people/{id}/windows [put]
func (h *AvailabilityHandler) ReplaceWindows(c *gin.Context) {
	identity := identityFromContext(c)
	if identity == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UpsertAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid availability payload"))
		return
	}
	windows, err := h.service.ReplaceWindows(c.Request.Context(), identity.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, windows, nil)
}

// ImportWindows godoc
// @Summary Import availability from free-text entries
// @Tags Availability
// @Accept json
// @Produce json
// @Param id path string true "Person id"
// @Param payload body dto.ImportAvailabilityRequest true "Free-text entries"
// @Success 200 {object} response.Envelope
// @Router /people/{id}/windows/import [post]
func (h *AvailabilityHandler) ImportWindows(c *gin.Context) {
	identity := identityFromContext(c)
	if identity == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.ImportAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid import payload"))
		return
	}
	windows, err := h.service.ImportWindows(c.Request.Context(), identity.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, windows, nil)
}

// UpdatePolicy godoc
// @Summary Update booking policy
// @Tags Availability
// @Accept json
// @Produce json
// @Param id path string true "Person id"
// @Param payload body dto.UpdateBookingPolicyRequest true "Policy payload"
// @Success 200 {object} response.Envelope
// @Router /people/{id}/policy [put]
func (h *AvailabilityHandler) UpdatePolicy(c *gin.Context) {
	identity := identityFromContext(c)
	if identity == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UpdateBookingPolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid policy payload"))
		return
	}
	person, err := h.service.UpdatePolicy(c.Request.Context(), identity.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, person, nil)
}

// Slots godoc
// @Summary Generate bookable slots for a date
// @Tags Availability
// @Produce json
// @Param id path string true "Person id"
// @Param date query string true "Target date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /people/{id}/slots [get]
func (h *AvailabilityHandler) Slots(c *gin.Context) {
	raw := c.Query("date")
	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD"))
		return
	}
	slots, err := h.service.GenerateSlots(c.Request.Context(), c.Param("id"), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, nil)
}
