package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gw-connect/connect-api/internal/dto"
	"github.com/gw-connect/connect-api/internal/models"
	appErrors "github.com/gw-connect/connect-api/pkg/errors"
	"github.com/gw-connect/connect-api/pkg/response"
)

type directoryService interface {
	Search(ctx context.Context, query dto.DirectoryQuery) ([]dto.DirectoryEntry, models.Pagination, error)
	GetProfile(ctx context.Context, userID string) (*dto.DirectoryEntry, error)
	UpdateProfile(ctx context.Context, userID string, req dto.UpdateProfileRequest) (*dto.DirectoryEntry, error)
}

// DirectoryHandler exposes member search and profile endpoints.
type DirectoryHandler struct {
	service directoryService
}

// NewDirectoryHandler builds a new handler.
func NewDirectoryHandler(service directoryService) *DirectoryHandler {
	return &DirectoryHandler{service: service}
}

// Search godoc
// @Summary Search the member directory
// @Tags Directory
// @Produce json
// @Param q query string false "Substring search on name, department, interests"
// @Param role query string false "Filter by role"
// @Success 200 {object} response.Envelope
// @Router /directory [get]
func (h *DirectoryHandler) Search(c *gin.Context) {
	query := dto.DirectoryQuery{
		Role:       strings.ToUpper(c.Query("role")),
		Department: c.Query("department"),
		Search:     c.Query("q"),
		Page:       queryInt(c, "page"),
		PageSize:   queryInt(c, "page_size"),
		SortBy:     c.Query("sort_by"),
		SortOrder:  c.Query("sort_order"),
	}
	entries, pagination, err := h.service.Search(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, &pagination)
}

// GetProfile godoc
// @Summary Get a member profile
// @Tags Directory
// @Produce json
// @Param id path string true "User id"
// @Success 200 {object} response.Envelope
// @Router /directory/{id} [get]
func (h *DirectoryHandler) GetProfile(c *gin.Context) {
	entry, err := h.service.GetProfile(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// UpdateProfile godoc
// @Summary Update the caller's profile
// @Tags Directory
// @Accept json
// @Produce json
// @Param payload body dto.UpdateProfileRequest true "Profile payload"
// @Success 200 {object} response.Envelope
// @Router /directory/me [put]
func (h *DirectoryHandler) UpdateProfile(c *gin.Context) {
	identity := identityFromContext(c)
	if identity == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid profile payload"))
		return
	}
	entry, err := h.service.UpdateProfile(c.Request.Context(), identity.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}
