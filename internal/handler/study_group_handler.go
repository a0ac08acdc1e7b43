package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gw-connect/connect-api/internal/dto"
	"github.com/gw-connect/connect-api/internal/models"
	appErrors "github.com/gw-connect/connect-api/pkg/errors"
	"github.com/gw-connect/connect-api/pkg/response"
)

type studyGroupService interface {
	List(ctx context.Context, filter models.StudyGroupFilter) ([]dto.StudyGroupDetail, int, error)
	Get(ctx context.Context, id string) (*dto.StudyGroupDetail, error)
	Create(ctx context.Context, ownerID string, req dto.CreateStudyGroupRequest) (*dto.StudyGroupDetail, error)
	Update(ctx context.Context, actorID, id string, req dto.UpdateStudyGroupRequest) (*dto.StudyGroupDetail, error)
	Delete(ctx context.Context, actorID, id string) error
	Join(ctx context.Context, userID, id string) error
	Leave(ctx context.Context, userID, id string) error
	Members(ctx context.Context, id string) ([]models.StudyGroupMember, error)
}

// StudyGroupHandler exposes study group endpoints.
type StudyGroupHandler struct {
	service studyGroupService
}

// NewStudyGroupHandler builds a new handler.
func NewStudyGroupHandler(service studyGroupService) *StudyGroupHandler {
	return &StudyGroupHandler{service: service}
}

// List godoc
// @Summary List study groups
// @Tags StudyGroups
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /groups [get]
func (h *StudyGroupHandler) List(c *gin.Context) {
	filter := models.StudyGroupFilter{
		Course:   c.Query("course"),
		Search:   c.Query("q"),
		OwnerID:  c.Query("owner_id"),
		Page:     queryInt(c, "page"),
		PageSize: queryInt(c, "page_size"),
	}
	groups, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, groups, paginationFor(filter.Page, filter.PageSize, total))
}

// Get returns one group.
func (h *StudyGroupHandler) Get(c *gin.Context) {
	group, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, group, nil)
}

// Create godoc
// @Summary Create a study group
// @Tags StudyGroups
// @Accept json
// @Produce json
// @Param payload body dto.CreateStudyGroupRequest true "Group payload"
// @Success 201 {object} response.Envelope
// @Router /groups [post]
func (h *StudyGroupHandler) Create(c *gin.Context) {
	identity := identityFromContext(c)
	if identity == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateStudyGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid group payload"))
		return
	}
	group, err := h.service.Create(c.Request.Context(), identity.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, group)
}

// Update edits group metadata, owner only.
func (h *StudyGroupHandler) Update(c *gin.Context) {
	identity := identityFromContext(c)
	if identity == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UpdateStudyGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid group payload"))
		return
	}
	group, err := h.service.Update(c.Request.Context(), identity.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, group, nil)
}

// Delete removes a group, owner only.
func (h *StudyGroupHandler) Delete(c *gin.Context) {
	identity := identityFromContext(c)
	if identity == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Delete(c.Request.Context(), identity.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Join adds the caller to the group.
func (h *StudyGroupHandler) Join(c *gin.Context) {
	identity := identityFromContext(c)
	if identity == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Join(c.Request.Context(), identity.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Leave removes the caller from the group.
func (h *StudyGroupHandler) Leave(c *gin.Context) {
	identity := identityFromContext(c)
	if identity == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Leave(c.Request.Context(), identity.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Members lists the group's membership.
func (h *StudyGroupHandler) Members(c *gin.Context) {
	members, err := h.service.Members(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, members, nil)
}
