package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gw-connect/connect-api/internal/dto"
	"github.com/gw-connect/connect-api/internal/models"
	appErrors "github.com/gw-connect/connect-api/pkg/errors"
	"github.com/gw-connect/connect-api/pkg/response"
)

type materialService interface {
	List(ctx context.Context, filter models.MaterialFilter) ([]models.Material, int, error)
	Get(ctx context.Context, id string) (*models.Material, error)
	Upload(ctx context.Context, ownerID, title, description, course, fileName, mimeType string, size int64, r io.Reader) (*models.Material, error)
	Update(ctx context.Context, actorID, id string, req dto.UpdateMaterialRequest) (*models.Material, error)
	Delete(ctx context.Context, actorID, id string) error
	DownloadLink(ctx context.Context, id string) (*dto.DownloadLink, error)
	OpenByToken(ctx context.Context, token string) (*models.Material, io.ReadCloser, error)
}

// MaterialHandler exposes study material endpoints.
type MaterialHandler struct {
	service materialService
}

// NewMaterialHandler builds a new handler.
func NewMaterialHandler(service materialService) *MaterialHandler {
	return &MaterialHandler{service: service}
}

// List godoc
// @Summary List study materials
// @Tags Materials
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /materials [get]
func (h *MaterialHandler) List(c *gin.Context) {
	filter := models.MaterialFilter{
		OwnerID:  c.Query("owner_id"),
		Course:   c.Query("course"),
		Search:   c.Query("q"),
		Page:     queryInt(c, "page"),
		PageSize: queryInt(c, "page_size"),
	}
	materials, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, materials, paginationFor(filter.Page, filter.PageSize, total))
}

// Get returns one material's metadata.
func (h *MaterialHandler) Get(c *gin.Context) {
	material, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, material, nil)
}

// Upload godoc
// @Summary Upload a study material
// @Tags Materials
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "File"
// @Param title formData string true "Title"
// @Success 201 {object} response.Envelope
// @Router /materials [post]
func (h *MaterialHandler) Upload(c *gin.Context) {
	identity := identityFromContext(c)
	if identity == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read upload"))
		return
	}
	defer file.Close() //nolint:errcheck

	material, err := h.service.Upload(
		c.Request.Context(),
		identity.UserID,
		c.PostForm("title"),
		c.PostForm("description"),
		c.PostForm("course"),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		fileHeader.Size,
		file,
	)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, material)
}

// Update edits material metadata, owner only.
func (h *MaterialHandler) Update(c *gin.Context) {
	identity := identityFromContext(c)
	if identity == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UpdateMaterialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid material payload"))
		return
	}
	material, err := h.service.Update(c.Request.Context(), identity.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, material, nil)
}

// Delete removes a material, owner only.
func (h *MaterialHandler) Delete(c *gin.Context) {
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

// Link issues a signed download link.
func (h *MaterialHandler) Link(c *gin.Context) {
	link, err := h.service.DownloadLink(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

// Download streams the file behind a signed token. The token itself carries
// authorization, so this route sits outside the JWT group.
func (h *MaterialHandler) Download(c *gin.Context) {
	material, file, err := h.service.OpenByToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	c.Header("Content-Disposition", `attachment; filename="`+material.FileName+`"`)
	c.Header("Content-Type", material.MIMEType)
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, file)
}
