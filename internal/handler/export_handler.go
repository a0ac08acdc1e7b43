package handler

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gw-connect/connect-api/internal/dto"
	appErrors "github.com/gw-connect/connect-api/pkg/errors"
	"github.com/gw-connect/connect-api/pkg/response"
)

type exportService interface {
	Agenda(ctx context.Context, actorUserID, format string, from, to time.Time) (*dto.ExportResult, error)
	ResolveToken(token string) (relPath, fileName string, err error)
}

type exportFileOpener interface {
	Open(filename string) (io.ReadCloser, error)
}

// ExportHandler exposes agenda export endpoints.
type ExportHandler struct {
	service exportService
	files   exportFileOpener
}

// NewExportHandler builds a new handler.
func NewExportHandler(service exportService, files exportFileOpener) *ExportHandler {
	return &ExportHandler{service: service, files: files}
}

// Agenda godoc
// @Summary Export the caller's confirmed agenda
// @Tags Exports
// @Produce json
// @Param format query string false "csv or pdf" default(csv)
// @Param from query string true "Range start, YYYY-MM-DD"
// @Param to query string true "Range end, YYYY-MM-DD"
// @Success 200 {object} response.Envelope
// @Router /exports/agenda [get]
func (h *ExportHandler) Agenda(c *gin.Context) {
	identity := identityFromContext(c)
	if identity == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	format := c.DefaultQuery("format", "csv")
	from, err := time.Parse("2006-01-02", c.Query("from"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from must be YYYY-MM-DD"))
		return
	}
	to, err := time.Parse("2006-01-02", c.Query("to"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "to must be YYYY-MM-DD"))
		return
	}
	result, err := h.service.Agenda(c.Request.Context(), identity.UserID, format, from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Download streams an exported file behind a signed token.
func (h *ExportHandler) Download(c *gin.Context) {
	relPath, fileName, err := h.service.ResolveToken(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.files.Open(relPath)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "export file no longer available"))
		return
	}
	defer file.Close() //nolint:errcheck

	c.Header("Content-Disposition", `attachment; filename="`+fileName+`"`)
	c.Header("Content-Type", "application/octet-stream")
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, file)
}
