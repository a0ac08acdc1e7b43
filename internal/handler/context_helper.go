package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/gw-connect/connect-api/internal/middleware"
	"github.com/gw-connect/connect-api/internal/models"
)

func identityFromContext(c *gin.Context) *models.Identity {
	return middleware.CurrentUser(c)
}
