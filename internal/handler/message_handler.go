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

type messageService interface {
	Start(ctx context.Context, senderID string, req dto.StartConversationRequest) (*models.Conversation, *models.Message, error)
	Send(ctx context.Context, senderID, conversationID string, req dto.SendMessageRequest) (*models.Message, error)
	Conversations(ctx context.Context, userID string) ([]models.Conversation, error)
	Messages(ctx context.Context, userID, conversationID string) ([]models.Message, error)
}

// MessageHandler exposes messaging endpoints.
type MessageHandler struct {
	service messageService
}

// NewMessageHandler builds a new handler.
func NewMessageHandler(service messageService) *MessageHandler {
	return &MessageHandler{service: service}
}

// Start godoc
// @Summary Start a conversation
// @Tags Messages
// @Accept json
// @Produce json
// @Param payload body dto.StartConversationRequest true "First message"
// @Success 201 {object} response.Envelope
// @Router /conversations [post]
func (h *MessageHandler) Start(c *gin.Context) {
	identity := identityFromContext(c)
	if identity == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.StartConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid message payload"))
		return
	}
	conv, msg, err := h.service.Start(c.Request.Context(), identity.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"conversation": conv, "message": msg})
}

// Conversations lists the caller's threads.
func (h *MessageHandler) Conversations(c *gin.Context) {
	identity := identityFromContext(c)
	if identity == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	convs, err := h.service.Conversations(c.Request.Context(), identity.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, convs, nil)
}

// Messages returns one thread's messages and marks them read.
func (h *MessageHandler) Messages(c *gin.Context) {
	identity := identityFromContext(c)
	if identity == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	msgs, err := h.service.Messages(c.Request.Context(), identity.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, msgs, nil)
}

// Send appends a message to a thread.
func (h *MessageHandler) Send(c *gin.Context) {
	identity := identityFromContext(c)
	if identity == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid message payload"))
		return
	}
	msg, err := h.service.Send(c.Request.Context(), identity.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, msg)
}
