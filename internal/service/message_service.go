package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/gw-connect/connect-api/internal/dto"
	"github.com/gw-connect/connect-api/internal/models"
	appErrors "github.com/gw-connect/connect-api/pkg/errors"
)

type messageRepository interface {
	FindOrCreateConversation(ctx context.Context, userA, userB string) (*models.Conversation, error)
	FindConversation(ctx context.Context, id string) (*models.Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]models.Conversation, error)
	ListMessages(ctx context.Context, conversationID string) ([]models.Message, error)
	CreateMessage(ctx context.Context, msg *models.Message) error
	MarkRead(ctx context.Context, conversationID, readerID string) error
}

type messageUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type messageNotifier interface {
	Dispatch(ctx context.Context, userID, event string, payload map[string]interface{})
}

// MessageService handles two-party conversations and their messages.
type MessageService struct {
	messages  messageRepository
	users     messageUserReader
	notifier  messageNotifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewMessageService constructs a MessageService.
func NewMessageService(messages messageRepository, users messageUserReader, notifier messageNotifier, validate *validator.Validate, logger *zap.Logger) *MessageService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MessageService{messages: messages, users: users, notifier: notifier, validator: validate, logger: logger}
}

// Start opens (or reuses) a conversation with the recipient and sends the
// first message.
func (s *MessageService) Start(ctx context.Context, senderID string, req dto.StartConversationRequest) (*models.Conversation, *models.Message, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid message payload")
	}
	if req.RecipientID == senderID {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "cannot message yourself")
	}
	if _, err := s.users.FindByID(ctx, req.RecipientID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "recipient not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recipient")
	}

	conv, err := s.messages.FindOrCreateConversation(ctx, senderID, req.RecipientID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open conversation")
	}

	msg, err := s.send(ctx, conv, senderID, req.Body)
	if err != nil {
		return nil, nil, err
	}
	return conv, msg, nil
}

// Send appends a message to an existing conversation the sender takes part in.
func (s *MessageService) Send(ctx context.Context, senderID, conversationID string, req dto.SendMessageRequest) (*models.Message, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid message payload")
	}
	conv, err := s.requireParticipant(ctx, conversationID, senderID)
	if err != nil {
		return nil, err
	}
	return s.send(ctx, conv, senderID, req.Body)
}

// Conversations lists the caller's threads, most recently active first.
func (s *MessageService) Conversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	convs, err := s.messages.ListConversations(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list conversations")
	}
	if convs == nil {
		convs = []models.Conversation{}
	}
	return convs, nil
}

// Messages returns a thread's messages and marks those addressed to the
// reader as read.
func (s *MessageService) Messages(ctx context.Context, userID, conversationID string) ([]models.Message, error) {
	if _, err := s.requireParticipant(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list messages")
	}
	if err := s.messages.MarkRead(ctx, conversationID, userID); err != nil {
		s.logger.Warn("failed to mark messages read",
			zap.String("conversation_id", conversationID),
			zap.Error(err))
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	return msgs, nil
}

func (s *MessageService) send(ctx context.Context, conv *models.Conversation, senderID, body string) (*models.Message, error) {
	msg := &models.Message{
		ConversationID: conv.ID,
		SenderID:       senderID,
		Body:           body,
	}
	if err := s.messages.CreateMessage(ctx, msg); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to send message")
	}
	if s.notifier != nil {
		s.notifier.Dispatch(ctx, conv.OtherParticipant(senderID), "message.received", map[string]interface{}{
			"conversation_id": conv.ID,
			"message_id":      msg.ID,
			"sender_id":       senderID,
		})
	}
	return msg, nil
}

func (s *MessageService) requireParticipant(ctx context.Context, conversationID, userID string) (*models.Conversation, error) {
	conv, err := s.messages.FindConversation(ctx, conversationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "conversation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load conversation")
	}
	if !conv.HasParticipant(userID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not a participant in this conversation")
	}
	return conv, nil
}
