package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/gw-connect/connect-api/internal/models"
)

// MessageRepository provides persistence for conversations and messages.
type MessageRepository struct {
	db *sqlx.DB
}

// NewMessageRepository creates a new message repository.
func NewMessageRepository(db *sqlx.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// FindOrCreateConversation returns the thread between two users, creating it
// when absent. Participants are stored in sorted order so lookups are stable.
func (r *MessageRepository) FindOrCreateConversation(ctx context.Context, userA, userB string) (*models.Conversation, error) {
	if userB < userA {
		userA, userB = userB, userA
	}

	const find = `SELECT id, participant_a, participant_b, last_message_at, created_at FROM conversations WHERE participant_a = $1 AND participant_b = $2`
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, find, userA, userB)
	if err == nil {
		return &conv, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("find conversation: %w", err)
	}

	conv = models.Conversation{
		ID:           uuid.NewString(),
		ParticipantA: userA,
		ParticipantB: userB,
		CreatedAt:    time.Now().UTC(),
	}
	const insert = `INSERT INTO conversations (id, participant_a, participant_b, created_at) VALUES (:id, :participant_a, :participant_b, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, insert, &conv); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return &conv, nil
}

// FindConversation loads a conversation by id.
func (r *MessageRepository) FindConversation(ctx context.Context, id string) (*models.Conversation, error) {
	const query = `SELECT id, participant_a, participant_b, last_message_at, created_at FROM conversations WHERE id = $1`
	var conv models.Conversation
	if err := r.db.GetContext(ctx, &conv, query, id); err != nil {
		return nil, err
	}
	return &conv, nil
}

// ListConversations returns a user's threads, most recently active first.
func (r *MessageRepository) ListConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	const query = `SELECT id, participant_a, participant_b, last_message_at, created_at FROM conversations WHERE participant_a = $1 OR participant_b = $1 ORDER BY last_message_at DESC NULLS LAST, created_at DESC`
	var convs []models.Conversation
	if err := r.db.SelectContext(ctx, &convs, query, userID); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return convs, nil
}

// ListMessages returns the messages of a conversation in send order.
func (r *MessageRepository) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	const query = `SELECT id, conversation_id, sender_id, body, read, created_at FROM messages WHERE conversation_id = $1 ORDER BY created_at ASC`
	var msgs []models.Message
	if err := r.db.SelectContext(ctx, &msgs, query, conversationID); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

// CreateMessage appends a message and bumps the thread activity timestamp.
func (r *MessageRepository) CreateMessage(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create message: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insert = `INSERT INTO messages (id, conversation_id, sender_id, body, read, created_at) VALUES (:id, :conversation_id, :sender_id, :body, :read, :created_at)`
	if _, err = tx.NamedExecContext(ctx, insert, msg); err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `UPDATE conversations SET last_message_at = $1 WHERE id = $2`, msg.CreatedAt, msg.ConversationID); err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create message: %w", err)
	}
	return nil
}

// MarkRead flags all messages addressed to the reader in a conversation.
func (r *MessageRepository) MarkRead(ctx context.Context, conversationID, readerID string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE messages SET read = TRUE WHERE conversation_id = $1 AND sender_id <> $2 AND read = FALSE`, conversationID, readerID); err != nil {
		return fmt.Errorf("mark messages read: %w", err)
	}
	return nil
}
