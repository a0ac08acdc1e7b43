package dto

// StartConversationRequest opens (or reuses) a thread with another member and
// sends the first message.
type StartConversationRequest struct {
	RecipientID string `json:"recipient_id" validate:"required"`
	Body        string `json:"body" validate:"required,max=4000"`
}

// SendMessageRequest appends a message to an existing thread.
type SendMessageRequest struct {
	Body string `json:"body" validate:"required,max=4000"`
}
