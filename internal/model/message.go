// internal/model/message.go
package model

import "time"

type SenderType string

const (
	SenderContact SenderType = "contact"
	SenderAgent   SenderType = "agent"
	SenderBot     SenderType = "bot"
	SenderSystem  SenderType = "system"
)

type MessageType string

const (
	MessageText     MessageType = "text"
	MessageImage    MessageType = "image"
	MessageVideo    MessageType = "video"
	MessageAudio    MessageType = "audio"
	MessageFile     MessageType = "file"
	MessageActivity MessageType = "activity"
)

// AttachmentPlaceholder is stored as content when a message carries only attachments.
const AttachmentPlaceholder = "[Attachment]"

type Message struct {
	ID               string      `db:"id" json:"id"`
	ConversationID   string      `db:"conversation_id" json:"conversation_id"`
	OrganizationID   string      `db:"organization_id" json:"organization_id"`
	SenderType       SenderType  `db:"sender_type" json:"sender_type"`
	SenderID         *string     `db:"sender_id" json:"sender_id,omitempty"`
	SenderName       string      `db:"sender_name" json:"sender_name"`
	MessageType      MessageType `db:"message_type" json:"message_type"`
	Content          string      `db:"content" json:"content"`
	AttachmentURLs   []string    `db:"attachment_urls" json:"attachment_urls,omitempty"`
	ChannelMessageID *string     `db:"channel_message_id" json:"channel_message_id,omitempty"`
	IsPrivate        bool        `db:"is_private" json:"is_private"`
	IsRead           bool        `db:"is_read" json:"is_read"`
	IsDeleted        bool        `db:"is_deleted" json:"is_deleted"`
	// SentAt is the provider's timestamp for inbound channel messages.
	SentAt           *time.Time  `db:"sent_at" json:"sent_at,omitempty"`
	CreatedAt        time.Time   `db:"created_at" json:"created_at"`
}
