package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	appErrors "github.com/zentrodesk/zentro-desk/internal/errors"
	"github.com/zentrodesk/zentro-desk/internal/model"
)

// DefaultMessagePage caps how many messages a single listing returns.
const DefaultMessagePage = 200

// MessageRepositoryInterface defines methods used for appending and listing messages.
type MessageRepositoryInterface interface {
	// Create returns appErrors.ErrConflict when the conversation already holds a
	// message with the same channel_message_id.
	Create(ctx context.Context, m *model.Message) error
	// ListVisible returns non-private, non-deleted messages oldest first.
	ListVisible(ctx context.Context, conversationID string, q MessageQuery) ([]*model.Message, error)
}

// MessageQuery narrows ListVisible. After is exclusive and Since inclusive.
type MessageQuery struct {
	After *time.Time
	Since *time.Time
	Limit int
}

func (q MessageQuery) limit() int {
	if q.Limit <= 0 || q.Limit > DefaultMessagePage {
		return DefaultMessagePage
	}
	return q.Limit
}

// Admits reports whether a message created at t falls inside the time bounds.
func (q MessageQuery) Admits(t time.Time) bool {
	if q.After != nil && !t.After(*q.After) {
		return false
	}
	if q.Since != nil && t.Before(*q.Since) {
		return false
	}
	return true
}

type MessageRepository struct {
	DB *sql.DB
}

func (r *MessageRepository) Create(ctx context.Context, m *model.Message) error {
	if m.MessageType == "" {
		m.MessageType = model.MessageText
	}
	query := `
        INSERT INTO messages (conversation_id, organization_id, sender_type, sender_id, sender_name,
                              message_type, content, attachment_urls, channel_message_id,
                              is_private, is_read, is_deleted, sent_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, FALSE, $12)
        RETURNING id, created_at
    `
	err := r.DB.QueryRowContext(ctx, query,
		m.ConversationID, m.OrganizationID, m.SenderType, m.SenderID, m.SenderName,
		m.MessageType, m.Content, pq.Array(m.AttachmentURLs), m.ChannelMessageID,
		m.IsPrivate, m.IsRead, m.SentAt,
	).Scan(&m.ID, &m.CreatedAt)
	if isUniqueViolation(err) {
		return appErrors.ErrConflict
	}
	return err
}

func (r *MessageRepository) ListVisible(ctx context.Context, conversationID string, q MessageQuery) ([]*model.Message, error) {
	query := `
        SELECT id, conversation_id, organization_id, sender_type, sender_id, sender_name,
               message_type, content, attachment_urls, channel_message_id,
               is_private, is_read, is_deleted, sent_at, created_at
        FROM messages
        WHERE conversation_id = $1 AND NOT is_private AND NOT is_deleted
          AND ($2::timestamptz IS NULL OR created_at > $2)
          AND ($3::timestamptz IS NULL OR created_at >= $3)
        ORDER BY created_at ASC
        LIMIT $4
    `
	rows, err := r.DB.QueryContext(ctx, query, conversationID, q.After, q.Since, q.limit())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []*model.Message{}
	for rows.Next() {
		m := &model.Message{}
		if err := rows.Scan(
			&m.ID, &m.ConversationID, &m.OrganizationID, &m.SenderType, &m.SenderID, &m.SenderName,
			&m.MessageType, &m.Content, pq.Array(&m.AttachmentURLs), &m.ChannelMessageID,
			&m.IsPrivate, &m.IsRead, &m.IsDeleted, &m.SentAt, &m.CreatedAt,
		); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

var _ MessageRepositoryInterface = (*MessageRepository)(nil)
