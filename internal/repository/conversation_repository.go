package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	appErrors "github.com/zentrodesk/zentro-desk/internal/errors"
	"github.com/zentrodesk/zentro-desk/internal/model"
)

// ConversationRepositoryInterface defines methods used by the router, dispatcher and widget.
type ConversationRepositoryInterface interface {
	GetByID(ctx context.Context, id string) (*model.Conversation, error)
	// GetWithParticipants loads the conversation with its inbox and contact joined.
	GetWithParticipants(ctx context.Context, id string) (*model.Conversation, error)
	// FindRoutable returns the newest open or pending conversation for the triple.
	FindRoutable(ctx context.Context, orgID, inboxID, contactID string) (*model.Conversation, error)
	// Create returns appErrors.ErrConflict if a routable conversation already exists for the triple.
	Create(ctx context.Context, c *model.Conversation) error
	ApplyLatestMessage(ctx context.Context, id string, u model.LatestMessageUpdate) error
	UpdateStatus(ctx context.Context, id string, status model.ConversationStatus) error
}

type ConversationRepository struct {
	DB *sql.DB
}

const conversationColumns = `
    c.id, c.organization_id, c.inbox_id, c.contact_id, c.assigned_agent_id, c.status,
    c.subject, c.channel_conversation_id, c.latest_message, c.latest_message_at,
    c.latest_message_sender, c.unread_count, c.created_at, c.updated_at`

func conversationDest(c *model.Conversation) []any {
	return []any{
		&c.ID, &c.OrganizationID, &c.InboxID, &c.ContactID, &c.AssignedAgentID, &c.Status,
		&c.Subject, &c.ChannelConversationID, &c.LatestMessage, &c.LatestMessageAt,
		&c.LatestMessageSender, &c.UnreadCount, &c.CreatedAt, &c.UpdatedAt,
	}
}

func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*model.Conversation, error) {
	var c model.Conversation
	err := r.DB.QueryRowContext(ctx, `SELECT `+conversationColumns+` FROM conversations c WHERE c.id = $1`, id).
		Scan(conversationDest(&c)...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.NewNotFound("conversation", id)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ConversationRepository) GetWithParticipants(ctx context.Context, id string) (*model.Conversation, error) {
	query := `SELECT ` + conversationColumns + `,` + inboxColumns + `,
        ct.id, ct.organization_id, ct.name, ct.email, ct.phone, ct.wa_id, ct.fb_psid, ct.ig_id, ct.is_blocked, ct.created_at
        FROM conversations c
        JOIN inboxes i ON i.id = c.inbox_id
        JOIN contacts ct ON ct.id = c.contact_id
        WHERE c.id = $1`

	var (
		conv model.Conversation
		ct   model.Contact
	)
	// inbox columns are scanned through scanInbox so the NULL handling lives in one place.
	row := r.DB.QueryRowContext(ctx, query, id)
	in, err := scanInbox(prefixScanner{row: row, prefix: conversationDest(&conv)},
		&ct.ID, &ct.OrganizationID, &ct.Name, &ct.Email, &ct.Phone, &ct.WAID, &ct.FBPSID, &ct.IGID, &ct.IsBlocked, &ct.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.NewNotFound("conversation", id)
	}
	if err != nil {
		return nil, err
	}
	conv.Inbox = in
	conv.Contact = &ct
	return &conv, nil
}

// prefixScanner prepends fixed destinations to every Scan call.
type prefixScanner struct {
	row    *sql.Row
	prefix []any
}

func (p prefixScanner) Scan(dest ...any) error {
	return p.row.Scan(append(p.prefix, dest...)...)
}

func (r *ConversationRepository) FindRoutable(ctx context.Context, orgID, inboxID, contactID string) (*model.Conversation, error) {
	query := `SELECT ` + conversationColumns + `
        FROM conversations c
        WHERE c.organization_id = $1 AND c.inbox_id = $2 AND c.contact_id = $3
          AND c.status = ANY($4)
        ORDER BY c.created_at DESC
        LIMIT 1`
	statuses := make([]string, len(model.RoutableStatuses))
	for i, s := range model.RoutableStatuses {
		statuses[i] = string(s)
	}

	var c model.Conversation
	err := r.DB.QueryRowContext(ctx, query, orgID, inboxID, contactID, pq.Array(statuses)).Scan(conversationDest(&c)...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.NewNotFound("routable conversation", contactID)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ConversationRepository) Create(ctx context.Context, c *model.Conversation) error {
	if c.Status == "" {
		c.Status = model.StatusOpen
	}
	query := `
        INSERT INTO conversations (organization_id, inbox_id, contact_id, status, subject, channel_conversation_id)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, unread_count, created_at, updated_at
    `
	err := r.DB.QueryRowContext(ctx, query,
		c.OrganizationID, c.InboxID, c.ContactID, c.Status, c.Subject, c.ChannelConversationID,
	).Scan(&c.ID, &c.UnreadCount, &c.CreatedAt, &c.UpdatedAt)
	if isUniqueViolation(err) {
		return appErrors.ErrConflict
	}
	return err
}

// ApplyLatestMessage writes the denormalized summary in a single conditional update.
func (r *ConversationRepository) ApplyLatestMessage(ctx context.Context, id string, u model.LatestMessageUpdate) error {
	query := `
        UPDATE conversations
        SET latest_message = $2,
            latest_message_at = $3,
            latest_message_sender = $4,
            status = CASE WHEN $5 AND status = 'pending' THEN 'open' ELSE status END,
            unread_count = unread_count + CASE WHEN $6 THEN 1 ELSE 0 END,
            updated_at = NOW()
        WHERE id = $1
    `
	res, err := r.DB.ExecContext(ctx, query, id, u.Content, u.At, u.Sender, u.ReopenPending, u.IncrementUnread)
	if err != nil {
		if isUniqueViolation(err) {
			return appErrors.ErrConflict
		}
		return err
	}
	return expectRow(res, "conversation", id)
}

func (r *ConversationRepository) UpdateStatus(ctx context.Context, id string, status model.ConversationStatus) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE conversations SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		if isUniqueViolation(err) {
			return appErrors.ErrConflict
		}
		return err
	}
	return expectRow(res, "conversation", id)
}

func expectRow(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return appErrors.NewNotFound(entity, id)
	}
	return nil
}

var _ ConversationRepositoryInterface = (*ConversationRepository)(nil)
