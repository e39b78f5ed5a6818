package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	appErrors "github.com/zentrodesk/zentro-desk/internal/errors"
	"github.com/zentrodesk/zentro-desk/internal/model"
)

// WidgetSessionRepositoryInterface stores the credentials handed to widget visitors.
type WidgetSessionRepositoryInterface interface {
	Create(ctx context.Context, s *model.WidgetSession) error
	GetByID(ctx context.Context, id string) (*model.WidgetSession, error)
	// Rebind points the session at another conversation of the same contact and
	// moves its read cutoff to since.
	Rebind(ctx context.Context, id, conversationID string, since time.Time) error
}

type WidgetSessionRepository struct {
	DB *sql.DB
}

func (r *WidgetSessionRepository) Create(ctx context.Context, s *model.WidgetSession) error {
	query := `
        INSERT INTO widget_sessions (organization_id, inbox_id, contact_id, conversation_id, since)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at
    `
	return r.DB.QueryRowContext(ctx, query,
		s.OrganizationID, s.InboxID, s.ContactID, s.ConversationID, s.Since,
	).Scan(&s.ID, &s.CreatedAt)
}

func (r *WidgetSessionRepository) GetByID(ctx context.Context, id string) (*model.WidgetSession, error) {
	var s model.WidgetSession
	err := r.DB.QueryRowContext(ctx, `
        SELECT id, organization_id, inbox_id, contact_id, conversation_id, since, created_at
        FROM widget_sessions WHERE id = $1`, id,
	).Scan(&s.ID, &s.OrganizationID, &s.InboxID, &s.ContactID, &s.ConversationID, &s.Since, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.NewNotFound("widget session", id)
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *WidgetSessionRepository) Rebind(ctx context.Context, id, conversationID string, since time.Time) error {
	res, err := r.DB.ExecContext(ctx, `
        UPDATE widget_sessions SET conversation_id = $2, since = $3, updated_at = NOW()
        WHERE id = $1`, id, conversationID, since)
	if err != nil {
		return err
	}
	return expectRow(res, "widget session", id)
}

var _ WidgetSessionRepositoryInterface = (*WidgetSessionRepository)(nil)
