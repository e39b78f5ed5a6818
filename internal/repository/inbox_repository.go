package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	appErrors "github.com/zentrodesk/zentro-desk/internal/errors"
	"github.com/zentrodesk/zentro-desk/internal/model"
)

// InboxRepositoryInterface defines the inbox lookups used by ingestion, dispatch and the widget.
type InboxRepositoryInterface interface {
	GetByID(ctx context.Context, id string) (*model.Inbox, error)
	FindActiveByChannelAccount(ctx context.Context, channel model.ChannelType, accountID string) (*model.Inbox, error)
	FindByWidgetToken(ctx context.Context, token string) (*model.Inbox, error)
}

type InboxRepository struct {
	DB *sql.DB
}

const inboxColumns = `
    i.id, i.organization_id, i.name, i.channel_type, i.is_active,
    i.wa_phone_number_id, i.wa_access_token, i.fb_page_id, i.fb_access_token,
    i.ig_account_id, i.widget_token, i.created_at`

func scanInbox(row interface{ Scan(...any) error }, extra ...any) (*model.Inbox, error) {
	var (
		in                                           model.Inbox
		waPhone, waToken, fbPage, fbToken, igID, tok sql.NullString
	)
	dest := []any{
		&in.ID, &in.OrganizationID, &in.Name, &in.ChannelType, &in.IsActive,
		&waPhone, &waToken, &fbPage, &fbToken, &igID, &tok, &in.CreatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	in.WAPhoneNumberID = waPhone.String
	in.WAAccessToken = waToken.String
	in.FBPageID = fbPage.String
	in.FBAccessToken = fbToken.String
	in.IGAccountID = igID.String
	in.WidgetToken = tok.String
	return &in, nil
}

func (r *InboxRepository) GetByID(ctx context.Context, id string) (*model.Inbox, error) {
	query := `SELECT ` + inboxColumns + ` FROM inboxes i WHERE i.id = $1`
	in, err := scanInbox(r.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.NewNotFound("inbox", id)
	}
	return in, err
}

// FindActiveByChannelAccount selects the active inbox a provider account id belongs to.
// Instagram inboxes may be keyed by either the Instagram account or the linked page.
func (r *InboxRepository) FindActiveByChannelAccount(ctx context.Context, channel model.ChannelType, accountID string) (*model.Inbox, error) {
	var where string
	switch channel {
	case model.ChannelWhatsApp:
		where = `i.wa_phone_number_id = $2`
	case model.ChannelFacebook:
		where = `i.fb_page_id = $2`
	case model.ChannelInstagram:
		where = `(i.ig_account_id = $2 OR i.fb_page_id = $2)`
	default:
		return nil, fmt.Errorf("channel %q has no provider account", channel)
	}

	query := `SELECT ` + inboxColumns + `
        FROM inboxes i
        WHERE i.channel_type = $1 AND i.is_active AND ` + where + `
        ORDER BY i.created_at
        LIMIT 1`
	in, err := scanInbox(r.DB.QueryRowContext(ctx, query, channel, accountID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.NewNotFound("inbox", string(channel)+":"+accountID)
	}
	return in, err
}

// FindByWidgetToken returns the active widget inbox for token, with the organization name joined.
func (r *InboxRepository) FindByWidgetToken(ctx context.Context, token string) (*model.Inbox, error) {
	query := `SELECT ` + inboxColumns + `, o.name
        FROM inboxes i
        JOIN organizations o ON o.id = i.organization_id
        WHERE i.widget_token = $1 AND i.channel_type = 'widget' AND i.is_active`
	var orgName string
	in, err := scanInbox(r.DB.QueryRowContext(ctx, query, token), &orgName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.NewNotFound("widget inbox", "token")
	}
	if err != nil {
		return nil, err
	}
	in.OrganizationName = orgName
	return in, nil
}

var _ InboxRepositoryInterface = (*InboxRepository)(nil)
