package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	appErrors "github.com/zentrodesk/zentro-desk/internal/errors"
	"github.com/zentrodesk/zentro-desk/internal/model"
)

// ContactRepositoryInterface defines methods used by the Identity Resolver and the dispatcher.
type ContactRepositoryInterface interface {
	GetByID(ctx context.Context, id string) (*model.Contact, error)
	GetByChannelKey(ctx context.Context, orgID string, key model.ChannelKey, value string) (*model.Contact, error)
	// Create returns appErrors.ErrConflict when another contact already holds one of c's identifiers.
	Create(ctx context.Context, c *model.Contact) error
}

type ContactRepository struct {
	DB *sql.DB
}

const contactColumns = `id, organization_id, name, email, phone, wa_id, fb_psid, ig_id, is_blocked, created_at`

func scanContact(row interface{ Scan(...any) error }) (*model.Contact, error) {
	var c model.Contact
	err := row.Scan(&c.ID, &c.OrganizationID, &c.Name, &c.Email, &c.Phone, &c.WAID, &c.FBPSID, &c.IGID, &c.IsBlocked, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ContactRepository) GetByID(ctx context.Context, id string) (*model.Contact, error) {
	c, err := scanContact(r.DB.QueryRowContext(ctx, `SELECT `+contactColumns+` FROM contacts WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.NewNotFound("contact", id)
	}
	return c, err
}

func (r *ContactRepository) GetByChannelKey(ctx context.Context, orgID string, key model.ChannelKey, value string) (*model.Contact, error) {
	if !key.Valid() {
		return nil, fmt.Errorf("invalid channel key %q", key)
	}
	// key is one of a closed set of column names.
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE organization_id = $1 AND ` + string(key) + ` = $2`
	c, err := scanContact(r.DB.QueryRowContext(ctx, query, orgID, value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.NewNotFound("contact", string(key)+":"+value)
	}
	return c, err
}

func (r *ContactRepository) Create(ctx context.Context, c *model.Contact) error {
	query := `
        INSERT INTO contacts (organization_id, name, email, phone, wa_id, fb_psid, ig_id, is_blocked)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id, created_at
    `
	err := r.DB.QueryRowContext(ctx, query,
		c.OrganizationID, c.Name, c.Email, c.Phone, c.WAID, c.FBPSID, c.IGID, c.IsBlocked,
	).Scan(&c.ID, &c.CreatedAt)
	if isUniqueViolation(err) {
		return appErrors.ErrConflict
	}
	return err
}

var _ ContactRepositoryInterface = (*ContactRepository)(nil)
