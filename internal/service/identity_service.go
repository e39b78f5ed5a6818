package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	appErrors "github.com/zentrodesk/zentro-desk/internal/errors"
	"github.com/zentrodesk/zentro-desk/internal/model"
	"github.com/zentrodesk/zentro-desk/internal/repository"
)

// ContactProfile holds the attributes written when a contact is first created.
// Existing contacts are returned unchanged.
type ContactProfile struct {
	Name  string
	Phone string
	Email string
}

// IdentityService resolves channel identifiers to contacts.
type IdentityService struct {
	Contacts repository.ContactRepositoryInterface
	logger   *slog.Logger
}

func NewIdentityService(contacts repository.ContactRepositoryInterface, log *slog.Logger) *IdentityService {
	if log == nil {
		log = slog.Default()
	}
	return &IdentityService{
		Contacts: contacts,
		logger:   log.With(slog.String("component", "identity")),
	}
}

// ResolveOrCreate returns the organization's contact holding value under key,
// creating it if there is none. Concurrent callers for the same identifier all
// get the same contact: the store's unique index picks a winner and the losers re-read.
func (s *IdentityService) ResolveOrCreate(ctx context.Context, orgID string, key model.ChannelKey, value string, profile ContactProfile) (*model.Contact, error) {
	if !key.Valid() {
		return nil, appErrors.NewValidationError("invalid channel key %q", key)
	}
	if value == "" {
		return nil, appErrors.NewValidationError("empty %s", key)
	}

	existing, err := s.Contacts.GetByChannelKey(ctx, orgID, key, value)
	if err == nil {
		return existing, nil
	}
	if !appErrors.IsNotFound(err) {
		return nil, err
	}

	c := &model.Contact{OrganizationID: orgID}
	c.SetIdentifier(key, value)
	if profile.Name != "" {
		c.Name = &profile.Name
	}
	if profile.Phone != "" {
		c.Phone = &profile.Phone
	}
	if profile.Email != "" && key != model.KeyEmail {
		c.Email = &profile.Email
	}

	err = s.Contacts.Create(ctx, c)
	if err == nil {
		s.logger.Info("contact created", slog.String("organization_id", orgID), slog.String("key", string(key)), slog.String("contact_id", c.ID))
		return c, nil
	}
	if !errors.Is(err, appErrors.ErrConflict) {
		return nil, err
	}

	winner, err := s.Contacts.GetByChannelKey(ctx, orgID, key, value)
	if err != nil {
		// The conflict came from a different identifier on the new row.
		return nil, fmt.Errorf("resolve %s after conflict: %w", key, err)
	}
	s.logger.Debug("contact create lost race", slog.String("contact_id", winner.ID))
	return winner, nil
}
