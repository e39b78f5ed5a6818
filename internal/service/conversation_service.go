package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	appErrors "github.com/zentrodesk/zentro-desk/internal/errors"
	"github.com/zentrodesk/zentro-desk/internal/model"
	"github.com/zentrodesk/zentro-desk/internal/repository"
)

// ConversationService routes messages into conversations and keeps their
// denormalized summary current.
type ConversationService struct {
	Conversations repository.ConversationRepositoryInterface
	Messages      repository.MessageRepositoryInterface
	logger        *slog.Logger
	now           func() time.Time
}

func NewConversationService(convs repository.ConversationRepositoryInterface, msgs repository.MessageRepositoryInterface, log *slog.Logger) *ConversationService {
	if log == nil {
		log = slog.Default()
	}
	return &ConversationService{
		Conversations: convs,
		Messages:      msgs,
		logger:        log.With(slog.String("component", "router")),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// OpenOptions are applied only when a new conversation has to be opened.
type OpenOptions struct {
	ProviderMessageID string
	Subject           string
}

// ResolveOrOpen returns the contact's open or pending conversation in the inbox,
// opening a new one when none exists. Resolved conversations are never reused.
func (s *ConversationService) ResolveOrOpen(ctx context.Context, inbox *model.Inbox, contact *model.Contact, opts OpenOptions) (*model.Conversation, error) {
	conv, err := s.Conversations.FindRoutable(ctx, inbox.OrganizationID, inbox.ID, contact.ID)
	if err == nil {
		return conv, nil
	}
	if !appErrors.IsNotFound(err) {
		return nil, err
	}

	conv = &model.Conversation{
		OrganizationID: inbox.OrganizationID,
		InboxID:        inbox.ID,
		ContactID:      contact.ID,
		Status:         model.StatusOpen,
	}
	if opts.ProviderMessageID != "" {
		id := opts.ProviderMessageID
		conv.ChannelConversationID = &id
	}
	if opts.Subject != "" {
		subject := opts.Subject
		conv.Subject = &subject
	}

	err = s.Conversations.Create(ctx, conv)
	if err == nil {
		s.logger.Info("conversation opened",
			slog.String("conversation_id", conv.ID),
			slog.String("inbox_id", inbox.ID),
			slog.String("contact_id", contact.ID))
		return conv, nil
	}
	if !errors.Is(err, appErrors.ErrConflict) {
		return nil, err
	}

	winner, err := s.Conversations.FindRoutable(ctx, inbox.OrganizationID, inbox.ID, contact.ID)
	if err != nil {
		return nil, fmt.Errorf("resolve conversation after conflict: %w", err)
	}
	return winner, nil
}

// Append stores msg in conv. It reports false without error when the provider
// message id was already stored in this conversation.
//
// Public messages from contacts and agents update the conversation summary.
// Contact messages also bump the unread counter and reopen a pending conversation.
func (s *ConversationService) Append(ctx context.Context, conv *model.Conversation, msg *model.Message) (bool, error) {
	msg.ConversationID = conv.ID
	msg.OrganizationID = conv.OrganizationID

	if err := s.Messages.Create(ctx, msg); err != nil {
		if errors.Is(err, appErrors.ErrConflict) {
			s.logger.Debug("duplicate provider message",
				slog.String("conversation_id", conv.ID),
				slog.String("channel_message_id", stringValue(msg.ChannelMessageID)))
			return false, nil
		}
		return false, err
	}

	if msg.IsPrivate || msg.SenderType == model.SenderSystem {
		return true, nil
	}

	fromContact := msg.SenderType == model.SenderContact
	at := msg.CreatedAt
	if at.IsZero() {
		at = s.now()
	}
	update := model.LatestMessageUpdate{
		Content:         msg.Content,
		At:              at,
		Sender:          msg.SenderName,
		ReopenPending:   fromContact,
		IncrementUnread: fromContact,
	}
	if err := s.Conversations.ApplyLatestMessage(ctx, conv.ID, update); err != nil {
		// The message is stored; only the summary is stale.
		s.logger.Error("update latest message failed", slog.String("conversation_id", conv.ID), slog.Any("error", err))
	}
	return true, nil
}

// Reactivate moves a resolved conversation back to open for a contact message
// addressed to it directly. When the contact already has another open or
// pending conversation in the inbox, that conversation is returned instead and
// conv stays resolved.
func (s *ConversationService) Reactivate(ctx context.Context, conv *model.Conversation) (*model.Conversation, error) {
	if conv.Status != model.StatusResolved {
		return conv, nil
	}
	err := s.Conversations.UpdateStatus(ctx, conv.ID, model.StatusOpen)
	if err == nil {
		conv.Status = model.StatusOpen
		s.logger.Info("conversation reopened by contact", slog.String("conversation_id", conv.ID))
		return conv, nil
	}
	if !errors.Is(err, appErrors.ErrConflict) {
		return nil, err
	}

	current, err := s.Conversations.FindRoutable(ctx, conv.OrganizationID, conv.InboxID, conv.ContactID)
	if err != nil {
		return nil, fmt.Errorf("resolve conversation after reopen conflict: %w", err)
	}
	return current, nil
}

// StatusChange is an agent-driven status transition.
type StatusChange struct {
	ConversationID string
	OrganizationID string
	Status         model.ConversationStatus
	AgentID        string
	AgentName      string
}

// UpdateStatus moves a conversation through the agent status machine and records
// an activity message.
func (s *ConversationService) UpdateStatus(ctx context.Context, req StatusChange) (*model.Conversation, error) {
	conv, err := s.Conversations.GetByID(ctx, req.ConversationID)
	if err != nil {
		return nil, err
	}
	if req.OrganizationID != "" && conv.OrganizationID != req.OrganizationID {
		return nil, appErrors.NewNotFound("conversation", req.ConversationID)
	}
	if !model.CanTransition(conv.Status, req.Status) {
		return nil, &appErrors.InvalidTransitionError{From: string(conv.Status), To: string(req.Status)}
	}

	if err := s.Conversations.UpdateStatus(ctx, conv.ID, req.Status); err != nil {
		if errors.Is(err, appErrors.ErrConflict) {
			// another conversation with this contact is already open
			return nil, &appErrors.InvalidTransitionError{From: string(conv.Status), To: string(req.Status)}
		}
		return nil, err
	}
	from := conv.Status
	conv.Status = req.Status

	activity := &model.Message{
		SenderType:  model.SenderSystem,
		SenderName:  "System",
		MessageType: model.MessageActivity,
		Content:     renderStatusMessage(req.Status, req.AgentName),
		IsRead:      true,
	}
	if _, err := s.Append(ctx, conv, activity); err != nil {
		s.logger.Error("status activity message failed", slog.String("conversation_id", conv.ID), slog.Any("error", err))
	}

	s.logger.Info("conversation status changed",
		slog.String("conversation_id", conv.ID),
		slog.String("from", string(from)),
		slog.String("to", string(req.Status)),
		slog.String("agent_id", req.AgentID))
	return conv, nil
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
