package service

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	appErrors "github.com/zentrodesk/zentro-desk/internal/errors"
	"github.com/zentrodesk/zentro-desk/internal/model"
	"github.com/zentrodesk/zentro-desk/internal/repository"
)

const subjectMaxRunes = 80

// WidgetService backs the embeddable chat widget. Visitors are matched to
// contacts by email, but what the browser holds is a widget session: an opaque
// id bound to one conversation that can only read messages from the session's
// own first message onward.
type WidgetService struct {
	Inboxes       repository.InboxRepositoryInterface
	Conversations repository.ConversationRepositoryInterface
	Messages      repository.MessageRepositoryInterface
	Sessions      repository.WidgetSessionRepositoryInterface
	Identity      *IdentityService
	Router        *ConversationService
	logger        *slog.Logger
}

func NewWidgetService(
	inboxes repository.InboxRepositoryInterface,
	convs repository.ConversationRepositoryInterface,
	msgs repository.MessageRepositoryInterface,
	sessions repository.WidgetSessionRepositoryInterface,
	identity *IdentityService,
	router *ConversationService,
	log *slog.Logger,
) *WidgetService {
	if log == nil {
		log = slog.Default()
	}
	return &WidgetService{
		Inboxes:       inboxes,
		Conversations: convs,
		Messages:      msgs,
		Sessions:      sessions,
		Identity:      identity,
		Router:        router,
		logger:        log.With(slog.String("component", "widget")),
	}
}

type WidgetInfo struct {
	OrgName   string `json:"org_name"`
	InboxName string `json:"inbox_name"`
}

// WidgetConversation is returned by create_conversation. VisitorID is the
// widget session id.
type WidgetConversation struct {
	ConversationID string `json:"conversation_id"`
	VisitorID      string `json:"visitor_id"`
}

// WidgetSent is returned by send_message. ConversationID differs from the one
// the visitor sent to when a resolved conversation could not be reopened.
type WidgetSent struct {
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
}

// WidgetMessage is the visitor-facing view of a message.
type WidgetMessage struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	IsVisitor  bool      `json:"is_visitor"`
	SenderName string    `json:"sender_name"`
	CreatedAt  time.Time `json:"created_at"`
}

func (s *WidgetService) Info(ctx context.Context, token string) (*WidgetInfo, error) {
	if token == "" {
		return nil, appErrors.NewValidationError("missing token")
	}
	inbox, err := s.Inboxes.FindByWidgetToken(ctx, token)
	if err != nil {
		return nil, err
	}
	info := &WidgetInfo{OrgName: inbox.OrganizationName, InboxName: inbox.Name}
	if info.OrgName == "" {
		info.OrgName = inbox.Name
	}
	return info, nil
}

// CreateConversation resolves the visitor by email, routes their first message
// and opens a widget session. A contact with an open conversation in the inbox
// continues it, but the new session does not see what was said before.
func (s *WidgetService) CreateConversation(ctx context.Context, token, name, email, message string) (*WidgetConversation, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if token == "" || strings.TrimSpace(name) == "" || email == "" || strings.TrimSpace(message) == "" {
		return nil, appErrors.NewValidationError("missing fields")
	}
	inbox, err := s.Inboxes.FindByWidgetToken(ctx, token)
	if err != nil {
		return nil, err
	}

	contact, err := s.Identity.ResolveOrCreate(ctx, inbox.OrganizationID, model.KeyEmail, email, ContactProfile{Name: name})
	if err != nil {
		return nil, err
	}
	conv, err := s.Router.ResolveOrOpen(ctx, inbox, contact, OpenOptions{Subject: truncateRunes(message, subjectMaxRunes)})
	if err != nil {
		return nil, err
	}

	msg := visitorMessage(contact.ID, name, message)
	if _, err := s.Router.Append(ctx, conv, msg); err != nil {
		return nil, err
	}

	session := &model.WidgetSession{
		OrganizationID: inbox.OrganizationID,
		InboxID:        inbox.ID,
		ContactID:      contact.ID,
		ConversationID: conv.ID,
		Since:          msg.CreatedAt,
	}
	if err := s.Sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	return &WidgetConversation{ConversationID: conv.ID, VisitorID: session.ID}, nil
}

// SendMessage appends a visitor message. A resolved conversation is reopened;
// if the contact already has another open conversation the message goes there
// and the session follows it.
func (s *WidgetService) SendMessage(ctx context.Context, conversationID, visitorID, content string) (*WidgetSent, error) {
	if conversationID == "" || visitorID == "" || strings.TrimSpace(content) == "" {
		return nil, appErrors.NewValidationError("missing fields")
	}
	session, conv, err := s.owned(ctx, conversationID, visitorID)
	if err != nil {
		return nil, err
	}

	target, err := s.Router.Reactivate(ctx, conv)
	if err != nil {
		return nil, err
	}

	name := ""
	if contact, err := s.Identity.Contacts.GetByID(ctx, session.ContactID); err == nil {
		name = contact.DisplayName()
	}
	msg := visitorMessage(session.ContactID, name, content)
	if _, err := s.Router.Append(ctx, target, msg); err != nil {
		return nil, err
	}

	if target.ID != conv.ID {
		if err := s.Sessions.Rebind(ctx, session.ID, target.ID, msg.CreatedAt); err != nil {
			return nil, err
		}
		s.logger.Info("widget session moved",
			slog.String("session_id", session.ID),
			slog.String("from", conv.ID),
			slog.String("to", target.ID))
	}
	return &WidgetSent{MessageID: msg.ID, ConversationID: target.ID}, nil
}

// ListMessages lists the public messages the session may read, optionally only
// those after a time.
func (s *WidgetService) ListMessages(ctx context.Context, conversationID, visitorID string, after *time.Time) ([]WidgetMessage, error) {
	if conversationID == "" || visitorID == "" {
		return nil, appErrors.NewValidationError("missing fields")
	}
	session, _, err := s.owned(ctx, conversationID, visitorID)
	if err != nil {
		return nil, err
	}

	since := session.Since
	msgs, err := s.Messages.ListVisible(ctx, conversationID, repository.MessageQuery{After: after, Since: &since})
	if err != nil {
		return nil, err
	}
	out := make([]WidgetMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, WidgetMessage{
			ID:         m.ID,
			Content:    m.Content,
			IsVisitor:  m.SenderType == model.SenderContact,
			SenderName: m.SenderName,
			CreatedAt:  m.CreatedAt,
		})
	}
	return out, nil
}

// owned loads the session and its conversation. Unknown sessions, sessions
// bound to another conversation and missing conversations are
// indistinguishable to the caller.
func (s *WidgetService) owned(ctx context.Context, conversationID, visitorID string) (*model.WidgetSession, *model.Conversation, error) {
	session, err := s.Sessions.GetByID(ctx, visitorID)
	if err != nil {
		if appErrors.IsNotFound(err) {
			return nil, nil, appErrors.NewUnauthorized(conversationID)
		}
		return nil, nil, err
	}
	if session.ConversationID != conversationID {
		s.logger.Warn("widget session does not own conversation", slog.String("conversation_id", conversationID))
		return nil, nil, appErrors.NewUnauthorized(conversationID)
	}

	conv, err := s.Conversations.GetByID(ctx, conversationID)
	if err != nil {
		if appErrors.IsNotFound(err) {
			return nil, nil, appErrors.NewUnauthorized(conversationID)
		}
		return nil, nil, err
	}
	if conv.ContactID != session.ContactID {
		return nil, nil, appErrors.NewUnauthorized(conversationID)
	}
	return session, conv, nil
}

func visitorMessage(contactID, name, content string) *model.Message {
	id := contactID
	return &model.Message{
		SenderType:  model.SenderContact,
		SenderID:    &id,
		SenderName:  name,
		MessageType: model.MessageText,
		Content:     content,
	}
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
