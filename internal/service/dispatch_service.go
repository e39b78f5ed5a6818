package service

import (
	"context"
	"log/slog"
	"strings"

	appErrors "github.com/zentrodesk/zentro-desk/internal/errors"
	"github.com/zentrodesk/zentro-desk/internal/model"
	"github.com/zentrodesk/zentro-desk/internal/repository"
)

// ChannelSender delivers agent replies through the Graph API.
type ChannelSender interface {
	SendMessengerText(ctx context.Context, channel, pageAccessToken, recipientID, text string) (string, error)
	SendWhatsAppText(ctx context.Context, phoneNumberID, accessToken, to, text string) (string, error)
}

// DispatchService sends agent replies to the conversation's channel and records them.
type DispatchService struct {
	Conversations repository.ConversationRepositoryInterface
	Router        *ConversationService
	Sender        ChannelSender
	logger        *slog.Logger
}

func NewDispatchService(convs repository.ConversationRepositoryInterface, router *ConversationService, sender ChannelSender, log *slog.Logger) *DispatchService {
	if log == nil {
		log = slog.Default()
	}
	return &DispatchService{
		Conversations: convs,
		Router:        router,
		Sender:        sender,
		logger:        log.With(slog.String("component", "dispatcher")),
	}
}

// SendRequest is an agent reply.
type SendRequest struct {
	ConversationID string
	OrganizationID string
	Text           string
	AgentID        string
	AgentName      string
}

type SendResult struct {
	MessageID        string `json:"message_id"`
	ChannelMessageID string `json:"channel_message_id,omitempty"`
}

// Send delivers the reply and then persists it. Nothing is persisted when the
// channel rejects the message or the inbox lacks credentials. There are no retries.
func (s *DispatchService) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, appErrors.NewValidationError("message_text is required")
	}
	conv, err := s.loadConversation(ctx, req.ConversationID, req.OrganizationID)
	if err != nil {
		return nil, err
	}

	channelMessageID, err := s.deliver(ctx, conv, req.Text)
	if err != nil {
		s.logger.Warn("dispatch failed",
			slog.String("conversation_id", conv.ID),
			slog.String("channel", string(conv.Inbox.ChannelType)),
			slog.Any("error", err))
		return nil, err
	}

	msg := &model.Message{
		SenderType:  model.SenderAgent,
		SenderName:  req.AgentName,
		MessageType: model.MessageText,
		Content:     req.Text,
		IsRead:      true,
	}
	if req.AgentID != "" {
		agentID := req.AgentID
		msg.SenderID = &agentID
	}
	if channelMessageID != "" {
		msg.ChannelMessageID = &channelMessageID
	}
	if _, err := s.Router.Append(ctx, conv, msg); err != nil {
		return nil, err
	}

	s.logger.Info("reply sent",
		slog.String("conversation_id", conv.ID),
		slog.String("channel", string(conv.Inbox.ChannelType)),
		slog.String("message_id", msg.ID))
	return &SendResult{MessageID: msg.ID, ChannelMessageID: channelMessageID}, nil
}

// deliver performs the network send for provider channels. Widget and email
// inboxes have no outbound call and return an empty provider id.
func (s *DispatchService) deliver(ctx context.Context, conv *model.Conversation, text string) (string, error) {
	inbox, contact := conv.Inbox, conv.Contact

	switch inbox.ChannelType {
	case model.ChannelWhatsApp:
		var missing []string
		if contact.Identifier(model.KeyWhatsAppID) == "" {
			missing = append(missing, "contact.wa_id")
		}
		if inbox.WAPhoneNumberID == "" {
			missing = append(missing, "inbox.wa_phone_number_id")
		}
		if inbox.WAAccessToken == "" {
			missing = append(missing, "inbox.wa_access_token")
		}
		if len(missing) > 0 {
			return "", appErrors.NewConfigurationError(string(inbox.ChannelType), missing...)
		}
		return s.Sender.SendWhatsAppText(ctx, inbox.WAPhoneNumberID, inbox.WAAccessToken, contact.Identifier(model.KeyWhatsAppID), text)

	case model.ChannelFacebook, model.ChannelInstagram:
		key := model.KeyFacebookPSID
		if inbox.ChannelType == model.ChannelInstagram {
			key = model.KeyInstagramID
		}
		var missing []string
		if contact.Identifier(key) == "" {
			missing = append(missing, "contact."+string(key))
		}
		// Instagram messaging uses the linked page's token.
		if inbox.FBAccessToken == "" {
			missing = append(missing, "inbox.fb_access_token")
		}
		if len(missing) > 0 {
			return "", appErrors.NewConfigurationError(string(inbox.ChannelType), missing...)
		}
		return s.Sender.SendMessengerText(ctx, string(inbox.ChannelType), inbox.FBAccessToken, contact.Identifier(key), text)
	}
	return "", nil
}

// NoteRequest is an internal note written by an agent.
type NoteRequest struct {
	ConversationID string
	OrganizationID string
	Text           string
	AgentID        string
	AgentName      string
}

// AddNote stores a private note. Notes never reach a channel and leave the
// conversation summary untouched.
func (s *DispatchService) AddNote(ctx context.Context, req NoteRequest) (*model.Message, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, appErrors.NewValidationError("note text is required")
	}
	conv, err := s.Conversations.GetByID(ctx, req.ConversationID)
	if err != nil {
		return nil, err
	}
	if req.OrganizationID != "" && conv.OrganizationID != req.OrganizationID {
		return nil, appErrors.NewNotFound("conversation", req.ConversationID)
	}

	note := &model.Message{
		SenderType:  model.SenderAgent,
		SenderName:  req.AgentName,
		MessageType: model.MessageText,
		Content:     req.Text,
		IsPrivate:   true,
		IsRead:      true,
	}
	if req.AgentID != "" {
		agentID := req.AgentID
		note.SenderID = &agentID
	}
	if _, err := s.Router.Append(ctx, conv, note); err != nil {
		return nil, err
	}
	return note, nil
}

func (s *DispatchService) loadConversation(ctx context.Context, id, orgID string) (*model.Conversation, error) {
	conv, err := s.Conversations.GetWithParticipants(ctx, id)
	if err != nil {
		return nil, err
	}
	if orgID != "" && conv.OrganizationID != orgID {
		return nil, appErrors.NewNotFound("conversation", id)
	}
	return conv, nil
}
