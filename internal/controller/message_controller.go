package controller

import (
	"log/slog"
	"net/http"

	"github.com/zentrodesk/zentro-desk/internal/service"
)

// MessageController serves agent replies and internal notes.
type MessageController struct {
	Dispatch *service.DispatchService
	logger   *slog.Logger
}

func NewMessageController(d *service.DispatchService, log *slog.Logger) *MessageController {
	return &MessageController{Dispatch: d, logger: orDefault(log).With(slog.String("component", "message_api"))}
}

type sendMessageRequest struct {
	ConversationID string `json:"conversation_id" validate:"required,uuid"`
	MessageText    string `json:"message_text" validate:"required"`
	AgentID        string `json:"agent_id" validate:"omitempty,uuid"`
	AgentName      string `json:"agent_name"`
	OrganizationID string `json:"organization_id" validate:"omitempty,uuid"`
}

// Send delivers an agent reply through the conversation's channel.
func (c *MessageController) Send(w http.ResponseWriter, r *http.Request) {
	var body sendMessageRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, c.logger, err)
		return
	}

	res, err := c.Dispatch.Send(r.Context(), service.SendRequest{
		ConversationID: body.ConversationID,
		OrganizationID: body.OrganizationID,
		Text:           body.MessageText,
		AgentID:        body.AgentID,
		AgentName:      body.AgentName,
	})
	if err != nil {
		writeError(w, c.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"message_id": res.MessageID,
	})
}

type noteRequest struct {
	Text           string `json:"text" validate:"required"`
	AgentID        string `json:"agent_id" validate:"omitempty,uuid"`
	AgentName      string `json:"agent_name"`
	OrganizationID string `json:"organization_id" validate:"omitempty,uuid"`
}

// AddNote stores an internal note on the conversation in the URL.
func (c *MessageController) AddNote(w http.ResponseWriter, r *http.Request) {
	var body noteRequest
	id, err := idParam(r)
	if err != nil {
		writeError(w, c.logger, err)
		return
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, c.logger, err)
		return
	}

	note, err := c.Dispatch.AddNote(r.Context(), service.NoteRequest{
		ConversationID: id,
		OrganizationID: body.OrganizationID,
		Text:           body.Text,
		AgentID:        body.AgentID,
		AgentName:      body.AgentName,
	})
	if err != nil {
		writeError(w, c.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}
