package controller

import (
	"log/slog"
	"net/http"

	"github.com/zentrodesk/zentro-desk/internal/model"
	"github.com/zentrodesk/zentro-desk/internal/service"
)

type ConversationController struct {
	Conversations *service.ConversationService
	logger        *slog.Logger
}

func NewConversationController(s *service.ConversationService, log *slog.Logger) *ConversationController {
	return &ConversationController{Conversations: s, logger: orDefault(log).With(slog.String("component", "conversation_api"))}
}

type statusRequest struct {
	Status         string `json:"status" validate:"required,oneof=open in_progress pending resolved"`
	AgentID        string `json:"agent_id" validate:"omitempty,uuid"`
	AgentName      string `json:"agent_name"`
	OrganizationID string `json:"organization_id" validate:"omitempty,uuid"`
}

func (c *ConversationController) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var body statusRequest
	id, err := idParam(r)
	if err != nil {
		writeError(w, c.logger, err)
		return
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, c.logger, err)
		return
	}

	conv, err := c.Conversations.UpdateStatus(r.Context(), service.StatusChange{
		ConversationID: id,
		OrganizationID: body.OrganizationID,
		Status:         model.ConversationStatus(body.Status),
		AgentID:        body.AgentID,
		AgentName:      body.AgentName,
	})
	if err != nil {
		writeError(w, c.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}
