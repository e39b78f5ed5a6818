package controller

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	appErrors "github.com/zentrodesk/zentro-desk/internal/errors"
	"github.com/zentrodesk/zentro-desk/internal/service"
)

// WidgetController serves the website chat widget. Every call is a POST with an
// "action" field; the widget runs on customer sites so responses allow any origin.
type WidgetController struct {
	Widget *service.WidgetService
	logger *slog.Logger
}

func NewWidgetController(s *service.WidgetService, log *slog.Logger) *WidgetController {
	return &WidgetController{Widget: s, logger: orDefault(log).With(slog.String("component", "widget_api"))}
}

type widgetRequest struct {
	Action         string     `json:"action" validate:"required"`
	Token          string     `json:"token"`
	Name           string     `json:"name"`
	Email          string     `json:"email" validate:"omitempty,email"`
	Message        string     `json:"message"`
	ConversationID string     `json:"conversation_id" validate:"omitempty,uuid"`
	VisitorID      string     `json:"visitor_id" validate:"omitempty,uuid"`
	Content        string     `json:"content"`
	After          *time.Time `json:"after"`
}

func setCORS(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type")
	h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
}

// Preflight answers CORS preflight requests.
func (c *WidgetController) Preflight(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, "ok")
}

func (c *WidgetController) Handle(w http.ResponseWriter, r *http.Request) {
	setCORS(w)

	var body widgetRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, c.logger, err)
		return
	}

	ctx := r.Context()
	switch body.Action {
	case "get_widget_info":
		info, err := c.Widget.Info(ctx, body.Token)
		if err != nil {
			writeError(w, c.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, info)

	case "create_conversation":
		created, err := c.Widget.CreateConversation(ctx, body.Token, body.Name, body.Email, body.Message)
		if err != nil {
			writeError(w, c.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, created)

	case "send_message":
		sent, err := c.Widget.SendMessage(ctx, body.ConversationID, body.VisitorID, body.Content)
		if err != nil {
			writeError(w, c.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, sent)

	case "get_messages":
		msgs, err := c.Widget.ListMessages(ctx, body.ConversationID, body.VisitorID, body.After)
		if err != nil {
			writeError(w, c.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})

	default:
		writeError(w, c.logger, appErrors.NewValidationError("unknown action"))
	}
}
