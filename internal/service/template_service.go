// internal/service/template_service.go
package service

import (
	"strings"

	"github.com/zentrodesk/zentro-desk/internal/model"
)

// statusTemplates are the activity messages written when an agent changes status.
var statusTemplates = map[model.ConversationStatus]string{
	model.StatusOpen:       "Conversation reopened by {agent}",
	model.StatusInProgress: "{agent} started working on this conversation",
	model.StatusPending:    "Conversation marked as pending by {agent}",
	model.StatusResolved:   "Conversation resolved by {agent}",
}

// RenderTemplate replaces {key} placeholders with values from data.
// Unknown placeholders are left as they are.
func RenderTemplate(template string, data map[string]string) string {
	result := template
	for k, v := range data {
		result = strings.ReplaceAll(result, "{"+k+"}", v)
	}
	return result
}

func renderStatusMessage(status model.ConversationStatus, agentName string) string {
	tmpl, ok := statusTemplates[status]
	if !ok {
		tmpl = "Status changed to " + string(status) + " by {agent}"
	}
	if strings.TrimSpace(agentName) == "" {
		agentName = "an agent"
	}
	return RenderTemplate(tmpl, map[string]string{"agent": agentName})
}
