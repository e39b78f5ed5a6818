// internal/model/widget_session.go
package model

import "time"

// WidgetSession is the credential a widget browser holds. Its ID is handed out
// as visitor_id and is bound to one conversation.
type WidgetSession struct {
	ID             string    `db:"id" json:"id"`
	OrganizationID string    `db:"organization_id" json:"organization_id"`
	InboxID        string    `db:"inbox_id" json:"inbox_id"`
	ContactID      string    `db:"contact_id" json:"contact_id"`
	ConversationID string    `db:"conversation_id" json:"conversation_id"`
	// Since is the creation time of the session's first message. Earlier
	// messages of the conversation are not readable through the session.
	Since          time.Time `db:"since" json:"since"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
