// internal/model/conversation.go
package model

import "time"

type ConversationStatus string

const (
	StatusOpen       ConversationStatus = "open"
	StatusInProgress ConversationStatus = "in_progress"
	StatusPending    ConversationStatus = "pending"
	StatusResolved   ConversationStatus = "resolved"
	StatusSnoozed    ConversationStatus = "snoozed" // kept for the schema, never set by this service
)

// RoutableStatuses are the states in which inbound messages reuse a conversation.
var RoutableStatuses = []ConversationStatus{StatusOpen, StatusPending}

var transitions = map[ConversationStatus][]ConversationStatus{
	StatusOpen:       {StatusInProgress, StatusPending, StatusResolved},
	StatusInProgress: {StatusOpen, StatusPending, StatusResolved},
	StatusPending:    {StatusOpen, StatusInProgress, StatusResolved},
	StatusResolved:   {StatusOpen},
}

// CanTransition reports whether an agent may move a conversation from one status to another.
func CanTransition(from, to ConversationStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type Conversation struct {
	ID                    string             `db:"id" json:"id"`
	OrganizationID        string             `db:"organization_id" json:"organization_id"`
	InboxID               string             `db:"inbox_id" json:"inbox_id"`
	ContactID             string             `db:"contact_id" json:"contact_id"`
	AssignedAgentID       *string            `db:"assigned_agent_id" json:"assigned_agent_id,omitempty"`
	Status                ConversationStatus `db:"status" json:"status"`
	Subject               *string            `db:"subject" json:"subject,omitempty"`
	ChannelConversationID *string            `db:"channel_conversation_id" json:"channel_conversation_id,omitempty"`
	LatestMessage         *string            `db:"latest_message" json:"latest_message,omitempty"`
	LatestMessageAt       *time.Time         `db:"latest_message_at" json:"latest_message_at,omitempty"`
	LatestMessageSender   *string            `db:"latest_message_sender" json:"latest_message_sender,omitempty"`
	UnreadCount           int                `db:"unread_count" json:"unread_count"`
	CreatedAt             time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time          `db:"updated_at" json:"updated_at"`

	// Joined by ConversationRepository.GetWithParticipants.
	Inbox   *Inbox   `db:"-" json:"inbox,omitempty"`
	Contact *Contact `db:"-" json:"contact,omitempty"`
}

// LatestMessageUpdate is the denormalized summary written after a message is appended.
type LatestMessageUpdate struct {
	Content string
	At      time.Time
	Sender  string
	// ReopenPending moves a pending conversation back to open.
	ReopenPending bool
	// IncrementUnread bumps unread_count by one.
	IncrementUnread bool
}
