// internal/model/inbox.go
package model

import "time"

type ChannelType string

const (
	ChannelWhatsApp  ChannelType = "whatsapp"
	ChannelFacebook  ChannelType = "facebook"
	ChannelInstagram ChannelType = "instagram"
	ChannelWidget    ChannelType = "widget"
	ChannelEmail     ChannelType = "email"
)

// Inbox is a configured channel endpoint. Credentials that do not apply to
// the channel type are left empty.
type Inbox struct {
	ID               string      `db:"id" json:"id"`
	OrganizationID   string      `db:"organization_id" json:"organization_id"`
	Name             string      `db:"name" json:"name"`
	ChannelType      ChannelType `db:"channel_type" json:"channel_type"`
	IsActive         bool        `db:"is_active" json:"is_active"`
	WAPhoneNumberID  string      `db:"wa_phone_number_id" json:"wa_phone_number_id,omitempty"`
	WAAccessToken    string      `db:"wa_access_token" json:"-"`
	FBPageID         string      `db:"fb_page_id" json:"fb_page_id,omitempty"`
	FBAccessToken    string      `db:"fb_access_token" json:"-"`
	IGAccountID      string      `db:"ig_account_id" json:"ig_account_id,omitempty"`
	WidgetToken      string      `db:"widget_token" json:"-"`
	OrganizationName string      `db:"-" json:"organization_name,omitempty"`
	CreatedAt        time.Time   `db:"created_at" json:"created_at"`
}
