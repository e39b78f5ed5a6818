// internal/model/contact.go
package model

import (
	"fmt"
	"time"
)

// ChannelKey names the contact column that identifies a sender on one channel.
type ChannelKey string

const (
	KeyFacebookPSID ChannelKey = "fb_psid"
	KeyInstagramID  ChannelKey = "ig_id"
	KeyWhatsAppID   ChannelKey = "wa_id"
	KeyEmail        ChannelKey = "email"
)

func (k ChannelKey) Valid() bool {
	switch k {
	case KeyFacebookPSID, KeyInstagramID, KeyWhatsAppID, KeyEmail:
		return true
	}
	return false
}

// KeyForChannel returns the identity column used for senders on the channel.
func KeyForChannel(ch ChannelType) (ChannelKey, error) {
	switch ch {
	case ChannelFacebook:
		return KeyFacebookPSID, nil
	case ChannelInstagram:
		return KeyInstagramID, nil
	case ChannelWhatsApp:
		return KeyWhatsAppID, nil
	case ChannelWidget, ChannelEmail:
		return KeyEmail, nil
	}
	return "", fmt.Errorf("no identity key for channel %q", ch)
}

type Contact struct {
	ID             string    `db:"id" json:"id"`
	OrganizationID string    `db:"organization_id" json:"organization_id"`
	Name           *string   `db:"name" json:"name,omitempty"`
	Email          *string   `db:"email" json:"email,omitempty"`
	Phone          *string   `db:"phone" json:"phone,omitempty"`
	WAID           *string   `db:"wa_id" json:"wa_id,omitempty"`
	FBPSID         *string   `db:"fb_psid" json:"fb_psid,omitempty"`
	IGID           *string   `db:"ig_id" json:"ig_id,omitempty"`
	IsBlocked      bool      `db:"is_blocked" json:"is_blocked"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Identifier returns the value stored under key, or "" when unset.
func (c *Contact) Identifier(key ChannelKey) string {
	var v *string
	switch key {
	case KeyFacebookPSID:
		v = c.FBPSID
	case KeyInstagramID:
		v = c.IGID
	case KeyWhatsAppID:
		v = c.WAID
	case KeyEmail:
		v = c.Email
	}
	if v == nil {
		return ""
	}
	return *v
}

// SetIdentifier stores value under key.
func (c *Contact) SetIdentifier(key ChannelKey, value string) {
	v := value
	switch key {
	case KeyFacebookPSID:
		c.FBPSID = &v
	case KeyInstagramID:
		c.IGID = &v
	case KeyWhatsAppID:
		c.WAID = &v
	case KeyEmail:
		c.Email = &v
	}
}

// DisplayName falls back through name, phone and email.
func (c *Contact) DisplayName() string {
	for _, v := range []*string{c.Name, c.Phone, c.Email} {
		if v != nil && *v != "" {
			return *v
		}
	}
	return "Unknown"
}
