// Package normalizer turns Meta webhook payloads (Messenger, Instagram and
// WhatsApp Cloud) into channel-agnostic inbound events. Provider wire shapes
// never leave this package.
package normalizer

import (
	"time"

	"github.com/zentrodesk/zentro-desk/internal/model"
)

// Provider object tags carried in the webhook envelope.
const (
	ObjectPage      = "page"
	ObjectInstagram = "instagram"
	ObjectWhatsApp  = "whatsapp_business_account"
)

// InboundEvent is one inbound contact message.
type InboundEvent struct {
	Channel model.ChannelType
	// ProviderAccountID is the page id, Instagram account id or WhatsApp phone-number id
	// the message was addressed to. It selects the inbox.
	ProviderAccountID string
	SenderExternalID  string
	DisplayName       string
	Text              string
	MessageType       model.MessageType
	AttachmentURLs    []string
	// MediaIDs are WhatsApp media references that still need resolving to URLs.
	MediaIDs          []string
	ProviderMessageID string
	OccurredAt        time.Time
}

// Result collects the outcome of normalizing one payload. Errors are per event;
// a failing event never hides its siblings.
type Result struct {
	Object  string
	Events  []InboundEvent
	Skipped int
	Errors  []error
}

func (r *Result) skip() { r.Skipped++ }

func (r *Result) fail(err error) { r.Errors = append(r.Errors, err) }
