package normalizer

import "encoding/json"

// Envelope is the outer webhook body shared by all Meta products.
// Entries stay raw so one malformed entry cannot fail the whole payload.
type Envelope struct {
	Object string            `json:"object"`
	Entry  []json.RawMessage `json:"entry"`
}

type messagingEntry struct {
	ID        string            `json:"id"`
	Time      int64             `json:"time"`
	Messaging []json.RawMessage `json:"messaging"`
}

type participant struct {
	ID string `json:"id"`
}

type messagingEvent struct {
	Sender    participant       `json:"sender"`
	Recipient participant       `json:"recipient"`
	Timestamp int64             `json:"timestamp"`
	Message   *messengerMessage `json:"message,omitempty"`
	Delivery  json.RawMessage   `json:"delivery,omitempty"`
	Read      json.RawMessage   `json:"read,omitempty"`
}

type messengerMessage struct {
	MID         string                `json:"mid"`
	Text        string                `json:"text"`
	IsEcho      bool                  `json:"is_echo"`
	Attachments []messengerAttachment `json:"attachments"`
}

type messengerAttachment struct {
	Type    string `json:"type"`
	Payload struct {
		URL string `json:"url"`
	} `json:"payload"`
}

type whatsAppEntry struct {
	ID      string           `json:"id"`
	Changes []whatsAppChange `json:"changes"`
}

type whatsAppChange struct {
	Field string        `json:"field"`
	Value whatsAppValue `json:"value"`
}

type whatsAppValue struct {
	MessagingProduct string `json:"messaging_product"`
	Metadata         struct {
		DisplayPhoneNumber string `json:"display_phone_number"`
		PhoneNumberID      string `json:"phone_number_id"`
	} `json:"metadata"`
	Contacts []struct {
		Profile struct {
			Name string `json:"name"`
		} `json:"profile"`
		WaID string `json:"wa_id"`
	} `json:"contacts"`
	Messages []json.RawMessage `json:"messages"`
	Statuses []json.RawMessage `json:"statuses"`
}

type whatsAppMessage struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`
	Image    *whatsAppMedia `json:"image,omitempty"`
	Audio    *whatsAppMedia `json:"audio,omitempty"`
	Video    *whatsAppMedia `json:"video,omitempty"`
	Document *whatsAppMedia `json:"document,omitempty"`
}

type whatsAppMedia struct {
	ID       string `json:"id"`
	Caption  string `json:"caption"`
	MimeType string `json:"mime_type"`
	Filename string `json:"filename"`
}
