package normalizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/zentrodesk/zentro-desk/internal/model"
)

var whatsAppMediaTypes = map[string]model.MessageType{
	"image":    model.MessageImage,
	"audio":    model.MessageAudio,
	"video":    model.MessageVideo,
	"document": model.MessageFile,
}

func normalizeWhatsApp(env Envelope, res *Result) {
	seen := make(map[string]bool)

	for i, raw := range env.Entry {
		var entry whatsAppEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			res.fail(fmt.Errorf("entry %d: %w", i, err))
			continue
		}
		for _, change := range entry.Changes {
			v := change.Value
			names := make(map[string]string, len(v.Contacts))
			for _, c := range v.Contacts {
				names[c.WaID] = c.Profile.Name
			}

			// delivery/read receipts
			res.Skipped += len(v.Statuses)

			for j, rawMsg := range v.Messages {
				ev, ok, err := whatsAppToEvent(v.Metadata.PhoneNumberID, names, rawMsg)
				switch {
				case err != nil:
					res.fail(fmt.Errorf("entry %d message %d: %w", i, j, err))
				case !ok || (ev.ProviderMessageID != "" && seen[ev.ProviderMessageID]):
					res.skip()
				default:
					if ev.ProviderMessageID != "" {
						seen[ev.ProviderMessageID] = true
					}
					res.Events = append(res.Events, ev)
				}
			}
		}
	}
}

func whatsAppToEvent(phoneNumberID string, names map[string]string, raw json.RawMessage) (InboundEvent, bool, error) {
	var msg whatsAppMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return InboundEvent{}, false, err
	}
	from := strings.TrimSpace(msg.From)
	if from == "" {
		return InboundEvent{}, false, errors.New("missing sender")
	}

	ev := InboundEvent{
		Channel:           model.ChannelWhatsApp,
		ProviderAccountID: phoneNumberID,
		SenderExternalID:  from,
		DisplayName:       from,
		ProviderMessageID: msg.ID,
	}
	if name := strings.TrimSpace(names[from]); name != "" {
		ev.DisplayName = name
	}
	if msg.Timestamp != "" {
		ts, err := strconv.ParseInt(msg.Timestamp, 10, 64)
		if err != nil {
			return InboundEvent{}, false, fmt.Errorf("invalid timestamp %q", msg.Timestamp)
		}
		ev.OccurredAt = parseTimestamp(ts)
	}

	if msg.Type == "text" {
		if msg.Text == nil {
			return InboundEvent{}, false, errors.New("text message without body")
		}
		ev.Text = msg.Text.Body
		ev.MessageType = model.MessageText
		return ev, true, nil
	}

	msgType, ok := whatsAppMediaTypes[msg.Type]
	if !ok {
		return InboundEvent{}, false, nil
	}
	media := msg.media()
	if media == nil {
		return InboundEvent{}, false, fmt.Errorf("%s message without media object", msg.Type)
	}
	ev.MessageType = msgType
	ev.Text = media.Caption
	if strings.TrimSpace(ev.Text) == "" {
		ev.Text = model.AttachmentPlaceholder
	}
	if media.ID != "" {
		ev.MediaIDs = []string{media.ID}
	}
	return ev, true, nil
}

func (m *whatsAppMessage) media() *whatsAppMedia {
	switch m.Type {
	case "image":
		return m.Image
	case "audio":
		return m.Audio
	case "video":
		return m.Video
	case "document":
		return m.Document
	}
	return nil
}
