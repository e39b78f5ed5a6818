package normalizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/zentrodesk/zentro-desk/internal/model"
)

func normalizeMessaging(env Envelope, res *Result) {
	channel := model.ChannelFacebook
	if env.Object == ObjectInstagram {
		channel = model.ChannelInstagram
	}

	for i, raw := range env.Entry {
		var entry messagingEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			res.fail(fmt.Errorf("entry %d: %w", i, err))
			continue
		}
		for j, rawEvent := range entry.Messaging {
			ev, ok, err := messagingToEvent(channel, entry.ID, rawEvent)
			switch {
			case err != nil:
				res.fail(fmt.Errorf("entry %d event %d: %w", i, j, err))
			case !ok:
				res.skip()
			default:
				res.Events = append(res.Events, ev)
			}
		}
	}
}

// messagingToEvent returns ok=false for echoes, receipts and other non-message events.
func messagingToEvent(channel model.ChannelType, entryID string, raw json.RawMessage) (InboundEvent, bool, error) {
	var ev messagingEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return InboundEvent{}, false, err
	}
	if ev.Message == nil || ev.Message.IsEcho {
		return InboundEvent{}, false, nil
	}
	sender := strings.TrimSpace(ev.Sender.ID)
	if sender == "" {
		return InboundEvent{}, false, errors.New("missing sender id")
	}

	accountID := strings.TrimSpace(entryID)
	if accountID == "" {
		accountID = strings.TrimSpace(ev.Recipient.ID)
	}

	var urls []string
	for _, a := range ev.Message.Attachments {
		if a.Payload.URL != "" {
			urls = append(urls, a.Payload.URL)
		}
	}

	text := ev.Message.Text
	msgType := model.MessageText
	if strings.TrimSpace(text) == "" && len(ev.Message.Attachments) > 0 {
		text = model.AttachmentPlaceholder
		msgType = model.MessageImage
	}

	return InboundEvent{
		Channel:           channel,
		ProviderAccountID: accountID,
		SenderExternalID:  sender,
		Text:              text,
		MessageType:       msgType,
		AttachmentURLs:    urls,
		ProviderMessageID: ev.Message.MID,
		OccurredAt:        parseTimestamp(ev.Timestamp),
	}, true, nil
}
