package normalizer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zentrodesk/zentro-desk/internal/model"
)

const whatsAppTextPayload = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "id": "WABA-1",
    "changes": [{
      "field": "messages",
      "value": {
        "messaging_product": "whatsapp",
        "metadata": {"display_phone_number": "15550001111", "phone_number_id": "PN-1"},
        "contacts": [{"profile": {"name": "Ayesha"}, "wa_id": "923001234567"}],
        "messages": [{"from": "923001234567", "id": "wamid.1", "timestamp": "1700000000", "type": "text", "text": {"body": "Hello"}}]
      }
    }]
  }]
}`

func TestNormalizeWhatsAppText(t *testing.T) {
	res, err := NormalizeBody([]byte(whatsAppTextPayload))
	require.NoError(t, err)
	require.Empty(t, res.Errors)
	require.Len(t, res.Events, 1)

	ev := res.Events[0]
	assert.Equal(t, model.ChannelWhatsApp, ev.Channel)
	assert.Equal(t, "PN-1", ev.ProviderAccountID)
	assert.Equal(t, "923001234567", ev.SenderExternalID)
	assert.Equal(t, "Ayesha", ev.DisplayName)
	assert.Equal(t, "Hello", ev.Text)
	assert.Equal(t, model.MessageText, ev.MessageType)
	assert.Equal(t, "wamid.1", ev.ProviderMessageID)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), ev.OccurredAt)
}

func TestNormalizeWhatsAppFiltersTypesAndStatuses(t *testing.T) {
	body := `{
  "object": "whatsapp_business_account",
  "entry": [{
    "changes": [{
      "value": {
        "metadata": {"phone_number_id": "PN-1"},
        "messages": [
          {"from": "111", "id": "m1", "timestamp": "1700000000", "type": "sticker", "sticker": {"id": "s"}},
          {"from": "111", "id": "m2", "timestamp": "1700000001", "type": "image", "image": {"id": "media-9", "caption": ""}},
          {"from": "111", "id": "m3", "timestamp": "1700000002", "type": "document", "document": {"id": "media-10", "caption": "invoice"}},
          {"from": "111", "id": "m3", "timestamp": "1700000002", "type": "document", "document": {"id": "media-10", "caption": "invoice"}}
        ],
        "statuses": [{"id": "wamid.x", "status": "delivered"}]
      }
    }]
  }]
}`
	res, err := NormalizeBody([]byte(body))
	require.NoError(t, err)
	require.Empty(t, res.Errors)
	require.Len(t, res.Events, 2)

	img := res.Events[0]
	assert.Equal(t, model.MessageImage, img.MessageType)
	assert.Equal(t, model.AttachmentPlaceholder, img.Text)
	assert.Equal(t, []string{"media-9"}, img.MediaIDs)
	// No contacts array: the raw identifier is the display name.
	assert.Equal(t, "111", img.DisplayName)

	doc := res.Events[1]
	assert.Equal(t, model.MessageFile, doc.MessageType)
	assert.Equal(t, "invoice", doc.Text)

	// sticker, duplicate m3 and one status
	assert.Equal(t, 3, res.Skipped)
}

func TestNormalizeWhatsAppKeepsMessagesWithoutIDs(t *testing.T) {
	body := `{"object":"whatsapp_business_account","entry":[{"id":"WABA-1","changes":[{"field":"messages","value":{
	  "metadata":{"phone_number_id":"PN-1"},
	  "messages":[
	    {"from":"111","timestamp":"1700000000","type":"text","text":{"body":"first"}},
	    {"from":"111","timestamp":"1700000001","type":"text","text":{"body":"second"}},
	    {"from":"111","id":"wamid.9","timestamp":"1700000002","type":"text","text":{"body":"third"}},
	    {"from":"111","id":"wamid.9","timestamp":"1700000002","type":"text","text":{"body":"third"}}
	  ]}}]}]}`

	res, err := NormalizeBody([]byte(body))
	require.NoError(t, err)
	require.Len(t, res.Events, 3)
	assert.Equal(t, "first", res.Events[0].Text)
	assert.Equal(t, "second", res.Events[1].Text)
	assert.Equal(t, "third", res.Events[2].Text)
	assert.Equal(t, 1, res.Skipped)
}

func TestNormalizeFacebookSkipsEchoAndReceipts(t *testing.T) {
	body := `{
  "object": "page",
  "entry": [{
    "id": "PAGE-1",
    "time": 1700000000000,
    "messaging": [
      {"sender": {"id": "PAGE-1"}, "recipient": {"id": "USER-1"}, "timestamp": 1700000000000, "message": {"mid": "m.echo", "text": "hi", "is_echo": true}},
      {"sender": {"id": "USER-1"}, "recipient": {"id": "PAGE-1"}, "timestamp": 1700000000000, "delivery": {"mids": ["m.1"]}},
      {"sender": {"id": "USER-1"}, "recipient": {"id": "PAGE-1"}, "timestamp": 1700000000000, "read": {"watermark": 1}}
    ]
  }]
}`
	res, err := NormalizeBody([]byte(body))
	require.NoError(t, err)
	assert.Empty(t, res.Events)
	assert.Empty(t, res.Errors)
	assert.Equal(t, 3, res.Skipped)
}

func TestNormalizeFacebookAttachments(t *testing.T) {
	body := `{
  "object": "page",
  "entry": [{
    "id": "PAGE-1",
    "messaging": [
      {"sender": {"id": "USER-1"}, "recipient": {"id": "PAGE-1"}, "timestamp": 1700000000123,
       "message": {"mid": "m.1", "attachments": [{"type": "image", "payload": {"url": "https://cdn/x.jpg"}}, {"type": "fallback", "payload": {}}]}},
      {"sender": {"id": "USER-1"}, "recipient": {"id": "PAGE-1"}, "timestamp": 1700000001,
       "message": {"mid": "m.2", "text": "look", "attachments": [{"type": "image", "payload": {"url": "https://cdn/y.jpg"}}]}}
    ]
  }]
}`
	res, err := NormalizeBody([]byte(body))
	require.NoError(t, err)
	require.Len(t, res.Events, 2)

	first := res.Events[0]
	assert.Equal(t, model.ChannelFacebook, first.Channel)
	assert.Equal(t, "PAGE-1", first.ProviderAccountID)
	assert.Equal(t, model.AttachmentPlaceholder, first.Text)
	assert.Equal(t, model.MessageImage, first.MessageType)
	assert.Equal(t, []string{"https://cdn/x.jpg"}, first.AttachmentURLs)
	assert.Equal(t, time.UnixMilli(1700000000123).UTC(), first.OccurredAt)

	second := res.Events[1]
	assert.Equal(t, "look", second.Text)
	assert.Equal(t, model.MessageText, second.MessageType)
	assert.Equal(t, time.Unix(1700000001, 0).UTC(), second.OccurredAt)
}

func TestNormalizeIsolatesFailingEvents(t *testing.T) {
	body := `{
  "object": "instagram",
  "entry": [
    "not an object",
    {"id": "IG-1", "messaging": [
      {"sender": {}, "recipient": {"id": "IG-1"}, "message": {"mid": "bad", "text": "no sender"}},
      {"sender": {"id": 42}},
      {"sender": {"id": "IGSID-1"}, "recipient": {"id": "IG-1"}, "timestamp": 1700000000000, "message": {"mid": "good", "text": "still here"}}
    ]}
  ]
}`
	res, err := NormalizeBody([]byte(body))
	require.NoError(t, err)
	assert.Len(t, res.Errors, 3)
	require.Len(t, res.Events, 1)
	assert.Equal(t, model.ChannelInstagram, res.Events[0].Channel)
	assert.Equal(t, "IGSID-1", res.Events[0].SenderExternalID)
	assert.Equal(t, "still here", res.Events[0].Text)
}

func TestNormalizeUnknownObject(t *testing.T) {
	res, err := NormalizeBody([]byte(`{"object":"user","entry":[]}`))
	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	var unknown *UnknownObjectError
	assert.ErrorAs(t, res.Errors[0], &unknown)
}

func TestParseRejectsInvalidJSON(t *testing.T) {
	_, err := NormalizeBody([]byte(`{`))
	assert.Error(t, err)
}
